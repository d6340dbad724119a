package service

import (
	"context"
	"sync"

	"habit-tracker/internal/model"
)

// Session scopes tracker calls to the signed-in owner and caches that
// owner's habits. Every sign-in or sign-out discards the cache.
type Session struct {
	tracker *Tracker

	mu     sync.RWMutex
	owner  string
	habits []model.Habit
}

func NewSession(tracker *Tracker) *Session {
	return &Session{tracker: tracker}
}

// SignIn switches the session to owner and loads its habits.
func (s *Session) SignIn(ctx context.Context, owner string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	s.mu.Lock()
	s.owner = owner
	s.habits = nil
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// SignOut forgets the owner and everything loaded for it.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = ""
	s.habits = nil
}

func (s *Session) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Habits returns a copy of the cached habits.
func (s *Session) Habits() []model.Habit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Habit(nil), s.habits...)
}

// HabitAt returns the habit at 1-based position n of the cached list.
func (s *Session) HabitAt(n int) (model.Habit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 1 || n > len(s.habits) {
		return model.Habit{}, false
	}
	return s.habits[n-1], true
}

// Refresh reloads the cache. A result for an owner that signed out in the
// meantime is dropped.
func (s *Session) Refresh(ctx context.Context) error {
	owner, err := s.currentOwner()
	if err != nil {
		return err
	}
	habits, err := s.tracker.List(ctx, owner)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == owner {
		s.habits = habits
	}
	return nil
}

func (s *Session) Create(ctx context.Context, input model.HabitInput) (model.Habit, error) {
	owner, err := s.currentOwner()
	if err != nil {
		return model.Habit{}, err
	}
	habit, err := s.tracker.CreateHabit(ctx, owner, input)
	if err != nil {
		return model.Habit{}, err
	}
	return habit, s.Refresh(ctx)
}

func (s *Session) Edit(ctx context.Context, id string, patch model.HabitPatch) (model.Habit, error) {
	owner, err := s.currentOwner()
	if err != nil {
		return model.Habit{}, err
	}
	habit, err := s.tracker.EditHabit(ctx, owner, id, patch)
	if err != nil {
		return model.Habit{}, err
	}
	return habit, s.Refresh(ctx)
}

func (s *Session) Delete(ctx context.Context, id string) error {
	owner, err := s.currentOwner()
	if err != nil {
		return err
	}
	if err := s.tracker.DeleteHabit(ctx, owner, id); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

func (s *Session) Toggle(ctx context.Context, id, date string, completed bool) (model.Habit, error) {
	owner, err := s.currentOwner()
	if err != nil {
		return model.Habit{}, err
	}
	habit, err := s.tracker.ToggleCompletion(ctx, owner, id, date, completed)
	if err != nil {
		return model.Habit{}, err
	}
	return habit, s.Refresh(ctx)
}

func (s *Session) Insights(ctx context.Context, days int) (model.Insights, error) {
	owner, err := s.currentOwner()
	if err != nil {
		return model.Insights{}, err
	}
	return s.tracker.Insights(ctx, owner, days)
}

// Reset removes all data of the signed-in owner.
func (s *Session) Reset(ctx context.Context) error {
	owner, err := s.currentOwner()
	if err != nil {
		return err
	}
	if err := s.tracker.Reset(ctx, owner); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

func (s *Session) currentOwner() (string, error) {
	owner := s.Owner()
	if owner == "" {
		return "", ErrInvalidOwner
	}
	return owner, nil
}
