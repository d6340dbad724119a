package bot

import "sync"

// chatState keeps one pending dialog value per Telegram user.
type chatState[T any] struct {
	mu     sync.Mutex
	byUser map[int64]T
}

func newChatState[T any]() *chatState[T] {
	return &chatState[T]{byUser: make(map[int64]T)}
}

func (s *chatState[T]) get(userID int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byUser[userID]
	return v, ok
}

func (s *chatState[T]) has(userID int64) bool {
	_, ok := s.get(userID)
	return ok
}

func (s *chatState[T]) set(userID int64, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = v
}

func (s *chatState[T]) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
}
