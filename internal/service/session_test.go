package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/model"
)

func TestSessionRequiresSignIn(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, "o")
	s := NewSession(f.tracker)

	assert.Empty(t, s.Owner())
	_, err := s.Create(ctx, drinkWater())
	assert.ErrorIs(t, err, ErrInvalidOwner)
	assert.ErrorIs(t, s.Refresh(ctx), ErrInvalidOwner)
	assert.ErrorIs(t, s.Reset(ctx), ErrInvalidOwner)
	_, err = s.Insights(ctx, 7)
	assert.ErrorIs(t, err, ErrInvalidOwner)
	assert.ErrorIs(t, s.SignIn(ctx, ""), ErrInvalidOwner)
}

func TestSessionCachesSignedInOwner(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, "alice", "bob")
	_, err := f.tracker.CreateHabit(ctx, "bob", model.HabitInput{Name: "Bob's habit"})
	require.NoError(t, err)

	s := NewSession(f.tracker)
	require.NoError(t, s.SignIn(ctx, "alice"))
	assert.Empty(t, s.Habits())

	created, err := s.Create(ctx, drinkWater())
	require.NoError(t, err)
	require.Len(t, s.Habits(), 1)

	first, ok := s.HabitAt(1)
	require.True(t, ok)
	assert.Equal(t, created.ID, first.ID)
	_, ok = s.HabitAt(0)
	assert.False(t, ok)
	_, ok = s.HabitAt(2)
	assert.False(t, ok)

	toggled, err := s.Toggle(ctx, created.ID, date(0), true)
	require.NoError(t, err)
	assert.Equal(t, 1, toggled.Streak)
	cached, _ := s.HabitAt(1)
	assert.Equal(t, 1, cached.Streak)

	require.NoError(t, s.SignIn(ctx, "bob"))
	require.Len(t, s.Habits(), 1)
	assert.Equal(t, "Bob's habit", s.Habits()[0].Name)

	s.SignOut()
	assert.Empty(t, s.Owner())
	assert.Empty(t, s.Habits())
}

func TestSessionHabitsIsACopy(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, "o")
	s := NewSession(f.tracker)
	require.NoError(t, s.SignIn(ctx, "o"))
	_, err := s.Create(ctx, drinkWater())
	require.NoError(t, err)

	habits := s.Habits()
	habits[0].Name = "changed"
	again, _ := s.HabitAt(1)
	assert.Equal(t, "Drink Water", again.Name)
}

func TestSessionEditDeleteAndReset(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, "o")
	s := NewSession(f.tracker)
	require.NoError(t, s.SignIn(ctx, "o"))

	h, err := s.Create(ctx, drinkWater())
	require.NoError(t, err)
	_, err = s.Create(ctx, model.HabitInput{Name: "Read"})
	require.NoError(t, err)

	edited, err := s.Edit(ctx, h.ID, model.HabitPatch{Name: strPtr("Hydrate")})
	require.NoError(t, err)
	assert.Equal(t, "Hydrate", edited.Name)
	cached, _ := s.HabitAt(1)
	assert.Equal(t, "Hydrate", cached.Name)

	require.NoError(t, s.Delete(ctx, h.ID))
	require.Len(t, s.Habits(), 1)
	assert.Empty(t, f.reminders.LiveFor(h.ID))

	insights, err := s.Insights(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, insights.HabitCount)

	require.NoError(t, s.Reset(ctx))
	assert.Empty(t, s.Habits())
	assert.Equal(t, "o", s.Owner())
}
