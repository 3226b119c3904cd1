package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHasRequiredRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		role     Role
		required []Role
		want     bool
	}{
		{name: "admin on admin route", role: RoleAdmin, required: []Role{RoleAdmin}, want: true},
		{name: "creator on admin route", role: RoleCreator, required: []Role{RoleAdmin}, want: false},
		{name: "creator on listing route", role: RoleCreator, required: []Role{RoleAdmin, RoleCreator}, want: true},
		{name: "user on listing route", role: RoleUser, required: []Role{RoleAdmin, RoleCreator}, want: false},
		{name: "any valid role on open set", role: RoleUser, want: true},
		{name: "unknown role", role: Role("root"), required: []Role{RoleAdmin}, want: false},
		{name: "unknown role on open set", role: Role(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HasRequiredRole(tt.role, tt.required...))
		})
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	role, ok := ParseRole("  Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("owner")
	assert.False(t, ok)
}

func TestTaskPatchApply(t *testing.T) {
	t.Parallel()

	due := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	task := Task{
		ID:          "t1",
		Title:       "T",
		Description: "D",
		DueDate:     &due,
		Priority:    PriorityLow,
		Status:      StatusPending,
		UserID:      "owner",
	}

	title := "New title"
	status := StatusInProgress
	TaskPatch{Title: &title, Status: &status}.Apply(&task)

	assert.Equal(t, "New title", task.Title)
	assert.Equal(t, "D", task.Description)
	assert.Equal(t, StatusInProgress, task.Status)
	assert.Equal(t, PriorityLow, task.Priority)
	assert.Equal(t, &due, task.DueDate)
	assert.Equal(t, "owner", task.UserID)

	TaskPatch{ClearDueDate: true}.Apply(&task)
	assert.Nil(t, task.DueDate)
}

func TestOneTimeTokenExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	assert.False(t, OneTimeToken{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, OneTimeToken{ExpiresAt: now}.Expired(now))
	assert.True(t, OneTimeToken{ExpiresAt: now.Add(-time.Second)}.Expired(now))
}

func TestEnumsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, PriorityHigh.Valid())
	assert.False(t, Priority("Urgent").Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, Status("Done").Valid())
}
