// Package memstore keeps users and tasks in process memory. It backs the
// "memory" store driver and the handler and service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kraman82351/Task-management/internal/store"
	"github.com/kraman82351/Task-management/types"
)

// Store holds both collections behind one lock so cascades stay consistent.
type Store struct {
	mu    sync.RWMutex
	users map[string]types.User
	tasks map[string]types.Task
	now   func() time.Time
}

func New() *Store {
	return &Store{
		users: make(map[string]types.User),
		tasks: make(map[string]types.Task),
		now:   time.Now,
	}
}

// Users returns the user repository view of s.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// Tasks returns the task repository view of s.
func (s *Store) Tasks() *TaskRepository {
	return &TaskRepository{s: s}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

type UserRepository struct {
	s *Store
}

func copyUser(u types.User) types.User {
	if u.VerificationToken != nil {
		t := *u.VerificationToken
		u.VerificationToken = &t
	}
	if u.ResetToken != nil {
		t := *u.ResetToken
		u.ResetToken = &t
	}
	return u
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]types.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByTokenHash(ctx context.Context, kind types.TokenKind, hash string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if t := u.Token(kind); t != nil && t.Hash == hash {
			return copyUser(u), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; ok {
		return types.User{}, store.ErrConflict
	}
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	now := r.s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.VerificationToken = nil
	user.ResetToken = nil
	r.s.users[user.ID] = copyUser(user)
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, profile types.Profile) (types.User, error) {
	return r.modify(id, func(u *types.User) {
		u.Name = profile.Name
		u.Bio = profile.Bio
		u.Photo = profile.Photo
	})
}

func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.modify(id, func(u *types.User) { u.PasswordHash = passwordHash })
	return err
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role types.Role) error {
	_, err := r.modify(id, func(u *types.User) { u.Role = role })
	return err
}

func (r *UserRepository) modify(id string, apply func(*types.User)) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	apply(&u)
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return copyUser(u), nil
}

func (r *UserRepository) SetToken(ctx context.Context, id string, kind types.TokenKind, token types.OneTimeToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	t := token
	switch kind {
	case types.TokenVerification:
		u.VerificationToken = &t
	case types.TokenReset:
		u.ResetToken = &t
	default:
		return store.ErrNotFound
	}
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return nil
}

func (r *UserRepository) ConsumeToken(ctx context.Context, id string, kind types.TokenKind, hash string, change types.TokenConsumption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	t := u.Token(kind)
	if t == nil || t.Hash != hash {
		return store.ErrNotFound
	}
	switch kind {
	case types.TokenVerification:
		u.VerificationToken = nil
	case types.TokenReset:
		u.ResetToken = nil
	}
	if change.MarkVerified {
		u.IsVerified = true
	}
	if change.PasswordHash != "" {
		u.PasswordHash = change.PasswordHash
	}
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return nil
}

// Delete removes the user and, like the postgres foreign key, their tasks.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.users, id)
	for taskID, t := range r.s.tasks {
		if t.UserID == id {
			delete(r.s.tasks, taskID)
		}
	}
	return nil
}

type TaskRepository struct {
	s *Store
}

func copyTask(t types.Task) types.Task {
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	if t.Attachment != nil {
		a := *t.Attachment
		t.Attachment = &a
	}
	return t
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]types.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tasks := make([]types.Task, 0)
	for _, t := range r.s.tasks {
		if t.UserID == ownerID {
			tasks = append(tasks, copyTask(t))
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (types.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	return copyTask(t), nil
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[task.UserID]; !ok {
		return types.Task{}, store.ErrNotFound
	}
	if _, ok := r.s.tasks[task.ID]; ok {
		return types.Task{}, store.ErrConflict
	}
	now := r.s.now()
	task.CreatedAt = now
	task.UpdatedAt = now
	r.s.tasks[task.ID] = copyTask(task)
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.tasks[task.ID]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	task.UserID = current.UserID
	task.CreatedAt = current.CreatedAt
	task.UpdatedAt = r.s.now()
	r.s.tasks[task.ID] = copyTask(task)
	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *TaskRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var removed int64
	for id, t := range r.s.tasks {
		if t.UserID == ownerID {
			delete(r.s.tasks, id)
			removed++
		}
	}
	return removed, nil
}
