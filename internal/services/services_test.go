package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kraman82351/Task-management/internal/auth"
	"github.com/kraman82351/Task-management/internal/mailer"
	"github.com/kraman82351/Task-management/internal/memstore"
	"github.com/kraman82351/Task-management/internal/storage"
	"github.com/kraman82351/Task-management/types"
)

type outbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
	err  error
}

func (o *outbox) Dispatch(ctx context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

// lastToken extracts the raw token from the newest email link under path.
func (o *outbox) lastToken(t *testing.T, path string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	text := o.msgs[len(o.msgs)-1].Text
	_, after, found := strings.Cut(text, "/"+path+"/")
	require.True(t, found, "no %s link in %q", path, text)
	token, _, _ := strings.Cut(after, "\n")
	return token
}

type fixture struct {
	store   *memstore.Store
	objects *storage.Memory
	mail    *outbox
	users   *UserService
	tasks   *TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memstore.New()
	objects := storage.NewMemory("test")
	mail := &outbox{}
	tasks := NewTaskService(st.Tasks(), objects, nil)
	users := NewUserService(st.Users(), auth.NewHasher(bcrypt.MinCost, 2), mail, tasks, UserServiceConfig{
		ClientURL:       "http://localhost:3000/",
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	}, nil)
	return &fixture{store: st, objects: objects, mail: mail, users: users, tasks: tasks}
}

func (f *fixture) register(t *testing.T, email string) types.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), RegisterInput{Name: "Ada", Email: email, Password: "p1"})
	require.NoError(t, err)
	return user
}

func requireValidation(t *testing.T, err error, message string) {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	assert.Equal(t, message, ve.Message)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, RegisterInput{Name: " Ada ", Email: " Ada@Example.com ", Password: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, types.RoleUser, user.Role)
	assert.False(t, user.IsVerified)
	assert.NotEqual(t, "p1", user.PasswordHash)

	_, err = f.users.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "p2"})
	assert.ErrorIs(t, err, ErrEmailInUse)

	_, err = f.users.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com"})
	requireValidation(t, err, "All fields are required")

	_, err = f.users.Register(ctx, RegisterInput{Name: "Ada", Email: "not-an-email", Password: "p"})
	requireValidation(t, err, "Please enter a valid email")
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "ada@example.com")

	user, err := f.users.Authenticate(ctx, "ADA@example.com", "p1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = f.users.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Authenticate(ctx, "nobody@example.com", "p1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Authenticate(ctx, "", "p1")
	requireValidation(t, err, "All fields are required")
}

func TestUpdateProfileOnlyTouchesProfileFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")

	name, bio := "Ada L.", "analyst"
	updated, err := f.users.UpdateProfile(ctx, user.ID, ProfilePatch{Name: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)
	assert.Equal(t, "analyst", updated.Bio)
	assert.Equal(t, user.Email, updated.Email)
	assert.Equal(t, user.Role, updated.Role)

	empty := "  "
	_, err = f.users.UpdateProfile(ctx, user.ID, ProfilePatch{Name: &empty})
	requireValidation(t, err, "Name is required")

	_, err = f.users.UpdateProfile(ctx, uuid.NewString(), ProfilePatch{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// interleavedUsers runs between once, right after the service reads a user
// and before it writes, like a second request landing in that gap.
type interleavedUsers struct {
	UserRepository
	between func()
}

func (u *interleavedUsers) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := u.UserRepository.GetByID(ctx, id)
	if between := u.between; between != nil {
		u.between = nil
		between()
	}
	return user, err
}

func TestProfileAndPasswordWritesKeepConcurrentVerification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	setup := func(t *testing.T) (*fixture, *UserService, types.User) {
		f := newFixture(t)
		user := f.register(t, "ada@example.com")
		require.NoError(t, f.users.RequestVerification(ctx, user))
		token := f.mail.lastToken(t, "verify-email")

		repo := &interleavedUsers{UserRepository: f.store.Users()}
		repo.between = func() { require.NoError(t, f.users.VerifyEmail(ctx, token)) }
		users := NewUserService(repo, auth.NewHasher(bcrypt.MinCost, 2), f.mail, f.tasks, UserServiceConfig{}, nil)
		return f, users, user
	}

	t.Run("update profile", func(t *testing.T) {
		f, users, user := setup(t)

		name := "Ada L."
		updated, err := users.UpdateProfile(ctx, user.ID, ProfilePatch{Name: &name})
		require.NoError(t, err)
		assert.True(t, updated.IsVerified)

		stored, err := f.users.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsVerified)
		assert.Equal(t, "Ada L.", stored.Name)
	})

	t.Run("change password", func(t *testing.T) {
		f, users, user := setup(t)

		require.NoError(t, users.ChangePassword(ctx, user.ID, "p1", "p2"))

		stored, err := f.users.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsVerified)
		_, err = f.users.Authenticate(ctx, "ada@example.com", "p2")
		assert.NoError(t, err)
	})
}

func TestVerificationFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")

	require.NoError(t, f.users.RequestVerification(ctx, user))
	first := f.mail.lastToken(t, "verify-email")

	require.NoError(t, f.users.RequestVerification(ctx, user))
	second := f.mail.lastToken(t, "verify-email")
	assert.NotEqual(t, first, second)

	assert.ErrorIs(t, f.users.VerifyEmail(ctx, first), ErrInvalidToken, "replaced token")
	require.NoError(t, f.users.VerifyEmail(ctx, second))
	assert.ErrorIs(t, f.users.VerifyEmail(ctx, second), ErrInvalidToken, "single use")

	verified, err := f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.ErrorIs(t, f.users.RequestVerification(ctx, verified), ErrAlreadyVerified)

	requireValidation(t, f.users.VerifyEmail(ctx, " "), "Token is required")
}

func TestVerificationTokenExpires(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")

	require.NoError(t, f.users.RequestVerification(ctx, user))
	token := f.mail.lastToken(t, "verify-email")

	f.users.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	err := f.users.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestRequestVerificationReportsDispatchFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := f.register(t, "ada@example.com")
	f.mail.err = errors.New("smtp down")

	assert.Error(t, f.users.RequestVerification(context.Background(), user))
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com")

	assert.ErrorIs(t, f.users.ForgotPassword(ctx, "nobody@example.com"), ErrUserNotFound)
	requireValidation(t, f.users.ForgotPassword(ctx, ""), "Email is required")

	require.NoError(t, f.users.ForgotPassword(ctx, "ada@example.com"))
	token := f.mail.lastToken(t, "reset-password")

	requireValidation(t, f.users.ResetPassword(ctx, token, ""), "Password is required")
	require.NoError(t, f.users.ResetPassword(ctx, token, "p2"))
	assert.ErrorIs(t, f.users.ResetPassword(ctx, token, "p3"), ErrInvalidToken)

	_, err := f.users.Authenticate(ctx, "ada@example.com", "p1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Authenticate(ctx, "ada@example.com", "p2")
	assert.NoError(t, err)
}

func TestResetTokenExpiresAfterAnHour(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com")

	require.NoError(t, f.users.ForgotPassword(ctx, "ada@example.com"))
	token := f.mail.lastToken(t, "reset-password")

	f.users.now = func() time.Time { return time.Now().Add(61 * time.Minute) }
	assert.ErrorIs(t, f.users.ResetPassword(ctx, token, "p2"), ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")

	assert.ErrorIs(t, f.users.ChangePassword(ctx, user.ID, "wrong", "p2"), ErrInvalidPassword)
	requireValidation(t, f.users.ChangePassword(ctx, user.ID, "p1", ""), "All fields are required")
	require.NoError(t, f.users.ChangePassword(ctx, user.ID, "p1", "p2"))

	_, err := f.users.Authenticate(ctx, "ada@example.com", "p2")
	assert.NoError(t, err)
}

func TestDeleteUserCascades(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	admin := f.register(t, "admin@example.com")
	target := f.register(t, "ada@example.com")

	task, err := f.tasks.Create(ctx, target.ID, TaskInput{Title: "a", Description: "b"})
	require.NoError(t, err)
	task, err = f.tasks.Attach(ctx, target.ID, task.ID, pdfUpload("a.pdf"))
	require.NoError(t, err)
	require.True(t, f.objects.Has(task.Attachment.Key))

	assert.ErrorIs(t, f.users.Delete(ctx, admin.ID, admin.ID), ErrSelfDelete)
	assert.ErrorIs(t, f.users.Delete(ctx, admin.ID, uuid.NewString()), ErrUserNotFound)
	requireValidation(t, f.users.Delete(ctx, admin.ID, "nope"), "Invalid user id")

	require.NoError(t, f.users.Delete(ctx, admin.ID, target.ID))
	_, err = f.users.Get(ctx, target.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.store.Tasks().Get(ctx, task.ID)
	assert.Error(t, err)
	assert.False(t, f.objects.Has(task.Attachment.Key))
}

func TestSetRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com")

	user, err := f.users.SetRole(ctx, "ada@example.com", types.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, user.Role)

	_, err = f.users.SetRole(ctx, "ada@example.com", types.Role("root"))
	assert.Error(t, err)
	_, err = f.users.SetRole(ctx, "nobody@example.com", types.RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTaskCreateDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "ada@example.com")

	task, err := f.tasks.Create(ctx, owner.ID, TaskInput{Title: "Write", Description: "Report"})
	require.NoError(t, err)
	assert.Equal(t, types.PriorityLow, task.Priority)
	assert.Equal(t, types.StatusPending, task.Status)
	assert.False(t, task.Completed)
	assert.Equal(t, owner.ID, task.UserID)

	_, err = f.tasks.Create(ctx, owner.ID, TaskInput{Description: "x"})
	requireValidation(t, err, "Title is required!")
	_, err = f.tasks.Create(ctx, owner.ID, TaskInput{Title: "x", Description: " "})
	requireValidation(t, err, "Description is required!")
	_, err = f.tasks.Create(ctx, owner.ID, TaskInput{Title: "x", Description: "y", Priority: "Urgent"})
	requireValidation(t, err, "Invalid priority")
	_, err = f.tasks.Create(ctx, owner.ID, TaskInput{Title: "x", Description: "y", Status: "Done"})
	requireValidation(t, err, "Invalid status")
}

func TestTaskOwnershipIsolation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice@example.com")
	bob := f.register(t, "bob@example.com")

	task, err := f.tasks.Create(ctx, alice.ID, TaskInput{Title: "a", Description: "b"})
	require.NoError(t, err)

	_, err = f.tasks.Get(ctx, bob.ID, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	title := "stolen"
	_, err = f.tasks.Update(ctx, bob.ID, task.ID, types.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.tasks.Delete(ctx, bob.ID, task.ID), ErrForbidden)

	bobs, err := f.tasks.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobs)

	got, err := f.tasks.Get(ctx, alice.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Title)
}

func TestTaskLookupErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "ada@example.com")

	_, err := f.tasks.Get(ctx, owner.ID, "")
	requireValidation(t, err, "Please provide a task id")
	_, err = f.tasks.Get(ctx, owner.ID, "123")
	requireValidation(t, err, "Invalid task id")
	_, err = f.tasks.Get(ctx, owner.ID, uuid.NewString())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskPartialUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "ada@example.com")

	due := time.Date(2030, 2, 28, 0, 0, 0, 0, time.UTC)
	task, err := f.tasks.Create(ctx, owner.ID, TaskInput{Title: "a", Description: "b", DueDate: &due, Priority: types.PriorityHigh})
	require.NoError(t, err)

	status := types.StatusCompleted
	completed := true
	updated, err := f.tasks.Update(ctx, owner.ID, task.ID, types.TaskPatch{Status: &status, Completed: &completed})
	require.NoError(t, err)
	assert.Equal(t, "a", updated.Title)
	assert.Equal(t, "b", updated.Description)
	assert.Equal(t, types.PriorityHigh, updated.Priority)
	assert.Equal(t, types.StatusCompleted, updated.Status)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.DueDate)
	assert.True(t, due.Equal(*updated.DueDate))

	updated, err = f.tasks.Update(ctx, owner.ID, task.ID, types.TaskPatch{ClearDueDate: true})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)

	empty := ""
	_, err = f.tasks.Update(ctx, owner.ID, task.ID, types.TaskPatch{Title: &empty})
	requireValidation(t, err, "Title is required!")

	bad := types.Priority("Urgent")
	_, err = f.tasks.Update(ctx, owner.ID, task.ID, types.TaskPatch{Priority: &bad})
	requireValidation(t, err, "Invalid priority")
}

func TestTaskDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "ada@example.com")

	task, err := f.tasks.Create(ctx, owner.ID, TaskInput{Title: "a", Description: "b"})
	require.NoError(t, err)
	require.NoError(t, f.tasks.Delete(ctx, owner.ID, task.ID))
	assert.ErrorIs(t, f.tasks.Delete(ctx, owner.ID, task.ID), ErrTaskNotFound)
}

func pdfUpload(name string) Upload {
	body := []byte("%PDF-1.4\n%test document\n")
	return Upload{Filename: name, Size: int64(len(body)), Body: bytes.NewReader(body)}
}

func TestAttachReplacesPreviousAttachment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "ada@example.com")
	task, err := f.tasks.Create(ctx, owner.ID, TaskInput{Title: "a", Description: "b"})
	require.NoError(t, err)

	first, err := f.tasks.Attach(ctx, owner.ID, task.ID, pdfUpload("brief.pdf"))
	require.NoError(t, err)
	require.NotNil(t, first.Attachment)
	assert.True(t, strings.HasPrefix(first.Attachment.Key, "tasks/"+task.ID+"/"))
	assert.True(t, strings.HasSuffix(first.Attachment.Key, ".pdf"))
	assert.Equal(t, "brief.pdf", first.Attachment.Filename)
	assert.Equal(t, "application/pdf", first.Attachment.ContentType)

	second, err := f.tasks.Attach(ctx, owner.ID, task.ID, pdfUpload("v2.PDF"))
	require.NoError(t, err)
	assert.False(t, f.objects.Has(first.Attachment.Key))
	assert.True(t, f.objects.Has(second.Attachment.Key))

	r, att, err := f.tasks.OpenAttachment(ctx, owner.ID, task.ID)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Equal(t, "v2.PDF", att.Filename)
}

func TestAttachRejectsNonPDF(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "ada@example.com")
	task, err := f.tasks.Create(ctx, owner.ID, TaskInput{Title: "a", Description: "b"})
	require.NoError(t, err)

	_, err = f.tasks.Attach(ctx, owner.ID, task.ID, Upload{Filename: "a.png", Size: 3, Body: strings.NewReader("abc")})
	requireValidation(t, err, "Only PDF files are allowed!")

	_, err = f.tasks.Attach(ctx, owner.ID, task.ID, Upload{Filename: "fake.pdf", Size: 11, Body: strings.NewReader("hello world")})
	requireValidation(t, err, "Only PDF files are allowed!")

	_, err = f.tasks.Attach(ctx, owner.ID, task.ID, Upload{Filename: "big.pdf", Size: MaxAttachmentSize + 1, Body: strings.NewReader("%PDF-")})
	requireValidation(t, err, "File size must not exceed 5MB")

	_, _, err = f.tasks.OpenAttachment(ctx, owner.ID, task.ID)
	assert.ErrorIs(t, err, ErrNoAttachment)
}

func TestAttachmentsDisabledWithoutStorage(t *testing.T) {
	t.Parallel()

	st := memstore.New()
	tasks := NewTaskService(st.Tasks(), nil, nil)
	assert.False(t, tasks.AttachmentsEnabled())

	_, err := tasks.Attach(context.Background(), "u", uuid.NewString(), pdfUpload("a.pdf"))
	assert.ErrorIs(t, err, ErrStorageDisabled)
}
