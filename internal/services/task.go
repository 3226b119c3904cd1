package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kraman82351/Task-management/internal/storage"
	"github.com/kraman82351/Task-management/internal/store"
	"github.com/kraman82351/Task-management/types"
)

// MaxAttachmentSize caps uploaded attachments at 5 MiB.
const MaxAttachmentSize = 5 << 20

const pdfContentType = "application/pdf"

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]types.Task, error)
	Get(ctx context.Context, id string) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// TaskService encapsulates task use-cases. Every operation is scoped to the
// calling owner.
type TaskService struct {
	repo    TaskRepository
	objects storage.ObjectStorage
	logger  *slog.Logger
}

// NewTaskService builds a TaskService. objects may be nil, which disables
// attachments.
func NewTaskService(repo TaskRepository, objects storage.ObjectStorage, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{repo: repo, objects: objects, logger: logger}
}

// AttachmentsEnabled reports whether an object store is configured.
func (s *TaskService) AttachmentsEnabled() bool {
	return s.objects != nil
}

type TaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    types.Priority
	Status      types.Status
	Completed   bool
}

// Upload is an attachment as received from the client.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

func (s *TaskService) Create(ctx context.Context, ownerID string, in TaskInput) (types.Task, error) {
	task := types.Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		Status:      in.Status,
		Completed:   in.Completed,
		UserID:      ownerID,
	}
	if task.Priority == "" {
		task.Priority = types.PriorityLow
	}
	if task.Status == "" {
		task.Status = types.StatusPending
	}
	if err := validateTask(task); err != nil {
		return types.Task{}, err
	}

	created, err := s.repo.Create(ctx, task)
	if err != nil {
		return types.Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

func (s *TaskService) List(ctx context.Context, ownerID string) ([]types.Task, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *TaskService) Get(ctx context.Context, ownerID, id string) (types.Task, error) {
	return s.owned(ctx, ownerID, id)
}

// Update applies patch. The owner is never part of a patch.
func (s *TaskService) Update(ctx context.Context, ownerID, id string, patch types.TaskPatch) (types.Task, error) {
	task, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return types.Task{}, err
	}

	patch.Apply(&task)
	task.Title = strings.TrimSpace(task.Title)
	task.Description = strings.TrimSpace(task.Description)
	if err := validateTask(task); err != nil {
		return types.Task{}, err
	}

	updated, err := s.repo.Update(ctx, task)
	if errors.Is(err, store.ErrNotFound) {
		return types.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return types.Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, ownerID, id string) error {
	task, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, task.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	if task.Attachment != nil {
		s.removeObject(ctx, task.Attachment.Key)
	}
	return nil
}

// PurgeOwner deletes every task of ownerID along with stored attachments.
func (s *TaskService) PurgeOwner(ctx context.Context, ownerID string) (int64, error) {
	tasks, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	removed, err := s.repo.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	for _, task := range tasks {
		if task.Attachment != nil {
			s.removeObject(ctx, task.Attachment.Key)
		}
	}
	return removed, nil
}

// Attach stores upload as the task's PDF attachment, replacing any previous one.
func (s *TaskService) Attach(ctx context.Context, ownerID, id string, upload Upload) (types.Task, error) {
	if s.objects == nil {
		return types.Task{}, ErrStorageDisabled
	}

	task, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return types.Task{}, err
	}

	if upload.Size > MaxAttachmentSize {
		return types.Task{}, invalid("File size must not exceed 5MB")
	}
	if !strings.EqualFold(filepath.Ext(upload.Filename), ".pdf") {
		return types.Task{}, invalid("Only PDF files are allowed!")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return types.Task{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if http.DetectContentType(head) != pdfContentType {
		return types.Task{}, invalid("Only PDF files are allowed!")
	}

	key := fmt.Sprintf("tasks/%s/%s.pdf", task.ID, uuid.NewString())
	body := io.MultiReader(bytes.NewReader(head), upload.Body)
	if err := s.objects.Put(ctx, key, body, upload.Size, pdfContentType); err != nil {
		return types.Task{}, fmt.Errorf("store attachment: %w", err)
	}

	previous := task.Attachment
	task.Attachment = &types.Attachment{
		Key:         key,
		Filename:    filepath.Base(upload.Filename),
		Size:        upload.Size,
		ContentType: pdfContentType,
	}
	updated, err := s.repo.Update(ctx, task)
	if err != nil {
		s.removeObject(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return types.Task{}, ErrTaskNotFound
		}
		return types.Task{}, fmt.Errorf("update task: %w", err)
	}
	if previous != nil {
		s.removeObject(ctx, previous.Key)
	}
	return updated, nil
}

// OpenAttachment returns a reader over the task's attachment. The caller
// closes it.
func (s *TaskService) OpenAttachment(ctx context.Context, ownerID, id string) (io.ReadCloser, types.Attachment, error) {
	if s.objects == nil {
		return nil, types.Attachment{}, ErrStorageDisabled
	}

	task, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, types.Attachment{}, err
	}
	if task.Attachment == nil {
		return nil, types.Attachment{}, ErrNoAttachment
	}

	r, err := s.objects.Get(ctx, task.Attachment.Key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, types.Attachment{}, ErrNoAttachment
	}
	if err != nil {
		return nil, types.Attachment{}, fmt.Errorf("open attachment: %w", err)
	}
	return r, *task.Attachment, nil
}

func (s *TaskService) owned(ctx context.Context, ownerID, id string) (types.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Task{}, invalid("Please provide a task id")
	}
	if _, err := uuid.Parse(id); err != nil {
		return types.Task{}, invalid("Invalid task id")
	}

	task, err := s.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return types.Task{}, fmt.Errorf("load task: %w", err)
	}
	if task.UserID != ownerID {
		return types.Task{}, ErrForbidden
	}
	return task, nil
}

func (s *TaskService) removeObject(ctx context.Context, key string) {
	if s.objects == nil || key == "" {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "remove attachment", slog.String("key", key), slog.Any("error", err))
	}
}

func validateTask(task types.Task) error {
	if task.Title == "" {
		return invalid("Title is required!")
	}
	if task.Description == "" {
		return invalid("Description is required!")
	}
	if !task.Priority.Valid() {
		return invalid("Invalid priority")
	}
	if !task.Status.Valid() {
		return invalid("Invalid status")
	}
	return nil
}
