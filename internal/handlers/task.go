package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kraman82351/Task-management/internal/services"
	"github.com/kraman82351/Task-management/types"
)

const multipartMemory = 1 << 20

// TaskHandler serves the owner-scoped task endpoints.
type TaskHandler struct {
	tasks  *services.TaskService
	logger *slog.Logger
}

func NewTaskHandler(tasks *services.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type createTaskRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	DueDate     *string        `json:"dueDate"`
	Priority    types.Priority `json:"priority"`
	Status      types.Status   `json:"status"`
	Completed   bool           `json:"completed"`
}

// TaskListResponse is the body of GET /tasks.
type TaskListResponse struct {
	Length int          `json:"length"`
	Tasks  []types.Task `json:"tasks"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	in := services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		Completed:   req.Completed,
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid due date")
			return
		}
		in.DueDate = due
	}

	task, err := h.tasks.Create(r.Context(), user.ID, in)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	tasks, err := h.tasks.List(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []types.Task{}
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Length: len(tasks), Tasks: tasks})
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	task, err := h.tasks.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask applies only the fields present in the body. A null dueDate
// clears the due date.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var body map[string]json.RawMessage
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	patch, err := parseTaskPatch(body)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	task, err := h.tasks.Update(r.Context(), user.ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	if err := h.tasks.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Task deleted successfully!")
}

// MissingTaskID answers task routes called without an id.
func (h *TaskHandler) MissingTaskID(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusBadRequest, "Please provide a task id")
}

// UploadAttachment stores the multipart field "file" as the task's PDF.
func (h *TaskHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAttachmentSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "File size must not exceed 5MB")
			return
		}
		writeError(w, http.StatusBadRequest, "Please upload a file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Please upload a file")
		return
	}
	defer file.Close()

	task, err := h.tasks.Attach(r.Context(), user.ID, chi.URLParam(r, "id"), services.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	body, attachment, err := h.tasks.OpenAttachment(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Filename}))
	if attachment.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(attachment.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "stream attachment", slog.Any("error", err))
	}
}

func parseTaskPatch(body map[string]json.RawMessage) (types.TaskPatch, error) {
	var patch types.TaskPatch
	decode := func(key string, dst any) error {
		raw, ok := body[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return errInvalidBody
		}
		return nil
	}

	if err := decode("title", &patch.Title); err != nil {
		return patch, err
	}
	if err := decode("description", &patch.Description); err != nil {
		return patch, err
	}
	if err := decode("priority", &patch.Priority); err != nil {
		return patch, err
	}
	if err := decode("status", &patch.Status); err != nil {
		return patch, err
	}
	if err := decode("completed", &patch.Completed); err != nil {
		return patch, err
	}

	if raw, ok := body["dueDate"]; ok {
		var due *string
		if err := json.Unmarshal(raw, &due); err != nil {
			return patch, errInvalidBody
		}
		if due == nil || *due == "" {
			patch.ClearDueDate = true
			return patch, nil
		}
		parsed, err := parseDueDate(*due)
		if err != nil {
			return patch, &services.ValidationError{Message: "Invalid due date"}
		}
		patch.DueDate = parsed
	}
	return patch, nil
}
