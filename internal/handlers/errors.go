package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kraman82351/Task-management/internal/services"
	"github.com/kraman82351/Task-management/internal/store"
)

const (
	msgInternal     = "Something went wrong!"
	msgUnauthorized = "Not authorized, please login!"
	msgForbidden    = "Not authorized!"
)

var errorStatuses = []struct {
	target  error
	status  int
	message string
}{
	{services.ErrTaskNotFound, http.StatusNotFound, "Task not found!"},
	{services.ErrUserNotFound, http.StatusNotFound, "User not found!"},
	{services.ErrNoAttachment, http.StatusNotFound, "Attachment not found!"},
	{services.ErrForbidden, http.StatusForbidden, msgForbidden},
	{services.ErrEmailInUse, http.StatusConflict, "User already exists"},
	{store.ErrConflict, http.StatusConflict, "User already exists"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{services.ErrInvalidPassword, http.StatusBadRequest, "Invalid password!"},
	{services.ErrAlreadyVerified, http.StatusBadRequest, "User is already verified"},
	{services.ErrInvalidToken, http.StatusBadRequest, "Invalid or expired token"},
	{services.ErrSelfDelete, http.StatusBadRequest, "You cannot delete your own account"},
	{services.ErrStorageDisabled, http.StatusServiceUnavailable, "Attachments are not available"},
	{errInvalidBody, http.StatusBadRequest, "Invalid request body"},
}

// respondError maps err onto the HTTP error taxonomy. Anything unrecognised
// is logged and reported as a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Message)
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.target) {
			writeError(w, e.status, e.message)
			return
		}
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	writeError(w, http.StatusInternalServerError, msgInternal)
}
