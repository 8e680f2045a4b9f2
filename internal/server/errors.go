package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"meal-journal/internal/assistant"
	"meal-journal/internal/storage"
)

const (
	saveFailedMessage   = "Failed to save meal data. Please try again."
	foodNotSavedMessage = "Meal logged, but the food could not be added to saved foods."
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, assistant.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// respondError writes err with its mapped status. Store failures on writes get
// the generic save message; the cause only goes to the log.
func respondError(c *gin.Context, err error, write bool) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusBadGateway {
		slog.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("participantID", c.Param("pid")),
			slog.String("error", err.Error()))
		if write {
			message = saveFailedMessage
		}
	}
	c.JSON(status, gin.H{"error": message})
}
