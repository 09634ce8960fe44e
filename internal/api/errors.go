package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sanverite/tweakd/internal/executor"
	"github.com/sanverite/tweakd/internal/feature"
	"github.com/sanverite/tweakd/internal/tweak"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, APIError{
		Error:     msg,
		Timestamp: TimeNow().UTC().Format(time.RFC3339),
	})
}

// writeEngineError maps engine errors onto HTTP statuses:
//   - 400 for rejected input
//   - 404 for unknown tweaks and presets
//   - 409 for busy controllers and missing preconditions
//   - 502 for backend (script) failures; in-memory state is unchanged
func writeEngineError(c *gin.Context, err error) {
	writeError(c, statusFor(err), err.Error())
}

func statusFor(err error) int {
	var loadErr *feature.LoadError
	switch {
	case errors.Is(err, tweak.ErrUnknownTweak), errors.Is(err, tweak.ErrUnknownPreset):
		return http.StatusNotFound
	case errors.Is(err, tweak.ErrBusy), errors.Is(err, feature.ErrBusy),
		errors.Is(err, feature.ErrNotLoaded), errors.Is(err, feature.ErrNoChanges):
		return http.StatusConflict
	case errors.Is(err, tweak.ErrUnknownField), errors.Is(err, tweak.ErrInvalidValue),
		errors.Is(err, feature.ErrUnknownKey), errors.Is(err, feature.ErrBadValue),
		errors.Is(err, feature.ErrReadOnly), errors.Is(err, feature.ErrNotConfirmed):
		return http.StatusBadRequest
	case errors.Is(err, tweak.ErrSaveFailed), errors.Is(err, tweak.ErrApplyFailed),
		errors.Is(err, tweak.ErrProbeFailed), errors.Is(err, feature.ErrPatchFailed),
		errors.Is(err, executor.ErrNoResult), errors.As(err, &loadErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
