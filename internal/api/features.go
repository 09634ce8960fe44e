package api

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/sanverite/tweakd/internal/feature"
)

func (s *Server) featuresView() FeaturesView {
	return FromFeatureView(s.features.View())
}

func (s *Server) handleGetFeatures(c *gin.Context) {
	c.JSON(http.StatusOK, s.featuresView())
}

// handleLoadFeatures runs unpack and read_features.
// Errors:
//   - 502 with the error view when a stage fails; the raw backend output
//     is in the view's "error" field
func (s *Server) handleLoadFeatures(c *gin.Context) {
	err := s.features.Load(c.Request.Context())
	var loadErr *feature.LoadError
	switch {
	case errors.As(err, &loadErr):
		c.JSON(http.StatusBadGateway, s.featuresView())
	case err != nil:
		writeEngineError(c, err)
	default:
		c.JSON(http.StatusOK, s.featuresView())
	}
}

func (s *Server) handleSetToggles(c *gin.Context) {
	var req TogglesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	s.features.SetToggles(feature.Toggles{
		ShowExperimental:   req.ShowExperimental,
		AllowReadOnlyPatch: req.AllowReadOnlyPatch,
	})
	c.JSON(http.StatusOK, s.featuresView())
}

// handleSetPending queues feature changes, applied in key order. The first
// rejected change stops the update; earlier ones stay queued.
func (s *Server) handleSetPending(c *gin.Context) {
	var req PendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	keys := make([]string, 0, len(req.Changes))
	for k := range req.Changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.features.SetPending(k, req.Changes[k]); err != nil {
			writeEngineError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, s.featuresView())
}

func (s *Server) handleClearPending(c *gin.Context) {
	s.features.ClearPending()
	c.JSON(http.StatusOK, s.featuresView())
}

// handlePatch patches the pending feature changes into the kernel image.
// Method: POST
// Request: PatchRequest JSON; confirm must be true
// Response (200): PatchResponse JSON with the patch console text
// Errors:
//   - 400 when not confirmed
//   - 409 when nothing is pending, features are not loaded, or a patch runs
//   - 502 when the patch script fails; pending changes are kept for retry
//
// The patch runs detached from the request context so a closed WebView
// cannot interrupt a half-written boot image. Follow progress on
// /v1/features/log.
func (s *Server) handlePatch(c *gin.Context) {
	var req PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.opts.PatchTimeout)
	defer cancel()
	err := s.features.ApplyPatch(ctx, feature.Confirmed(req.Confirm))

	resp := PatchResponse{
		Patch:   FromPatchOperation(s.state.GetSnapshot().Patch),
		Console: s.features.Console().String(),
		View:    s.featuresView(),
	}
	if err != nil {
		status := statusFor(err)
		if status != http.StatusBadGateway {
			writeEngineError(c, err)
			return
		}
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
