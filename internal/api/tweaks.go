package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/sanverite/tweakd/internal/tweak"
)

func (s *Server) controller(c *gin.Context) (*tweak.Controller, bool) {
	ctrl, err := s.tweaks.Controller(c.Param("name"))
	if err != nil {
		writeEngineError(c, err)
		return nil, false
	}
	return ctrl, true
}

func (s *Server) tweakViews() []TweakView {
	descs := s.tweaks.Descriptors()
	out := make([]TweakView, 0, len(descs))
	for _, d := range descs {
		out = append(out, FromTweakView(d.View()))
	}
	return out
}

// handleListTweaks returns every tweak card in registration order.
func (s *Server) handleListTweaks(c *gin.Context) {
	c.JSON(http.StatusOK, TweakListResponse{
		Tweaks:  s.tweakViews(),
		Presets: s.tweaks.PresetNames(),
	})
}

func (s *Server) handleGetTweak(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, FromTweakView(ctrl.View()))
}

// handleUpdateTweak edits pending fields.
// Method: PATCH
// Request: UpdateTweakRequest JSON
// Response (200): TweakView JSON
// Errors:
//   - 400 for unknown fields or non-integer values of bounded fields. Fields
//     are applied in key order and the first rejected one stops the update.
func (s *Server) handleUpdateTweak(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	var req UpdateTweakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Replace {
		if err := ctrl.SetState(req.Fields); err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, FromTweakView(ctrl.View()))
		return
	}

	keys := make([]string, 0, len(req.Fields))
	for k := range req.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	view := ctrl.View()
	for _, k := range keys {
		v, err := ctrl.SetField(k, req.Fields[k])
		if err != nil {
			writeEngineError(c, err)
			return
		}
		view = v
	}
	c.JSON(http.StatusOK, FromTweakView(view))
}

// handleLoadTweak re-reads current and saved state from the backend.
// Errors:
//   - 502 when the backend fails; the previous state is kept
func (s *Server) handleLoadTweak(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Load(c.Request.Context()); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, FromTweakView(ctrl.View()))
}

func (s *Server) handleSaveTweak(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Save(c.Request.Context()); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, FromTweakView(ctrl.View()))
}

func (s *Server) handleApplyTweak(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Apply(c.Request.Context()); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, FromTweakView(ctrl.View()))
}

// handleApplyPreset merges a preset into pending state. Nothing is saved or
// applied; the WebView follows up with save/apply per tweak.
func (s *Server) handleApplyPreset(c *gin.Context) {
	name := c.Param("name")
	skipped, err := s.tweaks.ApplyPreset(name)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, PresetResponse{
		Preset:  name,
		Skipped: nonNil(skipped),
		Tweaks:  s.tweakViews(),
	})
}

func (s *Server) handleExport(c *gin.Context) {
	c.JSON(http.StatusOK, ExportResponse{Tweaks: s.tweaks.Export()})
}

// handleImport merges pending state for every named tweak. Unknown names are
// reported, not rejected.
func (s *Server) handleImport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	skipped, err := s.tweaks.Import(req.Tweaks)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, ImportResponse{Skipped: nonNil(skipped)})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
