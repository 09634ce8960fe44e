package api

import "time"

// Public JSON types returned by the API. These are intentionally decoupled
// from the internal engine types to preserve API stability and allow internal
// refactors without breaking the WebView.

// StatusResponse is the top-level payload for GET /v1/status.
type StatusResponse struct {
	StartedAt    string             `json:"started_at"`
	UptimeSec    int64              `json:"uptime_sec"`
	Notices      []NoticeView       `json:"notices"`
	Availability []AvailabilityView `json:"availability"`
	Patch        PatchView          `json:"patch"`
	GeneratedAt  string             `json:"generated_at"`
}

// NoticeView is one toast.
type NoticeView struct {
	Level   string `json:"level"` // "success", "info" or "error"
	Source  string `json:"source"`
	Message string `json:"message"`
	At      string `json:"at"`
}

// AvailabilityView summarizes the last is_available probe of a tweak.
type AvailabilityView struct {
	Tweak       string   `json:"tweak"`
	Known       bool     `json:"known"`
	Available   bool     `json:"available"`
	LatencyMs   int64    `json:"latency_ms"`
	LastChecked string   `json:"last_checked"`
	Warnings    []string `json:"warnings"`
}

// PatchView describes the current or most recent feature patch.
type PatchView struct {
	ID        string            `json:"id,omitempty"`
	Phase     string            `json:"phase"`
	StartedAt string            `json:"started_at,omitempty"`
	Changes   map[string]string `json:"changes,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// ProbeResponse is returned by POST /v1/probe.
type ProbeResponse struct {
	Availability []AvailabilityView `json:"availability"`
}

// TweakView is one tweak card.
type TweakView struct {
	Name         string            `json:"name"`
	Title        string            `json:"title"`
	Loaded       bool              `json:"loaded"`
	Availability string            `json:"availability"`
	Hidden       bool              `json:"hidden"`
	Pending      bool              `json:"pending"`
	Fields       []FieldView       `json:"fields"`
	Info         map[string]string `json:"info,omitempty"`
}

// FieldView is one field of a tweak card.
type FieldView struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Current   string `json:"current"`
	Saved     string `json:"saved"`
	Reference string `json:"reference"`
	Changed   bool   `json:"changed"`
	Min       *int64 `json:"min,omitempty"`
	Max       *int64 `json:"max,omitempty"`
}

// TweakListResponse is returned by GET /v1/tweaks.
type TweakListResponse struct {
	Tweaks  []TweakView `json:"tweaks"`
	Presets []string    `json:"presets"`
}

// UpdateTweakRequest edits pending fields. With Replace the fields are
// merged as a bulk state import, without sibling forcing.
type UpdateTweakRequest struct {
	Fields  map[string]string `json:"fields" binding:"required"`
	Replace bool              `json:"replace"`
}

// ImportRequest carries tweak name -> pending state.
type ImportRequest struct {
	Tweaks map[string]map[string]string `json:"tweaks" binding:"required"`
}

// ImportResponse lists tweak names that were not registered.
type ImportResponse struct {
	Skipped []string `json:"skipped"`
}

// ExportResponse carries every tweak's pending state.
type ExportResponse struct {
	Tweaks map[string]map[string]string `json:"tweaks"`
}

// PresetResponse is returned by POST /v1/presets/:name/apply.
type PresetResponse struct {
	Preset  string      `json:"preset"`
	Skipped []string    `json:"skipped"`
	Tweaks  []TweakView `json:"tweaks"`
}

// FeaturesView is the feature panel.
type FeaturesView struct {
	Loaded             bool              `json:"loaded"`
	ErrorStage         string            `json:"error_stage,omitempty"`
	Error              string            `json:"error,omitempty"`
	Device             string            `json:"device"`
	ShowExperimental   bool              `json:"show_experimental"`
	AllowReadOnlyPatch bool              `json:"allow_readonly_patch"`
	Items              []FeatureItemView `json:"items"`
	Pending            map[string]string `json:"pending"`
	Phase              string            `json:"phase"`
}

// FeatureItemView is one feature row.
type FeatureItemView struct {
	Key           string              `json:"key"`
	Title         string              `json:"title"`
	Desc          string              `json:"desc,omitempty"`
	Type          string              `json:"type"`
	Experimental  bool                `json:"experimental"`
	Current       string              `json:"current"`
	Enabled       bool                `json:"enabled"`
	Pending       string              `json:"pending,omitempty"`
	Control       bool                `json:"control"`
	ReadOnly      bool                `json:"readonly"`
	Options       []FeatureOptionView `json:"options,omitempty"`
	Live          string              `json:"live,omitempty"`
	RebootPending bool                `json:"reboot_pending"`
}

// FeatureOptionView is one choice of a select feature.
type FeatureOptionView struct {
	Val          string `json:"val"`
	Label        string `json:"label"`
	Desc         string `json:"desc,omitempty"`
	Experimental bool   `json:"experimental"`
	Selected     bool   `json:"selected"`
}

// TogglesRequest sets the panel-wide feature switches.
type TogglesRequest struct {
	ShowExperimental   bool `json:"show_experimental"`
	AllowReadOnlyPatch bool `json:"allow_readonly_patch"`
}

// PendingRequest queues feature changes.
type PendingRequest struct {
	Changes map[string]string `json:"changes" binding:"required"`
}

// PatchRequest starts a patch. Confirm must be true; the WebView collects
// the confirmation before sending.
type PatchRequest struct {
	Confirm bool `json:"confirm"`
}

// PatchResponse reports a finished patch.
type PatchResponse struct {
	Patch   PatchView    `json:"patch"`
	Console string       `json:"console"`
	View    FeaturesView `json:"view"`
}

// APIError is a standard error payload.
type APIError struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"` // RFC3339
}

// TimeNow abstracts time for tests; overridden in tests.
var TimeNow = func() time.Time { return time.Now() }
