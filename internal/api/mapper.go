package api

import (
	"sort"
	"time"

	"github.com/sanverite/tweakd/internal/core"
	"github.com/sanverite/tweakd/internal/feature"
	"github.com/sanverite/tweakd/internal/tweak"
)

// FromCoreSnapshot converts core.Snapshot to the public StatusResponse.
// It computes uptime based on StartedAt and current wall-clock time.
func FromCoreSnapshot(s core.Snapshot) StatusResponse {
	var started string
	var uptime int64
	if !s.StartedAt.IsZero() {
		started = formatTime(s.StartedAt)
		uptime = int64(time.Since(s.StartedAt).Seconds())
	}

	notices := make([]NoticeView, 0, len(s.Notices))
	for _, n := range s.Notices {
		notices = append(notices, NoticeView{
			Level:   string(n.Level),
			Source:  n.Source,
			Message: n.Message,
			At:      formatTime(n.At),
		})
	}

	return StatusResponse{
		StartedAt:    started,
		UptimeSec:    uptime,
		Notices:      notices,
		Availability: availabilityViews(s.Availability),
		Patch:        FromPatchOperation(s.Patch),
		GeneratedAt:  TimeNow().UTC().Format(time.RFC3339),
	}
}

// FromPatchOperation converts core.PatchOperation to PatchView.
func FromPatchOperation(p core.PatchOperation) PatchView {
	v := PatchView{
		ID:    p.ID,
		Phase: string(p.Phase),
		Error: p.Error,
	}
	if !p.StartedAt.IsZero() {
		v.StartedAt = formatTime(p.StartedAt)
	}
	if len(p.Changes) > 0 {
		v.Changes = make(map[string]string, len(p.Changes))
		for k, val := range p.Changes {
			v.Changes[k] = val
		}
	}
	return v
}

// availabilityViews returns the summaries sorted by tweak name.
func availabilityViews(in map[string]core.Availability) []AvailabilityView {
	out := make([]AvailabilityView, 0, len(in))
	for _, a := range in {
		var lastChecked string
		if !a.LastChecked.IsZero() {
			lastChecked = formatTime(a.LastChecked)
		}
		out = append(out, AvailabilityView{
			Tweak:       a.Tweak,
			Known:       a.Known,
			Available:   a.Available,
			LatencyMs:   a.LatencyMs,
			LastChecked: lastChecked,
			Warnings:    append([]string(nil), a.Warnings...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tweak < out[j].Tweak })
	return out
}

// FromTweakView converts a derived tweak view.
func FromTweakView(v tweak.View) TweakView {
	fields := make([]FieldView, 0, len(v.Fields))
	for _, f := range v.Fields {
		fields = append(fields, FieldView{
			Key:       f.Key,
			Value:     f.Value,
			Current:   f.Current,
			Saved:     f.Saved,
			Reference: f.Reference,
			Changed:   f.Changed,
			Min:       f.Min,
			Max:       f.Max,
		})
	}
	return TweakView{
		Name:         v.Name,
		Title:        v.Title,
		Loaded:       v.Loaded,
		Availability: v.Availability.String(),
		Hidden:       v.Hidden(),
		Pending:      v.Pending,
		Fields:       fields,
		Info:         v.Info,
	}
}

// FromFeatureView converts the derived feature panel.
func FromFeatureView(v feature.View) FeaturesView {
	items := make([]FeatureItemView, 0, len(v.Items))
	for _, it := range v.Items {
		var opts []FeatureOptionView
		for _, o := range it.Options {
			opts = append(opts, FeatureOptionView{
				Val:          o.Val,
				Label:        o.Label,
				Desc:         o.Desc,
				Experimental: o.Experimental,
				Selected:     o.Selected,
			})
		}
		items = append(items, FeatureItemView{
			Key:           it.Key,
			Title:         it.Title,
			Desc:          it.Desc,
			Type:          string(it.Type),
			Experimental:  it.Experimental,
			Current:       it.Current,
			Enabled:       it.Enabled,
			Pending:       it.Pending,
			Control:       it.Control,
			ReadOnly:      it.ReadOnly,
			Options:       opts,
			Live:          it.Live,
			RebootPending: it.RebootPending,
		})
	}
	pending := v.Pending
	if pending == nil {
		pending = map[string]string{}
	}
	return FeaturesView{
		Loaded:             v.Loaded,
		ErrorStage:         v.ErrorStage,
		Error:              v.Error,
		Device:             v.Device,
		ShowExperimental:   v.Toggles.ShowExperimental,
		AllowReadOnlyPatch: v.Toggles.AllowReadOnlyPatch,
		Items:              items,
		Pending:            pending,
		Phase:              string(v.Phase),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
