package tweak

import "github.com/sanverite/tweakd/internal/kv"

// Availability is the outcome of the tweak's is_available probe.
type Availability int

const (
	AvailabilityUnknown Availability = iota
	Available
	Unavailable
)

// String returns "unknown", "available" or "unavailable".
func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// FieldView is the rendered state of one field. Value is the effective
// pending value; Changed is Value != Reference.
type FieldView struct {
	Key       string
	Value     string
	Current   string
	Saved     string
	Reference string
	Changed   bool
	Min       *int64
	Max       *int64
}

// View is everything a panel needs to draw one tweak card.
type View struct {
	Name         string
	Title        string
	Loaded       bool
	Availability Availability
	// Pending is the pending-change indicator: true iff any field's
	// effective pending value differs from its reference.
	Pending bool
	Fields  []FieldView
	// Info carries current-state keys that are not editable fields, such as
	// the list of compression algorithms a zram device supports.
	Info map[string]string
}

// Hidden reports whether the card should be hidden from the panel.
func (v View) Hidden() bool { return v.Availability == Unavailable }

// ChangedKeys returns the keys of fields whose pending value differs from
// the reference, in declaration order.
func (v View) ChangedKeys() []string {
	var out []string
	for _, f := range v.Fields {
		if f.Changed {
			out = append(out, f.Key)
		}
	}
	return out
}

func (c *Controller) viewLocked() View {
	eff := c.effectiveLocked()
	v := View{
		Name:         c.def.Name,
		Title:        c.def.DisplayTitle(),
		Loaded:       c.loaded,
		Availability: c.available,
		Fields:       make([]FieldView, 0, len(c.def.Fields)),
	}
	for _, f := range c.def.Fields {
		fv := FieldView{
			Key:       f.Key,
			Value:     eff[f.Key],
			Current:   c.current[f.Key],
			Saved:     c.saved[f.Key],
			Reference: c.reference[f.Key],
			Min:       f.Min,
			Max:       f.Max,
		}
		fv.Changed = fv.Value != fv.Reference
		v.Pending = v.Pending || fv.Changed
		v.Fields = append(v.Fields, fv)
	}

	keys := c.def.Keys()
	declared := make(map[string]bool, len(keys))
	for _, k := range keys {
		declared[k] = true
	}
	info := kv.Clone(c.current)
	for k := range info {
		if declared[k] {
			delete(info, k)
		}
	}
	if len(info) > 0 {
		v.Info = info
	}
	return v
}
