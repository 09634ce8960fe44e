package feature

import (
	"regexp"
	"strings"

	"github.com/sanverite/tweakd/internal/core"
	"github.com/sanverite/tweakd/internal/kv"
)

// OptionView is one rendered choice of a select item.
type OptionView struct {
	Val          string
	Label        string
	Desc         string
	Experimental bool
	Selected     bool
}

// ItemView is one rendered feature row.
type ItemView struct {
	Key          string
	Title        string
	Desc         string
	Type         ItemType
	Experimental bool
	Current      string
	Enabled      bool
	// Pending is the queued value, empty when unchanged.
	Pending string
	// Control is false when no input should be drawn (read-only items
	// without the override).
	Control  bool
	ReadOnly bool
	Options  []OptionView
	// Live is the value on the running kernel's command line, if present.
	Live string
	// RebootPending is set when Live disagrees with the patched image.
	RebootPending bool
}

// View is the rendered feature panel.
type View struct {
	Loaded     bool
	ErrorStage string
	Error      string
	Device     string
	Toggles    Toggles
	Items      []ItemView
	Pending    map[string]string
	Phase      core.PatchPhase
}

// View derives the panel from the last load, pending changes and toggles.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Loaded:  c.loaded,
		Device:  c.opts.Device,
		Toggles: c.toggles,
		Pending: kv.Clone(c.pending),
		Phase:   c.opts.State.PatchPhase(),
	}
	if c.loadErr != nil {
		v.ErrorStage = c.loadErr.Stage
		v.Error = c.loadErr.Output
		return v
	}
	for _, it := range c.items {
		iv, visible := renderItem(it, c.currentLocked(it.Key), c.pending[it.Key], c.live, c.toggles)
		if visible {
			v.Items = append(v.Items, iv)
		}
	}
	return v
}

// renderItem applies the visibility and control rules to one item.
func renderItem(it Item, current, pending string, live map[string]string, t Toggles) (ItemView, bool) {
	enabled := current != Disabled
	// Enabled experimental features stay visible so they can be turned off.
	if it.Experimental && !t.ShowExperimental && !enabled {
		return ItemView{}, false
	}

	iv := ItemView{
		Key:          it.Key,
		Title:        it.Title,
		Desc:         it.Desc,
		Type:         it.Type,
		Experimental: it.Experimental,
		Current:      current,
		Enabled:      enabled,
		Pending:      pending,
		Control:      true,
	}
	if it.Type == TypeInfo {
		iv.ReadOnly = true
		iv.Control = t.AllowReadOnlyPatch
	}

	if it.Type == TypeSelect {
		selected := current
		if pending != "" {
			selected = pending
		}
		opts := append([]Option{{Val: Disabled, Label: "Disabled"}}, it.Options...)
		for _, o := range opts {
			val := string(o.Val)
			isSelected := val == selected
			if o.Experimental && !t.ShowExperimental && !isSelected && val != current {
				continue
			}
			iv.Options = append(iv.Options, OptionView{
				Val:          val,
				Label:        o.Label,
				Desc:         o.Desc,
				Experimental: o.Experimental,
				Selected:     isSelected,
			})
		}
	}

	if v, ok := live[it.Key]; ok {
		iv.Live = v
		iv.RebootPending = v != current
	}
	return iv, true
}

var cmdlineParam = regexp.MustCompile(`^([^=]+)=(\d+)`)

// ParseCmdline returns the numeric key=N parameters of a kernel command
// line. A key matches a whole whitespace-delimited token, so "foo" is not
// found in "xfoo=1" or "androidboot.foo=1". The first occurrence wins.
func ParseCmdline(cmdline string) map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Fields(cmdline) {
		m := cmdlineParam.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		if _, ok := out[m[1]]; !ok {
			out[m[1]] = m[2]
		}
	}
	return out
}

// LiveValue extracts the numeric value of key=N from a kernel command line.
func LiveValue(cmdline, key string) (string, bool) {
	v, ok := ParseCmdline(cmdline)[key]
	return v, ok
}
