// Package render draws tweak and feature views as terminal text for the CLI.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/sanverite/tweakd/internal/core"
	"github.com/sanverite/tweakd/internal/feature"
	"github.com/sanverite/tweakd/internal/tweak"
)

// Tweak renders one tweak card.
func Tweak(v tweak.View) string {
	header := titleStyle.Render(v.Title)
	switch {
	case !v.Loaded:
		header += " " + mutedStyle.Render("(not loaded)")
	case v.Pending:
		header += " " + changedStyle.Render("● unsaved changes")
	}
	if v.Availability == tweak.Unavailable {
		header += " " + errorStyle.Render("unavailable")
	}

	rows := []string{header, columns(mutedStyle, "field", "value", "current", "saved")}
	for _, f := range v.Fields {
		style := lipgloss.NewStyle()
		if f.Changed {
			style = changedStyle
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			keyStyle.Render(f.Key+bounds(f)),
			style.Inherit(valueStyle).Render(orDash(f.Value)),
			valueStyle.Render(orDash(f.Current)),
			valueStyle.Render(orDash(f.Saved)),
		))
	}
	if len(v.Info) > 0 {
		keys := make([]string, 0, len(v.Info))
		for k := range v.Info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rows = append(rows, mutedStyle.Render(k+": "+v.Info[k]))
		}
	}
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// Tweaks renders every visible card, hiding unavailable tweaks.
func Tweaks(views []tweak.View) string {
	var cards []string
	for _, v := range views {
		if v.Hidden() {
			continue
		}
		cards = append(cards, Tweak(v))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// Features renders the feature panel, or its error panel.
func Features(v feature.View) string {
	if v.ErrorStage != "" {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			errorStyle.Render("Feature "+v.ErrorStage+" failed"),
			v.Error,
		))
	}
	if !v.Loaded {
		return mutedStyle.Render("features not loaded")
	}

	rows := []string{titleStyle.Render("Kernel features (" + v.Device + ")")}
	for _, it := range v.Items {
		rows = append(rows, featureRow(it))
	}
	if len(v.Pending) > 0 {
		rows = append(rows, changedStyle.Render(fmt.Sprintf("%d pending change(s)", len(v.Pending))))
	}
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func featureRow(it feature.ItemView) string {
	state := mutedStyle.Render("off")
	if it.Enabled {
		state = okStyle.Render("on")
	}
	if it.Type == feature.TypeSelect {
		state = optionLabel(it)
	}
	if it.Type == feature.TypeInfo {
		state = it.Current
	}

	var tags []string
	if it.Experimental {
		tags = append(tags, "experimental")
	}
	if it.ReadOnly {
		tags = append(tags, "read-only")
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top,
		keyStyle.Render(it.Title),
		valueStyle.Render(state),
		mutedStyle.Render(strings.Join(tags, ", ")),
	)
	if it.Pending != "" {
		line += " " + changedStyle.Render("→ "+it.Pending)
	}
	if it.RebootPending {
		line += " " + changedStyle.Render("(reboot to activate, running "+it.Live+")")
	}
	return line
}

func optionLabel(it feature.ItemView) string {
	for _, o := range it.Options {
		if o.Val == it.Current {
			return o.Label
		}
	}
	return it.Current
}

// Notices renders the notice history, newest last.
func Notices(ns []core.Notice) string {
	lines := make([]string, 0, len(ns))
	for _, n := range ns {
		style := mutedStyle
		switch n.Level {
		case core.NoticeSuccess:
			style = okStyle
		case core.NoticeError:
			style = errorStyle
		}
		lines = append(lines, style.Render(fmt.Sprintf("[%s] %s: %s", n.Level, n.Source, n.Message)))
	}
	return strings.Join(lines, "\n")
}

// Writer is a tweak.Renderer that prints each view it receives.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer printing to w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Render implements tweak.Renderer.
func (w *Writer) Render(v tweak.View) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.w, Tweak(v))
}

func columns(style lipgloss.Style, key string, vals ...string) string {
	cells := []string{keyStyle.Render(key)}
	for _, v := range vals {
		cells = append(cells, valueStyle.Render(v))
	}
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
}

func bounds(f tweak.FieldView) string {
	switch {
	case f.Min != nil && f.Max != nil:
		return fmt.Sprintf(" [%d..%d]", *f.Min, *f.Max)
	case f.Min != nil:
		return fmt.Sprintf(" [%d..]", *f.Min)
	case f.Max != nil:
		return fmt.Sprintf(" [..%d]", *f.Max)
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
