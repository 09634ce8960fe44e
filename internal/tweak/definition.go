package tweak

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldSpec declares one field of a tweak. Min and Max, when set, bound the
// field's integer value; out-of-range edits are clamped before they can
// reach the backend.
type FieldSpec struct {
	Key string
	Min *int64
	Max *int64
}

// Bounded reports whether the field declares a numeric range.
func (f FieldSpec) Bounded() bool { return f.Min != nil || f.Max != nil }

// Clamp normalizes value against the field bounds. Unbounded fields return
// value unchanged. Bounded fields require an integer.
func (f FieldSpec) Clamp(value string) (string, error) {
	if !f.Bounded() {
		return value, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidValue, f.Key, value)
	}
	if f.Min != nil && n < *f.Min {
		n = *f.Min
	}
	if f.Max != nil && n > *f.Max {
		n = *f.Max
	}
	return strconv.FormatInt(n, 10), nil
}

// ExclusionPair names two fields that may not both be non-zero, such as
// vm.dirty_ratio and vm.dirty_bytes. Setting one to a non-zero value forces
// the other to "0". When both are non-zero at serialization time the first
// field wins.
type ExclusionPair struct {
	First  string
	Second string
}

// Definition is the static description of a tweak: which script backs it
// and which fields it renders.
type Definition struct {
	Name      string
	Title     string
	Script    string
	Fields    []FieldSpec
	Exclusive []ExclusionPair
}

// Keys returns the declared field keys in declaration order.
func (d Definition) Keys() []string {
	keys := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Field looks up a field by key.
func (d Definition) Field(key string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// siblings returns the fields excluded by key.
func (d Definition) siblings(key string) []string {
	var out []string
	for _, p := range d.Exclusive {
		switch key {
		case p.First:
			out = append(out, p.Second)
		case p.Second:
			out = append(out, p.First)
		}
	}
	return out
}

// DisplayTitle returns Title, falling back to Name.
func (d Definition) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// Validate checks that the definition is internally consistent.
func (d Definition) Validate() error {
	var errs []error
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(d.Script) == "" {
		errs = append(errs, fmt.Errorf("%s: script is required", d.Name))
	}
	if len(d.Fields) == 0 {
		errs = append(errs, fmt.Errorf("%s: at least one field is required", d.Name))
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Key == "" {
			errs = append(errs, fmt.Errorf("%s: empty field key", d.Name))
			continue
		}
		if seen[f.Key] {
			errs = append(errs, fmt.Errorf("%s: duplicate field %q", d.Name, f.Key))
		}
		seen[f.Key] = true
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			errs = append(errs, fmt.Errorf("%s: field %q has min > max", d.Name, f.Key))
		}
	}
	for _, p := range d.Exclusive {
		if p.First == p.Second {
			errs = append(errs, fmt.Errorf("%s: exclusion pair %q excludes itself", d.Name, p.First))
		}
		if !seen[p.First] || !seen[p.Second] {
			errs = append(errs, fmt.Errorf("%s: exclusion pair %s/%s names an undeclared field", d.Name, p.First, p.Second))
		}
	}
	return errors.Join(errs...)
}

// isNonZero reports whether value is set to something other than the
// disabled sentinel.
func isNonZero(value string) bool {
	return value != "" && value != "0"
}
