package feature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// ItemType is the control kind of a feature item.
type ItemType string

const (
	TypeBinary ItemType = "binary"
	TypeSelect ItemType = "select"
	TypeInfo   ItemType = "info"
)

// Disabled is the universal "feature off" value. No feature may use it as
// an enabled value.
const Disabled = "0"

// Device contexts that select a schema variant.
const (
	DeviceTrinket = "trinket"
	Device1280    = "1280"
)

// Value is a feature value as it appears in the schema asset. Numbers and
// strings are both accepted and kept as their literal text.
type Value string

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("feature value must be a string or number: %w", err)
	}
	*v = Value(n.String())
	return nil
}

// Option is one choice of a select item.
type Option struct {
	Val          Value  `json:"val"`
	Label        string `json:"label"`
	Desc         string `json:"desc,omitempty"`
	Experimental bool   `json:"experimental,omitempty"`
}

// Item describes one patchable kernel feature.
type Item struct {
	Key          string   `json:"key"`
	Title        string   `json:"title"`
	Desc         string   `json:"desc,omitempty"`
	Type         ItemType `json:"type"`
	Options      []Option `json:"options,omitempty"`
	Experimental bool     `json:"experimental,omitempty"`
	// Save marks features whose value is persisted for future boots after
	// a successful patch.
	Save bool `json:"save,omitempty"`
}

// Schema is the feature asset. Each device family has its own ordered list.
type Schema struct {
	Trinket []Item `json:"features_trinket"`
	Generic []Item `json:"features_1280"`
}

// ParseSchema decodes and validates a schema asset.
func ParseSchema(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("decode feature schema: %w", err)
	}
	for _, list := range [][]Item{s.Trinket, s.Generic} {
		for _, it := range list {
			if err := it.validate(); err != nil {
				return Schema{}, err
			}
		}
	}
	return s, nil
}

// LoadSchema reads and parses the schema asset at path.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read feature schema: %w", err)
	}
	return ParseSchema(data)
}

// For returns the item list for a device context.
func (s Schema) For(device string) []Item {
	if device == DeviceTrinket {
		return s.Trinket
	}
	return s.Generic
}

func (it Item) validate() error {
	if it.Key == "" {
		return fmt.Errorf("feature schema: item %q has no key", it.Title)
	}
	switch it.Type {
	case TypeBinary, TypeInfo:
	case TypeSelect:
		for _, o := range it.Options {
			if o.Val == Disabled {
				return fmt.Errorf("feature schema: %s: option value %q is reserved for disabled", it.Key, Disabled)
			}
		}
	default:
		return fmt.Errorf("feature schema: %s: unknown type %q", it.Key, it.Type)
	}
	return nil
}

// accepts reports whether val is a legal value for the item.
func (it Item) accepts(val string) bool {
	if val == Disabled {
		return true
	}
	switch it.Type {
	case TypeBinary:
		return val == "1"
	case TypeSelect:
		for _, o := range it.Options {
			if string(o.Val) == val {
				return true
			}
		}
		return false
	default:
		return val != ""
	}
}
