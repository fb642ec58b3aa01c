// Package descriptor holds the metadata ruleset that guides schema synthesis
// and selective merging: read-only paths, enum paths, titles, descriptions,
// section groupings, and free-form UI hints, all keyed by normalized field
// paths. A descriptor is immutable once built; reloads swap it wholesale.
package descriptor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bnema/chartform/internal/fieldpath"
)

// Section groups related fields for presentation. The engine treats sections
// as opaque and passes them through to the schema root verbatim.
type Section struct {
	Name   string   `yaml:"name" json:"name"`
	Title  string   `yaml:"title,omitempty" json:"title,omitempty"`
	Fields []string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Descriptor is the resolved, immutable ruleset.
type Descriptor struct {
	readonly     map[string]struct{}
	enum         map[string]struct{}
	titles       map[string]string
	descriptions map[string]string

	Sections []Section
	UIHints  map[string]any
}

// descriptorFile is the YAML document shape.
type descriptorFile struct {
	ReadOnly     []string          `yaml:"readonly"`
	Enum         []string          `yaml:"enum"`
	Titles       map[string]string `yaml:"titles"`
	Descriptions map[string]string `yaml:"descriptions"`
	Sections     []Section         `yaml:"sections"`
	UIHints      map[string]any    `yaml:"uiHints"`
}

// Empty returns a descriptor with no rules. Lookups on it behave sensibly:
// nothing is read-only, nothing is an enum, titles fall back to derivation.
func Empty() *Descriptor {
	return &Descriptor{
		readonly:     map[string]struct{}{},
		enum:         map[string]struct{}{},
		titles:       map[string]string{},
		descriptions: map[string]string{},
	}
}

// Parse builds a descriptor from raw YAML. Rule paths are normalized at
// load time so lookups are a plain set membership test.
func Parse(data []byte) (*Descriptor, error) {
	var df descriptorFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("invalid descriptor YAML: %w", err)
	}

	d := Empty()
	for _, p := range df.ReadOnly {
		d.readonly[fieldpath.Normalize(p)] = struct{}{}
	}
	for _, p := range df.Enum {
		d.enum[fieldpath.Normalize(p)] = struct{}{}
	}
	for p, title := range df.Titles {
		d.titles[fieldpath.Normalize(p)] = title
	}
	for p, desc := range df.Descriptions {
		d.descriptions[fieldpath.Normalize(p)] = desc
	}
	d.Sections = df.Sections
	d.UIHints = df.UIHints
	return d, nil
}

// Load reads and parses the descriptor file at path. It fails softly: any
// read or parse error yields an empty descriptor and the error, so callers
// can log the failure and keep serving with no rules applied.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Empty(), fmt.Errorf("read descriptor: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return Empty(), err
	}
	return d, nil
}

// IsReadOnly reports whether the field at path must never be overwritten.
func (d *Descriptor) IsReadOnly(path string) bool {
	_, ok := d.readonly[fieldpath.Normalize(path)]
	return ok
}

// IsEnum reports whether the field at path is a fixed option list rather
// than editable row data.
func (d *Descriptor) IsEnum(path string) bool {
	_, ok := d.enum[fieldpath.Normalize(path)]
	return ok
}

// HasTitle reports whether a custom title is configured for path.
func (d *Descriptor) HasTitle(path string) bool {
	_, ok := d.titles[fieldpath.Normalize(path)]
	return ok
}

// Title returns the configured title for path, or a label derived from the
// path's last segment when none is configured.
func (d *Descriptor) Title(path string) string {
	if t, ok := d.titles[fieldpath.Normalize(path)]; ok {
		return t
	}
	return fieldpath.Title(path)
}

// Description returns the configured help text for path, or "".
func (d *Descriptor) Description(path string) string {
	return d.descriptions[fieldpath.Normalize(path)]
}

// Counts summarizes rule set sizes, used in reload responses and logs.
type Counts struct {
	ReadOnly     int `json:"readonly"`
	Enum         int `json:"enum"`
	Titles       int `json:"titles"`
	Descriptions int `json:"descriptions"`
	Sections     int `json:"sections"`
}

// Counts reports the size of each rule set.
func (d *Descriptor) Counts() Counts {
	return Counts{
		ReadOnly:     len(d.readonly),
		Enum:         len(d.enum),
		Titles:       len(d.titles),
		Descriptions: len(d.descriptions),
		Sections:     len(d.Sections),
	}
}
