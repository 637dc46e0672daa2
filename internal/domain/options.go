package domain

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Options maps a section name (bundler, typescript, editor, ...) to its opaque value.
type Options map[string]json.RawMessage

func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = slices.Clone(v)
	}
	return out
}

//go:embed options.yaml
var defaultOptionsYAML []byte

// DefaultOptions returns the sections every new room starts with.
func DefaultOptions() Options {
	opts, err := ParseOptions(defaultOptionsYAML)
	if err != nil {
		panic(fmt.Sprintf("domain: embedded options: %v", err))
	}
	return opts
}

// LoadOptions reads a YAML document of sections and lays it over the defaults.
// A section present in the file replaces the default section entirely.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options: %w", err)
	}
	override, err := ParseOptions(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range override {
		opts[k] = v
	}
	return opts, nil
}

// ParseOptions decodes a YAML mapping of sections into JSON-encoded values.
func ParseOptions(raw []byte) (Options, error) {
	var sections map[string]any
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return nil, fmt.Errorf("parse options: %w", err)
	}
	opts := make(Options, len(sections))
	for name, section := range sections {
		b, err := json.Marshal(section)
		if err != nil {
			return nil, fmt.Errorf("encode option section %q: %w", name, err)
		}
		opts[name] = b
	}
	return opts, nil
}
