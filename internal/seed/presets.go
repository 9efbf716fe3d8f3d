package seed

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yml
var defaultPresets []byte

// Options configure a seeding run.
type Options struct {
	Accounts        int   `yaml:"accounts"`
	PostsPerAccount int   `yaml:"posts_per_account"`
	MaxImages       int   `yaml:"max_images"`
	Concurrency     int   `yaml:"concurrency"`
	Seed            int64 `yaml:"seed"`
	Clean           bool  `yaml:"clean"`
}

type presetFile struct {
	Presets map[string]Options `yaml:"presets"`
}

// ParsePresets decodes a presets document.
func ParsePresets(data []byte) (map[string]Options, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(file.Presets) == 0 {
		return nil, fmt.Errorf("parse presets: no presets defined")
	}
	for name, opts := range file.Presets {
		if err := opts.validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return file.Presets, nil
}

// DefaultPresets returns the presets bundled with the binary.
func DefaultPresets() map[string]Options {
	presets, err := ParsePresets(defaultPresets)
	if err != nil {
		panic(err)
	}
	return presets
}

// PresetNames lists the bundled preset names in order.
func PresetNames() []string {
	presets := DefaultPresets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o Options) validate() error {
	switch {
	case o.Accounts < 0:
		return fmt.Errorf("accounts must not be negative")
	case o.PostsPerAccount < 0:
		return fmt.Errorf("posts_per_account must not be negative")
	case o.MaxImages < 0:
		return fmt.Errorf("max_images must not be negative")
	case o.Concurrency < 0:
		return fmt.Errorf("concurrency must not be negative")
	}
	return nil
}
