package rumble

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed lore.yaml
var defaultLoreYAML []byte

// Lore holds the template tables the engine draws narrative lines from.
// Sentinel tables are optional; without them sentinel fights use the generic tables.
type Lore struct {
	Arena         []string `yaml:"arena"`
	Self          []string `yaml:"self"`
	Kill          []string `yaml:"kill"`
	Critical      []string `yaml:"critical"`
	SentinelKill  []string `yaml:"sentinelKill"`
	SentinelDeath []string `yaml:"sentinelDeath"`
}

var defaultLore = sync.OnceValue(func() *Lore {
	l, err := ParseLore(defaultLoreYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded lore is invalid: %v", err))
	}
	return l
})

// DefaultLore returns the lore tables compiled into the binary.
func DefaultLore() *Lore {
	return defaultLore()
}

// LoadLore reads lore tables from a YAML file. An empty path yields the defaults.
func LoadLore(path string) (*Lore, error) {
	if path == "" {
		return DefaultLore(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lore: %w", err)
	}
	l, err := ParseLore(b)
	if err != nil {
		return nil, fmt.Errorf("lore %s: %w", path, err)
	}
	return l, nil
}

// ParseLore decodes and validates a YAML lore document.
func ParseLore(b []byte) (*Lore, error) {
	var l Lore
	if err := yaml.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("decode lore: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks that every mandatory table has at least one line.
func (l *Lore) Validate() error {
	var errs []error
	for name, table := range map[string][]string{
		"arena":    l.Arena,
		"self":     l.Self,
		"kill":     l.Kill,
		"critical": l.Critical,
	} {
		if len(table) == 0 {
			errs = append(errs, fmt.Errorf("lore table %q is empty", name))
		}
	}
	return errors.Join(errs...)
}
