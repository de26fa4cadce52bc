package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/hzz.yaml
var defaultCatalog []byte

// ErrInvalidCatalog is returned when a catalog fails structural checks.
var ErrInvalidCatalog = errors.New("schema: invalid catalog")

type catalogFile struct {
	Version  string           `yaml:"version"`
	Sections []catalogSection `yaml:"sections"`
}

type catalogSection struct {
	ID       string         `yaml:"id"`
	Key      string         `yaml:"key"`
	Title    string         `yaml:"title"`
	Reserved bool           `yaml:"reserved"`
	Fields   []catalogField `yaml:"fields"`
}

type catalogField struct {
	Key       string   `yaml:"key"`
	Label     string   `yaml:"label"`
	Type      string   `yaml:"type"`
	Options   []Option `yaml:"options"`
	TableType string   `yaml:"table_type"`
	Required  bool     `yaml:"required"`
	Intake    string   `yaml:"intake"`
	UserOwned bool     `yaml:"user_owned"`
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return Load(defaultCatalog)
})

// Default returns the registry built from the embedded catalog. It is parsed
// once per process.
func Default() (*Registry, error) {
	return loadDefault()
}

// MustDefault is Default for package initialization and tests.
func MustDefault() *Registry {
	reg, err := Default()
	if err != nil {
		panic(err)
	}
	return reg
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Load(data)
}

// Load parses and checks a YAML catalog.
func Load(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return build(file)
}

func build(file catalogFile) (*Registry, error) {
	if strings.TrimSpace(file.Version) == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidCatalog)
	}
	if len(file.Sections) == 0 {
		return nil, fmt.Errorf("%w: at least one section is required", ErrInvalidCatalog)
	}

	reg := &Registry{
		version:  file.Version,
		sections: make([]Section, 0, len(file.Sections)),
		index:    make(map[string]int, len(file.Sections)),
		reserved: -1,
	}

	for _, cs := range file.Sections {
		if cs.Key == "" {
			return nil, fmt.Errorf("%w: section key is required", ErrInvalidCatalog)
		}
		if _, dup := reg.index[cs.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate section key %q", ErrInvalidCatalog, cs.Key)
		}
		if cs.Reserved {
			if reg.reserved >= 0 {
				return nil, fmt.Errorf("%w: more than one reserved section", ErrInvalidCatalog)
			}
			reg.reserved = len(reg.sections)
		}
		section := Section{
			ID:       defaultString(cs.ID, cs.Key),
			Key:      cs.Key,
			Title:    cs.Title,
			Reserved: cs.Reserved,
			Fields:   make([]Field, 0, len(cs.Fields)),
		}
		seen := make(map[string]struct{}, len(cs.Fields))
		for _, cf := range cs.Fields {
			field, err := buildField(cf)
			if err != nil {
				return nil, fmt.Errorf("%w: section %s: %v", ErrInvalidCatalog, cs.Key, err)
			}
			if _, dup := seen[field.Key]; dup {
				return nil, fmt.Errorf("%w: section %s: duplicate field key %q", ErrInvalidCatalog, cs.Key, field.Key)
			}
			seen[field.Key] = struct{}{}
			section.Fields = append(section.Fields, field)
		}
		reg.index[cs.Key] = len(reg.sections)
		reg.sections = append(reg.sections, section)
	}

	if reg.reserved < 0 {
		return nil, fmt.Errorf("%w: exactly one reserved section is required", ErrInvalidCatalog)
	}
	return reg, nil
}

func buildField(cf catalogField) (Field, error) {
	if cf.Key == "" {
		return Field{}, fmt.Errorf("field key is required")
	}
	control := Control(cf.Type)
	kind, err := control.Kind()
	if err != nil {
		return Field{}, fmt.Errorf("field %s: %w", cf.Key, err)
	}
	field := Field{
		Key:       cf.Key,
		Label:     defaultString(cf.Label, cf.Key),
		Control:   control,
		Kind:      kind,
		Required:  cf.Required,
		Intake:    strings.TrimSpace(cf.Intake),
		UserOwned: cf.UserOwned,
	}

	switch kind {
	case KindSingleChoice, KindMultiChoice:
		if len(cf.Options) == 0 {
			return Field{}, fmt.Errorf("field %s: %s requires options", cf.Key, control)
		}
		values := make(map[string]struct{}, len(cf.Options))
		for _, opt := range cf.Options {
			if opt.Value == "" {
				return Field{}, fmt.Errorf("field %s: option value is required", cf.Key)
			}
			if _, dup := values[opt.Value]; dup {
				return Field{}, fmt.Errorf("field %s: duplicate option value %q", cf.Key, opt.Value)
			}
			values[opt.Value] = struct{}{}
			field.Options = append(field.Options, Option{Value: opt.Value, Label: defaultString(opt.Label, opt.Value)})
		}
	case KindTable:
		field.RowKind = RowKind(cf.TableType)
		if err := field.RowKind.Validate(); err != nil {
			return Field{}, fmt.Errorf("field %s: %w", cf.Key, err)
		}
	default:
		if len(cf.Options) > 0 {
			return Field{}, fmt.Errorf("field %s: options are only allowed on choice fields", cf.Key)
		}
	}
	if kind != KindTable && cf.TableType != "" {
		return Field{}, fmt.Errorf("field %s: table_type is only allowed on table fields", cf.Key)
	}
	return field, nil
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
