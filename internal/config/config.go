// Package config loads lazyquery settings and turns them into a query
// definition and a native sort.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lazyquery/internal/artifacts"
	"lazyquery/internal/common"
	"lazyquery/internal/item"
	"lazyquery/internal/query"
)

// EnvConfigDir overrides the settings directory.
const EnvConfigDir = "LAZYQUERY_CONFIG_DIR"

// ConfigDir returns the configuration directory path.
// Uses LAZYQUERY_CONFIG_DIR env var if set, otherwise defaults to ~/.lazyquery.
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lazyquery")
}

// SettingsPath returns the settings file path
func SettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.yaml")
}

// DefaultStorePath returns the store used when no --db flag is given
func DefaultStorePath() string {
	return filepath.Join(ConfigDir(), "items.lazyquery")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0700)
}

// InitConfigDir initializes the config directory with the default settings file.
func InitConfigDir() error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path := SettingsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, artifacts.GlobalSettings, 0600); err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
	}
	return nil
}

// PropertySpec declares one item property.
type PropertySpec struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"` // string, int, float, bool, time
	Default  any    `yaml:"default"`
	ReadOnly bool   `yaml:"read_only"`
	Sortable bool   `yaml:"sortable"`
}

// Settings represents the lazyquery settings file
type Settings struct {
	BatchSize       int            `yaml:"batch_size"`       // items per load (default: 100)
	MaxCacheSize    int            `yaml:"max_cache_size"`   // soft cache limit (default: 1000)
	LogLevel        string         `yaml:"log_level"`        // trace, debug, info, warn, off (default: off)
	BusyTimeout     int            `yaml:"busy_timeout"`     // SQLite busy_timeout (ms), 0 = use default
	DebugProperties bool           `yaml:"debug_properties"` // stamp status and batch diagnostics
	NativeSort      []string       `yaml:"native_sort"`      // "property:asc" or "property:desc"
	Properties      []PropertySpec `yaml:"properties"`
}

// ApplyDefaults fills zero-value fields with their defaults.
func (s *Settings) ApplyDefaults() {
	if s.BatchSize <= 0 {
		s.BatchSize = 100
	}
	if s.MaxCacheSize <= 0 {
		s.MaxCacheSize = 1000
	}
	if s.LogLevel == "" {
		s.LogLevel = "off"
	}
	if len(s.NativeSort) == 0 {
		s.NativeSort = []string{"id:asc"}
	}
}

// Level returns the normalized (lowercase) log level.
func (s *Settings) Level() string {
	return strings.ToLower(s.LogLevel)
}

// Definition builds the query definition described by the settings.
func (s *Settings) Definition() (*query.Definition, error) {
	def := query.NewDefinition(s.BatchSize)
	for _, p := range s.Properties {
		typ, err := ParseType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.ID, err)
		}
		if err := def.AddProperty(p.ID, typ, p.Default, p.ReadOnly, p.Sortable); err != nil {
			return nil, fmt.Errorf("property %q: %w", p.ID, err)
		}
	}
	if s.DebugProperties {
		if err := def.AddDebugProperties(); err != nil {
			return nil, err
		}
	}
	return def, nil
}

// SortKeys parses the native sort.
func (s *Settings) SortKeys() ([]query.SortKey, error) {
	return ParseSortKeys(s.NativeSort)
}

// ParseSortKeys parses "property[:asc|:desc]" specs. A bare property sorts
// ascending.
func ParseSortKeys(specs []string) ([]query.SortKey, error) {
	keys := make([]query.SortKey, 0, len(specs))
	for _, spec := range specs {
		id, dir, _ := strings.Cut(strings.TrimSpace(spec), ":")
		if id == "" {
			return nil, fmt.Errorf("sort %q: %w", spec, common.ErrInvalidSortSpec)
		}
		switch strings.ToLower(dir) {
		case "", "asc":
			keys = append(keys, query.SortKey{PropertyID: id, Ascending: true})
		case "desc":
			keys = append(keys, query.SortKey{PropertyID: id, Ascending: false})
		default:
			return nil, fmt.Errorf("sort %q: direction %q: %w", spec, dir, common.ErrInvalidSortSpec)
		}
	}
	return keys, nil
}

// ParseType maps a settings type name onto a Go type.
func ParseType(name string) (reflect.Type, error) {
	switch strings.ToLower(name) {
	case "", "string":
		return item.TypeOf[string](), nil
	case "int":
		return item.TypeOf[int](), nil
	case "float":
		return item.TypeOf[float64](), nil
	case "bool":
		return item.TypeOf[bool](), nil
	case "time":
		return item.TypeOf[time.Time](), nil
	}
	return nil, fmt.Errorf("unknown type %q: %w", name, common.ErrInvalidProperty)
}

// loadDefaultSettings parses default settings from embedded artifact.
func loadDefaultSettings() Settings {
	var settings Settings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &settings); err != nil {
		panic("failed to parse embedded settings: " + err.Error())
	}
	return settings
}

// LoadSettings loads the settings from the config directory.
// Falls back to embedded defaults if the file doesn't exist.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFromPath(SettingsPath())
}

// LoadSettingsFromPath loads settings from a specific file.
// Falls back to embedded defaults if the file doesn't exist.
func LoadSettingsFromPath(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			settings := loadDefaultSettings()
			settings.ApplyDefaults()
			return &settings, nil
		}
		return nil, err
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	settings.ApplyDefaults()
	return &settings, nil
}

// SaveSettings saves the settings to the config directory.
func SaveSettings(settings *Settings) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	header := []byte("# LazyQuery settings\n# See: lazyquery --help\n\n")
	return os.WriteFile(SettingsPath(), append(header, data...), 0600)
}
