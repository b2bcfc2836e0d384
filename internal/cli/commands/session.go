package commands

import (
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"lazyquery/internal/config"
	"lazyquery/internal/container"
	"lazyquery/internal/item"
	"lazyquery/internal/storage"
	"lazyquery/internal/view"
)

// storePath resolves the --db flag
func storePath() string {
	if dbPath != "" {
		return dbPath
	}
	return config.DefaultStorePath()
}

// session is an open store with a container over it.
type session struct {
	store     *storage.Store
	container *container.Container
}

// openSession opens the store and builds a container from the settings.
// sortSpecs, when given, replace the native sort for this container.
func openSession(sortSpecs []string) (*session, error) {
	store, err := storage.Open(storePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store (run 'lazyquery init' first): %w", err)
	}

	def, err := settings.Definition()
	if err != nil {
		store.Close()
		return nil, err
	}
	native, err := settings.SortKeys()
	if err != nil {
		store.Close()
		return nil, err
	}
	factory, err := storage.NewFactory(store, native)
	if err != nil {
		store.Close()
		return nil, err
	}
	c := container.New(def, factory, view.WithMaxCacheSize(settings.MaxCacheSize))

	if len(sortSpecs) > 0 {
		keys, err := config.ParseSortKeys(sortSpecs)
		if err != nil {
			store.Close()
			return nil, err
		}
		ids := make([]string, 0, len(keys))
		asc := make([]bool, 0, len(keys))
		for _, k := range keys {
			ids = append(ids, k.PropertyID)
			asc = append(asc, k.Ascending)
		}
		if err := c.Sort(ids, asc); err != nil {
			store.Close()
			return nil, err
		}
	}
	return &session{store: store, container: c}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// applyAssignments writes "property=value" pairs to it.
func applyAssignments(c *container.Container, it *item.Item, assignments []string) error {
	for _, a := range assignments {
		id, raw, ok := strings.Cut(a, "=")
		if !ok || id == "" {
			return fmt.Errorf("expected property=value, got %q", a)
		}
		typ := c.Type(id)
		if typ == nil {
			return fmt.Errorf("unknown property %q", id)
		}
		v, err := parseValue(raw, typ)
		if err != nil {
			return fmt.Errorf("property %q: %w", id, err)
		}
		if err := it.SetValue(id, v); err != nil {
			return fmt.Errorf("property %q: %w", id, err)
		}
	}
	return nil
}

// parseValue reads raw as a YAML scalar and coerces it to typ. String
// properties take raw verbatim.
func parseValue(raw string, typ reflect.Type) (any, error) {
	if typ.Kind() == reflect.String {
		return raw, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", raw, err)
	}
	return item.Coerce(v, typ)
}

// formatValue renders a property value for table output.
func formatValue(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}
