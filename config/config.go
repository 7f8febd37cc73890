package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/moiri/streamix-go/pkg"
)

// Store is a layered, dot-path-addressable configuration document (spec
// §6). Layers loaded later win over earlier ones for any key they both
// define, following koanf's own load-order-wins merge rule.
type Store struct {
	k *koanf.Koanf
}

// New creates an empty Store using "." as the path delimiter.
func New() *Store {
	return &Store{k: koanf.New(".")}
}

// LoadFile merges a YAML document from path into the store.
func (s *Store) LoadFile(path string) error {
	if err := s.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		pkg.LogError(pkg.ComponentConfig, "failed to load config file", "path", path, "error", err)
		return err
	}
	return nil
}

// LoadEnv merges environment variables carrying the given prefix into the
// store, stripping the prefix and lower-casing the remainder, with "_"
// translated to the store's "." path delimiter (e.g. STREAMIX_NET_PRIORITY
// becomes net.priority).
func (s *Store) LoadEnv(prefix string) error {
	return s.k.Load(env.Provider(prefix, ".", func(key string) string {
		trimmed := strings.TrimPrefix(key, prefix)
		return strings.ToLower(strings.ReplaceAll(trimmed, "_", "."))
	}), nil)
}

// GetBool looks up a boolean at path.
func (s *Store) GetBool(path string) (bool, error) {
	v, err := s.lookup(path)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, pkg.ErrConfigBadType
	}
	return b, nil
}

// GetInt looks up an integer at path. A whole-valued float (as YAML
// sometimes decodes numeric literals) is accepted and converted.
func (s *Store) GetInt(path string) (int, error) {
	v, err := s.lookup(path)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, pkg.ErrConfigBadType
}

// GetFloat64 looks up a floating-point value at path.
func (s *Store) GetFloat64(path string) (float64, error) {
	v, err := s.lookup(path)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, pkg.ErrConfigBadType
}

// GetString looks up a string at path.
func (s *Store) GetString(path string) (string, error) {
	v, err := s.lookup(path)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", pkg.ErrConfigBadType
	}
	return str, nil
}

func (s *Store) lookup(path string) (any, error) {
	if !s.k.Exists(path) {
		return nil, pkg.ErrConfigNoValue
	}
	return s.k.Get(path), nil
}
