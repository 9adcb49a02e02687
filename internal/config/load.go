package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads a bundle from a YAML (or JSON/TOML, by extension) file,
// decodes it according to its schema_version and validates it.
func Load(path string) (*Bundle, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return decode(v)
}

// Parse reads a bundle from r in the given format ("yaml", "json", ...).
func Parse(r io.Reader, format string) (*Bundle, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("config: parse %s bundle: %w", format, err)
	}
	return decode(v)
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (*Bundle, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return Load(path)
}

// decode dispatches on schema_version. Each version has its own explicit
// type; older versions are upgraded to the current Bundle before validation.
func decode(v *viper.Viper) (*Bundle, error) {
	if !v.IsSet("schema_version") {
		return nil, invalid("schema_version", "missing")
	}
	var b *Bundle
	switch version := v.GetInt("schema_version"); version {
	case 1:
		var old BundleV1
		if err := v.Unmarshal(&old); err != nil {
			return nil, fmt.Errorf("%w: decode v1: %v", ErrInvalidBundle, err)
		}
		b = old.Upgrade()
	case SchemaVersion:
		b = &Bundle{}
		if err := v.Unmarshal(b); err != nil {
			return nil, fmt.Errorf("%w: decode v%d: %v", ErrInvalidBundle, version, err)
		}
	default:
		return nil, invalid("schema_version", "unsupported version %d", version)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteYAML dumps b as YAML.
func WriteYAML(w io.Writer, b *Bundle) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("config: encode yaml: %w", err)
	}
	return enc.Close()
}
