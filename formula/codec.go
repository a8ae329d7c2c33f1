package formula

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a manifest encoding.
type Format string

// Supported manifest encodings.
const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

//go:embed mu-cli.toml
var defaultManifest []byte

// Default returns the embedded mu-cli formula.
// Each call returns a fresh copy that callers may modify.
func Default() *Formula {
	f, err := Parse(defaultManifest, TOML)
	if err != nil {
		panic(fmt.Sprintf("formula: embedded manifest: %v", err))
	}
	return f
}

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unsupported manifest extension %q (want .toml, .yaml or .yml)", filepath.Ext(path))
	}
}

// Load reads and validates a formula manifest from disk.
func Load(path string) (*Formula, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formula: %w", err)
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a formula manifest. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Formula, error) {
	var f Formula
	switch format {
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid formula: %w", err)
	}
	return &f, nil
}

// Marshal encodes f in the given format.
func (f *Formula) Marshal(format Format) ([]byte, error) {
	switch format {
	case TOML:
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(false)
		if err := enc.Encode(f); err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}
		return buf.Bytes(), nil
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// Save validates f and writes it to path, encoded by extension.
func (f *Formula) Save(path string) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid formula: %w", err)
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := f.Marshal(format)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".formula-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write formula: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write formula: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod formula: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace formula: %w", err)
	}
	return nil
}
