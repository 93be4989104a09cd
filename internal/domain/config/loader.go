package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads envira.yaml files.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load decodes the file at path over the defaults. A missing file yields
// the defaults unless required is set. The result is not validated, so
// callers can apply flag overrides first.
func (l *Loader) Load(path string, required bool) (RunConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if required {
				return cfg, NewConfigNotFoundError(path)
			}
			return cfg, nil
		}
		return cfg, NewUserError(ErrCodeConfigNotFound, "cannot read configuration file").
			WithContext(path).WithUnderlying(err)
	}
	return l.Parse(data, path)
}

// Parse decodes data over the defaults. Unknown fields are rejected.
func (l *Loader) Parse(data []byte, path string) (RunConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Default(), NewYAMLParseError(ErrCodeConfigParse, path, err)
	}
	return cfg, nil
}
