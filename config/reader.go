package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/onurbagoren/UW-SLAM/logging"
)

// Read reads a run config from the given file. Environment variables in the file are expanded
// and relative data paths are resolved against the file's directory. Fields absent from the
// file keep their defaults.
func Read(filePath string) (*RunConfig, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", filePath)
	}

	cfg, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config %q", filePath)
	}
	cfg.ResolvePaths(filepath.Dir(filePath))
	return cfg, nil
}

// FromReader decodes a JSON run config on top of DefaultRunConfig.
func FromReader(r io.Reader) (*RunConfig, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var attributes map[string]interface{}
	if err := dec.Decode(&attributes); err != nil {
		return nil, errors.Wrap(err, "invalid json")
	}
	return FromAttributes(attributes)
}

// FromAttributes decodes attributes on top of DefaultRunConfig. Unknown keys are an error so
// that misspelled fields do not silently keep their defaults.
func FromAttributes(attributes map[string]interface{}) (*RunConfig, error) {
	cfg := DefaultRunConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Level returns the configured log level, INFO when unset.
func (cfg *RunConfig) Level() logging.Level {
	level, err := levelFromConfig(cfg.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

func levelFromConfig(s string) (logging.Level, error) {
	if s == "" {
		return logging.INFO, nil
	}
	return logging.LevelFromString(s)
}
