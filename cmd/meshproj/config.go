package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// config holds the settings read from a TOML file. Zero values select the
// library defaults.
type config struct {
	Workers       int     `toml:"workers"`
	Grain         int     `toml:"grain"`
	WeldTolerance float64 `toml:"weld_tolerance"`
	LogLevel      string  `toml:"log_level"`
	MaxError      float64 `toml:"max_error"`
}

func defaultConfig() config {
	return config{LogLevel: "info"}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	fp, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer fp.Close()
	err = toml.NewDecoder(fp).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return cfg, fmt.Errorf("%s:%d:%d: %w", path, row, col, err)
		}
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch {
	case c.Workers < 0:
		return fmt.Errorf("negative workers %d", c.Workers)
	case c.Grain < 0:
		return fmt.Errorf("negative grain %d", c.Grain)
	case c.WeldTolerance < 0:
		return fmt.Errorf("negative weld_tolerance %g", c.WeldTolerance)
	case c.MaxError < 0:
		return fmt.Errorf("negative max_error %g", c.MaxError)
	}
	_, err := log.ParseLevel(c.LogLevel)
	return err
}
