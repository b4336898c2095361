package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

// Config holds the tractinfo settings - read from a TOML file, then overridden by flags
type Config struct {
	Format          string  `toml:"format"`
	Workers         int     `toml:"workers"`
	Weed            float64 `toml:"weed"`
	Subsample       float64 `toml:"subsample"`
	Affine          string  `toml:"affine"`
	Seed            uint64  `toml:"seed"`
	TckRequireCount bool    `toml:"tck_require_count"`
}

func defaultConfig() Config {
	return Config{
		Format:  "yaml",
		Workers: 1,
	}
}

// LoadConfig reads a TOML config file over the defaults
//
// unknown keys are an error (so that typos are not silently ignored)
func LoadConfig(filename string) (Config, error) {
	cfg := defaultConfig()
	if filename == "" {
		return cfg, nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return cfg, err
	}
	defer func() {
		_ = f.Close()
	}()
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return cfg, fmt.Errorf("config %s: %s", filename, sme.String())
		}
		return cfg, fmt.Errorf("config %s: %w", filename, err)
	}
	return cfg, cfg.validate()
}

// applyFlags overrides the config with any flags explicitly set on the command line
func (c *Config) applyFlags(flags *pflag.FlagSet) error {
	var err error
	if flags.Changed("format") {
		c.Format, err = flags.GetString("format")
	}
	if err == nil && flags.Changed("workers") {
		c.Workers, err = flags.GetInt("workers")
	}
	if err == nil && flags.Changed("weed") {
		c.Weed, err = flags.GetFloat64("weed")
	}
	if err == nil && flags.Changed("subsample") {
		c.Subsample, err = flags.GetFloat64("subsample")
	}
	if err == nil && flags.Changed("affine") {
		c.Affine, err = flags.GetString("affine")
	}
	if err == nil && flags.Changed("seed") {
		c.Seed, err = flags.GetUint64("seed")
	}
	if err == nil && flags.Changed("tck-require-count") {
		c.TckRequireCount, err = flags.GetBool("tck-require-count")
	}
	if err != nil {
		return err
	}
	return c.validate()
}

func (c *Config) validate() error {
	switch c.Format {
	case "yaml", "json", "toml":
	default:
		return fmt.Errorf("unknown report format %q (expected yaml, json or toml)", c.Format)
	}
	if c.Weed < 0 || c.Weed > 1 {
		return fmt.Errorf("weed fraction %v is not in [0, 1]", c.Weed)
	}
	if c.Subsample < 0 || c.Subsample > 1 {
		return fmt.Errorf("subsample factor %v is not in [0, 1]", c.Subsample)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}
