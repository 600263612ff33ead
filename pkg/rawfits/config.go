package rawfits

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigEnv names a config file loaded when none is given explicitly.
const ConfigEnv = "RAWFITS_CONFIG"

// Config holds per-conversion defaults. Command-line flags override it.
type Config struct {
	Dcraw            string `yaml:"dcraw"`
	Mode             string `yaml:"mode"`
	Overwrite        bool   `yaml:"overwrite"`
	KeepIntermediate bool   `yaml:"keep_intermediate"`
	Verbose          bool   `yaml:"verbose"`
	PreviewWidth     int    `yaml:"preview_width"`
}

// DefaultConfig keeps the decoder's sibling files and never overwrites output.
func DefaultConfig() Config {
	return Config{
		Dcraw:            DefaultDcrawBinary,
		Mode:             ModeCombinedRaw.String(),
		KeepIntermediate: true,
		PreviewWidth:     DefaultPreviewWidth,
	}
}

// LoadConfig reads a YAML file over DefaultConfig. An empty path falls back
// to $RAWFITS_CONFIG, and to the defaults when that is unset too.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = strings.TrimSpace(os.Getenv(ConfigEnv))
	}
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects an unknown mode or a negative preview width.
func (c Config) Validate() error {
	if _, err := c.OutputMode(); err != nil {
		return err
	}
	if c.PreviewWidth < 0 {
		return fmt.Errorf("preview_width must not be negative, got %d", c.PreviewWidth)
	}
	return nil
}

// OutputMode parses Mode, treating an empty value as ModeCombinedRaw.
func (c Config) OutputMode() (OutputMode, error) {
	if strings.TrimSpace(c.Mode) == "" {
		return ModeCombinedRaw, nil
	}
	return ParseOutputMode(c.Mode)
}

// Decoder builds the dcraw decoder described by the config.
func (c Config) Decoder(logger *Logger) *DcrawDecoder {
	d := NewDcrawDecoder(c.Dcraw)
	d.RemoveIntermediate = !c.KeepIntermediate
	d.Logger = logger
	return d
}
