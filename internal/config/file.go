package config

import (
	"fmt"
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// File is the optional on-disk configuration. Zero values fall back to the
// package defaults.
type File struct {
	Dwell            time.Duration `yaml:"dwell"`
	ScanInterval     time.Duration `yaml:"scan_interval"`
	TrimFraction     float64       `yaml:"trim_fraction"`
	FailFast         bool          `yaml:"fail_fast"`
	ClampProgress    bool          `yaml:"clamp_progress"`
	PathLossExponent float64       `yaml:"path_loss_exponent"`
	ProximityUUIDs   []string      `yaml:"proximity_uuids"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	uuids := make([]string, len(SupportedProximityUUIDs))
	copy(uuids, SupportedProximityUUIDs)
	return &File{
		Dwell:            Dwell,
		ScanInterval:     ScanInterval,
		TrimFraction:     TrimFraction,
		PathLossExponent: PathLossExp,
		ProximityUUIDs:   uuids,
	}
}

// Load reads a YAML config from path. An empty path returns the defaults.
func Load(path string) (*File, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read config %s", path)
	}

	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*File, error) {
	var raw File
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to decode config")
	}

	f := Default()
	if raw.Dwell != 0 {
		f.Dwell = raw.Dwell
	}
	if raw.ScanInterval != 0 {
		f.ScanInterval = raw.ScanInterval
	}
	if raw.TrimFraction != 0 {
		f.TrimFraction = raw.TrimFraction
	}
	if raw.PathLossExponent != 0 {
		f.PathLossExponent = raw.PathLossExponent
	}
	if raw.ProximityUUIDs != nil {
		f.ProximityUUIDs = raw.ProximityUUIDs
	}
	f.FailFast = raw.FailFast
	f.ClampProgress = raw.ClampProgress

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate rejects values the calibrator cannot work with.
func (f *File) Validate() error {
	switch {
	case f.Dwell <= 0:
		return fmt.Errorf("dwell must be positive, got %s", f.Dwell)
	case f.ScanInterval <= 0:
		return fmt.Errorf("scan_interval must be positive, got %s", f.ScanInterval)
	case f.TrimFraction < 0 || f.TrimFraction >= 0.5:
		return fmt.Errorf("trim_fraction must be in [0, 0.5), got %v", f.TrimFraction)
	case f.PathLossExponent <= 0:
		return fmt.Errorf("path_loss_exponent must be positive, got %v", f.PathLossExponent)
	case len(f.ProximityUUIDs) == 0:
		return fmt.Errorf("proximity_uuids must not be empty")
	}
	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"dwell":         f.Dwell,
		"scanInterval":  f.ScanInterval,
		"trimFraction":  f.TrimFraction,
		"failFast":      f.FailFast,
		"clampProgress": f.ClampProgress,
		"uuids":         len(f.ProximityUUIDs),
	}
}
