package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	defaultConfigPath = "~/.config/panstitch/config.json"
	defaultParallel   = 4
)

// Config holds user-editable settings for the stitcher.
type Config struct {
	Processing Processing `json:"processing"`
	Logging    Logging    `json:"logging"`
	Paths      Paths      `json:"paths"`
	Stitch     Stitch     `json:"stitch"`
	Server     Server     `json:"server"`
}

// Processing captures execution preferences.
type Processing struct {
	ParallelJobs int    `json:"parallel_jobs"`
	Workers      int    `json:"workers"` // per-job parallel loops; 0 = all cores
	TempDir      string `json:"temp_dir"`
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // text, json
	FileOutput bool   `json:"file_output"`
	LogDir     string `json:"log_dir"`
}

// Paths configures default input/output locations.
type Paths struct {
	DefaultInput  string `json:"default_input"`
	DefaultOutput string `json:"default_output"`
	DatabasePath  string `json:"database_path"`
}

// Server configures the HTTP control API.
type Server struct {
	Addr string `json:"addr"`
}

// Stitch controls the stitcher core and its collaborators.
type Stitch struct {
	// Pano selects cylindrical panorama mode with the focal-factor
	// search; off means a planar chain over consecutive pairs.
	Pano bool `json:"pano"`
	// Projection is "auto", "flat" or "cylindrical".
	Projection string `json:"projection"`
	// SlopePlain is the early-exit threshold of the factor search.
	SlopePlain float64 `json:"slope_plain"`
	// Straighten shears the planar chain level.
	Straighten bool `json:"straighten"`
	// AllPairs adds all-pairs matching on top of the assumed
	// consecutive topology in planar mode. Experimental.
	AllPairs bool   `json:"all_pairs"`
	Detector Detector `json:"detector"`
	Fitter   Fitter   `json:"fitter"`
	// OutputQuality is the JPEG quality for encoded results.
	OutputQuality int `json:"output_quality"`
}

// Detector tunes feature detection.
type Detector struct {
	Type        string  `json:"type"` // "harris"
	MaxFeatures int     `json:"max_features"`
	MatchRatio  float64 `json:"match_ratio"`
}

// Fitter tunes the RANSAC homography fit.
type Fitter struct {
	Iterations    int     `json:"iterations"`
	Threshold     float64 `json:"threshold"`
	MinInliers    int     `json:"min_inliers"`
	MinConfidence float64 `json:"min_confidence"`
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := Default()

	configPath := os.Getenv("PANSTITCH_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", expanded, err)
	}
	return cfg, cfg.validate()
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	configPath := os.Getenv("PANSTITCH_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	expanded, err := expandUser(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(expanded, data, 0o644)
}

func (c *Config) validate() error {
	switch c.Stitch.Projection {
	case "", "auto", "flat", "cylindrical":
	default:
		return fmt.Errorf("config: unknown projection %q", c.Stitch.Projection)
	}
	switch c.Stitch.Detector.Type {
	case "", "harris":
	default:
		return fmt.Errorf("config: unknown detector %q", c.Stitch.Detector.Type)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Processing: Processing{
			ParallelJobs: defaultParallel,
			TempDir:      os.TempDir(),
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			LogDir: "./logs",
		},
		Paths: Paths{
			DefaultInput:  ".",
			DefaultOutput: "./output",
			DatabasePath:  filepath.Join(os.TempDir(), "panstitch.db"),
		},
		Server: Server{
			Addr: "127.0.0.1:8420",
		},
		Stitch: Stitch{
			Pano:       true,
			Projection: "auto",
			SlopePlain: 1e-2,
			Detector: Detector{
				Type:        "harris",
				MaxFeatures: 1500,
				MatchRatio:  0.8,
			},
			Fitter: Fitter{
				Iterations:    1500,
				Threshold:     3.0,
				MinInliers:    8,
				MinConfidence: 0.06,
			},
			OutputQuality: 92,
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
