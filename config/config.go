// Package config provides configuration loading and management for frameset.
// It handles loading configuration from YAML files, provides default values
// and assembles the dataset, loader and transform chain it describes.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/frameset/datasets"
	"github.com/Noofbiz/frameset/imageio"
	"github.com/Noofbiz/frameset/metadata"
	"github.com/Noofbiz/frameset/tiling"
	"github.com/Noofbiz/frameset/transform"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset"`
	Cache     CacheConfig     `yaml:"cache"`
	Transform TransformConfig `yaml:"transform"`
	Batch     BatchConfig     `yaml:"batch"`
	Remote    RemoteConfig    `yaml:"remote"`
}

// DatasetConfig describes the metadata table and the frame grid.
type DatasetConfig struct {
	// Metadata is the path of the CSV table, optionally .gz, .zst or .lz4.
	Metadata string `yaml:"metadata"`

	Phase       string      `yaml:"phase"`
	ImageSize   tiling.Size `yaml:"imageSize"`
	FrameSize   tiling.Size `yaml:"frameSize"`
	OverlaySize tiling.Size `yaml:"overlaySize"`

	// Boundary is "pad", "shift" or "reject".
	Boundary string `yaml:"boundary"`

	// Interpolation is "nearest", "bilinear" or "catmullrom".
	Interpolation string `yaml:"interpolation"`
}

// CacheConfig controls the decoded image cache. MaxEntries of zero disables it.
type CacheConfig struct {
	MaxEntries int           `yaml:"maxEntries"`
	TTL        time.Duration `yaml:"ttl"`
}

// TransformConfig lists the per-frame transforms, applied in field order.
// Zero values disable a step.
type TransformConfig struct {
	NormalizeScale float32 `yaml:"normalizeScale"`
	Standardize    bool    `yaml:"standardize"`
	NoiseSigma     float64 `yaml:"noiseSigma"`
	NoiseSeed      int64   `yaml:"noiseSeed"`
}

// BatchConfig configures the Batcher.
type BatchConfig struct {
	Size     int   `yaml:"size"`
	Shuffle  bool  `yaml:"shuffle"`
	Seed     int64 `yaml:"seed"`
	Workers  int   `yaml:"workers"`
	DropLast bool  `yaml:"dropLast"`
}

// RemoteConfig points at an S3 compatible store for s3:// image paths.
// Credentials are read from the named environment variables, never from
// the file itself. An empty Endpoint disables remote loading.
type RemoteConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	UseSSL            bool          `yaml:"useSSL"`
	AccessKeyEnv      string        `yaml:"accessKeyEnv"`
	SecretKeyEnv      string        `yaml:"secretKeyEnv"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Dataset.Metadata = "metadata.csv"
	cfg.Dataset.Phase = datasets.DefaultPhase
	cfg.Dataset.ImageSize = tiling.Size{Width: 512, Height: 512}
	cfg.Dataset.FrameSize = tiling.Size{Width: 128, Height: 128}
	cfg.Dataset.OverlaySize = tiling.Size{Width: 32, Height: 32}
	cfg.Dataset.Boundary = tiling.BoundaryPad.String()
	cfg.Dataset.Interpolation = imageio.BiLinear.String()

	cfg.Cache.MaxEntries = 64
	cfg.Cache.TTL = 10 * time.Minute

	cfg.Transform.NormalizeScale = 255

	cfg.Batch.Size = 32
	cfg.Batch.Shuffle = true
	cfg.Batch.Seed = 1

	cfg.Remote.AccessKeyEnv = "FRAMESET_ACCESS_KEY"
	cfg.Remote.SecretKeyEnv = "FRAMESET_SECRET_KEY"
	cfg.Remote.Burst = 4
	cfg.Remote.Timeout = 30 * time.Second

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration with the
// metadata path resolved against the config file's directory
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "error parsing config file")
		}
	}

	// Relative metadata paths are relative to the config file, whether or
	// not it exists.
	if cfg.Dataset.Metadata != "" && !filepath.IsAbs(cfg.Dataset.Metadata) {
		cfg.Dataset.Metadata = filepath.Join(filepath.Dir(configPath), cfg.Dataset.Metadata)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}
	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks every section. Errors match datasets.ErrConfiguration.
func (c *Config) Validate() error {
	fc, err := c.FrameConfig()
	if err != nil {
		return err
	}
	if _, err := fc.Geometry(); err != nil {
		return err
	}
	if _, err := imageio.ParseInterpolation(c.Dataset.Interpolation); err != nil {
		return invalid("%v", err)
	}

	switch {
	case c.Cache.MaxEntries < 0:
		return invalid("cache.maxEntries must be >= 0, got %d", c.Cache.MaxEntries)
	case c.Cache.TTL < 0:
		return invalid("cache.ttl must be >= 0, got %s", c.Cache.TTL)
	case c.Transform.NormalizeScale < 0:
		return invalid("transform.normalizeScale must be >= 0, got %g", c.Transform.NormalizeScale)
	case c.Transform.NoiseSigma < 0:
		return invalid("transform.noiseSigma must be >= 0, got %g", c.Transform.NoiseSigma)
	case c.Batch.Size <= 0:
		return invalid("batch.size must be > 0, got %d", c.Batch.Size)
	case c.Batch.Workers < 0:
		return invalid("batch.workers must be >= 0, got %d", c.Batch.Workers)
	case c.Remote.RequestsPerSecond < 0:
		return invalid("remote.requestsPerSecond must be >= 0, got %g", c.Remote.RequestsPerSecond)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WithMessagef(datasets.ErrConfiguration, format, args...)
}

// FrameConfig returns the dataset parameters.
func (c *Config) FrameConfig() (datasets.FrameConfig, error) {
	boundary, err := tiling.ParseBoundary(c.Dataset.Boundary)
	if err != nil {
		return datasets.FrameConfig{}, invalid("%v", err)
	}
	return datasets.FrameConfig{
		Phase:       c.Dataset.Phase,
		ImageSize:   c.Dataset.ImageSize,
		FrameSize:   c.Dataset.FrameSize,
		OverlaySize: c.Dataset.OverlaySize,
		Boundary:    boundary,
	}, nil
}

// Loader builds the image loader chain: local files, then the object store
// when an endpoint is configured, then the cache when it is enabled.
func (c *Config) Loader() (imageio.Loader, error) {
	interp, err := imageio.ParseInterpolation(c.Dataset.Interpolation)
	if err != nil {
		return nil, invalid("%v", err)
	}

	var loader imageio.Loader = imageio.FileLoader{Interpolation: interp}
	if c.Remote.Endpoint != "" {
		remote, err := imageio.NewMinioLoader(imageio.RemoteConfig{
			Endpoint:          c.Remote.Endpoint,
			AccessKey:         os.Getenv(c.Remote.AccessKeyEnv),
			SecretKey:         os.Getenv(c.Remote.SecretKeyEnv),
			UseSSL:            c.Remote.UseSSL,
			RequestsPerSecond: c.Remote.RequestsPerSecond,
			Burst:             c.Remote.Burst,
			Timeout:           c.Remote.Timeout,
		}, loader)
		if err != nil {
			return nil, err
		}
		remote.Interpolation = interp
		loader = remote
	}
	if c.Cache.MaxEntries > 0 {
		loader = imageio.NewCachedLoader(loader, c.Cache.MaxEntries, c.Cache.TTL)
	}
	return loader, nil
}

// Transforms builds the per-frame transform chain, or nil when every step
// is disabled.
func (c *Config) Transforms() transform.Transform {
	var steps []transform.Transform
	if c.Transform.NormalizeScale > 0 {
		steps = append(steps, transform.Normalize(c.Transform.NormalizeScale))
	}
	if c.Transform.Standardize {
		steps = append(steps, transform.Standardize())
	}
	if c.Transform.NoiseSigma > 0 {
		steps = append(steps, transform.GaussianNoise(c.Transform.NoiseSigma, c.Transform.NoiseSeed))
	}
	switch len(steps) {
	case 0:
		return nil
	case 1:
		return steps[0]
	}
	return transform.Compose(steps...)
}

// Open validates the configuration, reads the metadata table and builds the
// dataset it describes.
func (c *Config) Open(logger *slog.Logger) (*datasets.FrameDataset, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	table, err := metadata.LoadCSV(c.Dataset.Metadata)
	if err != nil {
		return nil, err
	}
	frameCfg, err := c.FrameConfig()
	if err != nil {
		return nil, err
	}
	loader, err := c.Loader()
	if err != nil {
		return nil, err
	}

	opts := []datasets.Option{datasets.WithTransform(c.Transforms())}
	if logger != nil {
		opts = append(opts, datasets.WithLogger(logger))
	}
	ds, err := datasets.NewFrameDataset(table, frameCfg, loader, opts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "open %s", c.Dataset.Metadata)
	}
	return ds, nil
}

// Batcher wraps src in a Batcher configured by the batch section.
func (c *Config) Batcher(src datasets.Source) *datasets.Batcher {
	b := datasets.NewBatcher(src, c.Batch.Size, c.Batch.Shuffle, c.Batch.Seed)
	b.Workers = c.Batch.Workers
	b.DropLast = c.Batch.DropLast
	return b
}
