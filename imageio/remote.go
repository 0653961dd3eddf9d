package imageio

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/Noofbiz/frameset/tiling"
)

// RemoteConfig configures access to an S3 compatible object store.
type RemoteConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// RequestsPerSecond limits object fetches. Zero or less means unlimited.
	RequestsPerSecond float64
	Burst             int

	// Timeout bounds a single fetch including rate limiter wait.
	Timeout time.Duration
}

// MinioLoader loads images stored as objects, addressed as
// s3://bucket/key. Any other identifier is handed to the fallback loader.
type MinioLoader struct {
	client   *minio.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	fallback Loader

	Interpolation Interpolation
}

// NewMinioLoader creates a client for cfg.Endpoint. No request is made
// until the first Load.
func NewMinioLoader(cfg RemoteConfig, fallback Loader) (*MinioLoader, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("remote loader: endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "remote loader: endpoint %s", cfg.Endpoint)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if fallback == nil {
		fallback = FileLoader{}
	}

	return &MinioLoader{
		client:        client,
		limiter:       rate.NewLimiter(limit, burst),
		timeout:       timeout,
		fallback:      fallback,
		Interpolation: BiLinear,
	}, nil
}

// Load implements Loader.
func (l *MinioLoader) Load(path string, size tiling.Size) (*image.Gray, error) {
	bucket, key, ok := ParseObjectURL(path)
	if !ok {
		return l.fallback.Load(path, size)
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.limiter.Wait(ctx); err != nil {
		return nil, &ResourceError{Path: path, Err: err}
	}
	obj, err := l.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &ResourceError{Path: path, Err: err}
	}
	defer obj.Close()

	img, err := DecodeGray(obj, size, l.Interpolation)
	if err != nil {
		return nil, &ResourceError{Path: path, Err: err}
	}
	return img, nil
}

// ParseObjectURL splits s3://bucket/key into its bucket and key.
func ParseObjectURL(s string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(s, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
