// Package oss provides the blob store abstraction used by the job engine.
//
// Objects are addressed by Location (bucket + key) so a single store can
// serve every bucket a job touches. Providers implement Interface, which
// covers whole-object operations plus the three-phase multipart upload
// (create, upload numbered parts, complete with the ordered part list) and
// an explicit abort. Remote drivers are registered via init() and picked
// by Config.Provider at runtime.
package oss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// MinPartSize is the smallest size S3 accepts for any part but the last.
const MinPartSize = 5 << 20

// MaxParts is the highest part number S3 accepts.
const MaxParts = 10000

// Interface defines the blob operations the job engine consumes.
type Interface interface {
	// GetStream returns the object's content. Caller closes the reader.
	GetStream(ctx context.Context, loc Location) (io.ReadCloser, error)

	// Stat returns object metadata (notably Size) without the content.
	Stat(ctx context.Context, loc Location) (*Object, error)

	// Put writes the whole object. size may be -1 when unknown.
	Put(ctx context.Context, loc Location, r io.Reader, size int64) (*Object, error)

	// Delete removes the object. Deleting a missing object is a
	// KindNotFound error.
	Delete(ctx context.Context, loc Location) error

	// Copy duplicates src into dst, leaving src untouched.
	Copy(ctx context.Context, src, dst Location) error

	// CreateMultipartUpload starts a multipart upload and returns its id.
	CreateMultipartUpload(ctx context.Context, dst Location) (string, error)

	// UploadPart stores data as part number n (1-based) of the upload.
	// data is not retained after the call returns.
	UploadPart(ctx context.Context, dst Location, uploadID string, n int32, data []byte) (Part, error)

	// CompleteMultipartUpload assembles parts, in order, into dst.
	CompleteMultipartUpload(ctx context.Context, dst Location, uploadID string, parts []Part) error

	// AbortMultipartUpload discards the upload and any stored parts.
	AbortMultipartUpload(ctx context.Context, dst Location, uploadID string) error
}

// Part identifies one uploaded part of a multipart upload.
type Part struct {
	Number int32
	ETag   string
	Size   int64
}

// Object represents metadata about a stored object.
type Object struct {
	Location     Location
	LastModified *time.Time
	Size         int64
	ETag         string
}

// Config holds configuration for blob store providers.
type Config struct {
	Provider string `json:"provider" yaml:"provider"` // s3, minio, filesystem, memory
	ID       string `json:"id" yaml:"id"`             // Access key ID
	Secret   string `json:"secret" yaml:"secret"`     // Secret access key
	Region   string `json:"region" yaml:"region"`
	Endpoint string `json:"endpoint" yaml:"endpoint"` // Custom endpoint (required for MinIO)
	UseSSL   bool   `json:"use_ssl" yaml:"use_ssl"`
	Root     string `json:"root" yaml:"root"`       // Base folder for the filesystem provider
	Breaker  bool   `json:"breaker" yaml:"breaker"` // Wrap the store in a circuit breaker
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return errors.New("storage provider is required")
	}

	switch c.Provider {
	case "filesystem", "local":
		if c.Root == "" {
			c.Root = "./data"
		}
	case "memory":
	case "s3", "aws-s3", "aws":
		c.Provider = "s3"
		if c.Region == "" {
			c.Region = "us-east-1"
		}
	case "minio":
		if c.ID == "" || c.Secret == "" || c.Endpoint == "" {
			return errors.New("id, secret, and endpoint are required for MinIO")
		}
	default:
		return fmt.Errorf("unsupported storage provider: %s", c.Provider)
	}

	return nil
}

// Driver defines the storage driver interface.
type Driver interface {
	// Name returns the driver name.
	Name() string

	// Connect establishes a connection to the storage service.
	Connect(ctx context.Context, cfg *Config) (Interface, error)
}

var (
	driverRegistry = make(map[string]Driver)
	driverMu       sync.RWMutex
)

// RegisterDriver registers a storage driver.
// Typically called in the driver's init function.
func RegisterDriver(driver Driver) {
	driverMu.Lock()
	defer driverMu.Unlock()
	name := driver.Name()
	if _, exists := driverRegistry[name]; exists {
		panic(fmt.Sprintf("oss driver %s already registered", name))
	}
	driverRegistry[name] = driver
}

// GetDriver retrieves a driver by name.
func GetDriver(name string) (Driver, error) {
	driverMu.RLock()
	defer driverMu.RUnlock()
	driver, ok := driverRegistry[name]
	if !ok {
		return nil, fmt.Errorf("oss driver %s not found", name)
	}
	return driver, nil
}

// NewStorage creates a store based on the provided configuration.
func NewStorage(ctx context.Context, c *Config) (Interface, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	var (
		storage Interface
		err     error
	)
	switch c.Provider {
	case "filesystem", "local":
		storage, err = NewFileSystem(c.Root)
	case "memory":
		storage = NewMemory()
	default:
		var driver Driver
		driver, err = GetDriver(c.Provider)
		if err != nil {
			return nil, err
		}
		storage, err = driver.Connect(ctx, c)
		if err != nil {
			err = fmt.Errorf("failed to connect with %s driver: %w", c.Provider, err)
		}
	}
	if err != nil {
		return nil, err
	}

	if c.Breaker {
		storage = WithBreaker(storage, DefaultBreakerSettings(c.Provider))
	}
	return storage, nil
}
