package annoy

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/annoy/internal/compress"
	ifs "github.com/hupe1980/annoy/internal/fs"
	"github.com/hupe1980/annoy/internal/random"
	"github.com/hupe1980/annoy/internal/resource"
)

type options struct {
	seed             uint64
	buildWorkers     int
	metricsCollector MetricsCollector
	logger           *Logger
	memoryLimit      int64
	ioLimit          int64
	resources        *resource.Controller
	fs               ifs.FileSystem
}

// Option configures an Index.
type Option func(*options)

// WithSeed fixes the seed used to pick split hyperplanes.
//
// The same seed over the same items builds the same forest, independent of
// the number of build workers.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithBuildWorkers bounds the number of trees built concurrently.
// Defaults to GOMAXPROCS.
func WithBuildWorkers(n int) Option {
	return func(o *options) {
		o.buildWorkers = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &annoy.BasicMetricsCollector{}
//	idx, _ := annoy.New(128, distance.MetricAngular, annoy.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := annoy.NewJSONLogger(slog.LevelInfo)
//	idx, _ := annoy.New(128, distance.MetricEuclidean, annoy.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMemoryLimit caps the heap memory used by the arena and by loaded
// copies. Builds that would exceed it fail with ErrMemoryLimitExceeded.
// Ignored when WithResourceController is given.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles save and export writes to bytes per second.
// Ignored when WithResourceController is given.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// ResourceConfig sets the limits of a ResourceController. Zero values mean
// unlimited, except MaxBuildWorkers which defaults to 1.
type ResourceConfig = resource.Config

// ResourceController is a memory, IO and build-worker budget.
type ResourceController = resource.Controller

// NewResourceController creates a controller for cfg.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	return resource.NewController(cfg)
}

// WithResourceController shares one memory, IO and build-worker budget
// across several indexes.
//
//	rc := annoy.NewResourceController(annoy.ResourceConfig{MemoryLimitBytes: 1 << 30, MaxBuildWorkers: 8})
//	a, _ := annoy.New(64, distance.MetricAngular, annoy.WithResourceController(rc))
//	b, _ := annoy.New(64, distance.MetricAngular, annoy.WithResourceController(rc))
func WithResourceController(rc *ResourceController) Option {
	return func(o *options) {
		o.resources = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		seed:             random.DefaultSeed,
		buildWorkers:     runtime.GOMAXPROCS(0),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fs:               ifs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.buildWorkers <= 0 {
		o.buildWorkers = 1
	}
	if o.resources == nil {
		o.resources = resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			MaxBuildWorkers:    int64(o.buildWorkers),
			IOLimitBytesPerSec: o.ioLimit,
		})
	}
	return o
}

type loadOptions struct {
	copy           bool
	prefault       bool
	verifyChecksum bool
}

// LoadOption configures Load, LoadBytes and LoadFromStore.
type LoadOption func(*loadOptions)

// LoadCopy copies the index into owned heap memory instead of mapping it.
func LoadCopy() LoadOption {
	return func(o *loadOptions) { o.copy = true }
}

// LoadPrefault reads the whole mapping ahead so that the first queries do
// not fault pages in.
func LoadPrefault() LoadOption {
	return func(o *loadOptions) { o.prefault = true }
}

// LoadVerifyChecksum verifies the node checksum before accepting the data.
func LoadVerifyChecksum() LoadOption {
	return func(o *loadOptions) { o.verifyChecksum = true }
}

func applyLoadOptions(optFns []LoadOption) loadOptions {
	var o loadOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Compression selects the codec of an exported snapshot.
type Compression uint8

const (
	// CompressionNone writes the plain index format.
	CompressionNone Compression = iota
	// CompressionLZ4 favors speed.
	CompressionLZ4
	// CompressionZSTD favors size.
	CompressionZSTD
)

func (c Compression) String() string {
	return c.codec().String()
}

func (c Compression) codec() compress.Codec {
	switch c {
	case CompressionLZ4:
		return compress.LZ4
	case CompressionZSTD:
		return compress.ZSTD
	default:
		return compress.None
	}
}

type saveOptions struct {
	compression Compression
}

// SaveOption configures SaveToStore.
type SaveOption func(*saveOptions)

// WithCompression compresses the uploaded snapshot. Uncompressed blobs in a
// local store can be mapped without copying; compressed ones are always
// decoded into memory.
func WithCompression(c Compression) SaveOption {
	return func(o *saveOptions) { o.compression = c }
}

type searchOptions struct {
	searchK   int
	distances bool
	filter    *Filter
}

// SearchOption configures a query.
type SearchOption func(*searchOptions)

// WithSearchK sets the candidate budget. Larger values trade latency for
// recall. The default is NTrees() * k.
func WithSearchK(n int) SearchOption {
	return func(o *searchOptions) { o.searchK = n }
}

// WithDistances includes the distance of every result.
func WithDistances() SearchOption {
	return func(o *searchOptions) { o.distances = true }
}

// WithFilter restricts the results with an include or exclude set.
func WithFilter(f *Filter) SearchOption {
	return func(o *searchOptions) { o.filter = f }
}
