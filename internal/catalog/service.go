// Package catalog serves an ICONCLASS data source: it loads the source into
// the configured store, coordinating concurrent server processes, and exposes
// the resolver through MCP tools and an HTTP API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sha1n/iconclass-mcp/internal/config"
	"github.com/sha1n/iconclass-mcp/internal/ingest"
	"github.com/sha1n/iconclass-mcp/internal/resolver"
	"github.com/sha1n/iconclass-mcp/internal/store"
	"github.com/sha1n/iconclass-mcp/internal/store/kvstore"
	"github.com/sha1n/iconclass-mcp/internal/store/sqlstore"
)

// LockFilename is the name of the load lock file under the base directory
const LockFilename = "load.lock"

// ErrNotReady is returned while no store is being served.
var ErrNotReady = errors.New("the iconclass store is not ready")

// SourceOpener opens the data source named by the store settings.
type SourceOpener func(ctx context.Context, st *config.StoreSettings) (ingest.Source, error)

// BackendOpener connects to the persistent store named by the store settings.
type BackendOpener func(ctx context.Context, st *config.StoreSettings) (store.Backend, error)

// LoadReport describes one pass of the loader over a persistent store.
type LoadReport struct {
	StoreID     string       `json:"store_id"`
	Source      string       `json:"source"`
	Fingerprint string       `json:"fingerprint"`
	Updated     bool         `json:"updated"`
	Stats       ingest.Stats `json:"stats"`
}

// Service owns the store backing the resolver and its lifecycle.
type Service struct {
	settings     *config.Settings
	openSource   SourceOpener
	openBackend  BackendOpener
	metrics      *resolver.Metrics
	logger       *slog.Logger
	lock         *FileLock
	manifestPath string

	mu      sync.RWMutex
	backend store.Backend
	engine  *resolver.Engine
	walker  *resolver.Walker
	ready   bool
}

// Option configures a Service.
type Option func(*Service)

// WithSourceOpener replaces the data source opener.
func WithSourceOpener(fn SourceOpener) Option {
	return func(s *Service) { s.openSource = fn }
}

// WithBackendOpener replaces the persistent store opener.
func WithBackendOpener(fn BackendOpener) Option {
	return func(s *Service) { s.openBackend = fn }
}

// WithMetrics records resolutions in m.
func WithMetrics(m *resolver.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a catalog service. Persistent drivers get their base
// directory created for the load lock and the manifest.
func NewService(settings *config.Settings, opts ...Option) (*Service, error) {
	if settings == nil {
		return nil, errors.New("settings cannot be nil")
	}

	s := &Service{
		settings:    settings,
		openSource:  OpenSource,
		openBackend: OpenBackend,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if settings.Store.Driver != config.StoreDriverMemory {
		if err := os.MkdirAll(settings.Store.BaseDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
		s.lock = NewFileLock(filepath.Join(settings.Store.BaseDir, LockFilename))
		s.manifestPath = filepath.Join(settings.Store.BaseDir, ManifestFilename)
	}
	return s, nil
}

// OpenSource opens the configured directory or s3:// data source.
func OpenSource(ctx context.Context, st *config.StoreSettings) (ingest.Source, error) {
	return ingest.OpenSource(ctx, st.DataSource, ingest.S3Config{
		Region:    st.S3Region,
		Endpoint:  st.S3Endpoint,
		PathStyle: st.S3PathStyle,
	})
}

// OpenBackend connects to the persistent store of the configured driver.
func OpenBackend(ctx context.Context, st *config.StoreSettings) (store.Backend, error) {
	var (
		backend store.Backend
		err     error
	)
	switch st.Driver {
	case config.StoreDriverSQLite:
		backend, err = sqlstore.Open(ctx, sqlstore.DriverSQLite, st.SQLitePath)
	case config.StoreDriverPostgres:
		backend, err = sqlstore.Open(ctx, sqlstore.DriverPostgres, st.PostgresDSN)
	case config.StoreDriverNATS:
		backend, err = kvstore.Connect(ctx, st.NATSURL, st.NATSBucketPrefix)
	default:
		return nil, fmt.Errorf("store-driver %q has no persistent backend", st.Driver)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// storeID identifies the configured persistent store in the manifest.
func storeID(st *config.StoreSettings) string {
	switch st.Driver {
	case config.StoreDriverSQLite:
		return StoreID(st.Driver, st.SQLitePath)
	case config.StoreDriverPostgres:
		return StoreID(st.Driver, st.PostgresDSN)
	default:
		return StoreID(st.Driver, st.NATSURL+"/"+st.NATSBucketPrefix)
	}
}

// Initialize makes the service ready. The memory driver reads the data source
// directly. Persistent drivers elect a leader through the load lock: the leader
// refreshes the store when the source changed, followers wait for it and then
// serve whatever the store holds.
func (s *Service) Initialize(ctx context.Context) error {
	st := &s.settings.Store
	if st.Driver == config.StoreDriverMemory {
		ds, _, err := s.ingest(ctx)
		if err != nil {
			return err
		}
		return s.serve(store.NewMemory(ds))
	}

	backend, err := s.openBackend(ctx, st)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", st.Driver, err)
	}

	acquired, err := s.lock.TryLock()
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("failed to acquire load lock: %w", err)
	}

	if acquired {
		s.logger.Info("Acquired load leader lock", "store", st.Driver)
		if _, err := s.refresh(ctx, backend, false); err != nil {
			s.logger.Error("Load failed, serving existing store content", "error", err)
		}
		if err := s.lock.Unlock(); err != nil {
			s.logger.Error("Failed to unlock", "error", err)
		}
	} else {
		s.logger.Info("Another instance is loading the store, waiting for completion")
		if err := s.lock.Wait(ctx, st.LoadTimeout); err != nil {
			s.logger.Warn("Gave up waiting for the load, serving existing store content", "error", err)
		} else if err := s.lock.Unlock(); err != nil {
			s.logger.Error("Failed to unlock", "error", err)
		}
	}

	return s.serve(backend)
}

// Load refreshes the configured persistent store from the data source,
// waiting for any running load first. force reloads even when the manifest
// says the store is current. For the memory driver the source is only read
// and validated.
func (s *Service) Load(ctx context.Context, force bool) (*LoadReport, error) {
	st := &s.settings.Store
	if st.Driver == config.StoreDriverMemory {
		_, stats, err := s.ingest(ctx)
		if err != nil {
			return nil, err
		}
		return &LoadReport{StoreID: config.StoreDriverMemory, Updated: true, Stats: stats}, nil
	}

	backend, err := s.openBackend(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", st.Driver, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			s.logger.Error("Failed to close store", "error", err)
		}
	}()

	if err := s.lock.Wait(ctx, st.LoadTimeout); err != nil {
		return nil, fmt.Errorf("failed to acquire load lock: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Error("Failed to unlock", "error", err)
		}
	}()

	return s.refresh(ctx, backend, force)
}

// refresh imports the data source into backend unless the manifest shows the
// same snapshot was already loaded. The caller holds the load lock.
func (s *Service) refresh(ctx context.Context, backend store.Backend, force bool) (*LoadReport, error) {
	importer, ok := backend.(store.Importer)
	if !ok {
		return nil, fmt.Errorf("%T cannot import datasets", backend)
	}

	st := &s.settings.Store
	src, err := s.openSource(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source: %w", err)
	}
	files, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list data source: %w", err)
	}

	manifest, err := LoadManifest(s.manifestPath)
	if err != nil {
		return nil, err
	}

	report := &LoadReport{
		StoreID:     storeID(st),
		Source:      src.String(),
		Fingerprint: ingest.Fingerprint(files),
	}
	if !force && manifest.UpToDate(report.StoreID, report.Fingerprint) {
		state, _ := manifest.State(report.StoreID)
		report.Stats = state.Stats
		s.logger.Info("Store already up to date", "store_id", report.StoreID, "loaded_at", state.LoadedAt)
		return report, nil
	}

	ds, stats, err := ingest.NewLoader(src, s.logger).Load(ctx)
	if err == nil {
		err = importer.Import(ctx, ds)
	}
	if err != nil {
		manifest.RecordError(report.StoreID, err)
		if saveErr := manifest.Save(s.manifestPath); saveErr != nil {
			s.logger.Error("Failed to save manifest", "error", saveErr)
		}
		return nil, fmt.Errorf("failed to load %s: %w", report.Source, err)
	}

	manifest.RecordLoad(report.StoreID, LoadState{
		Source:      report.Source,
		Fingerprint: report.Fingerprint,
		LoadedAt:    time.Now(),
		Stats:       stats,
	})
	if err := manifest.Save(s.manifestPath); err != nil {
		return nil, err
	}

	report.Updated = true
	report.Stats = stats
	s.logger.Info("Store loaded", "store_id", report.StoreID, "records", stats.Records)
	return report, nil
}

// ingest reads the whole data source into memory.
func (s *Service) ingest(ctx context.Context) (*store.Dataset, ingest.Stats, error) {
	src, err := s.openSource(ctx, &s.settings.Store)
	if err != nil {
		return nil, ingest.Stats{}, fmt.Errorf("failed to open data source: %w", err)
	}
	return ingest.NewLoader(src, s.logger).Load(ctx)
}

// serve puts backend behind the read-through cache and the resolver.
func (s *Service) serve(backend store.Backend) error {
	if size := s.settings.Store.CacheSize; size > 0 {
		cached, err := store.NewCached(backend, size)
		if err != nil {
			_ = backend.Close()
			return err
		}
		backend = cached
	}

	engine, err := resolver.NewEngine(backend, backend,
		resolver.WithMetrics(s.metrics),
		resolver.WithLogger(s.logger),
		resolver.WithConcurrency(s.settings.Resolver.Concurrency))
	if err != nil {
		_ = backend.Close()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = backend
	s.engine = engine
	s.walker = resolver.NewWalker(engine)
	s.ready = true
	s.logger.Info("Store ready", "driver", s.settings.Store.Driver)
	return nil
}

// IsReady reports whether notations can be resolved.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Engine returns the resolution engine.
func (s *Service) Engine() (*resolver.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotReady
	}
	return s.engine, nil
}

// Walker returns the hierarchy walker.
func (s *Service) Walker() (*resolver.Walker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotReady
	}
	return s.walker, nil
}

// Settings returns the service settings.
func (s *Service) Settings() *config.Settings {
	return s.settings
}

// Close releases the store. Closing twice is safe.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = false
	s.engine = nil
	s.walker = nil
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	if err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
