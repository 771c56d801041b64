package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sha1n/iconclass-mcp/internal/ingest"
)

const (
	// ManifestVersion is the current manifest schema version
	ManifestVersion = 1

	// ManifestFilename is the manifest file name under the base directory
	ManifestFilename = "manifest.json"
)

// Manifest records which data source snapshot each persistent store holds.
type Manifest struct {
	Version int                  `json:"version"`
	Stores  map[string]LoadState `json:"stores"`
	mu      sync.RWMutex         `json:"-"`
}

// LoadState is the outcome of the last load into one store.
type LoadState struct {
	Source      string       `json:"source"`
	Fingerprint string       `json:"fingerprint"`
	LoadedAt    time.Time    `json:"loaded_at"`
	Stats       ingest.Stats `json:"stats"`
	Error       string       `json:"error,omitempty"`
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Stores:  make(map[string]LoadState),
	}
}

// LoadManifest reads the manifest at path. A missing file yields an empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Stores == nil {
		m.Stores = make(map[string]LoadState)
	}
	return &m, nil
}

// Save writes the manifest to a temporary file in the same directory and
// renames it over path, so readers never see a partial manifest.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ManifestFilename+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create manifest temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}
	return nil
}

// State returns the load state of a store and whether one was recorded.
func (m *Manifest) State(storeID string) (LoadState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.Stores[storeID]
	return st, ok
}

// UpToDate reports whether the store holds the snapshot with the given
// fingerprint from a load that did not fail.
func (m *Manifest) UpToDate(storeID, fingerprint string) bool {
	st, ok := m.State(storeID)
	return ok && st.Error == "" && st.Fingerprint == fingerprint
}

// RecordLoad stores the outcome of a successful load and clears any earlier error.
func (m *Manifest) RecordLoad(storeID string, st LoadState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.Error = ""
	m.Stores[storeID] = st
}

// RecordError marks the last load into a store as failed. The fingerprint is
// reset so the next leader loads again.
func (m *Manifest) RecordError(storeID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.Stores[storeID]
	st.Fingerprint = ""
	st.Error = err.Error()
	m.Stores[storeID] = st
}

// StoreID derives a stable manifest key from a store driver and the location
// it connects to, without keeping the location itself.
func StoreID(driver, location string) string {
	sum := sha256.Sum256([]byte(location))
	return driver + "-" + hex.EncodeToString(sum[:6])
}
