package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/iconclass-mcp/internal/config"
)

// SampleFiles is a small data source in the layout the loader reads. It is
// exported for the tests of the packages serving a catalog.
var SampleFiles = map[string]string{
	"notations.txt": `N 11
C 11H
C 11I
$
N 11H
C 11H(...)
R 11I
$
N 11H(...)
C 11H(...)0
$
N 11H(...)0
$
N 11I
$
N 25F
C 25F1
K 2
$
N 25F1
`,
	"keys.txt": `K 2
S 1
S 2
S 11
`,
	"txt/txt_en.txt": `11|Christian religion
11H|male saints
11H(...)|male saints (with NAME)
11H(...)0|male saints (with NAME) in prayer
11I|prophets
25F|animals
25F1|mammals
`,
	"txt/txt_de.txt":      "11|christliche Religion\n",
	"txt/txt_en_keys.txt": "21|wild\n22|tame\n211|hunted\n",
	"kw/kw_en.txt":        "11H|saint\n11H|man\n",
}

// WriteSampleSource writes files under a temporary directory and returns it.
func WriteSampleSource(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

// TestSettings returns valid settings serving dataSource from memory.
func TestSettings(dataSource string) *config.Settings {
	return &config.Settings{
		Transport: "stdio",
		Auth:      config.AuthSettings{Type: config.AuthTypeNone},
		Store: config.StoreSettings{
			Driver:      config.StoreDriverMemory,
			DataSource:  dataSource,
			CacheSize:   64,
			LoadTimeout: 5 * time.Second,
		},
		Resolver: config.ResolverSettings{Concurrency: 4, MaxBatch: 10, WalkLimit: 100},
	}
}

// NewTestService returns an initialized in-memory service over SampleFiles.
// It is closed when the test ends.
func NewTestService(t testing.TB) *Service {
	t.Helper()
	svc, err := NewService(TestSettings(WriteSampleSource(t, SampleFiles)))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return svc
}
