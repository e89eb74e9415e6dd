package filesystem

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	attempts int
	success  int
	failures int
	stale    int
	ops      []string
}

func (r *recordingObserver) ObserveRetryAttempt(op, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
}

func (r *recordingObserver) ObserveRetrySuccess(op, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
}

func (r *recordingObserver) ObserveRetryFailure(op, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *recordingObserver) ObserveRetryDuration(op, _ string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingObserver) ObserveStaleError(op, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func withObserver(t *testing.T) *recordingObserver {
	t.Helper()
	previous := defaultObserver
	obs := &recordingObserver{}
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(previous) })
	return obs
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"library":  "/library",
		"cache":    "/cache",
		"database": "/database",
		"nested":   "/library/nested",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/library/a.png", "library"},
		{"/library", "library"},
		{"/library/nested/b.png", "nested"},
		{"/cache/thumbnails/abc.jpg", "cache"},
		{"/database/library.db", "database"},
		{"/librarything/a.png", "unknown"},
		{"/etc/hosts", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/library/a.png"); got != "unknown" {
		t.Errorf("nil resolver returned %q, want unknown", got)
	}
}

func TestRetryConfig_ResolveVolume(t *testing.T) {
	original := defaultResolver
	defer func() { defaultResolver = original }()

	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"default": "/data"}))

	config := RetryConfig{}
	if got := config.resolveVolume("/data/x.png"); got != "default" {
		t.Errorf("fallback resolver gave %q, want default", got)
	}

	config.VolumeResolver = NewVolumeResolver(map[string]string{"override": "/data"})
	if got := config.resolveVolume("/data/x.png"); got != "override" {
		t.Errorf("config resolver gave %q, want override", got)
	}
}

func TestStatWithRetry_Success(t *testing.T) {
	obs := withObserver(t)

	testFile := filepath.Join(t.TempDir(), "test.png")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("FileInfo.Size() = %d, want 4", info.Size())
	}
	if obs.attempts != 0 || obs.stale != 0 {
		t.Errorf("no retries expected, got attempts=%d stale=%d", obs.attempts, obs.stale)
	}
	if len(obs.ops) != 1 || obs.ops[0] != "stat" {
		t.Errorf("expected one stat duration observation, got %v", obs.ops)
	}
}

func TestStatWithRetry_NotExistFailsFast(t *testing.T) {
	obs := withObserver(t)

	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing.png"), fastConfig())
	if !os.IsNotExist(err) {
		t.Errorf("StatWithRetry() error = %v, want os.IsNotExist", err)
	}
	if obs.attempts != 0 {
		t.Errorf("non-ESTALE errors must not retry, got %d attempts", obs.attempts)
	}
}

func TestOpenWithRetry_Success(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.png")
	if err := os.WriteFile(testFile, []byte("content"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	f, err := OpenWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer f.Close()

	buf := make([]byte, 7)
	if _, err := f.Read(buf); err != nil || string(buf) != "content" {
		t.Errorf("read %q, %v", buf, err)
	}
}

func TestRenameWithRetry(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.tmp")
	dst := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RenameWithRetry(src, dst, fastConfig()); err != nil {
		t.Fatalf("RenameWithRetry() error = %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("destination missing after rename: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source should be gone, stat err = %v", err)
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	got, err := withRetry("open", "/library/a.png", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.success != 1 {
		t.Errorf("observer stale=%d attempts=%d success=%d, want 2/2/1", obs.stale, obs.attempts, obs.success)
	}
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	_, err := withRetry("stat", "/library/a.png", fastConfig(), func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	if err != syscall.ESTALE {
		t.Errorf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("fn called %d times, want MaxRetries+1 = 4", calls)
	}
	if obs.failures != 1 {
		t.Errorf("expected one failure observation, got %d", obs.failures)
	}
}

func BenchmarkStatWithRetry_Success(b *testing.B) {
	testFile := filepath.Join(b.TempDir(), "test.png")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		b.Fatalf("Failed to create test file: %v", err)
	}

	config := DefaultRetryConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := StatWithRetry(testFile, config); err != nil {
			b.Fatalf("StatWithRetry error: %v", err)
		}
	}
}
