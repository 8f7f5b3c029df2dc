package vpn

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"vpncert/internal/session"
	"vpncert/internal/templates"
)

var testLogger = &log.Logger{Handler: discard.New(), Level: log.DebugLevel}

func testSession() *session.Session {
	return &session.Session{ID: "test-session", Username: "admin"}
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReporter) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type failingRenderer struct {
	err error
}

func (f failingRenderer) Render(string, map[string]any) (string, error) {
	return "", f.err
}

type panickingRenderer struct{}

func (panickingRenderer) Render(string, map[string]any) (string, error) {
	panic("renderer exploded")
}

type testEnv struct {
	manager  *Manager
	cache    *Cache
	reporter *recordingReporter
	dir      string
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "cache")
	cache := NewCache(dir, "openvpn.ovpn")
	reporter := &recordingReporter{}
	opts := Options{
		Renderer: templates.NewEngine(""),
		Cache:    cache,
		Reporter: reporter,
		Logger:   testLogger,
	}
	if mutate != nil {
		mutate(&opts)
	}
	manager, err := NewManager(opts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &testEnv{manager: manager, cache: cache, reporter: reporter, dir: dir}
}

func validRequest(p Protocol, path string) Request {
	return Request{
		Protocol:   p,
		Session:    testSession(),
		ServerName: "NL#1",
		IPList:     []string{"1.2.3.4", "5.6.7.8"},
		CachePath:  path,
	}
}

var errBoom = errors.New("boom")
