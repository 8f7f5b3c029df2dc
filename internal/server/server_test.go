package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpncert/internal/crashreport"
	"vpncert/internal/database"
	"vpncert/internal/session"
	"vpncert/internal/templates"
	"vpncert/internal/vpn"
)

var testLogger = &log.Logger{Handler: discard.New(), Level: log.DebugLevel}

type failingRenderer struct{}

func (failingRenderer) Render(string, map[string]any) (string, error) {
	return "", errors.New("renderer unavailable")
}

type testServer struct {
	handler http.Handler
	cache   *vpn.Cache
	token   string
}

func newTestServer(t *testing.T, mutate func(*vpn.Options)) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hash, err := session.HashPassword("s3cret")
	require.NoError(t, err)
	sessions, err := session.NewManager(db, session.Config{Username: "ops", PasswordHash: hash}, testLogger)
	require.NoError(t, err)

	crashes, err := crashreport.NewStore(db, testLogger)
	require.NoError(t, err)
	stateStore, err := vpn.NewSQLStateStore(db)
	require.NoError(t, err)

	cache := vpn.NewCache(filepath.Join(t.TempDir(), "cache"), "openvpn.ovpn")
	opts := vpn.Options{
		Renderer: templates.NewEngine(""),
		Cache:    cache,
		Recorder: vpn.NewRecorder(stateStore, testLogger),
		Reporter: crashes,
		Logger:   testLogger,
	}
	if mutate != nil {
		mutate(&opts)
	}
	artifacts, err := vpn.NewManager(opts)
	require.NoError(t, err)

	srv, err := New(Options{Artifacts: artifacts, Sessions: sessions, Crashes: crashes, Logger: testLogger})
	require.NoError(t, err)

	ts := &testServer{handler: srv.Router(), cache: cache}
	rec := ts.do(t, http.MethodPost, "/api/sessions", `{"username":"ops","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	ts.token = login.Token
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestVersionIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.token = ""
	rec := ts.do(t, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "version")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.token = ""
	rec := ts.do(t, http.MethodPost, "/api/sessions", `{"username":"ops","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/sessions", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArtifactRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.token = ""
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/artifacts"},
		{http.MethodDelete, "/api/artifacts"},
		{http.MethodGet, "/api/state"},
		{http.MethodGet, "/api/crashes"},
		{http.MethodDelete, "/api/sessions"},
	} {
		rec := ts.do(t, tc.method, tc.path, `{}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestGenerateOpenVPNArtifact(t *testing.T) {
	ts := newTestServer(t, nil)
	path := filepath.Join(ts.cache.Dir(), "nested", "cert.ovpn")
	body := `{"protocol":"tcp","servername":"NL#1","ip_list":["1.2.3.4","5.6.7.8"],"cache_path":"` + path + `"}`

	rec := ts.do(t, http.MethodPost, "/api/artifacts", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, path, resp["path"])
	assert.Equal(t, true, resp["accepted"])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "remote 1.2.3.4")
	assert.Contains(t, string(raw), "port 443")

	rec = ts.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody(t, rec)
	assert.Equal(t, "NL#1", state["servername"])
	assert.Equal(t, "tcp", state["protocol"])
}

func TestGenerateStubProtocol(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/artifacts", `{"protocol":"wireguard","servername":"","ip_list":["x"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["accepted"])
	assert.NotContains(t, resp, "path")
}

func TestGenerateErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"unsupported protocol", `{"protocol":"l2tp","servername":"a","ip_list":["1.1.1.1"]}`, http.StatusUnprocessableEntity, "unsupported"},
		{"empty list", `{"protocol":"udp","servername":"a","ip_list":[]}`, http.StatusBadRequest, "no servers"},
		{"missing list", `{"protocol":"udp","servername":"a"}`, http.StatusBadRequest, "ip_list"},
		{"list of numbers", `{"protocol":"udp","servername":"a","ip_list":[1,2]}`, http.StatusBadRequest, "ip_list"},
		{"protocol checked first", `{"protocol":5,"servername":7,"ip_list":"x"}`, http.StatusBadRequest, "protocol"},
		{"servername before list", `{"protocol":"udp","servername":7,"ip_list":"x"}`, http.StatusBadRequest, "servername"},
		{"missing servername", `{"protocol":"udp","ip_list":["1.1.1.1"]}`, http.StatusBadRequest, "servername"},
		{"not an object", `[]`, http.StatusBadRequest, "request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			rec := ts.do(t, http.MethodPost, "/api/artifacts", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Contains(t, decodeBody(t, rec)["error"], tc.want)
		})
	}
}

func TestGenerateStrictFailureIsReported(t *testing.T) {
	ts := newTestServer(t, func(o *vpn.Options) { o.Renderer = failingRenderer{} })

	rec := ts.do(t, http.MethodPost, "/api/artifacts", `{"protocol":"udp","servername":"a","ip_list":["1.1.1.1"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/crashes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Crashes []crashreport.Report `json:"crashes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Crashes, 1)
	assert.Contains(t, resp.Crashes[0].Message, "renderer unavailable")
}

func TestGenerateBestEffortFailureIsDropped(t *testing.T) {
	ts := newTestServer(t, func(o *vpn.Options) {
		o.Renderer = failingRenderer{}
		o.ErrorMode = vpn.ErrorModeBestEffort
	})

	rec := ts.do(t, http.MethodPost, "/api/artifacts", `{"protocol":"udp","servername":"a","ip_list":["1.1.1.1"]}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["dropped"])
}

func TestDeleteArtifact(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/artifacts", `{"protocol":"udp","servername":"a","ip_list":["1.1.1.1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err := os.Stat(ts.cache.DefaultPath())
	require.NoError(t, err)

	rec = ts.do(t, http.MethodDelete, "/api/artifacts", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err = os.Stat(ts.cache.DefaultPath())
	assert.True(t, os.IsNotExist(err))

	rec = ts.do(t, http.MethodDelete, "/api/artifacts?path="+ts.cache.DefaultPath(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCrashesRejectsBadLimit(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/crashes?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodDelete, "/api/sessions", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestArtifactPathsAreConfinedToCache(t *testing.T) {
	ts := newTestServer(t, nil)
	outside := filepath.Join(t.TempDir(), "precious")
	require.NoError(t, os.WriteFile(outside, []byte("keep me"), 0o644))

	rec := ts.do(t, http.MethodPost, "/api/artifacts",
		`{"protocol":"tcp","servername":"a","ip_list":["1.1.1.1"],"cache_path":"`+outside+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decodeBody(t, rec)["error"], "inside the cache directory")

	rec = ts.do(t, http.MethodDelete, "/api/artifacts?path="+url.QueryEscape(outside), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	raw, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(raw))
}

func TestRelativeArtifactPathResolvesInsideCache(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/artifacts",
		`{"protocol":"udp","servername":"a","ip_list":["1.1.1.1"],"cache_path":"profiles/nl.ovpn"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	want := filepath.Join(ts.cache.Dir(), "profiles", "nl.ovpn")
	assert.Equal(t, want, decodeBody(t, rec)["path"])

	rec = ts.do(t, http.MethodDelete, "/api/artifacts?path=profiles/nl.ovpn", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := os.Stat(want)
	assert.True(t, os.IsNotExist(err))
}

func TestConfinePath(t *testing.T) {
	dir := "/var/cache/vpncert"
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"", "", true},
		{"  ", "", true},
		{"cert.ovpn", "/var/cache/vpncert/cert.ovpn", true},
		{"/var/cache/vpncert/a/b.ovpn", "/var/cache/vpncert/a/b.ovpn", true},
		{"/var/cache/vpncert/a/../b.ovpn", "/var/cache/vpncert/b.ovpn", true},
		{"/var/cache/vpncert", "", false},
		{"/var/cache/vpncert/../etc/passwd", "", false},
		{"../vpncert-other/x", "", false},
		{"/var/cache/vpncert-other/x", "", false},
		{"/etc/passwd", "", false},
	}
	for _, tc := range cases {
		got, err := confinePath(dir, tc.raw)
		if !tc.ok {
			assert.ErrorIs(t, err, errPathOutsideCache, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}
