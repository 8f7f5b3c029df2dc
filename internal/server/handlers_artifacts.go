package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"vpncert/internal/session"
	"vpncert/internal/vpn"
)

// errPathOutsideCache rejects client paths that leave the cache directory.
var errPathOutsideCache = errors.New("path must be inside the cache directory")

type generateResponse struct {
	Path     string `json:"path,omitempty"`
	Accepted bool   `json:"accepted"`
	Dropped  bool   `json:"dropped,omitempty"`
}

// decodeGenerateRequest reads the request body field by field so type errors are
// reported in the same order Validate checks them.
func decodeGenerateRequest(r *http.Request) (vpn.Request, error) {
	sess, _ := session.FromContext(r.Context())
	req := vpn.Request{Session: sess}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return req, vpn.TypeMismatch("request body", "a JSON object")
	}

	var protocol string
	if err := decodeField(fields, "protocol", &protocol); err != nil {
		return req, vpn.TypeMismatch("protocol", "a non-empty string")
	}
	req.Protocol = vpn.ParseProtocol(protocol)
	if req.Protocol == "" {
		return req, vpn.TypeMismatch("protocol", "a non-empty string")
	}
	if req.Session == nil {
		return req, vpn.TypeMismatch("session", "an authenticated session")
	}
	if _, ok := fields["servername"]; !ok {
		return req, vpn.TypeMismatch("servername", "a string")
	}
	if err := decodeField(fields, "servername", &req.ServerName); err != nil {
		return req, vpn.TypeMismatch("servername", "a string")
	}
	if err := decodeField(fields, "ip_list", &req.IPList); err != nil {
		return req, vpn.TypeMismatch("ip_list", "a list of addresses")
	}
	if err := decodeField(fields, "cache_path", &req.CachePath); err != nil {
		return req, vpn.TypeMismatch("cache_path", "a string")
	}
	return req, nil
}

// decodeField leaves dst untouched when the field is absent or null.
func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// confinePath resolves a client supplied path against the cache directory.
// Relative paths are taken as relative to it; blank stays blank so the default is used.
func confinePath(cacheDir, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	path := filepath.Clean(raw)
	if !filepath.IsAbs(path) {
		path = filepath.Join(cacheDir, path)
	}
	rel, err := filepath.Rel(cacheDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errPathOutsideCache, raw)
	}
	return path, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGenerateRequest(r)
	if err != nil {
		writeArtifactError(w, err)
		return
	}
	if req.CachePath, err = confinePath(s.artifacts.CacheDir(), req.CachePath); err != nil {
		writeArtifactError(w, err)
		return
	}
	result, err := s.artifacts.Generate(req)
	if err != nil {
		writeArtifactError(w, err)
		return
	}
	switch result.Kind {
	case vpn.ResultDropped:
		writeJSON(w, http.StatusAccepted, generateResponse{Dropped: true})
	default:
		writeJSON(w, http.StatusOK, generateResponse{Path: result.Path, Accepted: true})
	}
}

func (s *Server) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	path, err := confinePath(s.artifacts.CacheDir(), r.URL.Query().Get("path"))
	if err != nil {
		writeArtifactError(w, err)
		return
	}
	if err := s.artifacts.DeleteCachedArtifact(path); err != nil {
		writeArtifactError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.artifacts.State())
}

func writeArtifactError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vpn.ErrTypeMismatch), errors.Is(err, vpn.ErrNoServers), errors.Is(err, errPathOutsideCache):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, vpn.ErrUnsupportedProtocol):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, vpn.ErrFilesystem) && errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
