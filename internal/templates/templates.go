// Package templates renders the text artifacts handed to VPN clients.
// Templates are embedded in the binary and may be overridden from a directory on disk.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"text/template"
)

// OpenVPN is the name of the OpenVPN client configuration template.
const OpenVPN = "openvpn.ovpn.tmpl"

// ErrTemplateNotFound is returned when no source provides the requested template.
var ErrTemplateNotFound = errors.New("template not found")

//go:embed files/*.tmpl
var embedded embed.FS

// Engine looks templates up by name and renders them with a variable map.
type Engine struct {
	sources []fs.FS

	mu     sync.Mutex
	parsed map[string]*template.Template
}

// NewEngine creates an engine backed by the embedded templates. When overrideDir is set,
// templates found there take precedence over the embedded copies.
func NewEngine(overrideDir string) *Engine {
	builtin, err := fs.Sub(embedded, "files")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	sources := make([]fs.FS, 0, 2)
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		sources = append(sources, os.DirFS(dir))
	}
	sources = append(sources, builtin)
	return NewEngineFS(sources...)
}

// NewEngineFS creates an engine that searches the given filesystems in order.
func NewEngineFS(sources ...fs.FS) *Engine {
	return &Engine{
		sources: sources,
		parsed:  make(map[string]*template.Template),
	}
}

// Render executes the named template with vars and returns the output.
func (e *Engine) Render(name string, vars map[string]any) (string, error) {
	tmpl, err := e.lookup(name)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return out.String(), nil
}

func (e *Engine) lookup(name string) (*template.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.parsed[name]; ok {
		return tmpl, nil
	}
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	for _, source := range e.sources {
		data, err := fs.ReadFile(source, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		e.parsed[name] = tmpl
		return tmpl, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}
