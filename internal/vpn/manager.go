package vpn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"

	"vpncert/internal/session"
	"vpncert/internal/templates"
)

// ErrorMode selects how unexpected generation failures reach the caller.
type ErrorMode string

const (
	// ErrorModeStrict reports the failure and returns it wrapped in ErrUnclassified.
	ErrorModeStrict ErrorMode = "strict"
	// ErrorModeBestEffort reports the failure and returns a ResultDropped result with no error.
	ErrorModeBestEffort ErrorMode = "best-effort"
)

// ParseErrorMode converts a configuration value into an ErrorMode.
func ParseErrorMode(raw string) (ErrorMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ErrorModeStrict):
		return ErrorModeStrict, nil
	case string(ErrorModeBestEffort), "best_effort", "besteffort":
		return ErrorModeBestEffort, nil
	default:
		return "", fmt.Errorf("unknown error mode %q", raw)
	}
}

// Reporter receives unexpected failures. It must not block for long and has no result.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err error)

func (f ReporterFunc) Report(err error) { f(err) }

// Request holds the arguments of one artifact generation.
type Request struct {
	Protocol   Protocol
	Session    *session.Session
	ServerName string
	IPList     []string
	// CachePath overrides the cache's default artifact path when set.
	CachePath string
}

// Options configures a Manager. Renderer and Cache are required.
type Options struct {
	Renderer     Renderer
	TemplateName string
	Cache        *Cache
	Recorder     *Recorder
	Reporter     Reporter
	ErrorMode    ErrorMode
	Logger       log.Interface
}

// Manager validates generation requests, records them and dispatches them
// to the generator for their protocol.
type Manager struct {
	openvpn    Generator
	strongswan Generator
	wireguard  Generator

	cache    *Cache
	recorder *Recorder
	reporter Reporter
	mode     ErrorMode
	log      log.Interface
}

// NewManager wires the generators described by opts.
func NewManager(opts Options) (*Manager, error) {
	if opts.Renderer == nil {
		return nil, errors.New("template renderer is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("artifact cache is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Log
	}
	templateName := strings.TrimSpace(opts.TemplateName)
	if templateName == "" {
		templateName = templates.OpenVPN
	}
	mode := opts.ErrorMode
	if mode == "" {
		mode = ErrorModeStrict
	}
	if mode != ErrorModeStrict && mode != ErrorModeBestEffort {
		return nil, fmt.Errorf("unknown error mode %q", mode)
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = NewRecorder(nil, logger)
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = ReporterFunc(func(err error) {
			logger.WithError(err).Error("unreported generation failure")
		})
	}
	return &Manager{
		openvpn:    NewOpenVPNGenerator(opts.Renderer, templateName, opts.Cache, logger),
		strongswan: NewStrongSwanGenerator(logger),
		wireguard:  NewWireGuardGenerator(logger),
		cache:      opts.Cache,
		recorder:   recorder,
		reporter:   reporter,
		mode:       mode,
		log:        logger,
	}, nil
}

// State returns the last recorded server name and protocol.
func (m *Manager) State() ConnectionState {
	return m.recorder.Current()
}

// CacheDir returns the directory artifacts are cached in.
func (m *Manager) CacheDir() string {
	return m.cache.Dir()
}

// DefaultCachePath returns the artifact path used when a request has none.
func (m *Manager) DefaultCachePath() string {
	return m.cache.DefaultPath()
}

// Generate produces the artifact for req.
//
// Validation failures return ErrTypeMismatch or ErrNoServers before any state is
// touched. Once validation passes, the server name and protocol are recorded
// whatever the outcome of dispatch. A missing template is returned unchanged;
// other generator failures go to the Reporter and are then handled per ErrorMode.
func (m *Manager) Generate(req Request) (Result, error) {
	m.log.Info("generating vpn certificate")
	if err := Validate(req); err != nil {
		m.log.WithError(err).Error("rejected generation request")
		return Result{}, err
	}

	m.recorder.RecordServer(req.ServerName)
	m.recorder.RecordProtocol(req.Protocol)

	entry := m.log.WithFields(log.Fields{
		"servername": req.ServerName,
		"protocol":   string(req.Protocol),
	})
	entry.Info("dispatching generation")

	generator, err := m.generatorFor(req.Protocol)
	if err != nil {
		entry.WithError(err).Error("illegal vpn protocol")
		return Result{}, err
	}

	result, err := runGenerator(generator, GenerateInput{
		ServerName: req.ServerName,
		IPList:     req.IPList,
		CachePath:  m.cache.Resolve(req.CachePath),
		Protocol:   req.Protocol,
	})
	if err == nil {
		return result, nil
	}
	if errors.Is(err, templates.ErrTemplateNotFound) {
		entry.WithError(err).Error("template not found")
		return Result{}, err
	}

	entry.WithError(err).Error("unexpected generation failure")
	m.reporter.Report(err)
	if m.mode == ErrorModeBestEffort {
		return Result{Kind: ResultDropped}, nil
	}
	return Result{}, fmt.Errorf("%w: %w", ErrUnclassified, err)
}

// DeleteCachedArtifact removes the artifact at path, or at the default path when
// path is blank. Failures are returned wrapped in ErrFilesystem.
func (m *Manager) DeleteCachedArtifact(path string) error {
	target := m.cache.Resolve(path)
	m.log.WithField("path", target).Info("deleting cached certificate")
	return m.cache.Delete(target)
}

func (m *Manager) generatorFor(p Protocol) (Generator, error) {
	switch p {
	case ProtocolTCP, ProtocolUDP:
		return m.openvpn, nil
	case ProtocolIKEv2:
		return m.strongswan, nil
	case ProtocolWireGuard:
		return m.wireguard, nil
	default:
		return nil, &UnsupportedProtocolError{Protocol: p, Err: errNoDispatchEntry}
	}
}

func runGenerator(g Generator, in GenerateInput) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{}
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	return g.Generate(in)
}
