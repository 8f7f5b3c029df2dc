package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/level"
	"github.com/apex/log/handlers/multi"

	"vpncert/internal/config"
	"vpncert/internal/crashreport"
	"vpncert/internal/database"
	"vpncert/internal/diaglog"
	"vpncert/internal/session"
	"vpncert/internal/templates"
	"vpncert/internal/vpn"
)

var errNotLoggedIn = errors.New("not logged in: run 'vpncert login' first")

// app holds the components shared by every subcommand.
type app struct {
	cfg       *config.Config
	log       *log.Logger
	diag      *diaglog.Manager
	db        *sql.DB
	sessions  *session.Manager
	crashes   *crashreport.Store
	artifacts *vpn.Manager
}

func openApp(configPath string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	diag := diaglog.New(cfg.Diagnostics.Path)
	if err := diag.Configure(cfg.Diagnostics.Enabled, cfg.Diagnostics.Level); err != nil {
		return nil, fmt.Errorf("open diagnostics log: %w", err)
	}
	logger := newLogger(cfg.LogLevel, stderr, diag)

	a := &app{cfg: cfg, log: logger, diag: diag}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	db, err := database.Open(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	if err := database.Cleanup(db); err != nil {
		a.log.WithError(err).Warn("database cleanup failed")
	}

	a.sessions, err = session.NewManager(db, session.Config{
		Username:     a.cfg.Auth.Username,
		PasswordHash: a.cfg.Auth.PasswordHash,
		TTL:          a.cfg.Auth.SessionTTLDuration(),
	}, a.log)
	if err != nil {
		return err
	}
	a.crashes, err = crashreport.NewStore(db, a.log)
	if err != nil {
		return err
	}
	stateStore, err := vpn.NewSQLStateStore(db)
	if err != nil {
		return err
	}
	a.artifacts, err = vpn.NewManager(vpn.Options{
		Renderer:     templates.NewEngine(a.cfg.TemplateDir),
		TemplateName: a.cfg.OpenVPNTemplate,
		Cache:        vpn.NewCache(a.cfg.CacheDir, a.cfg.CacheFile),
		Recorder:     vpn.NewRecorder(stateStore, a.log),
		Reporter:     a.crashes,
		ErrorMode:    a.cfg.Mode(),
		Logger:       a.log,
	})
	return err
}

func (a *app) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.diag != nil {
		errs = append(errs, a.diag.Close())
	}
	return errors.Join(errs...)
}

// currentSession resolves the token saved by the login command.
func (a *app) currentSession() (*session.Session, error) {
	raw, err := os.ReadFile(a.cfg.SessionFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errNotLoggedIn
		}
		return nil, err
	}
	s, err := a.sessions.Resolve(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", errNotLoggedIn, err)
	}
	return s, nil
}

func (a *app) saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(a.cfg.SessionFile), 0o700); err != nil {
		return err
	}
	return os.WriteFile(a.cfg.SessionFile, []byte(token+"\n"), 0o600)
}

// newLogger fans entries out to the terminal at the configured level and to the
// diagnostics file, which applies its own level.
func newLogger(levelRaw string, stderr io.Writer, diag log.Handler) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(levelRaw)))
	if err != nil {
		lvl = log.InfoLevel
	}
	return &log.Logger{
		Level: log.DebugLevel,
		Handler: multi.New(
			level.New(clihandler.New(stderr), lvl),
			diag,
		),
	}
}

// withApp opens the application for the duration of fn.
func withApp(opts *rootOptions, stderr io.Writer, fn func(a *app) error) error {
	a, err := openApp(opts.configPath, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
