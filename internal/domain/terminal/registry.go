package terminal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/internal/providers/pty"
	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"go.uber.org/zap"
)

// CreateOptions customizes a single Create call.
type CreateOptions struct {
	// Dir is the working directory; empty means the workspace default.
	Dir string
	// Shell overrides the configured shell.
	Shell string
	// Subscriber, when set, is attached before any output is read.
	Subscriber func(data []byte)
	// DeferStart leaves the session in StateStarting until Start is called,
	// so callers can announce it before output flows.
	DeferStart bool
}

// Registry owns the live sessions of one hosting view.
//
// It is the only component that constructs sessions, and it enforces the
// session limit across live sessions and creations still in flight.
type Registry struct {
	backend   Backend
	settings  SettingsSource
	workspace WorkspaceResolver
	router    *Router
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	ids       func() id.SessionID

	mu       sync.Mutex
	sessions map[id.SessionID]*Session // Protected by mu
	pending  int                       // Protected by mu
	closed   bool                      // Protected by mu
}

// NewRegistry creates a registry. A nil settings source uses DefaultSettings.
func NewRegistry(backend Backend, settings SettingsSource, logger *zap.Logger) *Registry {
	if settings == nil {
		settings = StaticSettings(DefaultSettings())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		backend:  backend,
		settings: settings,
		router:   NewRouter(logger),
		logger:   logger,
		ids:      id.NewSessionID,
		sessions: make(map[id.SessionID]*Session),
	}
}

// WithMetrics adds metrics tracking to the registry
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	r.router.WithMetrics(metrics)
	return r
}

// WithWorkspace sets the resolver for the default working directory.
func (r *Registry) WithWorkspace(workspace WorkspaceResolver) *Registry {
	r.workspace = workspace
	return r
}

// Router returns the router carrying this registry's session output.
func (r *Registry) Router() *Router {
	return r.router
}

// Create spawns a new session. On any error no session is registered.
func (r *Registry) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.backend == nil || !r.backend.IsAvailable() {
		r.metrics.RecordSpawnError(ErrorKind(ErrBackendUnavailable))
		return nil, ErrBackendUnavailable
	}

	settings := r.settings.Settings()
	limit := settings.MaxSessions
	if limit <= 0 {
		limit = DefaultMaxSessions
	}

	if err := r.reserve(limit); err != nil {
		return nil, err
	}
	reserved := true
	defer func() {
		if reserved {
			r.release()
		}
	}()

	shell := resolveShell(opts.Shell, settings.Shell)
	dir, err := r.resolveDir(opts.Dir, settings.WorkspaceRoots)
	if err != nil {
		r.metrics.RecordSpawnError(ErrorKind(err))
		return nil, err
	}

	timer := monitoring.NewTimer(r.metrics)
	handle, err := r.backend.Spawn(pty.SpawnOptions{
		Shell:     shell,
		Args:      settings.ShellArgs,
		Dir:       dir,
		Env:       envList(settings.Env),
		Cols:      settings.Cols,
		Rows:      settings.Rows,
		KillGrace: settings.KillGrace,
	})
	if err != nil {
		timer.Stop("error")
		r.metrics.RecordSpawnError(ErrorKind(err))
		r.logger.Warn("Failed to spawn shell",
			zap.String("shell", shell),
			zap.String("dir", dir),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create session: %w", err)
	}
	timer.Stop("ok")

	sessionID := r.ids()
	s := &Session{
		ID:         sessionID,
		Shell:      shell,
		WorkingDir: dir,
		StartedAt:  time.Now(),
		handle:     handle,
		topic:      r.router.open(sessionID, settings.ScrollbackBytes),
		router:     r.router,
		logger:     r.logger,
		cols:       orDefault(settings.Cols, 80),
		rows:       orDefault(settings.Rows, 24),
		exitCode:   -1,
		onDispose:  r.forget,
	}
	if opts.Subscriber != nil {
		r.router.subscribe(s.topic, opts.Subscriber)
	}

	r.mu.Lock()
	r.pending--
	reserved = false
	if r.closed {
		r.mu.Unlock()
		s.Kill()
		return nil, ErrRegistryClosed
	}
	r.sessions[sessionID] = s
	r.mu.Unlock()
	r.metrics.SessionStarted()

	r.logger.Info("Session created",
		zap.String("session_id", sessionID.String()),
		zap.String("shell", shell),
		zap.String("dir", dir),
		zap.Int("pid", handle.Pid()),
	)

	if !opts.DeferStart {
		if err := s.Start(); err != nil {
			return nil, fmt.Errorf("start session: %w", err)
		}
	}
	return s, nil
}

// reserve claims one slot of the session limit.
func (r *Registry) reserve(limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if len(r.sessions)+r.pending >= limit {
		r.metrics.IncCapacityRejections()
		return fmt.Errorf("%w: %d of %d terminals open", ErrCapacityExceeded, len(r.sessions)+r.pending, limit)
	}
	r.pending++
	return nil
}

func (r *Registry) release() {
	r.mu.Lock()
	r.pending--
	r.mu.Unlock()
}

// forget removes a disposed session from the live set.
func (r *Registry) forget(s *Session, reason string) {
	r.mu.Lock()
	_, ok := r.sessions[s.ID]
	delete(r.sessions, s.ID)
	r.mu.Unlock()

	if ok {
		r.metrics.SessionEnded(reason)
	}
}

// Get returns a live session.
func (r *Registry) Get(sessionID id.SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// List returns the live sessions in creation order.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	// Session IDs are ULIDs and sort by creation time.
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Kill ends one session.
func (r *Registry) Kill(sessionID id.SessionID) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.Kill()
	return nil
}

// KillAll ends every live session. It is safe with no sessions and after
// Close.
func (r *Registry) KillAll() {
	sessions := r.List()
	for _, s := range sessions {
		s.Kill()
	}
	if len(sessions) > 0 {
		r.logger.Info("Killed all sessions", zap.Int("count", len(sessions)))
	}
}

// Close kills every session and rejects further creations.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.KillAll()
}

func resolveShell(override, configured string) string {
	if override != "" {
		return override
	}
	if configured != "" {
		return configured
	}
	return pty.DefaultShell()
}

// resolveDir picks the working directory: explicit, then workspace default,
// then the user's home.
func (r *Registry) resolveDir(dir string, roots []string) (string, error) {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", &SpawnError{Kind: InvalidWorkingDirectory, Path: dir, Err: err}
		}
		return abs, nil
	}
	if r.workspace != nil {
		if root, ok := r.workspace.DefaultDir(roots); ok {
			return root, nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &SpawnError{Kind: InvalidWorkingDirectory, Path: "~", Err: err}
	}
	return home, nil
}

// envList flattens env into KEY=value entries in a stable order.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
