package tabs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/termhost/internal/domain/terminal"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Coordinator manages the tabs of one hosting view
type Coordinator struct {
	registry *terminal.Registry
	notifier Notifier
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu     sync.Mutex
	tabs   []*tab // Protected by mu, in creation order
	active TabID  // Protected by mu, empty when no tab is open
	nextID int    // Protected by mu
	closed bool   // Protected by mu
}

type tab struct {
	id         TabID
	session    *terminal.Session
	shellLabel string
	index      int

	// closing is set before the coordinator kills the session itself, so
	// the exit notification does not remove the tab a second time.
	closing atomic.Bool
}

func (t *tab) info(active bool) TabInfo {
	return TabInfo{
		ID:         t.id,
		SessionID:  t.session.ID.String(),
		ShellLabel: t.shellLabel,
		Index:      t.index,
		Active:     active,
	}
}

// NewCoordinator creates a coordinator over registry. The coordinator owns
// the registry from here on and closes it in Close.
func NewCoordinator(registry *terminal.Registry, notifier Notifier, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		registry: registry,
		notifier: notifier,
		logger:   logger,
	}
}

// WithMetrics adds metrics tracking to the coordinator
func (c *Coordinator) WithMetrics(metrics *monitoring.Metrics) *Coordinator {
	c.metrics = metrics
	return c
}

// CreateTab starts a session in a new tab at the end of the list and
// activates it. On failure the error is also reported to the notifier and
// the tab list is unchanged.
func (c *Coordinator) CreateTab(ctx context.Context, opts TabOptions) (TabID, error) {
	s, err := c.registry.Create(ctx, terminal.CreateOptions{
		Dir:        opts.Dir,
		Shell:      opts.Shell,
		DeferStart: true,
	})
	if err != nil {
		c.logger.Warn("Failed to create tab", zap.Error(err))
		c.notifier.Error(err)
		return "", err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		s.Kill()
		return "", terminal.ErrRegistryClosed
	}
	c.nextID++
	t := &tab{
		id:         TabID(fmt.Sprintf("tab-%d", c.nextID)),
		session:    s,
		shellLabel: ShellLabel(s.Shell),
		index:      len(c.tabs),
	}
	c.tabs = append(c.tabs, t)
	c.active = t.id
	c.notifier.TabCreated(t.info(true))
	c.notifier.TabActivated(t.id)
	c.mu.Unlock()

	c.metrics.AddTabsOpen(1)

	// Output may only follow the announcement above.
	s.OnExited(func(*terminal.Session) { c.sessionExited(t) })
	c.registry.Router().Subscribe(s.ID, func(data []byte) {
		c.notifier.Output(t.id, data)
	})
	if err := s.Start(); err != nil {
		c.logger.Debug("Tab closed before its session started",
			zap.String("tab_id", t.id.String()),
			zap.Error(err),
		)
	}

	c.logger.Info("Tab created",
		zap.String("tab_id", t.id.String()),
		zap.String("session_id", s.ID.String()),
	)
	return t.id, nil
}

// ActivateTab makes id the active tab. The previously active session keeps
// running.
func (c *Coordinator) ActivateTab(id TabID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	if c.active == id {
		return nil
	}
	c.active = id
	c.notifier.TabActivated(id)
	return nil
}

// CloseTab kills the tab's session and removes the tab.
func (c *Coordinator) CloseTab(id TabID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}

	t := c.tabs[idx]
	t.closing.Store(true)
	t.session.Kill()
	c.removeLocked(idx)
	return nil
}

// RouteInput writes data to the tab's session if the tab is active.
// Input for any other tab is dropped.
func (c *Coordinator) RouteInput(id TabID, data []byte) error {
	s := c.activeSession(id)
	if s == nil {
		return nil
	}
	return s.Write(data)
}

// RouteResize resizes the tab's session if the tab is active.
func (c *Coordinator) RouteResize(id TabID, cols, rows int) error {
	s := c.activeSession(id)
	if s == nil {
		return nil
	}
	return s.Resize(cols, rows)
}

func (c *Coordinator) activeSession(id TabID) *terminal.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" || id != c.active {
		c.logger.Debug("Dropping event for inactive tab", zap.String("tab_id", id.String()))
		return nil
	}
	return c.tabs[c.indexOf(id)].session
}

// Ready brings a (re)loaded UI up to date: existing tabs are announced
// again with their scrollback, or the first tab is created when none
// exist.
func (c *Coordinator) Ready(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return terminal.ErrRegistryClosed
	}
	if len(c.tabs) == 0 {
		c.mu.Unlock()
		_, err := c.CreateTab(ctx, TabOptions{})
		return err
	}
	defer c.mu.Unlock()

	router := c.registry.Router()
	for _, t := range c.tabs {
		c.notifier.TabCreated(t.info(t.id == c.active))
		id := t.id
		router.Replay(t.session.ID, func(data []byte) {
			c.notifier.Output(id, data)
		})
	}
	if c.active != "" {
		c.notifier.TabActivated(c.active)
	}
	return nil
}

// Tabs returns the open tabs in order.
func (c *Coordinator) Tabs() []TabInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]TabInfo, 0, len(c.tabs))
	for _, t := range c.tabs {
		infos = append(infos, t.info(t.id == c.active))
	}
	return infos
}

// Active returns the active tab, if any.
func (c *Coordinator) Active() (TabID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != ""
}

// Close kills every session and rejects further tabs. It is safe to call
// more than once and on a partially constructed coordinator.
func (c *Coordinator) Close() {
	if c == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, t := range c.tabs {
		t.closing.Store(true)
	}
	open := len(c.tabs)
	c.tabs = nil
	c.active = ""
	c.mu.Unlock()

	c.metrics.AddTabsOpen(-open)
	if c.registry != nil {
		c.registry.Close()
	}
	c.logger.Debug("Coordinator closed", zap.Int("tabs", open))
}

// sessionExited removes the tab of a session that ended on its own.
func (c *Coordinator) sessionExited(t *tab) {
	if t.closing.Load() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(t.id)
	if idx < 0 {
		return
	}
	c.logger.Info("Session exited, closing tab",
		zap.String("tab_id", t.id.String()),
		zap.Int("exit_code", t.session.ExitCode()),
	)
	c.removeLocked(idx)
}

// removeLocked drops tabs[idx], reports it closed and reassigns the active
// tab when needed.
func (c *Coordinator) removeLocked(idx int) {
	t := c.tabs[idx]
	wasActive := c.active == t.id

	c.tabs = append(c.tabs[:idx:idx], c.tabs[idx+1:]...)
	c.metrics.AddTabsOpen(-1)
	c.notifier.TabClosed(t.id)

	if !wasActive {
		return
	}
	switch {
	case idx < len(c.tabs):
		c.active = c.tabs[idx].id
	case len(c.tabs) > 0:
		c.active = c.tabs[len(c.tabs)-1].id
	default:
		c.active = ""
		return
	}
	c.notifier.TabActivated(c.active)
}

func (c *Coordinator) indexOf(id TabID) int {
	for i, t := range c.tabs {
		if t.id == id {
			return i
		}
	}
	return -1
}
