// Package live runs the terminal's live-data session: it owns the login
// session, drives refresh cycles from the session clock and feeds each
// accepted snapshot through delta processing into the render coordinator.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stockticker/internal/dashboard"
	"stockticker/internal/domain"
	"stockticker/internal/session"
	"stockticker/pkg/stockticker"
)

// Messages shown to the user through the Notifier.
const (
	MsgMissingCredentials = "Please enter username and password"
	MsgLoginFailed        = "Login failed. Please check your credentials."
	MsgLoginRequired      = "Please login to access market data"
	MsgRefreshFailed      = "Failed to refresh data"
	MsgSessionExpired     = "Session expired. Please login again."
	MsgNoData             = "No data received"
)

// ErrNotLoggedIn is returned by Refresh when there is no session.
var ErrNotLoggedIn = errors.New("not logged in")

// QuoteClient is the subset of the API client the pipeline needs.
type QuoteClient interface {
	Login(ctx context.Context, username, password string) (stockticker.LoginData, error)
	Latest(ctx context.Context, token string) (domain.Snapshot, error)
}

var _ QuoteClient = (*stockticker.Client)(nil)

// Renderer receives each accepted record set.
type Renderer interface {
	Render(records []domain.StockRecord)
	SortBy(field dashboard.SortField)
	Reset()
}

// Notifier surfaces user-facing errors.
type Notifier interface {
	ShowError(msg string)
}

// Layout selects how the records are laid out on screen.
type Layout int

const (
	LayoutTable Layout = iota // table plus scrolling ticker strip
	LayoutCards               // card grid
)

func (l Layout) String() string {
	if l == LayoutCards {
		return "cards"
	}
	return "table"
}

// Config wires a Controller.
type Config struct {
	Client   QuoteClient
	Store    session.Store
	Renderer Renderer
	Notifier Notifier
	Clock    session.ClockConfig
	// Processor defaults to one drawing from math/rand/v2.
	Processor *dashboard.Processor
	// RequestTimeout bounds each clock-driven fetch. Zero means 30s.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// State is a point-in-time view of the controller for the UI.
type State struct {
	Username   string
	LoggedIn   bool
	Running    bool
	Countdown  int
	LastUpdate time.Time
	Layout     Layout
	SortField  dashboard.SortField
}

// Controller is the session pipeline. All methods are safe for concurrent
// use.
type Controller struct {
	client   QuoteClient
	store    session.Store
	renderer Renderer
	notifier Notifier
	proc     *dashboard.Processor
	clock    *session.Clock
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	sess       session.Session
	epoch      uint64 // bumped on login and logout
	seq        uint64 // last issued request
	applied    uint64 // last request whose snapshot was rendered
	prev       domain.PriceTable
	lastUpdate time.Time
	layout     Layout
	sortField  dashboard.SortField
}

// NewController builds an idle controller; call Resume or Login to start it.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	proc := cfg.Processor
	if proc == nil {
		proc = dashboard.NewProcessor(nil)
	}
	store := cfg.Store
	if store == nil {
		store = session.NewMemoryStore()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Controller{
		client:   cfg.Client,
		store:    store,
		renderer: cfg.Renderer,
		notifier: cfg.Notifier,
		proc:     proc,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		prev:     domain.PriceTable{},
	}
	c.clock = session.NewClock(cfg.Clock, c.cycle, nil, logger)
	return c
}

// ---------------------------------------------------------------------------
// Session lifecycle
// ---------------------------------------------------------------------------

// Resume restores a persisted session and starts the clock if one exists.
// It reports whether a session was restored.
func (c *Controller) Resume() (bool, error) {
	sess, err := c.store.Load()
	if err != nil {
		return false, fmt.Errorf("restoring session: %w", err)
	}
	if !sess.Authenticated() {
		return false, nil
	}

	c.mu.Lock()
	c.epoch++
	c.sess = sess
	c.prev = domain.PriceTable{}
	c.mu.Unlock()

	c.logger.Info("session restored", "username", sess.Username)
	c.clock.Start()
	return true, nil
}

// Login authenticates, persists the session and starts the clock. Failures
// are reported through the Notifier and leave the current state untouched.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		c.notify(MsgMissingCredentials)
		return fmt.Errorf("%w: missing credentials", stockticker.ErrAuthFailed)
	}

	data, err := c.client.Login(ctx, username, password)
	if err != nil {
		c.logger.Warn("login failed", "username", username, "error", err)
		c.notify(MsgLoginFailed)
		return err
	}

	sess := session.Session{Token: data.Token, Username: data.Username}
	c.mu.Lock()
	c.epoch++
	c.sess = sess
	c.prev = domain.PriceTable{}
	c.mu.Unlock()

	if err := c.store.Save(sess); err != nil {
		c.logger.Warn("persisting session", "error", err)
	}

	c.logger.Info("logged in", "username", sess.Username)
	c.clock.Start()
	return nil
}

// Logout stops the clock, forgets the session and clears the display. When
// it returns no further cycle will start and no in-flight response will be
// applied.
func (c *Controller) Logout() {
	c.clock.Stop()

	c.mu.Lock()
	user := c.sess.Username
	c.epoch++
	c.sess = session.Session{}
	c.prev = domain.PriceTable{}
	c.lastUpdate = time.Time{}
	c.sortField = ""
	c.renderer.Reset()
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.logger.Warn("clearing persisted session", "error", err)
	}
	c.logger.Info("logged out", "username", user)
}

// Close stops the clock without touching the persisted session.
func (c *Controller) Close() {
	c.clock.Stop()
}

// ---------------------------------------------------------------------------
// Refresh cycle
// ---------------------------------------------------------------------------

func (c *Controller) cycle() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_ = c.Refresh(ctx)
}

// Refresh runs one fetch cycle. The clock calls it on every tick; the UI
// calls it for a manual refresh. Failures are reported through the Notifier
// and also returned.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.sess.Authenticated() {
		c.mu.Unlock()
		c.notify(MsgLoginRequired)
		return ErrNotLoggedIn
	}
	token := c.sess.Token
	epoch := c.epoch
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	snap, err := c.client.Latest(ctx, token)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("discarding response from ended session", "seq", seq)
		return nil
	}

	if err != nil {
		if errors.Is(err, stockticker.ErrSessionExpired) {
			c.mu.Unlock()
			c.logger.Warn("session expired")
			c.Logout()
			c.notify(MsgSessionExpired)
			return err
		}
		stale := seq < c.applied
		c.mu.Unlock()
		if stale {
			c.logger.Debug("ignoring failure of superseded request", "seq", seq, "error", err)
			return nil
		}
		c.logger.Warn("refresh failed", "seq", seq, "error", err)
		c.notify(failureMessage(err))
		return err
	}

	if seq < c.applied {
		c.mu.Unlock()
		c.logger.Debug("dropping out-of-order response", "seq", seq, "applied", c.applied)
		return nil
	}
	c.applied = seq

	records, next := c.proc.Process(snap, c.prev)
	c.prev = next
	c.lastUpdate = c.now()
	c.renderer.Render(records)
	c.mu.Unlock()

	c.logger.Debug("cycle applied", "seq", seq, "symbols", len(records))
	return nil
}

func failureMessage(err error) string {
	if errors.Is(err, stockticker.ErrDataUnavailable) {
		if msg := stockticker.ServerMessage(err); msg != "" {
			return msg
		}
		return MsgNoData
	}
	return MsgRefreshFailed
}

// ---------------------------------------------------------------------------
// View controls
// ---------------------------------------------------------------------------

// SortBy re-sorts the display. The field stays in effect for later cycles.
func (c *Controller) SortBy(field dashboard.SortField) {
	if !field.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sortField = field
	c.renderer.SortBy(field)
}

// CycleSort advances to the next sort field and returns it.
func (c *Controller) CycleSort() dashboard.SortField {
	c.mu.Lock()
	next := c.sortField.Next()
	c.mu.Unlock()
	c.SortBy(next)
	return next
}

// ToggleLayout switches between table and card layouts and returns the new
// one.
func (c *Controller) ToggleLayout() Layout {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layout == LayoutTable {
		c.layout = LayoutCards
	} else {
		c.layout = LayoutTable
	}
	return c.layout
}

// State returns a snapshot of the controller for display.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Username:   c.sess.Username,
		LoggedIn:   c.sess.Authenticated(),
		Running:    c.clock.Running(),
		Countdown:  c.clock.Countdown(),
		LastUpdate: c.lastUpdate,
		Layout:     c.layout,
		SortField:  c.sortField,
	}
}

func (c *Controller) notify(msg string) {
	if c.notifier != nil {
		c.notifier.ShowError(msg)
	}
}
