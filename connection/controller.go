package connection

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payroll-link/core"
)

var (
	// ErrCycleSuperseded is returned to a caller whose cycle was replaced by a
	// newer Start before its result arrived.
	ErrCycleSuperseded = errors.New("connection: cycle superseded by a newer start")
	ErrSurfaceRequired = errors.New("connection: linking surface is required in live mode")
)

// Snapshot is a point-in-time copy of the controller state. The access
// credential is exposed only through AccessCredential.
type Snapshot struct {
	State               State
	Mode                core.CredentialMode
	Cycle               uint64
	LinkToken           string
	SurfaceReady        bool
	ItemID              string
	HasAccessCredential bool
	Err                 error
	UpdatedAt           time.Time
}

type Controller struct {
	service core.PayrollService
	surface LinkingSurface
	logger  core.Logger
	now     func() time.Time

	mu               sync.Mutex
	state            State
	mode             core.CredentialMode
	cycle            uint64
	session          core.LinkSession
	surfaceReady     bool
	exchange         core.ExchangeResult
	accessCredential string
	lastErr          error
	updatedAt        time.Time
	subscribers      map[int]func(Transition)
	nextSubscriber   int
}

type Option func(*Controller)

func WithLogger(logger core.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithSurface(surface LinkingSurface) Option {
	return func(c *Controller) {
		c.surface = surface
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(service core.PayrollService, opts ...Option) (*Controller, error) {
	if service == nil {
		return nil, errors.New("connection: payroll service is required")
	}
	_, logger := glog.Resolve("payroll.connection", nil, nil)
	controller := &Controller{
		service:     service,
		logger:      glog.Ensure(logger),
		now:         func() time.Time { return time.Now().UTC() },
		state:       StateIdle,
		mode:        service.Mode(),
		subscribers: map[int]func(Transition){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(controller)
		}
	}
	controller.updatedAt = controller.now()
	return controller, nil
}

// Start opens a new cycle and requests a link session. It is allowed from
// idle, initializing and error; a newer Start supersedes any in-flight one.
func (c *Controller) Start(ctx context.Context, identity core.UserIdentity) (Snapshot, error) {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateInitializing && c.state != StateError {
		err := core.InvalidTransitionError(c.state.String(), StateInitializing.String())
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	c.cycle++
	cycle := c.cycle
	c.session = core.LinkSession{}
	c.exchange = core.ExchangeResult{}
	c.accessCredential = ""
	c.lastErr = nil
	c.mode = c.service.Mode()
	pending := []Transition{c.transitionLocked(StateInitializing, nil)}
	c.mu.Unlock()
	c.publish(pending)

	session, err := c.service.CreateLinkSession(ctx, identity)

	c.mu.Lock()
	if cycle != c.cycle {
		c.mu.Unlock()
		c.logDiscarded("link session result", cycle)
		return c.Snapshot(), ErrCycleSuperseded
	}
	if err != nil {
		pending = []Transition{c.transitionLocked(StateError, err)}
		c.mu.Unlock()
		c.publish(pending)
		return c.Snapshot(), err
	}
	c.session = session
	pending = nil
	switch {
	case c.mode.IsSimulated():
		pending = append(pending, c.transitionLocked(StateSimulatedReady, nil))
	case c.surfaceReady:
		pending = append(pending, c.transitionLocked(StateReady, nil))
	}
	c.mu.Unlock()
	c.publish(pending)
	return c.Snapshot(), nil
}

// MarkSurfaceReady records that the interactive surface can be opened. In
// live mode the controller becomes ready once both the token and this signal
// are present, in either order.
func (c *Controller) MarkSurfaceReady() Snapshot {
	c.mu.Lock()
	c.surfaceReady = true
	var pending []Transition
	if c.state == StateInitializing && !c.mode.IsSimulated() && strings.TrimSpace(c.session.Token) != "" {
		pending = append(pending, c.transitionLocked(StateReady, nil))
	}
	c.mu.Unlock()
	c.publish(pending)
	return c.Snapshot()
}

// Link opens the linking surface for the current cycle. In simulated mode no
// surface is touched and a successful link is synthesized with the sentinel
// public credential.
func (c *Controller) Link(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.state != StateReady && c.state != StateSimulatedReady {
		err := core.InvalidTransitionError(c.state.String(), StateLinking.String())
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	cycle := c.cycle
	simulated := c.mode.IsSimulated()
	token := c.session.Token
	surface := c.surface
	pending := []Transition{c.transitionLocked(StateLinking, nil)}
	if !simulated && surface == nil {
		pending = append(pending, c.transitionLocked(StateError, ErrSurfaceRequired))
		c.mu.Unlock()
		c.publish(pending)
		return c.Snapshot(), ErrSurfaceRequired
	}
	c.mu.Unlock()
	c.publish(pending)

	if simulated {
		return c.completeLink(ctx, cycle, core.SimulatedPublicCredential)
	}

	if err := surface.Open(token, c.callbacksFor(ctx, cycle)); err != nil {
		c.mu.Lock()
		if cycle != c.cycle {
			c.mu.Unlock()
			c.logDiscarded("surface open failure", cycle)
			return c.Snapshot(), ErrCycleSuperseded
		}
		if c.state != StateLinking {
			c.mu.Unlock()
			return c.Snapshot(), err
		}
		pending = []Transition{c.transitionLocked(StateError, err)}
		c.mu.Unlock()
		c.publish(pending)
		return c.Snapshot(), err
	}
	return c.Snapshot(), nil
}

// Callbacks returns surface callbacks bound to the current cycle.
func (c *Controller) Callbacks(ctx context.Context) SurfaceCallbacks {
	c.mu.Lock()
	cycle := c.cycle
	c.mu.Unlock()
	return c.callbacksFor(ctx, cycle)
}

func (c *Controller) callbacksFor(ctx context.Context, cycle uint64) SurfaceCallbacks {
	return SurfaceCallbacks{
		OnSuccess: func(publicCredential string, metadata map[string]any) {
			_, _ = c.OnSuccess(ctx, cycle, publicCredential, metadata)
		},
		OnExit: func(exit *SurfaceExit, metadata map[string]any) {
			_, _ = c.OnExit(ctx, cycle, exit, metadata)
		},
		OnEvent: func(eventName string, metadata map[string]any) {
			c.OnEvent(cycle, eventName, metadata)
		},
	}
}

// OnSuccess handles a completed link for cycle and exchanges the public
// credential.
func (c *Controller) OnSuccess(ctx context.Context, cycle uint64, publicCredential string, metadata map[string]any) (Snapshot, error) {
	if len(metadata) > 0 {
		c.logger.Debug("linking surface reported success", flattenFields(core.RedactSensitiveMap(metadata))...)
	}
	return c.completeLink(ctx, cycle, publicCredential)
}

// OnExit handles the user leaving the surface. Live mode returns to ready
// without any exchange; simulated mode turns the exit into a mock success.
func (c *Controller) OnExit(ctx context.Context, cycle uint64, exit *SurfaceExit, metadata map[string]any) (Snapshot, error) {
	c.mu.Lock()
	if cycle != c.cycle || c.state != StateLinking {
		stale := cycle != c.cycle
		c.mu.Unlock()
		if stale {
			c.logDiscarded("surface exit", cycle)
			return c.Snapshot(), ErrCycleSuperseded
		}
		return c.Snapshot(), core.InvalidTransitionError(c.State().String(), StateReady.String())
	}
	if c.mode.IsSimulated() {
		c.mu.Unlock()
		return c.completeLink(ctx, cycle, core.SimulatedPublicCredential)
	}
	pending := []Transition{c.transitionLocked(StateReady, nil)}
	c.mu.Unlock()
	c.publish(pending)

	fields := map[string]any{"cycle": cycle}
	if exit != nil {
		fields["exit_status"] = exit.Status
		fields["error_code"] = exit.ErrorCode
		fields["request_id"] = exit.RequestID
	}
	for key, value := range core.RedactSensitiveMap(metadata) {
		fields[key] = value
	}
	c.logger.Info("linking surface exited", flattenFields(fields)...)
	return c.Snapshot(), nil
}

// OnEvent records surface telemetry. It never changes state.
func (c *Controller) OnEvent(cycle uint64, eventName string, metadata map[string]any) {
	fields := core.RedactSensitiveMap(metadata)
	fields["cycle"] = cycle
	fields["event_name"] = strings.TrimSpace(eventName)
	c.logger.Debug("linking surface event", flattenFields(fields)...)
}

// Retry recovers from error by returning to idle and starting a new cycle.
// While a previous retry is still initializing it starts a newer cycle that
// supersedes it.
func (c *Controller) Retry(ctx context.Context, identity core.UserIdentity) (Snapshot, error) {
	c.mu.Lock()
	if c.state == StateInitializing {
		c.mu.Unlock()
		return c.Start(ctx, identity)
	}
	if c.state != StateError {
		err := core.InvalidTransitionError(c.state.String(), StateIdle.String())
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	pending := []Transition{c.transitionLocked(StateIdle, nil)}
	c.lastErr = nil
	c.mu.Unlock()
	c.publish(pending)
	return c.Start(ctx, identity)
}

func (c *Controller) completeLink(ctx context.Context, cycle uint64, publicCredential string) (Snapshot, error) {
	c.mu.Lock()
	if cycle != c.cycle {
		c.mu.Unlock()
		c.logDiscarded("link success", cycle)
		return c.Snapshot(), ErrCycleSuperseded
	}
	if c.state != StateLinking {
		err := core.InvalidTransitionError(c.state.String(), StateExchanging.String())
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	pending := []Transition{c.transitionLocked(StateExchanging, nil)}
	c.mu.Unlock()
	c.publish(pending)

	result, err := c.service.ExchangePublicCredential(ctx, publicCredential)

	c.mu.Lock()
	if cycle != c.cycle {
		c.mu.Unlock()
		c.logDiscarded("exchange result", cycle)
		return c.Snapshot(), ErrCycleSuperseded
	}
	if err != nil {
		pending = []Transition{c.transitionLocked(StateError, err)}
		c.mu.Unlock()
		c.publish(pending)
		return c.Snapshot(), err
	}
	c.exchange = result
	c.accessCredential = result.AccessCredential
	pending = []Transition{c.transitionLocked(StateConnected, nil)}
	c.mu.Unlock()
	c.publish(pending)
	return c.Snapshot(), nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:               c.state,
		Mode:                c.mode,
		Cycle:               c.cycle,
		LinkToken:           c.session.Token,
		SurfaceReady:        c.surfaceReady,
		ItemID:              c.exchange.ItemID,
		HasAccessCredential: c.accessCredential != "",
		Err:                 c.lastErr,
		UpdatedAt:           c.updatedAt,
	}
}

// AccessCredential returns the exchanged credential once connected.
func (c *Controller) AccessCredential() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.accessCredential == "" {
		return "", false
	}
	return c.accessCredential, true
}

// Subscribe registers fn for every transition. The returned func removes it.
func (c *Controller) Subscribe(fn func(Transition)) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubscriber
	c.nextSubscriber++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// transitionLocked must be called with mu held. It panics on an illegal edge
// because every caller checks the source state first.
func (c *Controller) transitionLocked(to State, err error) Transition {
	from := c.state
	if !CanTransition(from, to) {
		panic("connection: illegal transition " + from.String() + " -> " + to.String())
	}
	c.state = to
	c.updatedAt = c.now()
	if to == StateError {
		c.lastErr = err
	}
	return Transition{From: from, To: to, Cycle: c.cycle, Err: err, At: c.updatedAt}
}

func (c *Controller) publish(pending []Transition) {
	if len(pending) == 0 {
		return
	}
	c.mu.Lock()
	mode := c.mode
	subscribers := make([]func(Transition), 0, len(c.subscribers))
	ids := make([]int, 0, len(c.subscribers))
	for id := range c.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subscribers = append(subscribers, c.subscribers[id])
	}
	c.mu.Unlock()

	for _, transition := range pending {
		fields := map[string]any{
			"from":  transition.From.String(),
			"to":    transition.To.String(),
			"cycle": transition.Cycle,
			"mode":  mode.String(),
		}
		if transition.Err != nil {
			fields["error_text_code"] = core.TextCode(transition.Err)
			fields["error"] = transition.Err.Error()
			c.logger.Warn("connection state changed", flattenFields(fields)...)
		} else {
			c.logger.Debug("connection state changed", flattenFields(fields)...)
		}
		for _, subscriber := range subscribers {
			subscriber(transition)
		}
	}
}

func (c *Controller) logDiscarded(what string, cycle uint64) {
	c.mu.Lock()
	current := c.cycle
	c.mu.Unlock()
	c.logger.Info("connection discarded stale "+what, "cycle", cycle, "current_cycle", current)
}

func flattenFields(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
