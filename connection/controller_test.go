package connection

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-payroll-link/core"
)

type stubService struct {
	mode core.CredentialMode

	mu            sync.Mutex
	linkCalls     int
	exchangeCalls int
	linkFn        func(call int) (core.LinkSession, error)
	exchangeFn    func(publicCredential string) (core.ExchangeResult, error)
}

func (s *stubService) Mode() core.CredentialMode { return s.mode }

func (s *stubService) CreateLinkSession(_ context.Context, _ core.UserIdentity) (core.LinkSession, error) {
	s.mu.Lock()
	s.linkCalls++
	call := s.linkCalls
	fn := s.linkFn
	s.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	if s.mode.IsSimulated() {
		return core.LinkSession{Token: core.SimulatedLinkToken, Mode: s.mode}, nil
	}
	return core.LinkSession{Token: "link-live-token", Mode: s.mode}, nil
}

func (s *stubService) ExchangePublicCredential(_ context.Context, publicCredential string) (core.ExchangeResult, error) {
	s.mu.Lock()
	s.exchangeCalls++
	fn := s.exchangeFn
	s.mu.Unlock()
	if fn != nil {
		return fn(publicCredential)
	}
	if s.mode.IsSimulated() || core.IsSimulatedPublicCredential(publicCredential) {
		return core.ExchangeResult{AccessCredential: core.SimulatedAccessCredential, ItemID: core.SimulatedItemID}, nil
	}
	return core.ExchangeResult{AccessCredential: "access-live-" + publicCredential, ItemID: "item_live"}, nil
}

func (s *stubService) FetchPayrollSnapshot(context.Context, string) (core.PayrollSnapshot, error) {
	return core.SimulatedPayrollSnapshot(), nil
}

func (s *stubService) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkCalls, s.exchangeCalls
}

type recordingSurface struct {
	mu        sync.Mutex
	opens     int
	tokens    []string
	callbacks SurfaceCallbacks
	openErr   error
}

func (s *recordingSurface) Open(linkToken string, callbacks SurfaceCallbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	s.tokens = append(s.tokens, linkToken)
	s.callbacks = callbacks
	return s.openErr
}

func (s *recordingSurface) last() SurfaceCallbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbacks
}

func newTestController(t *testing.T, service core.PayrollService, opts ...Option) *Controller {
	t.Helper()
	controller, err := NewController(service, opts...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return controller
}

func recordTransitions(controller *Controller) func() []Transition {
	var mu sync.Mutex
	var seen []Transition
	controller.Subscribe(func(tr Transition) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tr)
	})
	return func() []Transition {
		mu.Lock()
		defer mu.Unlock()
		return append([]Transition(nil), seen...)
	}
}

func TestNewControllerRequiresService(t *testing.T) {
	if _, err := NewController(nil); err == nil {
		t.Fatalf("expected error for missing service")
	}
}

func TestController_SimulatedPipelineConnectsWithoutSurface(t *testing.T) {
	service := &stubService{mode: core.CredentialModeSimulated}
	surface := &recordingSurface{}
	controller := newTestController(t, service, WithSurface(surface))
	transitions := recordTransitions(controller)

	snapshot, err := controller.Start(context.Background(), core.UserIdentity{UserID: "u1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snapshot.State != StateSimulatedReady {
		t.Fatalf("expected simulated_ready, got %s", snapshot.State)
	}

	snapshot, err = controller.Link(context.Background())
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if snapshot.State != StateConnected {
		t.Fatalf("expected connected, got %s", snapshot.State)
	}
	access, ok := controller.AccessCredential()
	if !ok || access != core.SimulatedAccessCredential {
		t.Fatalf("expected simulated access credential, got %q (%t)", access, ok)
	}
	if surface.opens != 0 {
		t.Fatalf("expected surface untouched in simulated mode, got %d opens", surface.opens)
	}

	want := []State{StateInitializing, StateSimulatedReady, StateLinking, StateExchanging, StateConnected}
	got := transitions()
	if len(got) != len(want) {
		t.Fatalf("expected %d transitions, got %d: %+v", len(want), len(got), got)
	}
	for i, state := range want {
		if got[i].To != state {
			t.Fatalf("transition %d: expected %s, got %s", i, state, got[i].To)
		}
	}
}

func TestController_LiveReadyRequiresTokenAndSurfaceSignal(t *testing.T) {
	t.Run("token first", func(t *testing.T) {
		controller := newTestController(t, &stubService{mode: core.CredentialModeLive}, WithSurface(&recordingSurface{}))
		snapshot, err := controller.Start(context.Background(), core.UserIdentity{})
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if snapshot.State != StateInitializing {
			t.Fatalf("expected initializing before surface signal, got %s", snapshot.State)
		}
		if got := controller.MarkSurfaceReady().State; got != StateReady {
			t.Fatalf("expected ready, got %s", got)
		}
	})

	t.Run("surface first", func(t *testing.T) {
		controller := newTestController(t, &stubService{mode: core.CredentialModeLive}, WithSurface(&recordingSurface{}))
		if got := controller.MarkSurfaceReady().State; got != StateIdle {
			t.Fatalf("expected idle before start, got %s", got)
		}
		snapshot, err := controller.Start(context.Background(), core.UserIdentity{})
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if snapshot.State != StateReady {
			t.Fatalf("expected ready, got %s", snapshot.State)
		}
		if snapshot.LinkToken != "link-live-token" {
			t.Fatalf("expected link token on snapshot, got %q", snapshot.LinkToken)
		}
	})
}

func TestController_LiveSuccessExchangesOnce(t *testing.T) {
	service := &stubService{mode: core.CredentialModeLive}
	surface := &recordingSurface{}
	controller := newTestController(t, service, WithSurface(surface))
	controller.MarkSurfaceReady()
	if _, err := controller.Start(context.Background(), core.UserIdentity{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := controller.Link(context.Background()); err != nil {
		t.Fatalf("link: %v", err)
	}
	if surface.opens != 1 || surface.tokens[0] != "link-live-token" {
		t.Fatalf("expected surface opened with link token, got %+v", surface.tokens)
	}

	surface.last().OnSuccess("public-live-1", map[string]any{"institution": "Gusto"})

	if got := controller.State(); got != StateConnected {
		t.Fatalf("expected connected, got %s", got)
	}
	access, ok := controller.AccessCredential()
	if !ok || access != "access-live-public-live-1" {
		t.Fatalf("unexpected access credential %q (%t)", access, ok)
	}
	if _, exchanges := service.counts(); exchanges != 1 {
		t.Fatalf("expected one exchange, got %d", exchanges)
	}
}

func TestController_LiveCancelReturnsToReadyWithoutExchange(t *testing.T) {
	service := &stubService{mode: core.CredentialModeLive}
	surface := &recordingSurface{}
	controller := newTestController(t, service, WithSurface(surface))
	controller.MarkSurfaceReady()
	if _, err := controller.Start(context.Background(), core.UserIdentity{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := controller.Link(context.Background()); err != nil {
		t.Fatalf("link: %v", err)
	}

	surface.last().OnEvent("HANDOFF", nil)
	if got := controller.State(); got != StateLinking {
		t.Fatalf("expected events to leave state unchanged, got %s", got)
	}
	surface.last().OnExit(&SurfaceExit{Status: "user_cancelled"}, map[string]any{"link_token": "link-live-token"})

	if got := controller.State(); got != StateReady {
		t.Fatalf("expected ready after exit, got %s", got)
	}
	if _, exchanges := service.counts(); exchanges != 0 {
		t.Fatalf("expected zero exchange calls after cancel, got %d", exchanges)
	}
	if _, ok := controller.AccessCredential(); ok {
		t.Fatalf("expected no access credential after cancel")
	}
}

func TestController_SimulatedExitBecomesMockSuccess(t *testing.T) {
	service := &stubService{mode: core.CredentialModeSimulated}
	controller := newTestController(t, service)
	if _, err := controller.Start(context.Background(), core.UserIdentity{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Drive the exit directly so the controller is still linking when it arrives.
	controller.mu.Lock()
	controller.transitionLocked(StateLinking, nil)
	cycle := controller.cycle
	controller.mu.Unlock()

	snapshot, err := controller.OnExit(context.Background(), cycle, &SurfaceExit{Status: "exit"}, nil)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if snapshot.State != StateConnected {
		t.Fatalf("expected connected, got %s", snapshot.State)
	}
}

func TestController_ExchangeFailureRetainsErrorAndRetryRecovers(t *testing.T) {
	failure := core.ExchangeFailedError(core.ProviderErrorDetail{ErrorCode: "INVALID_PUBLIC_TOKEN"})
	service := &stubService{
		mode: core.CredentialModeLive,
		exchangeFn: func(string) (core.ExchangeResult, error) {
			return core.ExchangeResult{}, failure
		},
	}
	surface := &recordingSurface{}
	controller := newTestController(t, service, WithSurface(surface))
	controller.MarkSurfaceReady()
	if _, err := controller.Start(context.Background(), core.UserIdentity{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := controller.Link(context.Background()); err != nil {
		t.Fatalf("link: %v", err)
	}
	surface.last().OnSuccess("public-live-2", nil)

	snapshot := controller.Snapshot()
	if snapshot.State != StateError {
		t.Fatalf("expected error state, got %s", snapshot.State)
	}
	if !core.IsCode(snapshot.Err, core.ErrorExchangeFailed) {
		t.Fatalf("expected retained exchange failure, got %v", snapshot.Err)
	}

	transitions := recordTransitions(controller)
	snapshot, err := controller.Retry(context.Background(), core.UserIdentity{})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if snapshot.State != StateReady {
		t.Fatalf("expected ready after retry, got %s", snapshot.State)
	}
	if snapshot.Err != nil {
		t.Fatalf("expected error cleared after retry, got %v", snapshot.Err)
	}
	got := transitions()
	if len(got) < 2 || got[0].To != StateIdle || got[1].To != StateInitializing {
		t.Fatalf("expected retry to pass through idle then initializing, got %+v", got)
	}
}

func TestController_StartFailureEntersError(t *testing.T) {
	unavailable := core.ProviderUnavailableError(errors.New("dial tcp"), "provider unavailable", nil)
	service := &stubService{
		mode:   core.CredentialModeLive,
		linkFn: func(int) (core.LinkSession, error) { return core.LinkSession{}, unavailable },
	}
	controller := newTestController(t, service)
	snapshot, err := controller.Start(context.Background(), core.UserIdentity{})
	if !core.IsCode(err, core.ErrorProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
	if snapshot.State != StateError {
		t.Fatalf("expected error, got %s", snapshot.State)
	}
}

func TestController_RejectsOutOfOrderOperations(t *testing.T) {
	controller := newTestController(t, &stubService{mode: core.CredentialModeSimulated})

	if _, err := controller.Link(context.Background()); !core.IsCode(err, core.ErrorInvalidTransition) {
		t.Fatalf("expected invalid transition for link from idle, got %v", err)
	}
	if _, err := controller.Retry(context.Background(), core.UserIdentity{}); !core.IsCode(err, core.ErrorInvalidTransition) {
		t.Fatalf("expected invalid transition for retry from idle, got %v", err)
	}
	if _, err := controller.OnSuccess(context.Background(), 0, "public-x", nil); !core.IsCode(err, core.ErrorInvalidTransition) {
		t.Fatalf("expected invalid transition for success outside linking, got %v", err)
	}
	if got := controller.State(); got != StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}

func TestController_LiveLinkWithoutSurfaceFails(t *testing.T) {
	controller := newTestController(t, &stubService{mode: core.CredentialModeLive})
	controller.MarkSurfaceReady()
	if _, err := controller.Start(context.Background(), core.UserIdentity{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	snapshot, err := controller.Link(context.Background())
	if !errors.Is(err, ErrSurfaceRequired) {
		t.Fatalf("expected surface required, got %v", err)
	}
	if snapshot.State != StateError {
		t.Fatalf("expected error, got %s", snapshot.State)
	}
}

func TestController_OverlappingStartsLastCycleWins(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	service := &stubService{
		mode: core.CredentialModeLive,
		linkFn: func(call int) (core.LinkSession, error) {
			if call == 1 {
				close(entered)
				<-release
				return core.LinkSession{Token: "link-first"}, nil
			}
			return core.LinkSession{Token: "link-second"}, nil
		},
	}
	controller := newTestController(t, service, WithSurface(&recordingSurface{}))
	controller.MarkSurfaceReady()

	firstErr := make(chan error, 1)
	go func() {
		_, err := controller.Start(context.Background(), core.UserIdentity{})
		firstErr <- err
	}()
	<-entered

	snapshot, err := controller.Start(context.Background(), core.UserIdentity{})
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if snapshot.State != StateReady || snapshot.LinkToken != "link-second" {
		t.Fatalf("expected ready with second token, got %s %q", snapshot.State, snapshot.LinkToken)
	}

	close(release)
	select {
	case err := <-firstErr:
		if !errors.Is(err, ErrCycleSuperseded) {
			t.Fatalf("expected superseded first start, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first start did not return")
	}

	final := controller.Snapshot()
	if final.LinkToken != "link-second" || final.Cycle != 2 {
		t.Fatalf("expected second cycle to win, got token=%q cycle=%d", final.LinkToken, final.Cycle)
	}
}

func TestController_RepeatedRetrySupersedesInFlightRetry(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	service := &stubService{
		mode: core.CredentialModeLive,
		linkFn: func(call int) (core.LinkSession, error) {
			switch call {
			case 1:
				return core.LinkSession{}, core.ProviderUnavailableError(errors.New("timeout"), "provider unavailable", nil)
			case 2:
				close(entered)
				<-release
				return core.LinkSession{Token: "link-slow-retry"}, nil
			default:
				return core.LinkSession{Token: "link-last-retry"}, nil
			}
		},
	}
	controller := newTestController(t, service, WithSurface(&recordingSurface{}))
	controller.MarkSurfaceReady()
	if _, err := controller.Start(context.Background(), core.UserIdentity{}); err == nil {
		t.Fatalf("expected first start to fail")
	}

	firstRetry := make(chan error, 1)
	go func() {
		_, err := controller.Retry(context.Background(), core.UserIdentity{})
		firstRetry <- err
	}()
	<-entered

	snapshot, err := controller.Retry(context.Background(), core.UserIdentity{})
	if err != nil {
		t.Fatalf("second retry: %v", err)
	}
	if snapshot.State != StateReady || snapshot.LinkToken != "link-last-retry" {
		t.Fatalf("expected ready with last retry token, got %s %q", snapshot.State, snapshot.LinkToken)
	}

	close(release)
	select {
	case err := <-firstRetry:
		if !errors.Is(err, ErrCycleSuperseded) {
			t.Fatalf("expected first retry to be superseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first retry did not return")
	}
	if final := controller.Snapshot(); final.LinkToken != "link-last-retry" || final.State != StateReady {
		t.Fatalf("expected last retry to win, got %s %q", final.State, final.LinkToken)
	}
}

func TestController_StaleCallbacksAreDiscarded(t *testing.T) {
	service := &stubService{mode: core.CredentialModeLive}
	surface := &recordingSurface{}
	controller := newTestController(t, service, WithSurface(surface))
	controller.MarkSurfaceReady()
	if _, err := controller.Start(context.Background(), core.UserIdentity{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := controller.Link(context.Background()); err != nil {
		t.Fatalf("link: %v", err)
	}
	stale := surface.last()
	stale.OnExit(&SurfaceExit{Status: "user_cancelled"}, nil)

	if _, err := controller.Link(context.Background()); err != nil {
		t.Fatalf("relink: %v", err)
	}
	// Restarting from linking is not allowed, so force a new cycle through error.
	controller.mu.Lock()
	controller.transitionLocked(StateError, errors.New("forced"))
	controller.mu.Unlock()
	if _, err := controller.Retry(context.Background(), core.UserIdentity{}); err != nil {
		t.Fatalf("retry: %v", err)
	}

	stale.OnSuccess("public-stale", nil)

	if got := controller.State(); got != StateReady {
		t.Fatalf("expected stale success to be ignored, got %s", got)
	}
	if _, exchanges := service.counts(); exchanges != 0 {
		t.Fatalf("expected zero exchanges from stale callbacks, got %d", exchanges)
	}
}

func TestController_SubscribeUnsubscribe(t *testing.T) {
	controller := newTestController(t, &stubService{mode: core.CredentialModeSimulated})
	count := 0
	unsubscribe := controller.Subscribe(func(Transition) { count++ })
	if _, err := controller.Start(context.Background(), core.UserIdentity{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	unsubscribe()
	if _, err := controller.Link(context.Background()); err != nil {
		t.Fatalf("link: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 transitions before unsubscribe, got %d", count)
	}
}

func TestController_ExchangingOnlyEnteredFromLinking(t *testing.T) {
	for _, mode := range []core.CredentialMode{core.CredentialModeLive, core.CredentialModeSimulated} {
		rng := rand.New(rand.NewSource(42))
		service := &stubService{mode: mode}
		exchangeFailures := 0
		service.exchangeFn = func(publicCredential string) (core.ExchangeResult, error) {
			exchangeFailures++
			if exchangeFailures%3 == 0 {
				return core.ExchangeResult{}, core.ExchangeFailedError(core.ProviderErrorDetail{})
			}
			return core.ExchangeResult{AccessCredential: "access-" + publicCredential}, nil
		}
		surface := &recordingSurface{}
		controller := newTestController(t, service, WithSurface(surface))
		transitions := recordTransitions(controller)
		ctx := context.Background()

		for step := 0; step < 500; step++ {
			callbacks := surface.last()
			switch rng.Intn(7) {
			case 0:
				_, _ = controller.Start(ctx, core.UserIdentity{})
			case 1:
				controller.MarkSurfaceReady()
			case 2:
				_, _ = controller.Link(ctx)
			case 3:
				if callbacks.OnSuccess != nil {
					callbacks.OnSuccess("public-random", nil)
				}
			case 4:
				if callbacks.OnExit != nil {
					callbacks.OnExit(&SurfaceExit{Status: "exit"}, nil)
				}
			case 5:
				_, _ = controller.Retry(ctx, core.UserIdentity{})
			case 6:
				_, _ = controller.OnSuccess(ctx, uint64(rng.Intn(4)), "public-direct", nil)
			}
		}

		seen := transitions()
		if len(seen) == 0 {
			t.Fatalf("%s: expected transitions during random walk", mode)
		}
		for _, tr := range seen {
			if !CanTransition(tr.From, tr.To) {
				t.Fatalf("%s: illegal transition %s -> %s", mode, tr.From, tr.To)
			}
			if tr.To == StateExchanging && tr.From != StateLinking {
				t.Fatalf("%s: exchanging entered from %s", mode, tr.From)
			}
		}
	}
}
