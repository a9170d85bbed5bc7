package vehicle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"groundlink/pkg/backoff"
	"groundlink/pkg/tracker"
)

// Options configures a Link. Zero fields take the defaults.
type Options struct {
	CallTimeout         time.Duration
	StopTimeout         time.Duration
	NotifyInterval      time.Duration
	HorizontalTolerance float64
	VerticalTolerance   float64
	ReconnectBaseDelay  time.Duration
	ReconnectMaxDelay   time.Duration
	Tracker             *tracker.Tracker
	Journal             Journal
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		CallTimeout:         10 * time.Second,
		StopTimeout:         5 * time.Second,
		NotifyInterval:      500 * time.Millisecond,
		HorizontalTolerance: DefaultHorizontalTolerance,
		VerticalTolerance:   DefaultVerticalTolerance,
		ReconnectBaseDelay:  1 * time.Second,
		ReconnectMaxDelay:   30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = d.StopTimeout
	}
	if o.NotifyInterval <= 0 {
		o.NotifyInterval = d.NotifyInterval
	}
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if o.ReconnectMaxDelay <= 0 {
		o.ReconnectMaxDelay = d.ReconnectMaxDelay
	}
	if o.Tracker == nil {
		o.Tracker = tracker.New()
	}
	return o
}

// Link is the vehicle link: it owns the transport, the status store, the
// commander, the parameter gateway and the waypoint navigator, and runs
// telemetry ingestion in a background context between Start and Stop.
type Link struct {
	transport Transport
	opts      Options
	store     *StatusStore
	commander *Commander
	params    *Gateway
	nav       *Navigator
	tracker   *tracker.Tracker
	backoff   *backoff.Policy
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	session string
	tasks   *sync.WaitGroup // per run

	notifier *notifier
}

// New builds a stopped Link over t.
func New(t Transport, opts Options) *Link {
	opts = opts.withDefaults()
	l := &Link{
		transport: t,
		opts:      opts,
		store:     NewStatusStore(),
		nav:       NewNavigator(opts.HorizontalTolerance, opts.VerticalTolerance),
		tracker:   opts.Tracker,
		backoff:   backoff.New(opts.ReconnectBaseDelay, opts.ReconnectMaxDelay),
		logger:    slog.Default().With("component", "link"),
		notifier:  newNotifier(),
	}
	l.commander = NewCommander(t, opts.Tracker, opts.Journal, l.SessionID)
	l.params = NewGateway(t, opts.Tracker)
	return l
}

// Start launches the background context. It returns immediately; the
// connection is established in the background.
func (l *Link) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.ctx = ctx
	l.cancel = cancel
	l.done = make(chan struct{})
	l.tasks = &sync.WaitGroup{}
	l.session = uuid.NewString()
	l.running = true

	l.logger.Info("Starting vehicle link", "session", l.session)
	go l.run(ctx, l.done)
	return nil
}

// Stop cancels the background context and waits up to StopTimeout for it
// to wind down. A context that does not finish in time is abandoned.
func (l *Link) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel, done, tasks, session := l.cancel, l.done, l.tasks, l.session
	l.mu.Unlock()

	cancel()

	finished := make(chan struct{})
	go func() {
		<-done
		tasks.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		l.logger.Info("Vehicle link stopped", "session", session)
	case <-time.After(l.opts.StopTimeout):
		l.logger.Warn("Vehicle link did not stop in time, abandoning", "session", session, "timeout", l.opts.StopTimeout)
	}

	l.store.Update(func(s *Status) { s.Heartbeat = false })
}

// Running reports whether the background context is live.
func (l *Link) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// SessionID identifies the current Start..Stop span.
func (l *Link) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

func (l *Link) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.notifier.run(ctx, l.opts.NotifyInterval)
	})
	g.Go(func() error {
		if !l.connect(ctx) {
			return nil
		}
		for _, sub := range l.subscriptions() {
			g.Go(func() error { return l.supervise(ctx, sub) })
		}
		g.Go(func() error {
			return l.nav.Run(ctx, l.commander.GotoLocation, l.backoff)
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		l.logger.Error("Vehicle link terminated", "error", err)
	}
}

// connect opens the transport, retrying with backoff, then waits for the
// vehicle to report connected.
func (l *Link) connect(ctx context.Context) bool {
	const key = "connect"
	for {
		err := l.commander.open(ctx)
		if err == nil {
			l.backoff.RecordSuccess(key)
			break
		}
		if ctx.Err() != nil {
			return false
		}
		delay := l.backoff.RecordFailure(key)
		l.tracker.TrackFailure(key)
		l.logger.Warn("Failed to open link, retrying", "error", err, "retry_in", delay)
		if l.backoff.Wait(ctx, key) != nil {
			return false
		}
	}

	l.logger.Info("Waiting for vehicle heartbeat")
	for !l.commander.awaitConnected(ctx) {
		if ctx.Err() != nil {
			return false
		}
		delay := l.backoff.RecordFailure(key)
		l.logger.Warn("Connection state stream ended, retrying", "retry_in", delay)
		if l.backoff.Wait(ctx, key) != nil {
			return false
		}
	}
	l.backoff.RecordSuccess(key)
	l.tracker.TrackSuccess(key)

	l.store.Update(func(s *Status) { s.Heartbeat = true })
	l.logger.Info("Vehicle connected", "session", l.SessionID())
	return true
}

// Subscribe returns a channel that receives a tick on every notifier
// interval while the link runs, and a func to unsubscribe.
func (l *Link) Subscribe() (<-chan struct{}, func()) {
	return l.notifier.subscribe()
}

// Status returns a copy of the current vehicle status.
func (l *Link) Status() Status {
	return l.store.Get()
}

// Waypoints returns the pending waypoints in visit order.
func (l *Link) Waypoints() []Position {
	return l.nav.Waypoints()
}

// Navigator exposes the waypoint navigator.
func (l *Link) Navigator() *Navigator {
	return l.nav
}

// Tracker exposes the outcome counters.
func (l *Link) Tracker() *tracker.Tracker {
	return l.tracker
}
