package vehicle

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"groundlink/pkg/store"
	"groundlink/pkg/vehicle/stream"
)

var errRejected = errors.New("command denied")

// fakeTransport is a scripted Transport. Tests publish samples through the
// broadcasters and inspect recorded calls.
type fakeTransport struct {
	conn   *stream.Broadcaster[ConnectionState]
	health *stream.Broadcaster[Health]
	pos    *stream.Broadcaster[GlobalPosition]
	att    *stream.Broadcaster[EulerAngle]
	vel    *stream.Broadcaster[VelocityNED]
	bat    *stream.Broadcaster[Battery]
	mode   *stream.Broadcaster[AutopilotMode]
	armed  *stream.Broadcaster[bool]
	inAir  *stream.Broadcaster[bool]

	mu           sync.Mutex
	connectErrs  []error // consumed one per Connect call
	calls        []string
	gotos        []Position
	actionErr    map[string]error
	params       map[string]float64
	paramErr     map[string]error
	paramDelay   map[string]time.Duration // honours ctx
	subscribeErr map[string]int // fail this many subscribe calls per stream
	panicOn      map[string]bool
	blockActions bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		conn:         stream.New[ConnectionState](8),
		health:       stream.New[Health](8),
		pos:          stream.New[GlobalPosition](64),
		att:          stream.New[EulerAngle](64),
		vel:          stream.New[VelocityNED](64),
		bat:          stream.New[Battery](64),
		mode:         stream.New[AutopilotMode](8),
		armed:        stream.New[bool](8),
		inAir:        stream.New[bool](8),
		actionErr:    make(map[string]error),
		params:       make(map[string]float64),
		paramErr:     make(map[string]error),
		paramDelay:   make(map[string]time.Duration),
		subscribeErr: make(map[string]int),
		panicOn:      make(map[string]bool),
	}
}

// ready publishes a connected, armable, grounded vehicle.
func (f *fakeTransport) ready() *fakeTransport {
	f.conn.Publish(ConnectionState{IsConnected: true})
	f.health.Publish(Health{IsArmable: true, IsGlobalPositionOK: true, IsHomePositionOK: true})
	f.inAir.Publish(false)
	return f
}

func (f *fakeTransport) record(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	err := f.actionErr[name]
	panicking := f.panicOn[name]
	f.mu.Unlock()
	if panicking {
		panic(name + " exploded")
	}
	return err
}

func (f *fakeTransport) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeTransport) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) gotoLog() []Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Position(nil), f.gotos...)
}

func subscribeTo[T any](f *fakeTransport, name string, b *stream.Broadcaster[T], ctx context.Context) (<-chan T, error) {
	f.mu.Lock()
	if f.subscribeErr[name] > 0 {
		f.subscribeErr[name]--
		f.mu.Unlock()
		return nil, errors.New(name + " unavailable")
	}
	f.mu.Unlock()
	return b.Subscribe(ctx), nil
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "connect")
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeTransport) ConnectionState(ctx context.Context) (<-chan ConnectionState, error) {
	return subscribeTo(f, "connection", f.conn, ctx)
}

func (f *fakeTransport) Health(ctx context.Context) (<-chan Health, error) {
	return subscribeTo(f, "health", f.health, ctx)
}

func (f *fakeTransport) Position(ctx context.Context) (<-chan GlobalPosition, error) {
	return subscribeTo(f, "position", f.pos, ctx)
}

func (f *fakeTransport) Attitude(ctx context.Context) (<-chan EulerAngle, error) {
	f.mu.Lock()
	p := f.panicOn["attitude"]
	f.mu.Unlock()
	if p {
		panic("attitude decoder exploded")
	}
	return subscribeTo(f, "attitude", f.att, ctx)
}

func (f *fakeTransport) VelocityNED(ctx context.Context) (<-chan VelocityNED, error) {
	return subscribeTo(f, "velocity", f.vel, ctx)
}

func (f *fakeTransport) Battery(ctx context.Context) (<-chan Battery, error) {
	return subscribeTo(f, "battery", f.bat, ctx)
}

func (f *fakeTransport) FlightMode(ctx context.Context) (<-chan AutopilotMode, error) {
	return subscribeTo(f, "flight_mode", f.mode, ctx)
}

func (f *fakeTransport) Armed(ctx context.Context) (<-chan bool, error) {
	return subscribeTo(f, "armed", f.armed, ctx)
}

func (f *fakeTransport) InAir(ctx context.Context) (<-chan bool, error) {
	return subscribeTo(f, "in_air", f.inAir, ctx)
}

func (f *fakeTransport) action(ctx context.Context, name string) error {
	f.mu.Lock()
	block := f.blockActions
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.record(name)
}

func (f *fakeTransport) Arm(ctx context.Context) error    { return f.action(ctx, "arm") }
func (f *fakeTransport) Disarm(ctx context.Context) error { return f.action(ctx, "disarm") }
func (f *fakeTransport) Takeoff(ctx context.Context) error {
	return f.action(ctx, "takeoff")
}
func (f *fakeTransport) Land(ctx context.Context) error { return f.action(ctx, "land") }

func (f *fakeTransport) SetTakeoffAltitude(ctx context.Context, meters float64) error {
	f.mu.Lock()
	f.params["MIS_TAKEOFF_ALT"] = meters
	f.mu.Unlock()
	return f.action(ctx, "set_takeoff_altitude")
}

func (f *fakeTransport) GotoLocation(ctx context.Context, lat, lon, alt, yawDeg float64) error {
	if err := f.action(ctx, "goto"); err != nil {
		return err
	}
	f.mu.Lock()
	f.gotos = append(f.gotos, Position{Latitude: lat, Longitude: lon, Altitude: alt})
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) paramWait(ctx context.Context, name string) error {
	f.mu.Lock()
	d := f.paramDelay[name]
	f.mu.Unlock()
	if d == 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) GetParamFloat(ctx context.Context, name string) (float64, error) {
	if err := f.paramWait(ctx, name); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get:"+name)
	if err := f.paramErr[name]; err != nil {
		return 0, err
	}
	v, ok := f.params[name]
	if !ok {
		return 0, errors.New("unknown parameter " + name)
	}
	return v, nil
}

func (f *fakeTransport) SetParamFloat(ctx context.Context, name string, value float64) error {
	if err := f.paramWait(ctx, name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "set:"+name)
	if err := f.paramErr[name]; err != nil {
		return err
	}
	f.params[name] = value
	return nil
}

func (f *fakeTransport) Close() error {
	f.conn.Close()
	f.health.Close()
	f.pos.Close()
	f.att.Close()
	f.vel.Close()
	f.bat.Close()
	f.mode.Close()
	f.armed.Close()
	f.inAir.Close()
	return nil
}

// memJournal records command events in memory.
type memJournal struct {
	mu     sync.Mutex
	events []store.CommandEvent
}

func (j *memJournal) RecordEvent(ctx context.Context, ev *store.CommandEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, *ev)
	return nil
}

func (j *memJournal) list() []store.CommandEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]store.CommandEvent(nil), j.events...)
}

func testOptions() Options {
	o := DefaultOptions()
	o.CallTimeout = time.Second
	o.StopTimeout = time.Second
	o.NotifyInterval = 20 * time.Millisecond
	o.ReconnectBaseDelay = 5 * time.Millisecond
	o.ReconnectMaxDelay = 20 * time.Millisecond
	return o
}

// startLink starts a link over f and stops it when the test ends.
func startLink(t *testing.T, f *fakeTransport, opts Options) *Link {
	t.Helper()
	l := New(f, opts)
	if err := l.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(l.Stop)
	return l
}

func nan() float64 { return math.NaN() }
