package api

import (
	"context"
	"sync"

	"groundlink/pkg/store"
	"groundlink/pkg/vehicle"
)

type fakeLink struct {
	mu        sync.Mutex
	running   bool
	status    vehicle.Status
	wps       []vehicle.Position
	outcome   bool
	calls     []string
	takeoff   float64
	target    vehicle.Position
	pid       vehicle.PIDParameters
	submitted map[vehicle.Axis]vehicle.PIDGains
	changes   chan struct{}
	unsubbed  chan struct{}
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		running:  true,
		outcome:  true,
		pid:      vehicle.ZeroPIDParameters(),
		changes:  make(chan struct{}, 1),
		unsubbed: make(chan struct{}, 4),
	}
}

func (f *fakeLink) record(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.outcome
}

func (f *fakeLink) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeLink) Running() bool          { return f.running }
func (f *fakeLink) SessionID() string      { return "session-1" }
func (f *fakeLink) Status() vehicle.Status { return f.status }

func (f *fakeLink) Waypoints() []vehicle.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vehicle.Position(nil), f.wps...)
}

func (f *fakeLink) Subscribe() (<-chan struct{}, func()) {
	return f.changes, func() { f.unsubbed <- struct{}{} }
}

func (f *fakeLink) Arm() bool            { return f.record("arm") }
func (f *fakeLink) Disarm() bool         { return f.record("disarm") }
func (f *fakeLink) Land() bool           { return f.record("land") }
func (f *fakeLink) PreflightCheck() bool { return f.record("preflight") }

func (f *fakeLink) Takeoff(altitude float64) bool {
	f.mu.Lock()
	f.takeoff = altitude
	f.mu.Unlock()
	return f.record("takeoff")
}

func (f *fakeLink) Goto(p vehicle.Position) bool {
	f.mu.Lock()
	f.target = p
	f.mu.Unlock()
	return f.record("goto")
}

func (f *fakeLink) AddWaypoint(p vehicle.Position) bool {
	if !f.record("add_waypoint") {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wps = append(f.wps, p)
	return true
}

func (f *fakeLink) RemoveWaypoint(index int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.wps) {
		return false
	}
	f.wps = append(f.wps[:index], f.wps[index+1:]...)
	return true
}

func (f *fakeLink) AllPIDParameters() vehicle.PIDParameters { return f.pid }

func (f *fakeLink) Tuner(loop vehicle.Loop) (vehicle.Tuner, bool) {
	if vehicle.Axes(loop) == nil {
		return nil, false
	}
	return fakeTuner{link: f, loop: loop}, true
}

type fakeTuner struct {
	link *fakeLink
	loop vehicle.Loop
}

func (t fakeTuner) Loop() vehicle.Loop                      { return t.loop }
func (t fakeTuner) Axes() []vehicle.Axis                    { return vehicle.Axes(t.loop) }
func (t fakeTuner) Read() map[vehicle.Axis]vehicle.PIDGains { return t.link.pid[t.loop] }

func (t fakeTuner) Submit(gains map[vehicle.Axis]vehicle.PIDGains) bool {
	t.link.mu.Lock()
	t.link.submitted = gains
	t.link.mu.Unlock()
	return t.link.record("set_" + string(t.loop))
}

type mockStore struct {
	mu     sync.Mutex
	state  map[string]string
	events []store.CommandEvent
	err    error
}

func (m *mockStore) GetState(ctx context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.state[key]
	return val, ok
}

func (m *mockStore) SetState(ctx context.Context, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.state = make(map[string]string)
	}
	m.state[key] = val
	return nil
}

func (m *mockStore) DeleteState(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, key)
	return nil
}

func (m *mockStore) ListState(ctx context.Context, prefix string) (map[string]string, error) {
	return nil, nil
}

func (m *mockStore) RecentEvents(ctx context.Context, limit int) ([]store.CommandEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.events) {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *mockStore) RecordEvent(ctx context.Context, ev *store.CommandEvent) error {
	m.events = append(m.events, *ev)
	return nil
}
