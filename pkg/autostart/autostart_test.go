package autostart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundlink/pkg/vehicle"
)

type fakeVehicle struct {
	mu         sync.Mutex
	status     vehicle.Status
	armOK      bool
	armsOnArm  bool
	takeoffOK  bool
	arms       int
	takeoffs   []float64
	armedEarly bool // Arm called while heartbeat was false
}

func (f *fakeVehicle) Status() vehicle.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeVehicle) Arm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arms++
	if !f.status.Heartbeat {
		f.armedEarly = true
	}
	if f.armOK && f.armsOnArm {
		f.status.Armed = true
	}
	return f.armOK
}

func (f *fakeVehicle) Takeoff(alt float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.takeoffs = append(f.takeoffs, alt)
	return f.takeoffOK
}

func (f *fakeVehicle) set(fn func(*vehicle.Status)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.status)
}

func fastConfig() Config {
	return Config{TakeoffAltitude: 7, HeartbeatPoll: 5 * time.Millisecond, ArmedPoll: 5 * time.Millisecond}
}

func TestSequencer_FullSequence(t *testing.T) {
	v := &fakeVehicle{armOK: true, armsOnArm: true, takeoffOK: true}
	v.set(func(s *vehicle.Status) { s.Heartbeat = true })

	require.NoError(t, New(v, fastConfig()).Run(context.Background()))
	assert.Equal(t, 1, v.arms)
	assert.Equal(t, []float64{7}, v.takeoffs)
}

func TestSequencer_WaitsForHeartbeat(t *testing.T) {
	v := &fakeVehicle{armOK: true, armsOnArm: true, takeoffOK: true}
	done := make(chan error, 1)
	go func() { done <- New(v, fastConfig()).Run(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	v.mu.Lock()
	assert.Zero(t, v.arms, "no arm before heartbeat")
	v.mu.Unlock()

	v.set(func(s *vehicle.Status) { s.Heartbeat = true })
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sequence did not finish")
	}
	assert.False(t, v.armedEarly)
}

func TestSequencer_NoHeartbeatNeverArms(t *testing.T) {
	v := &fakeVehicle{armOK: true}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := New(v, fastConfig()).Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, v.arms)
	assert.Empty(t, v.takeoffs)
}

func TestSequencer_ArmRefused(t *testing.T) {
	v := &fakeVehicle{takeoffOK: true}
	v.set(func(s *vehicle.Status) { s.Heartbeat = true })

	err := New(v, fastConfig()).Run(context.Background())

	assert.ErrorIs(t, err, ErrArmRefused)
	assert.Empty(t, v.takeoffs)
}

func TestSequencer_ArmedTimeout(t *testing.T) {
	v := &fakeVehicle{armOK: true, takeoffOK: true}
	v.set(func(s *vehicle.Status) { s.Heartbeat = true })
	cfg := fastConfig()
	cfg.ArmedTimeout = 30 * time.Millisecond

	err := New(v, cfg).Run(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, v.takeoffs)
}

func TestSequencer_TakeoffRefused(t *testing.T) {
	v := &fakeVehicle{armOK: true, armsOnArm: true}
	v.set(func(s *vehicle.Status) { s.Heartbeat = true })

	assert.ErrorIs(t, New(v, fastConfig()).Run(context.Background()), ErrTakeoffRefused)
}

func TestNew_Defaults(t *testing.T) {
	s := New(&fakeVehicle{}, Config{})
	assert.Equal(t, 5.0, s.cfg.TakeoffAltitude)
	assert.Equal(t, 2*time.Second, s.cfg.HeartbeatPoll)
	assert.Equal(t, time.Second, s.cfg.ArmedPoll)
}
