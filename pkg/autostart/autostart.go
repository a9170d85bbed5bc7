// Package autostart brings a connected vehicle into the air without an
// operator: wait for heartbeat, arm, wait for armed, take off.
package autostart

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"groundlink/pkg/vehicle"
)

// Vehicle is the part of the link the sequencer drives.
type Vehicle interface {
	Status() vehicle.Status
	Arm() bool
	Takeoff(altitude float64) bool
}

// ErrArmRefused is returned when the vehicle would not arm.
var ErrArmRefused = errors.New("autostart: arm refused")

// ErrTakeoffRefused is returned when the takeoff command fails.
var ErrTakeoffRefused = errors.New("autostart: takeoff refused")

// Config holds the sequencer timings.
type Config struct {
	TakeoffAltitude float64
	HeartbeatPoll   time.Duration
	ArmedPoll       time.Duration
	ArmedTimeout    time.Duration // 0 waits forever
}

// Sequencer runs the autostart sequence once.
type Sequencer struct {
	v      Vehicle
	cfg    Config
	logger *slog.Logger
}

// New creates a Sequencer. Zero timings take their defaults.
func New(v Vehicle, cfg Config) *Sequencer {
	if cfg.TakeoffAltitude <= 0 {
		cfg.TakeoffAltitude = 5
	}
	if cfg.HeartbeatPoll <= 0 {
		cfg.HeartbeatPoll = 2 * time.Second
	}
	if cfg.ArmedPoll <= 0 {
		cfg.ArmedPoll = time.Second
	}
	return &Sequencer{v: v, cfg: cfg, logger: slog.Default().With("component", "autostart")}
}

// Run blocks until the vehicle took off, a step failed or ctx is done.
// Arm is never issued before the heartbeat is seen.
func (s *Sequencer) Run(ctx context.Context) error {
	s.logger.Info("Autostart waiting for heartbeat")
	if err := s.poll(ctx, s.cfg.HeartbeatPoll, 0, func(st vehicle.Status) bool { return st.Heartbeat }); err != nil {
		return err
	}

	s.logger.Info("Autostart arming")
	if !s.v.Arm() {
		return ErrArmRefused
	}

	if err := s.poll(ctx, s.cfg.ArmedPoll, s.cfg.ArmedTimeout, func(st vehicle.Status) bool { return st.Armed }); err != nil {
		return err
	}

	s.logger.Info("Autostart taking off", "altitude", s.cfg.TakeoffAltitude)
	if !s.v.Takeoff(s.cfg.TakeoffAltitude) {
		return ErrTakeoffRefused
	}
	s.logger.Info("Autostart complete")
	return nil
}

// poll checks cond immediately and then every interval.
func (s *Sequencer) poll(ctx context.Context, interval, timeout time.Duration, cond func(vehicle.Status) bool) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if cond(s.v.Status()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
