package mavlink

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"groundlink/pkg/vehicle"
)

// CommandError is a command the autopilot acknowledged with a result other
// than MAV_RESULT_ACCEPTED.
type CommandError struct {
	Command common.MAV_CMD
	Result  common.MAV_RESULT
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%v rejected: %v", e.Command, e.Result)
}

func (e *CommandError) Unwrap() error {
	return vehicle.ErrCommandDenied
}

const repositionChangeMode = 1 // MAV_DO_REPOSITION_FLAGS_CHANGE_MODE

var nan = float32(math.NaN())

func (c *Client) Arm(ctx context.Context) error {
	return c.commandLong(ctx, common.MAV_CMD_COMPONENT_ARM_DISARM, [7]float32{1})
}

func (c *Client) Disarm(ctx context.Context) error {
	return c.commandLong(ctx, common.MAV_CMD_COMPONENT_ARM_DISARM, [7]float32{0})
}

// SetTakeoffAltitude writes MIS_TAKEOFF_ALT, which Takeoff climbs to.
func (c *Client) SetTakeoffAltitude(ctx context.Context, meters float64) error {
	return c.SetParamFloat(ctx, "MIS_TAKEOFF_ALT", meters)
}

// Takeoff climbs above the current position to MIS_TAKEOFF_ALT.
func (c *Client) Takeoff(ctx context.Context) error {
	return c.commandLong(ctx, common.MAV_CMD_NAV_TAKEOFF, [7]float32{-1, 0, 0, nan, nan, nan, nan})
}

// Land descends at the current position.
func (c *Client) Land(ctx context.Context) error {
	return c.commandLong(ctx, common.MAV_CMD_NAV_LAND, [7]float32{0, 0, 0, nan, nan, nan, nan})
}

// GotoLocation sends DO_REPOSITION. alt is relative to home.
func (c *Client) GotoLocation(ctx context.Context, lat, lon, alt, yawDeg float64) error {
	cmd := common.MAV_CMD_DO_REPOSITION
	return c.command(ctx, cmd, func(t endpoint, attempt int) message.Message {
		return &common.MessageCommandInt{
			TargetSystem:    t.system,
			TargetComponent: t.component,
			Frame:           common.MAV_FRAME_GLOBAL_RELATIVE_ALT,
			Command:         cmd,
			Param1:          -1, // default ground speed
			Param2:          repositionChangeMode,
			Param4:          float32(yawDeg),
			X:               int32(math.Round(lat * 1e7)),
			Y:               int32(math.Round(lon * 1e7)),
			Z:               float32(alt),
		}
	})
}

func (c *Client) commandLong(ctx context.Context, cmd common.MAV_CMD, p [7]float32) error {
	return c.command(ctx, cmd, func(t endpoint, attempt int) message.Message {
		return &common.MessageCommandLong{
			TargetSystem:    t.system,
			TargetComponent: t.component,
			Command:         cmd,
			Confirmation:    uint8(attempt),
			Param1:          p[0],
			Param2:          p[1],
			Param3:          p[2],
			Param4:          p[3],
			Param5:          p[4],
			Param6:          p[5],
			Param7:          p[6],
		}
	})
}

// command sends the message built for each attempt and waits for the
// matching COMMAND_ACK. Only one instance of a command may be in flight.
func (c *Client) command(ctx context.Context, cmd common.MAV_CMD, build func(t endpoint, attempt int) message.Message) error {
	target, err := c.targetFor()
	if err != nil {
		return err
	}

	ack := make(chan common.MAV_RESULT, 4)
	c.mu.Lock()
	if _, busy := c.acks[cmd]; busy {
		c.mu.Unlock()
		return fmt.Errorf("%v already in progress", cmd)
	}
	c.acks[cmd] = ack
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.acks, cmd)
		c.mu.Unlock()
	}()

	for attempt := 0; attempt <= c.cfg.CommandRetries; attempt++ {
		if err := c.write(build(target, attempt)); err != nil {
			return fmt.Errorf("send %v: %w", cmd, err)
		}
		res, err := awaitAck(ctx, ack, c.cfg.CommandTimeout)
		if errors.Is(err, ErrNoAck) {
			c.logger.Debug("Command not acknowledged, retrying", "command", cmd, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return err
		}
		if res != common.MAV_RESULT_ACCEPTED {
			return &CommandError{Command: cmd, Result: res}
		}
		return nil
	}
	return fmt.Errorf("%v: %w", cmd, ErrNoAck)
}

// awaitAck waits for a final result. IN_PROGRESS restarts the timeout.
func awaitAck(ctx context.Context, ack <-chan common.MAV_RESULT, timeout time.Duration) (common.MAV_RESULT, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
			return 0, ErrNoAck
		case res := <-ack:
			if res == common.MAV_RESULT_IN_PROGRESS {
				timer.Reset(timeout)
				continue
			}
			return res, nil
		}
	}
}
