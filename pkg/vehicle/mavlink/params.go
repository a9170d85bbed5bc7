package mavlink

import (
	"context"
	"fmt"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

const maxParamIDLen = 16

// GetParamFloat reads a REAL32 parameter.
func (c *Client) GetParamFloat(ctx context.Context, name string) (float64, error) {
	v, err := c.paramExchange(ctx, name, func(t endpoint) message.Message {
		return &common.MessageParamRequestRead{
			TargetSystem:    t.system,
			TargetComponent: t.component,
			ParamId:         name,
			ParamIndex:      -1,
		}
	})
	if err != nil {
		return 0, err
	}
	return float64(v), nil
}

// SetParamFloat writes a REAL32 parameter and checks the echoed value.
func (c *Client) SetParamFloat(ctx context.Context, name string, value float64) error {
	want := float32(value)
	got, err := c.paramExchange(ctx, name, func(t endpoint) message.Message {
		return &common.MessageParamSet{
			TargetSystem:    t.system,
			TargetComponent: t.component,
			ParamId:         name,
			ParamValue:      want,
			ParamType:       common.MAV_PARAM_TYPE_REAL32,
		}
	})
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("param %s: vehicle kept %v instead of %v", name, got, want)
	}
	return nil
}

// paramExchange sends a request and waits for the PARAM_VALUE of name.
func (c *Client) paramExchange(ctx context.Context, name string, build func(t endpoint) message.Message) (float32, error) {
	if name == "" || len(name) > maxParamIDLen {
		return 0, fmt.Errorf("invalid parameter name %q", name)
	}
	target, err := c.targetFor()
	if err != nil {
		return 0, err
	}

	ch := make(chan float32, 1)
	c.mu.Lock()
	c.params[name] = append(c.params[name], ch)
	c.mu.Unlock()
	defer c.dropParamWaiter(name, ch)

	for attempt := 0; attempt <= c.cfg.CommandRetries; attempt++ {
		if err := c.write(build(target)); err != nil {
			return 0, fmt.Errorf("param %s: %w", name, err)
		}
		timer := time.NewTimer(c.cfg.ParamTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case v := <-ch:
			timer.Stop()
			return v, nil
		case <-timer.C:
			c.logger.Debug("Parameter not answered, retrying", "param", name, "attempt", attempt+1)
		}
	}
	return 0, fmt.Errorf("param %s: %w", name, ErrNoAck)
}

func (c *Client) dropParamWaiter(name string, ch chan float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.params[name]
	for i, w := range waiters {
		if w == ch {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(c.params, name)
		return
	}
	c.params[name] = waiters
}
