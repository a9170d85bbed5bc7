package mavlink

import (
	"context"

	"groundlink/pkg/vehicle"
	"groundlink/pkg/vehicle/stream"
)

func subscribe[T any](c *Client, ctx context.Context, b *stream.Broadcaster[T]) (<-chan T, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return b.Subscribe(ctx), nil
}

func (c *Client) ConnectionState(ctx context.Context) (<-chan vehicle.ConnectionState, error) {
	return subscribe(c, ctx, c.conn)
}

func (c *Client) Health(ctx context.Context) (<-chan vehicle.Health, error) {
	return subscribe(c, ctx, c.healthB)
}

func (c *Client) Position(ctx context.Context) (<-chan vehicle.GlobalPosition, error) {
	return subscribe(c, ctx, c.pos)
}

func (c *Client) Attitude(ctx context.Context) (<-chan vehicle.EulerAngle, error) {
	return subscribe(c, ctx, c.att)
}

func (c *Client) VelocityNED(ctx context.Context) (<-chan vehicle.VelocityNED, error) {
	return subscribe(c, ctx, c.vel)
}

func (c *Client) Battery(ctx context.Context) (<-chan vehicle.Battery, error) {
	return subscribe(c, ctx, c.bat)
}

func (c *Client) FlightMode(ctx context.Context) (<-chan vehicle.AutopilotMode, error) {
	return subscribe(c, ctx, c.mode)
}

func (c *Client) Armed(ctx context.Context) (<-chan bool, error) {
	return subscribe(c, ctx, c.armed)
}

func (c *Client) InAir(ctx context.Context) (<-chan bool, error) {
	return subscribe(c, ctx, c.inAir)
}

var _ vehicle.Transport = (*Client)(nil)
