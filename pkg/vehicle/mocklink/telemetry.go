package mocklink

import (
	"context"

	"groundlink/pkg/vehicle"
	"groundlink/pkg/vehicle/stream"
)

func subscribe[T any](m *Client, ctx context.Context, b *stream.Broadcaster[T]) (<-chan T, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return b.Subscribe(ctx), nil
}

func (m *Client) ConnectionState(ctx context.Context) (<-chan vehicle.ConnectionState, error) {
	return subscribe(m, ctx, m.conn)
}

func (m *Client) Health(ctx context.Context) (<-chan vehicle.Health, error) {
	return subscribe(m, ctx, m.health)
}

func (m *Client) Position(ctx context.Context) (<-chan vehicle.GlobalPosition, error) {
	return subscribe(m, ctx, m.posB)
}

func (m *Client) Attitude(ctx context.Context) (<-chan vehicle.EulerAngle, error) {
	return subscribe(m, ctx, m.att)
}

func (m *Client) VelocityNED(ctx context.Context) (<-chan vehicle.VelocityNED, error) {
	return subscribe(m, ctx, m.velB)
}

func (m *Client) Battery(ctx context.Context) (<-chan vehicle.Battery, error) {
	return subscribe(m, ctx, m.bat)
}

func (m *Client) FlightMode(ctx context.Context) (<-chan vehicle.AutopilotMode, error) {
	return subscribe(m, ctx, m.modeB)
}

func (m *Client) Armed(ctx context.Context) (<-chan bool, error) {
	return subscribe(m, ctx, m.armedB)
}

func (m *Client) InAir(ctx context.Context) (<-chan bool, error) {
	return subscribe(m, ctx, m.inAir)
}

var _ vehicle.Transport = (*Client)(nil)
