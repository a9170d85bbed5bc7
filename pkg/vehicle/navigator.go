package vehicle

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"groundlink/pkg/backoff"
	"groundlink/pkg/geo"
)

// Default arrival thresholds in meters.
const (
	DefaultHorizontalTolerance = 1.0
	DefaultVerticalTolerance   = 1.0
)

// Arrived reports whether cur is within the horizontal and vertical
// tolerances of target. Both distances must be strictly below tolerance.
func Arrived(cur, target Position, hTol, vTol float64) bool {
	h := geo.Distance(
		geo.Point{Lat: cur.Latitude, Lon: cur.Longitude},
		geo.Point{Lat: target.Latitude, Lon: target.Longitude},
	)
	v := math.Abs(cur.Altitude - target.Altitude)
	return h < hTol && v < vTol
}

type waypoint struct {
	id  uint64
	pos Position
}

// Navigator owns the FIFO waypoint queue. The head is always the active
// target. Goto commands are issued by the dispatcher started from Run, never
// while the queue lock is held.
type Navigator struct {
	mu     sync.Mutex
	queue  []waypoint
	nextID uint64
	hTol   float64
	vTol   float64

	wake   chan struct{}
	logger *slog.Logger
}

// NewNavigator creates an idle navigator. Non-positive tolerances fall back
// to the defaults.
func NewNavigator(hTol, vTol float64) *Navigator {
	n := &Navigator{
		wake:   make(chan struct{}, 1),
		logger: slog.Default().With("component", "navigator"),
	}
	n.SetTolerances(hTol, vTol)
	return n
}

// SetTolerances changes the arrival thresholds.
func (n *Navigator) SetTolerances(hTol, vTol float64) {
	if hTol <= 0 {
		hTol = DefaultHorizontalTolerance
	}
	if vTol <= 0 {
		vTol = DefaultVerticalTolerance
	}
	n.mu.Lock()
	n.hTol, n.vTol = hTol, vTol
	n.mu.Unlock()
}

// Tolerances returns the horizontal and vertical arrival thresholds.
func (n *Navigator) Tolerances() (hTol, vTol float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hTol, n.vTol
}

// AddWaypointToEnd appends p. If the queue was empty the vehicle is sent to p.
func (n *Navigator) AddWaypointToEnd(p Position) {
	n.mu.Lock()
	n.nextID++
	n.queue = append(n.queue, waypoint{id: n.nextID, pos: p})
	wasIdle := len(n.queue) == 1
	n.mu.Unlock()

	n.logger.Info("Waypoint added", "lat", p.Latitude, "lon", p.Longitude, "alt", p.Altitude, "queued", n.Len())
	if wasIdle {
		n.signal()
	}
}

// RemoveWaypoint removes the entry at index. Removing the head retargets
// the vehicle to the new head.
func (n *Navigator) RemoveWaypoint(index int) bool {
	n.mu.Lock()
	if index < 0 || index >= len(n.queue) {
		n.mu.Unlock()
		return false
	}
	n.queue = append(n.queue[:index], n.queue[index+1:]...)
	remaining := len(n.queue)
	n.mu.Unlock()

	n.logger.Info("Waypoint removed", "index", index, "queued", remaining)
	if index == 0 {
		n.signal()
	}
	return true
}

// Clear drops every waypoint.
func (n *Navigator) Clear() {
	n.mu.Lock()
	n.queue = nil
	n.mu.Unlock()
	n.signal()
}

// Waypoints returns the queue in visit order.
func (n *Navigator) Waypoints() []Position {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Position, len(n.queue))
	for i, wp := range n.queue {
		out[i] = wp.pos
	}
	return out
}

// Len returns the number of queued waypoints.
func (n *Navigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// OnPosition checks arrival at the head waypoint and pops it on arrival.
// It reports whether a waypoint was reached.
func (n *Navigator) OnPosition(cur Position) bool {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.mu.Unlock()
		return false
	}
	head := n.queue[0]
	if !Arrived(cur, head.pos, n.hTol, n.vTol) {
		n.mu.Unlock()
		return false
	}
	n.queue = n.queue[1:]
	remaining := len(n.queue)
	n.mu.Unlock()

	n.logger.Info("Waypoint reached", "lat", head.pos.Latitude, "lon", head.pos.Longitude, "alt", head.pos.Altitude, "remaining", remaining)
	n.signal()
	return true
}

func (n *Navigator) head() (waypoint, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.queue) == 0 {
		return waypoint{}, false
	}
	return n.queue[0], true
}

func (n *Navigator) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Run dispatches goto commands until ctx is done. Each head entry is sent
// exactly once on success; failed sends are retried with backoff as long as
// the entry is still the head.
func (n *Navigator) Run(ctx context.Context, gotoFn func(context.Context, Position) bool, retry *backoff.Policy) error {
	const key = "goto"
	var issued uint64

	// Waypoints queued before the link came up
	n.signal()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-n.wake:
		}

		for {
			h, ok := n.head()
			if !ok {
				if issued != 0 {
					n.logger.Info("Mission complete, navigator idle")
				}
				issued = 0
				break
			}
			if h.id == issued {
				break
			}
			if gotoFn(ctx, h.pos) {
				issued = h.id
				retry.RecordSuccess(key)
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			delay := retry.RecordFailure(key)
			n.logger.Warn("Goto failed, retrying", "retry_in", delay)
			if err := retry.Wait(ctx, key); err != nil {
				return nil
			}
		}
	}
}
