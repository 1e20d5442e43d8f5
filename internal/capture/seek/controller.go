// Package seek positions a media source at a target timestamp with a
// bounded wait and best-effort fallback.
package seek

import (
	"time"

	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/util"
)

// DefaultEpsilon is the slack within which a position counts as on target.
const DefaultEpsilon = 100 * time.Millisecond

// DefaultTimeout bounds the wait for a seek confirmation.
const DefaultTimeout = 2 * time.Second

// Controller issues position changes one at a time. The source decoder
// supports only one pending move, so callers must not overlap SeekTo calls
// on the same source.
type Controller struct {
	Epsilon time.Duration
}

// New returns a controller with the default epsilon.
func New() *Controller {
	return &Controller{Epsilon: DefaultEpsilon}
}

// SeekTo moves src to target and waits up to timeout for the position to be
// confirmed. It reports whether the position is settled; when the source is
// already within epsilon of target the move is issued without waiting for
// confirmation, so short sequential steps do not pay the round trip. On
// timeout it logs and returns false, and the caller proceeds with a
// best-effort position. The timeout is advisory only and never fails the
// caller.
func (c *Controller) SeekTo(src core.Source, target, timeout time.Duration) bool {
	eps := c.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	near := within(src.Position(), target, eps)
	src.SetPosition(target)
	if near {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case pos := <-src.Seeked():
			if within(pos, target, eps) {
				return true
			}
			// Confirmation for an earlier move; keep waiting.
			util.GetLogger().Debug("Ignoring stale seek confirmation", "pos", pos, "target", target)
		case <-timer.C:
			util.GetLogger().Warn("Seek confirmation timed out, proceeding", "target", target, "timeout", timeout)
			return false
		}
	}
}

func within(a, b, eps time.Duration) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}
