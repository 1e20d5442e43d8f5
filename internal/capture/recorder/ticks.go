package recorder

import (
	"sync"
	"time"

	"github.com/babelcloud/vidcap/internal/capture/core"
	"github.com/babelcloud/vidcap/internal/util"
)

// TickSource paces the recording loop, one tick per frame opportunity.
type TickSource interface {
	C() <-chan core.FrameTick
	Stop()
}

// notifierTicks adapts a source that announces decoded frames itself.
type notifierTicks struct {
	ch <-chan core.FrameTick
}

func (n *notifierTicks) C() <-chan core.FrameTick { return n.ch }

func (n *notifierTicks) Stop() {}

// pollTicks paces recording off a wall-clock ticker for sources that
// cannot announce frames. Ticks carry the position read at poll time, so
// pacing drifts with the scheduler; consumers treat it as best effort.
type pollTicks struct {
	src      core.Source
	ticker   *time.Ticker
	out      chan core.FrameTick
	stop     chan struct{}
	stopOnce sync.Once
}

func newPollTicks(src core.Source, interval time.Duration) *pollTicks {
	p := &pollTicks{
		src:    src,
		ticker: time.NewTicker(interval),
		out:    make(chan core.FrameTick, 1),
		stop:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *pollTicks) run() {
	for {
		select {
		case <-p.stop:
			return
		case at := <-p.ticker.C:
			tick := core.FrameTick{Position: p.src.Position(), At: at}
			select {
			case p.out <- tick:
			default:
			}
		}
	}
}

func (p *pollTicks) C() <-chan core.FrameTick { return p.out }

func (p *pollTicks) Stop() {
	p.stopOnce.Do(func() {
		p.ticker.Stop()
		close(p.stop)
	})
}

// ticksFor prefers the source's own frame notifications and falls back to
// polling.
func ticksFor(src core.Source, pollInterval time.Duration) TickSource {
	if n, ok := src.(core.FrameNotifier); ok {
		return &notifierTicks{ch: n.FrameReady()}
	}
	util.GetLogger().Debug("Source has no frame notifier, falling back to polling", "interval", pollInterval)
	return newPollTicks(src, pollInterval)
}
