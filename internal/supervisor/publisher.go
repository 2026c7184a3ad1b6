package supervisor

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vllmd/pkg/types"
)

// DefaultFeedInterval is how often the live feed polls Status.
const DefaultFeedInterval = 1500 * time.Millisecond

// StatusSource is what the publisher polls. *Supervisor implements it.
type StatusSource interface {
	Status(ctx context.Context) types.ControlStatus
}

// FrameDecorator lets outer layers merge unrelated data (telemetry,
// download progress) into a frame before it is fanned out.
type FrameDecorator func(ctx context.Context, f *types.FeedFrame)

// Publisher periodically snapshots a StatusSource and fans the frames out to
// subscribers. A slow subscriber only ever misses frames; it never stalls
// the polling loop.
type Publisher struct {
	src      StatusSource
	interval time.Duration
	log      zerolog.Logger

	mu         sync.Mutex
	subs       map[int]chan types.FeedFrame
	nextID     int
	latest     types.FeedFrame
	hasLatest  bool
	decorators []FrameDecorator
}

// NewPublisher returns a publisher polling src every interval (default 1.5s).
func NewPublisher(src StatusSource, interval time.Duration, logger *zerolog.Logger) *Publisher {
	if interval <= 0 {
		interval = DefaultFeedInterval
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "feed").Logger()
	}
	return &Publisher{src: src, interval: interval, log: l, subs: make(map[int]chan types.FeedFrame)}
}

// AddDecorator registers d. Decorators run in registration order.
func (p *Publisher) AddDecorator(d FrameDecorator) {
	if d == nil {
		return
	}
	p.mu.Lock()
	p.decorators = append(p.decorators, d)
	p.mu.Unlock()
}

// Subscribe returns a channel of frames and a cancel func that closes it.
// The most recent frame, if any, is delivered immediately.
func (p *Publisher) Subscribe() (<-chan types.FeedFrame, func()) {
	ch := make(chan types.FeedFrame, 1)
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	if p.hasLatest {
		ch <- cloneFrame(p.latest)
	}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Latest returns a copy of the last published frame.
func (p *Publisher) Latest() (types.FeedFrame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneFrame(p.latest), p.hasLatest
}

// PublishOnce takes one snapshot and fans it out.
func (p *Publisher) PublishOnce(ctx context.Context) types.FeedFrame {
	st := p.src.Status(ctx)
	frame := types.FeedFrame{Timestamp: time.Now().UTC(), Running: st.Running, Models: st.Models}

	p.mu.Lock()
	decorators := slices.Clone(p.decorators)
	p.mu.Unlock()
	for _, d := range decorators {
		d(ctx, &frame)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = cloneFrame(frame)
	p.hasLatest = true
	for _, ch := range p.subs {
		offer(ch, cloneFrame(frame))
	}
	return frame
}

// Run polls until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	p.log.Debug().Dur("interval", p.interval).Msg("feed started")
	p.PublishOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Msg("feed stopped")
			return ctx.Err()
		case <-t.C:
			p.PublishOnce(ctx)
		}
	}
}

// offer replaces a pending stale frame with f. Caller holds p.mu, which also
// serialises senders so the drain-then-send cannot block.
func offer(ch chan types.FeedFrame, f types.FeedFrame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

func cloneFrame(f types.FeedFrame) types.FeedFrame {
	f.Models = slices.Clone(f.Models)
	if f.Extra != nil {
		f.Extra = maps.Clone(f.Extra)
	}
	return f
}
