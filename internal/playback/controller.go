package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/media"
)

// DefaultFrameInterval paces the redraw loop at roughly 60 frames a second.
const DefaultFrameInterval = 16 * time.Millisecond

// Options configures a Controller.
type Options struct {
	Asset    Asset
	Payload  media.Payload
	Waveform Waveform
	// Draw receives every frame. It runs on the redraw goroutine and must
	// not call back into the controller.
	Draw          func(Frame)
	FrameInterval time.Duration
	Now           func() time.Time
	Saver         *Saver
	Logger        *zap.Logger
}

// Controller owns one asset: its machine, its redraw loop and its downloads.
type Controller struct {
	mu       sync.Mutex
	machine  *Machine
	asset    Asset
	payload  media.Payload
	waveform Waveform
	draw     func(Frame)
	interval time.Duration
	now      func() time.Time
	saver    *Saver
	logger   *zap.Logger

	loopCancel context.CancelFunc
	loopDone   chan struct{}
	loops      atomic.Int32
	closed     bool
}

// NewController builds a controller and draws the first frame.
func NewController(opts Options) *Controller {
	c := &Controller{
		machine:  NewMachine(opts.Asset),
		asset:    opts.Asset,
		payload:  opts.Payload,
		waveform: opts.Waveform,
		draw:     opts.Draw,
		interval: opts.FrameInterval,
		now:      opts.Now,
		saver:    opts.Saver,
		logger:   opts.Logger,
	}
	if c.interval <= 0 {
		c.interval = DefaultFrameInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if len(c.waveform.heights) == 0 {
		c.waveform = NewWaveform(nil)
	}

	c.mu.Lock()
	c.restartLoopLocked(c.machine.Snapshot())
	c.mu.Unlock()
	return c
}

// Send applies one event. The redraw loop restarts whenever the position,
// the duration or the playing flag changed.
func (c *Controller) Send(ev Event) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(ev)
}

// Load reports the asset duration once it is known.
func (c *Controller) Load(d time.Duration) (Snapshot, error) {
	return c.Send(MetadataLoaded(d))
}

// Sync reads the asset position and turns it into a tick, or into the end
// event when a playing asset reached its duration.
func (c *Controller) Sync() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.machine.Snapshot()
	pos := c.asset.Position()
	if snap.State == StatePlaying && snap.Duration > 0 && pos >= snap.Duration {
		c.asset.Pause()
		return c.sendLocked(Ended())
	}
	return c.sendLocked(PositionTick(pos))
}

// Snapshot returns the machine state.
func (c *Controller) Snapshot() Snapshot {
	return c.machine.Snapshot()
}

// Frame computes the current frame without waiting for the loop.
func (c *Controller) Frame() Frame {
	return c.waveform.Frame(c.machine.Snapshot(), c.now())
}

// Downloading reports whether a save is in progress.
func (c *Controller) Downloading() bool {
	return c.saver != nil && c.saver.Busy()
}

// Download saves the asset bytes. It returns false while another download
// runs, when no saver is configured or when the write failed.
func (c *Controller) Download() (string, bool) {
	if c.saver == nil {
		c.logger.Warn("download requested without a saver")
		return "", false
	}
	return c.saver.Save(c.payload)
}

// Close pauses the asset and stops the redraw loop. Later events are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopLoopLocked()
	c.asset.Pause()
}

func (c *Controller) sendLocked(ev Event) (Snapshot, error) {
	if c.closed {
		return c.machine.Snapshot(), nil
	}
	snap, changed, err := c.machine.Handle(ev)
	if err != nil {
		c.logger.Warn("playback event failed", zap.Stringer("event", ev.Kind), zap.Error(err))
	}
	if changed {
		c.restartLoopLocked(snap)
	}
	return snap, err
}

func (c *Controller) restartLoopLocked(snap Snapshot) {
	c.stopLoopLocked()
	if c.draw == nil {
		return
	}
	c.draw(c.waveform.Frame(snap, c.now()))
	if !snap.Playing {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.loopCancel = cancel
	c.loopDone = done
	c.loops.Add(1)

	go func() {
		defer close(done)
		defer c.loops.Add(-1)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.draw(c.waveform.Frame(snap, c.now()))
			}
		}
	}()
}

func (c *Controller) stopLoopLocked() {
	if c.loopCancel == nil {
		return
	}
	c.loopCancel()
	<-c.loopDone
	c.loopCancel = nil
	c.loopDone = nil
}
