package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trigger-capture/models"
	"trigger-capture/utils"
)

// FrameSource delivers frames one at a time. NextFrame blocks for the next
// exposure and sets the cadence of the whole loop.
type FrameSource interface {
	NextFrame(ctx context.Context) (*models.Frame, error)
}

// TriggerSource is the trigger link as the capture loop sees it.
type TriggerSource interface {
	// Handshake blocks until the trigger publisher acknowledges readiness.
	Handshake(ctx context.Context) error
	// TryReceive returns a pending payload without blocking.
	TryReceive() (string, bool)
}

// CaptureOptions tunes the capture loop.
type CaptureOptions struct {
	// HandoffTimeout bounds how long a completed window may wait for room
	// in a full queue. 0 waits until the context is cancelled.
	HandoffTimeout time.Duration
	// FlushPartialOnKill hands an unfinished window to persistence on kill.
	FlushPartialOnKill bool
	// Logger receives the loop's log lines. nil means the global logger.
	Logger *utils.Logger
}

// CaptureController is the producer stage: each cycle it polls the trigger
// link, reads one frame, drives the window buffer and hands completed
// windows to the persistence queue.
type CaptureController struct {
	source   FrameSource
	triggers TriggerSource
	buffer   *WindowBuffer
	out      chan<- models.Packet
	opts     CaptureOptions
	log      *utils.Logger

	stop     chan struct{}
	stopOnce sync.Once

	frames         uint64
	windows        uint64
	droppedWindows uint64
	messages       uint64
	discarded      uint64
}

// NewCaptureController wires the loop. out is the persistence queue; the
// controller is its only writer and always finishes with a kill packet when
// it stops cleanly.
func NewCaptureController(source FrameSource, triggers TriggerSource, buffer *WindowBuffer,
	out chan<- models.Packet, opts CaptureOptions) *CaptureController {
	log := opts.Logger
	if log == nil {
		log = utils.L()
	}
	return &CaptureController{
		source:   source,
		triggers: triggers,
		buffer:   buffer,
		out:      out,
		opts:     opts,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Stop asks the loop to shut down as if a kill message had arrived. It
// returns immediately; the loop notices at the start of its next cycle.
func (cc *CaptureController) Stop() {
	cc.stopOnce.Do(func() { close(cc.stop) })
}

// Run performs the readiness handshake and then loops until a kill, Stop,
// or a fatal error. Frame source errors end the session and are returned;
// a clean shutdown returns nil.
func (cc *CaptureController) Run(ctx context.Context) error {
	if err := cc.handshake(ctx); err != nil {
		if cc.stopped() && ctx.Err() == nil {
			cc.log.Info("capture loop: stop requested before handshake completed")
			return cc.shutdown(ctx, nil)
		}
		return fmt.Errorf("readiness handshake: %w", err)
	}

	nBefore, nAfter := cc.buffer.Sizes()
	cc.log.Info("capture loop started  (n_before=%d, n_after=%d)", nBefore, nAfter)

	for {
		select {
		case <-cc.stop:
			cc.log.Info("capture loop: stop requested")
			return cc.shutdown(ctx, cc.buffer.HandleMessage(models.TextMessage(models.KillWord)).Partial)
		default:
		}

		msg := models.NoMessage
		if raw, ok := cc.triggers.TryReceive(); ok {
			atomic.AddUint64(&cc.messages, 1)
			msg = Classify(raw)
			if msg.Kind == models.MessageMalformed {
				atomic.AddUint64(&cc.discarded, 1)
			}
		}

		frame, err := cc.source.NextFrame(ctx)
		if err != nil {
			return fmt.Errorf("frame source: %w", err)
		}
		atomic.AddUint64(&cc.frames, 1)

		res := cc.buffer.Step(msg, frame)
		if res.Window != nil {
			if err := cc.handoff(ctx, res.Window); err != nil {
				return err
			}
		}
		if res.Kill {
			cc.log.Info("capture loop: kill received")
			return cc.shutdown(ctx, res.Partial)
		}
	}
}

// handshake runs the trigger handshake, abandoning it if Stop is called.
func (cc *CaptureController) handshake(ctx context.Context) error {
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-cc.stop:
			cancel()
		case <-hctx.Done():
		}
	}()
	return cc.triggers.Handshake(hctx)
}

func (cc *CaptureController) stopped() bool {
	select {
	case <-cc.stop:
		return true
	default:
		return false
	}
}

// handoff enqueues a completed window. A full queue is waited on for up to
// HandoffTimeout before the window is given up.
func (cc *CaptureController) handoff(ctx context.Context, w *models.Window) error {
	pkt := models.Packet{Window: w}
	select {
	case cc.out <- pkt:
		atomic.AddUint64(&cc.windows, 1)
		return nil
	default:
	}

	cc.log.Warn("capture: persistence queue full, waiting to hand off window %s", w.Trigger.DirName())
	var timeout <-chan time.Time
	if cc.opts.HandoffTimeout > 0 {
		t := time.NewTimer(cc.opts.HandoffTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case cc.out <- pkt:
		atomic.AddUint64(&cc.windows, 1)
		return nil
	case <-timeout:
		atomic.AddUint64(&cc.droppedWindows, 1)
		cc.log.Error("capture: dropped window %s (%d frames), persistence did not catch up within %v",
			w.Trigger.DirName(), w.Len(), cc.opts.HandoffTimeout)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown optionally flushes the unfinished window and then sends the
// kill sentinel, which is always the last packet on the queue.
func (cc *CaptureController) shutdown(ctx context.Context, partial *models.Window) error {
	if partial != nil {
		if cc.opts.FlushPartialOnKill {
			cc.log.Info("capture: flushing partial window %s (%d frames)", partial.Trigger.DirName(), partial.Len())
			if err := cc.handoff(ctx, partial); err != nil {
				return err
			}
		} else {
			cc.log.Warn("capture: discarding unfinished window %s (%d frames)", partial.Trigger.DirName(), partial.Len())
		}
	}

	select {
	case cc.out <- models.KillPacket:
	case <-ctx.Done():
		return ctx.Err()
	}
	cc.log.Info("capture loop stopped  (frames=%d, windows=%d, dropped_windows=%d, evicted=%d)",
		atomic.LoadUint64(&cc.frames), atomic.LoadUint64(&cc.windows),
		atomic.LoadUint64(&cc.droppedWindows), cc.buffer.Evicted())
	return nil
}

// CaptureStats is a snapshot of the loop counters.
type CaptureStats struct {
	Frames         uint64
	Windows        uint64
	DroppedWindows uint64
	Messages       uint64
	Discarded      uint64
}

// Stats returns the counters atomically. Safe to call from any goroutine.
func (cc *CaptureController) Stats() CaptureStats {
	return CaptureStats{
		Frames:         atomic.LoadUint64(&cc.frames),
		Windows:        atomic.LoadUint64(&cc.windows),
		DroppedWindows: atomic.LoadUint64(&cc.droppedWindows),
		Messages:       atomic.LoadUint64(&cc.messages),
		Discarded:      atomic.LoadUint64(&cc.discarded),
	}
}
