package controller

import (
	"fmt"

	"trigger-capture/models"
	"trigger-capture/utils"
)

// BufferState is the phase of the window state machine.
type BufferState int

const (
	StateIdle      BufferState = iota // filling the pre-trigger ring
	StateCapturing                    // counting down post-trigger frames
	StateKilled                       // terminal, input is ignored
)

var bufferStateNames = [...]string{"idle", "capturing", "killed"}

func (s BufferState) String() string {
	if int(s) < len(bufferStateNames) {
		return bufferStateNames[s]
	}
	return "unknown"
}

// RetriggerPolicy decides what a trigger does while a window is capturing.
// Neither policy changes the window length.
type RetriggerPolicy int

const (
	RetriggerIgnore    RetriggerPolicy = iota // keep the first trigger
	RetriggerOverwrite                        // retag with the latest trigger
)

// ParseRetriggerPolicy maps the config strings to a policy.
func ParseRetriggerPolicy(s string) (RetriggerPolicy, error) {
	switch s {
	case "", utils.RetriggerIgnore:
		return RetriggerIgnore, nil
	case utils.RetriggerOverwrite:
		return RetriggerOverwrite, nil
	}
	return RetriggerIgnore, fmt.Errorf("unknown retrigger policy %q", s)
}

// StepResult is what one input cycle produced.
type StepResult struct {
	Window  *models.Window // completed window, ready for hand-off
	Kill    bool           // a kill was seen; the session must end
	Partial *models.Window // the in-flight window when Kill arrived, if any
}

// WindowBuffer decides, frame by frame and without lookahead, which frames
// belong to a trigger window.
//
// While idle it keeps the newest nBefore frames in a ring. A trigger freezes
// the ring contents as the window prefix and starts counting nAfter frames;
// when the count reaches zero the window is returned and the buffer starts
// over with an empty ring.
//
// WindowBuffer is owned by a single goroutine and does no locking.
type WindowBuffer struct {
	nBefore int
	nAfter  int
	policy  RetriggerPolicy

	state     BufferState
	ring      *frameRing
	before    []*models.Frame
	after     []*models.Frame
	remaining int
	pending   models.TriggerEvent

	evicted uint64
	ignored uint64
}

// NewWindowBuffer creates an idle buffer. Negative sizes are treated as 0.
func NewWindowBuffer(nBefore, nAfter int, policy RetriggerPolicy) *WindowBuffer {
	nBefore = max(nBefore, 0)
	nAfter = max(nAfter, 0)
	return &WindowBuffer{
		nBefore:   nBefore,
		nAfter:    nAfter,
		policy:    policy,
		ring:      newFrameRing(nBefore),
		remaining: nAfter,
	}
}

// Step feeds one cycle's message and frame, in that order. frame may be nil.
func (b *WindowBuffer) Step(msg models.Message, frame *models.Frame) StepResult {
	res := b.HandleMessage(msg)
	if res.Kill || frame == nil {
		return res
	}
	if w := b.PushFrame(frame); w != nil {
		res.Window = w
	}
	return res
}

// HandleMessage applies a classified message.
func (b *WindowBuffer) HandleMessage(msg models.Message) StepResult {
	if b.state == StateKilled {
		return StepResult{Kill: true}
	}

	switch msg.Kind {
	case models.MessageEmpty:
	case models.MessageEvent:
		if b.state == StateIdle {
			return StepResult{Window: b.startCapture(msg.Event)}
		}
		b.ignored++
		if b.policy == RetriggerOverwrite {
			utils.L().Debug("window: retag in-flight window with %v", msg.Event)
			b.pending = msg.Event
		} else {
			utils.L().Debug("window: trigger %v ignored, %d frames still to capture", msg.Event, b.remaining)
		}
	case models.MessageText:
		if msg.IsKill() {
			return StepResult{Kill: true, Partial: b.kill()}
		}
		utils.L().Info("window: control message %q ignored", msg.Text)
	case models.MessageMalformed:
		utils.L().Warn("window: discarded malformed trigger message: %v", msg.Err)
	}
	return StepResult{}
}

// PushFrame adds one frame and returns the window it completed, if any.
func (b *WindowBuffer) PushFrame(f *models.Frame) *models.Window {
	switch b.state {
	case StateIdle:
		if b.ring.push(f) != nil {
			b.evicted++
		}
	case StateCapturing:
		b.after = append(b.after, f)
		b.remaining--
		if b.remaining <= 0 {
			return b.complete()
		}
	}
	return nil
}

func (b *WindowBuffer) startCapture(ev models.TriggerEvent) *models.Window {
	b.before = b.ring.history()
	b.ring.reset()
	b.pending = ev
	b.remaining = b.nAfter
	b.after = make([]*models.Frame, 0, b.nAfter)
	b.state = StateCapturing
	utils.L().Info("window: triggered by %v (%d frames before, %d to capture)",
		ev, len(b.before), b.nAfter)

	if b.remaining == 0 {
		return b.complete()
	}
	return nil
}

func (b *WindowBuffer) complete() *models.Window {
	w := b.assemble(false)
	b.before, b.after = nil, nil
	b.remaining = b.nAfter
	b.state = StateIdle
	b.ring.reset()
	return w
}

func (b *WindowBuffer) kill() *models.Window {
	var partial *models.Window
	if b.state == StateCapturing {
		partial = b.assemble(true)
	}
	b.before, b.after = nil, nil
	b.ring.reset()
	b.state = StateKilled
	return partial
}

func (b *WindowBuffer) assemble(partial bool) *models.Window {
	frames := make([]*models.Frame, 0, len(b.before)+len(b.after))
	frames = append(frames, b.before...)
	frames = append(frames, b.after...)
	return &models.Window{
		Trigger:   b.pending,
		Triggered: true,
		Frames:    frames,
		NBefore:   len(b.before),
		Partial:   partial,
		DoneNs:    utils.NowNano(),
	}
}

// State returns the current phase.
func (b *WindowBuffer) State() BufferState { return b.state }

// Buffered returns how many frames the pre-trigger ring holds.
func (b *WindowBuffer) Buffered() int { return b.ring.len() }

// Remaining returns how many post-trigger frames are still missing.
func (b *WindowBuffer) Remaining() int {
	if b.state != StateCapturing {
		return 0
	}
	return b.remaining
}

// Pending returns the trigger of the in-flight window.
func (b *WindowBuffer) Pending() (models.TriggerEvent, bool) {
	return b.pending, b.state == StateCapturing
}

// Evicted returns how many frames fell out of the ring unsaved.
func (b *WindowBuffer) Evicted() uint64 { return b.evicted }

// IgnoredTriggers returns how many triggers arrived while capturing.
func (b *WindowBuffer) IgnoredTriggers() uint64 { return b.ignored }

// Sizes returns the configured (nBefore, nAfter).
func (b *WindowBuffer) Sizes() (int, int) { return b.nBefore, b.nAfter }
