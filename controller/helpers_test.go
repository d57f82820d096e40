package controller

import (
	"context"
	"errors"
	"sync"

	"trigger-capture/models"
)

func testFrame(seq uint32) *models.Frame {
	return &models.Frame{
		Width:        4,
		Height:       2,
		Format:       models.Mono8,
		NFrame:       seq,
		AcqNFrame:    seq,
		TimestampRaw: uint64(seq) * 2500,
		ExposureUs:   2000,
		Data:         []byte{byte(seq), 1, 2, 3, 4, 5, 6, 7},
	}
}

func seqs(w *models.Window) []uint32 {
	out := make([]uint32, 0, w.Len())
	for _, f := range w.Frames {
		out = append(out, f.AcqNFrame)
	}
	return out
}

func event(objID uint32, frame uint64) models.Message {
	return models.EventMessage(models.TriggerEvent{ObjID: objID, Frame: frame})
}

var errSourceGone = errors.New("camera unplugged")

// scriptedSource hands out frames 1..n and then fails with errSourceGone.
// When n is 0 it never runs dry.
type scriptedSource struct {
	mu   sync.Mutex
	next uint32
	n    uint32
}

func (s *scriptedSource) NextFrame(ctx context.Context) (*models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n > 0 && s.next >= s.n {
		return nil, errSourceGone
	}
	s.next++
	return testFrame(s.next), nil
}

// scriptedTriggers delivers script[i] on the cycle that reads frame i+1.
// Empty entries mean no message that cycle.
type scriptedTriggers struct {
	mu           sync.Mutex
	script       []string
	pos          int
	handshakeErr error
	block        bool
}

func (s *scriptedTriggers) Handshake(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.handshakeErr
}

func (s *scriptedTriggers) TryReceive() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.script) {
		return "", false
	}
	msg := s.script[s.pos]
	s.pos++
	return msg, msg != ""
}

// drain collects packets until the kill sentinel.
func drain(ch <-chan models.Packet) (windows []*models.Window, killed bool) {
	for pkt := range ch {
		if pkt.Kill {
			return windows, true
		}
		windows = append(windows, pkt.Window)
	}
	return windows, false
}
