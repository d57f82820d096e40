package controller

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trigger-capture/models"
)

// feed pushes frames first..last with no messages and returns any windows.
func feed(b *WindowBuffer, first, last uint32) []*models.Window {
	var out []*models.Window
	for i := first; i <= last; i++ {
		if w := b.PushFrame(testFrame(i)); w != nil {
			out = append(out, w)
		}
	}
	return out
}

func TestWindowBufferRetainsNewestBeforeFrames(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 50} {
		b := NewWindowBuffer(5, 3, RetriggerIgnore)
		for i := 1; i <= n; i++ {
			b.PushFrame(testFrame(uint32(i)))
			assert.LessOrEqual(t, b.Buffered(), 5)
		}
		assert.Equal(t, min(n, 5), b.Buffered(), "after %d frames", n)
		assert.Equal(t, StateIdle, b.State())
	}
}

func TestWindowBufferScenario(t *testing.T) {
	b := NewWindowBuffer(2, 2, RetriggerIgnore)
	assert.Empty(t, feed(b, 1, 3))

	// The trigger arrives in the same cycle as frame 4.
	res := b.Step(event(7, 1000), testFrame(4))
	assert.Nil(t, res.Window)
	assert.False(t, res.Kill)
	assert.Equal(t, StateCapturing, b.State())
	assert.Equal(t, 1, b.Remaining())

	res = b.Step(models.NoMessage, testFrame(5))
	require.NotNil(t, res.Window)

	w := res.Window
	assert.Equal(t, []uint32{2, 3, 4, 5}, seqs(w))
	assert.Equal(t, uint32(7), w.Trigger.ObjID)
	assert.Equal(t, uint64(1000), w.Trigger.Frame)
	assert.Equal(t, 2, w.NBefore)
	assert.Equal(t, 2, w.NAfter())
	assert.True(t, w.Triggered)
	assert.False(t, w.Partial)
	assert.Equal(t, uint64(1), b.Evicted())

	assert.Equal(t, StateIdle, b.State())
	assert.Equal(t, 0, b.Buffered(), "ring starts over after a window")
}

func TestWindowBufferTriggerBeforeAnyFrame(t *testing.T) {
	b := NewWindowBuffer(4, 3, RetriggerIgnore)
	res := b.HandleMessage(event(1, 1))
	assert.Nil(t, res.Window)

	windows := feed(b, 1, 3)
	require.Len(t, windows, 1)
	assert.Equal(t, []uint32{1, 2, 3}, seqs(windows[0]))
	assert.Equal(t, 0, windows[0].NBefore)
}

func TestWindowBufferLengthAndOrder(t *testing.T) {
	tests := []struct {
		name       string
		nBefore    int
		nAfter     int
		preFrames  uint32
		wantBefore int
	}{
		{"short history", 10, 4, 3, 3},
		{"full history", 3, 4, 10, 3},
		{"no history wanted", 0, 5, 8, 0},
		{"exact fill", 4, 1, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewWindowBuffer(tt.nBefore, tt.nAfter, RetriggerIgnore)
			feed(b, 1, tt.preFrames)
			b.HandleMessage(event(1, 1))
			windows := feed(b, tt.preFrames+1, tt.preFrames+uint32(tt.nAfter))
			require.Len(t, windows, 1)

			w := windows[0]
			assert.Equal(t, tt.wantBefore+tt.nAfter, w.Len())
			assert.Equal(t, tt.wantBefore, w.NBefore)
			got := seqs(w)
			for i := 1; i < len(got); i++ {
				assert.Greater(t, got[i], got[i-1])
			}
			assert.Equal(t, tt.preFrames+uint32(tt.nAfter), got[len(got)-1])
		})
	}
}

func TestWindowBufferZeroAfterCompletesOnTrigger(t *testing.T) {
	b := NewWindowBuffer(3, 0, RetriggerIgnore)
	feed(b, 1, 5)

	res := b.HandleMessage(event(2, 9))
	require.NotNil(t, res.Window)
	assert.Equal(t, []uint32{3, 4, 5}, seqs(res.Window))
	assert.Equal(t, 0, res.Window.NAfter())
	assert.Equal(t, StateIdle, b.State())
}

func TestWindowBufferRetriggerIgnored(t *testing.T) {
	b := NewWindowBuffer(1, 3, RetriggerIgnore)
	feed(b, 1, 1)
	b.HandleMessage(event(1, 100))
	b.PushFrame(testFrame(2))

	res := b.Step(event(2, 200), testFrame(3))
	assert.Nil(t, res.Window)
	assert.Equal(t, uint64(1), b.IgnoredTriggers())

	windows := feed(b, 4, 4)
	require.Len(t, windows, 1)
	assert.Equal(t, []uint32{1, 2, 3, 4}, seqs(windows[0]))
	assert.Equal(t, uint32(1), windows[0].Trigger.ObjID)

	// Only one window: the second trigger did not start another.
	assert.Empty(t, feed(b, 5, 20))
}

func TestWindowBufferRetriggerOverwriteKeepsLength(t *testing.T) {
	b := NewWindowBuffer(1, 3, RetriggerOverwrite)
	feed(b, 1, 1)
	b.HandleMessage(event(1, 100))
	b.PushFrame(testFrame(2))
	b.HandleMessage(event(2, 200))

	pending, ok := b.Pending()
	require.True(t, ok)
	assert.Equal(t, uint32(2), pending.ObjID, "overwrite replaces the pending tag")

	windows := feed(b, 3, 4)
	require.Len(t, windows, 1)
	assert.Equal(t, 4, windows[0].Len())
	assert.Equal(t, uint32(2), windows[0].Trigger.ObjID)
	assert.Equal(t, uint64(200), windows[0].Trigger.Frame)

	_, ok = b.Pending()
	assert.False(t, ok, "nothing in flight after completion")
}

func TestWindowBufferBackToBackWindows(t *testing.T) {
	b := NewWindowBuffer(2, 2, RetriggerIgnore)
	feed(b, 1, 3)
	b.HandleMessage(event(1, 1))
	first := feed(b, 4, 5)
	require.Len(t, first, 1)

	// Frame 6 is the only history for the next trigger; 4 and 5 were
	// already saved and must not be repeated.
	feed(b, 6, 6)
	b.HandleMessage(event(2, 2))
	second := feed(b, 7, 8)
	require.Len(t, second, 1)
	assert.Equal(t, []uint32{6, 7, 8}, seqs(second[0]))
}

func TestWindowBufferKillWhileIdle(t *testing.T) {
	b := NewWindowBuffer(2, 2, RetriggerIgnore)
	feed(b, 1, 3)

	res := b.Step(models.TextMessage("kill"), testFrame(4))
	assert.True(t, res.Kill)
	assert.Nil(t, res.Partial)
	assert.Nil(t, res.Window)
	assert.Equal(t, StateKilled, b.State())
	assert.Equal(t, 0, b.Buffered())

	// Terminal: triggers and frames are no longer processed.
	res = b.Step(event(1, 1), testFrame(5))
	assert.True(t, res.Kill)
	assert.Nil(t, res.Window)
	assert.Nil(t, b.PushFrame(testFrame(6)))
}

func TestWindowBufferKillWhileCapturing(t *testing.T) {
	b := NewWindowBuffer(2, 5, RetriggerIgnore)
	feed(b, 1, 2)
	b.HandleMessage(event(3, 30))
	feed(b, 3, 4)

	res := b.Step(models.TextMessage("kill"), testFrame(5))
	assert.True(t, res.Kill)
	require.NotNil(t, res.Partial)
	assert.True(t, res.Partial.Partial)
	assert.Equal(t, []uint32{1, 2, 3, 4}, seqs(res.Partial))
	assert.Equal(t, uint32(3), res.Partial.Trigger.ObjID)
}

func TestWindowBufferIgnoresNonKillMessages(t *testing.T) {
	b := NewWindowBuffer(2, 2, RetriggerIgnore)
	feed(b, 1, 2)

	for _, msg := range []models.Message{
		models.NoMessage,
		models.TextMessage("start"),
		models.MalformedMessage(errors.New("bad shape")),
	} {
		res := b.HandleMessage(msg)
		assert.Equal(t, StepResult{}, res)
		assert.Equal(t, StateIdle, b.State())
		assert.Equal(t, 2, b.Buffered())
	}
}

func TestParseRetriggerPolicy(t *testing.T) {
	p, err := ParseRetriggerPolicy("overwrite")
	require.NoError(t, err)
	assert.Equal(t, RetriggerOverwrite, p)

	p, err = ParseRetriggerPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RetriggerIgnore, p)

	_, err = ParseRetriggerPolicy("restart")
	assert.Error(t, err)
}
