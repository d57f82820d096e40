package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowCounts(t *testing.T) {
	w := &Window{Frames: make([]*Frame, 7), NBefore: 3}
	assert.Equal(t, 7, w.Len())
	assert.Equal(t, 4, w.NAfter())
}

func TestWindowRecordRow(t *testing.T) {
	w := &Window{
		Trigger: TriggerEvent{ObjID: 9, Frame: 123456, Timestamp: 1700000000.5},
		Frames:  make([]*Frame, 5),
		NBefore: 2,
		Partial: true,
		DoneNs:  42,
	}
	rec := &WindowRecord{SessionID: "s", Window: w, Dir: w.Trigger.DirName()}

	row := rec.CSVRow()
	require.Len(t, row, len(rec.CSVHeader()))
	assert.Equal(t, []string{"s", "9", "123456", "1700000000.500000", "5", "2", "1", "42", "obj_id_9_frame_123456"}, row)
}

func TestFrameRow(t *testing.T) {
	f := &Frame{NFrame: 3, AcqNFrame: 17, TimestampRaw: 99, ExposureUs: 2000, Width: 8, Format: Mono16}
	assert.Equal(t, []string{"3", "17", "99", "2000"}, f.CSVRow())
	assert.Equal(t, 16, f.Stride())
	assert.Equal(t, uint32(17), f.Sequence())
}

func TestParsePixelFormat(t *testing.T) {
	p, err := ParsePixelFormat("mono16")
	require.NoError(t, err)
	assert.Equal(t, Mono16, p)
	assert.Equal(t, "Mono16", p.String())

	_, err = ParsePixelFormat("RGB8")
	assert.Error(t, err)
}

func TestMessageIsKill(t *testing.T) {
	assert.True(t, TextMessage(KillWord).IsKill())
	assert.False(t, TextMessage("stop").IsKill())
	assert.False(t, NoMessage.IsKill())
	assert.Equal(t, "malformed", MessageMalformed.String())
}

func TestCSVRowCells(t *testing.T) {
	row := newRow(5).str("a").num(-3).unum(1 << 40).fixed(1e-7, 6).flag(false)
	assert.Equal(t, []string{"a", "-3", "1099511627776", "0.000000", "0"}, []string(row))
	assert.Equal(t, 5, cap(row))
}
