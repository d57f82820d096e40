package models

// Window is a completed run of frames around one trigger: the pre-trigger
// prefix followed by the post-trigger frames, in arrival order.
type Window struct {
	Trigger   TriggerEvent `json:"trigger"`
	Triggered bool         `json:"triggered"` // false means Trigger is the zero tag
	Frames    []*Frame     `json:"-"`
	NBefore   int          `json:"n_before"` // length of the pre-trigger prefix
	Partial   bool         `json:"partial"`  // cut short by a kill
	DoneNs    int64        `json:"done_ns"`  // wall-clock completion time
}

// Len returns the number of frames in the window.
func (w *Window) Len() int { return len(w.Frames) }

// NAfter returns the number of post-trigger frames.
func (w *Window) NAfter() int { return len(w.Frames) - w.NBefore }

// Packet is what travels on the queue between the capture loop and the
// persistence worker: either a window to write or the kill sentinel.
type Packet struct {
	Window *Window
	Kill   bool
}

// KillPacket is the final packet of every session.
var KillPacket = Packet{Kill: true}

// WindowRecord is one row of the session index (windows.csv).
type WindowRecord struct {
	SessionID string
	Window    *Window
	Dir       string
}

func (WindowRecord) CSVHeader() []string {
	return []string{
		"session_id", "obj_id", "frame", "trigger_timestamp",
		"n_frames", "n_before", "partial", "done_ns", "dir",
	}
}

func (r *WindowRecord) CSVRow() []string {
	w := r.Window
	return newRow(9).
		str(r.SessionID).
		unum(uint64(w.Trigger.ObjID)).
		unum(w.Trigger.Frame).
		fixed(w.Trigger.Timestamp, 6).
		num(int64(w.Len())).
		num(int64(w.NBefore)).
		flag(w.Partial).
		num(w.DoneNs).
		str(r.Dir)
}
