package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"trigger-capture/models"
	"trigger-capture/utils"
	"trigger-capture/views"
)

// ErrWindowExists means a window's output directory is already on disk.
var ErrWindowExists = errors.New("window directory already exists")

// RecordingController is the consumer stage. It drains the window queue
// and writes each window to
//
//	<save_folder>/obj_id_<id>_frame_<frame>/<acq_nframe>.tiff
//	<save_folder>/obj_id_<id>_frame_<frame>/metadata.csv
//
// and appends one row per window to <save_folder>/windows.csv.
//
// Image files are written in parallel; metadata.csv is written by a single
// goroutine in window order.
type RecordingController struct {
	saveFolder string
	sessionID  string
	writers    int
	bufSize    int
	sink       views.ImageSink
	log        *utils.Logger

	queue chan models.Packet
	index *views.CSVWriter

	windowsWritten uint64
	framesWritten  uint64
	frameFailures  uint64
}

// NewRecordingController creates the save folder and the session index.
func NewRecordingController(cfg utils.StorageConfig, queueSize int, sessionID string,
	sink views.ImageSink) (*RecordingController, error) {
	if err := os.MkdirAll(cfg.SaveFolder, 0755); err != nil {
		return nil, fmt.Errorf("create save folder: %w", err)
	}

	index, err := views.AppendCSVWriter(
		filepath.Join(cfg.SaveFolder, views.FileWindows.FileName()),
		cfg.BufferSizeKB*1024, models.WindowRecord{}.CSVHeader(),
	)
	if err != nil {
		return nil, err
	}

	writers := cfg.Writers
	if writers <= 0 {
		writers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	rc := &RecordingController{
		saveFolder: cfg.SaveFolder,
		sessionID:  sessionID,
		writers:    writers,
		bufSize:    cfg.BufferSizeKB * 1024,
		sink:       sink,
		log:        utils.L().WithFields(map[string]any{"session": sessionID}),
		queue:      make(chan models.Packet, queueSize),
		index:      index,
	}
	rc.log.Info("recording controller ready  (save_folder=%s, writers=%d, queue=%d)",
		cfg.SaveFolder, writers, queueSize)
	return rc, nil
}

// Queue is the hand-off channel the capture loop writes to.
func (rc *RecordingController) Queue() chan<- models.Packet { return rc.queue }

// Run consumes packets until the kill sentinel, then returns nil. Windows
// queued ahead of the sentinel are all written first. A directory
// collision is fatal and returned; cancellation of ctx stops the worker
// between windows.
func (rc *RecordingController) Run(ctx context.Context) error {
	defer rc.closeIndex()
	rc.log.Info("recording controller started")

	for {
		select {
		case <-ctx.Done():
			rc.log.Warn("recording controller cancelled  (windows_written=%d)", atomic.LoadUint64(&rc.windowsWritten))
			return ctx.Err()
		case pkt := <-rc.queue:
			if pkt.Kill {
				rc.log.Info("recording controller: kill received, stopping  (windows_written=%d, frames_written=%d, frame_failures=%d)",
					atomic.LoadUint64(&rc.windowsWritten), atomic.LoadUint64(&rc.framesWritten),
					atomic.LoadUint64(&rc.frameFailures))
				return nil
			}
			if pkt.Window == nil {
				continue
			}
			if err := rc.WriteWindow(pkt.Window); err != nil {
				if errors.Is(err, ErrWindowExists) {
					return err
				}
				rc.log.Error("recording controller: %v", err)
			}
		}
	}
}

// WriteWindow persists one window. The destination directory must not
// exist. A failed image write is logged and counted but does not stop the
// remaining frames; the metadata file always lists every frame.
func (rc *RecordingController) WriteWindow(w *models.Window) error {
	name := w.Trigger.DirName()
	dir := filepath.Join(rc.saveFolder, name)
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrWindowExists, dir)
		}
		return fmt.Errorf("create window dir: %w", err)
	}

	p := pool.New().WithMaxGoroutines(rc.writers)
	for _, f := range w.Frames {
		f := f // per-iteration copy; go.mod targets go1.21 loop semantics
		p.Go(func() {
			if err := rc.writeFrame(dir, f); err != nil {
				atomic.AddUint64(&rc.frameFailures, 1)
				rc.log.Error("save frame %d in %s: %v", f.AcqNFrame, name, err)
				return
			}
			atomic.AddUint64(&rc.framesWritten, 1)
		})
	}

	metaErr := rc.writeMetadata(dir, w)
	p.Wait()
	if metaErr != nil {
		return fmt.Errorf("window %s: %w", name, metaErr)
	}

	rec := models.WindowRecord{SessionID: rc.sessionID, Window: w, Dir: name}
	rc.index.WriteRecord(&rec)
	if err := rc.index.Flush(); err != nil {
		rc.log.Warn("flush %s: %v", views.FileWindows, err)
	}

	atomic.AddUint64(&rc.windowsWritten, 1)
	rc.log.Info("window saved  dir=%s frames=%d (before=%d, after=%d)",
		name, w.Len(), w.NBefore, w.NAfter())
	return nil
}

func (rc *RecordingController) writeFrame(dir string, f *models.Frame) error {
	path := filepath.Join(dir, fmt.Sprintf("%d.%s", f.AcqNFrame, rc.sink.Extension()))
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := rc.sink.Encode(file, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// writeMetadata writes metadata.csv with one row per frame in window order.
func (rc *RecordingController) writeMetadata(dir string, w *models.Window) error {
	cw, err := views.NewCSVWriter(
		filepath.Join(dir, views.FileMetadata.FileName()),
		rc.bufSize, true, models.Frame{}.CSVHeader(),
	)
	if err != nil {
		return err
	}
	for _, f := range w.Frames {
		cw.WriteRecord(f)
	}
	return cw.Close()
}

func (rc *RecordingController) closeIndex() {
	if err := rc.index.Close(); err != nil {
		rc.log.Warn("close %s: %v", views.FileWindows, err)
	}
}

// RecordingStats is a snapshot of the worker counters.
type RecordingStats struct {
	WindowsWritten uint64
	FramesWritten  uint64
	FrameFailures  uint64
}

// Stats returns the counters atomically.
func (rc *RecordingController) Stats() RecordingStats {
	return RecordingStats{
		WindowsWritten: atomic.LoadUint64(&rc.windowsWritten),
		FramesWritten:  atomic.LoadUint64(&rc.framesWritten),
		FrameFailures:  atomic.LoadUint64(&rc.frameFailures),
	}
}

// SaveFolder returns the output root.
func (rc *RecordingController) SaveFolder() string { return rc.saveFolder }
