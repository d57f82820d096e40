package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trigger-capture/controller"
	"trigger-capture/utils"
	"trigger-capture/views"
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"fps":                   "camera.fps",
	"exposure":              "camera.exposure_us",
	"width":                 "camera.width",
	"height":                "camera.height",
	"offset-x":              "camera.offset_x",
	"offset-y":              "camera.offset_y",
	"pixel-format":          "camera.pixel_format",
	"t-before":              "window.t_before",
	"t-after":               "window.t_after",
	"retrigger":             "window.retrigger",
	"flush-partial-on-kill": "window.flush_partial_on_kill",
	"queue-size":            "window.queue_size",
	"handoff-timeout":       "window.handoff_timeout_ms",
	"address":               "trigger.address",
	"handshake-address":     "trigger.handshake_address",
	"topic":                 "trigger.topic",
	"handshake-timeout":     "trigger.handshake_timeout_ms",
	"save-folder":           "storage.save_folder",
	"writers":               "storage.writers",
	"log":                   "logging.file",
	"log-level":             "logging.level",
	"simulate":              "simulation.enabled",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "trigger-capture",
		Short: "Trigger-synchronized high-speed camera capture",
		Long: `trigger-capture streams frames from a camera, keeps a rolling pre-trigger
history, and on every trigger event received over ZeroMQ saves the frames
around the event as TIFF images with a metadata.csv per window.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := utils.LoadCaptureConfig(path, !cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			utils.ApplyOverrides(cfg, v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringP("config", "c", "config/capture.yaml", "path to capture.yaml")
	f.Float64("fps", 0, "acquisition frame rate")
	f.Float64("exposure", 0, "exposure time in microseconds")
	f.Int("width", 0, "ROI width in pixels")
	f.Int("height", 0, "ROI height in pixels")
	f.Int("offset-x", -1, "ROI x offset (negative = centred)")
	f.Int("offset-y", -1, "ROI y offset (negative = centred)")
	f.String("pixel-format", "", "Mono8 or Mono16")
	f.Float64("t-before", 0, "seconds of history saved before a trigger")
	f.Float64("t-after", 0, "seconds saved after a trigger")
	f.String("retrigger", "", "trigger while capturing: ignore or overwrite")
	f.Bool("flush-partial-on-kill", false, "save the unfinished window on kill")
	f.Int("queue-size", 0, "windows waiting for persistence")
	f.Int("handoff-timeout", 0, "ms to wait for queue space before dropping a window (0 = no limit)")
	f.String("address", "", "trigger publisher host:port")
	f.String("handshake-address", "", "handshake responder host:port")
	f.String("topic", "", "trigger topic")
	f.Int("handshake-timeout", 0, "ms to wait for the handshake reply (0 = no limit)")
	f.String("save-folder", "", "output root directory")
	f.Int("writers", 0, "parallel image writers (0 = NumCPU)")
	f.String("log", "", "optional log file path (stdout is always included)")
	f.String("log-level", "", "debug, info, warn or error")
	f.Bool("simulate", false, "use the synthetic camera")

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(name))
	}
	v.SetEnvPrefix("TRIGCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return cmd
}

func run(parent context.Context, cfg *utils.CaptureConfig) error {
	if parent == nil {
		parent = context.Background()
	}

	// ── Logger ───────────────────────────────────────────────────────
	logger := utils.InitLogger(utils.ParseLogLevel(cfg.Logging.Level), cfg.Logging.File)
	defer logger.Close()

	sessionID := uuid.NewString()
	sessionLog := utils.L().WithFields(map[string]any{"session": sessionID})
	utils.L().Info("═══════════════════════════════════════════════════")
	utils.L().Info("  trigger-capture  ·  session %s", sessionID)
	utils.L().Info("  GOMAXPROCS=%d  ·  PID=%d", runtime.GOMAXPROCS(0), os.Getpid())
	utils.L().Info("═══════════════════════════════════════════════════")

	if !filepath.IsAbs(cfg.Storage.SaveFolder) {
		if abs, err := filepath.Abs(cfg.Storage.SaveFolder); err == nil {
			cfg.Storage.SaveFolder = abs
		}
	}

	policy, err := controller.ParseRetriggerPolicy(cfg.Window.Retrigger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// ── Pipeline assembly ────────────────────────────────────────────
	//
	//  camera ──►  CaptureController  ◄── trigger channel (SUB + REQ)
	//                    │
	//              Packet queue (bounded)
	//                    │
	//           RecordingController ──► <obj_id_N_frame_M>/*.tiff + metadata.csv

	// 1. Inputs
	sensors, err := controller.NewSensorsController(cfg)
	if err != nil {
		return err
	}
	if err := sensors.Start(ctx, cfg); err != nil {
		return err
	}
	defer sensors.Stop()

	// 2. Persistence
	recorder, err := controller.NewRecordingController(cfg.Storage, cfg.Window.QueueSize, sessionID, views.NewTIFFSink())
	if err != nil {
		return fmt.Errorf("init recording controller: %w", err)
	}

	// 3. Capture loop
	nBefore, nAfter := cfg.FramesBefore(), cfg.FramesAfter()
	capture := controller.NewCaptureController(
		sensors.Camera, sensors.Triggers,
		controller.NewWindowBuffer(nBefore, nAfter, policy),
		recorder.Queue(),
		controller.CaptureOptions{
			HandoffTimeout:     cfg.Window.HandoffTimeout(),
			FlushPartialOnKill: cfg.Window.FlushPartialOnKill,
			Logger:             sessionLog,
		},
	)
	utils.L().Info("window: %d frames before, %d after (%.3fs / %.3fs at %.1f fps)",
		nBefore, nAfter, cfg.Window.BeforeSeconds, cfg.Window.AfterSeconds, cfg.Camera.FPS)

	// ── Signals and stats ────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	statsDone := make(chan struct{})
	defer close(statsDone)
	go func() {
		statsTicker := time.NewTicker(5 * time.Second)
		defer statsTicker.Stop()
		stopping := false
		for {
			select {
			case sig := <-sigCh:
				if stopping {
					utils.L().Warn("received signal: %v again, aborting", sig)
					cancel()
					continue
				}
				utils.L().Info("received signal: %v, stopping capture", sig)
				stopping = true
				capture.Stop()
			case <-statsTicker.C:
				logStats(sensors, capture, recorder)
			case <-statsDone:
				return
			}
		}
	}()

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(capture.Run)
	p.Go(recorder.Run)
	err = p.Wait()

	logStats(sensors, capture, recorder)
	if err != nil {
		sessionLog.Error("session ended with error: %v", err)
		return err
	}
	sessionLog.Info("session finished, windows saved to %s", recorder.SaveFolder())
	return nil
}

func logStats(sensors *controller.SensorsController, capture *controller.CaptureController,
	recorder *controller.RecordingController) {
	cs, rs := capture.Stats(), recorder.Stats()
	utils.L().Info("── stats ─────────────────────────")
	sensors.LogStats()
	utils.L().Info("  capture frames=%d windows=%d dropped_windows=%d messages=%d discarded=%d",
		cs.Frames, cs.Windows, cs.DroppedWindows, cs.Messages, cs.Discarded)
	utils.L().Info("  storage windows=%d frames=%d frame_failures=%d",
		rs.WindowsWritten, rs.FramesWritten, rs.FrameFailures)
	utils.L().Info("──────────────────────────────────")
}
