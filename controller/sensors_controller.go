package controller

import (
	"context"
	"errors"
	"fmt"

	"trigger-capture/services/ingest"
	"trigger-capture/services/trigger"
	"trigger-capture/utils"
)

// SensorsController owns the lifecycle of the two inputs of the capture loop:
// the camera and the trigger link.
type SensorsController struct {
	Camera   *ingest.CameraReader
	Triggers *trigger.Channel
}

// NewSensorsController builds the camera reader for cfg. Only the simulated
// driver is built in; a hardware driver must be supplied with
// NewSensorsControllerWithDriver.
func NewSensorsController(cfg *utils.CaptureConfig) (*SensorsController, error) {
	if !cfg.Simulation.Enabled {
		return nil, errors.New("no camera driver available: enable simulation or supply a driver")
	}
	drv := ingest.NewSimDriver(cfg.Simulation.SensorWidth, cfg.Simulation.SensorHeight)
	return NewSensorsControllerWithDriver(cfg, drv), nil
}

// NewSensorsControllerWithDriver wires a camera reader around drv.
func NewSensorsControllerWithDriver(cfg *utils.CaptureConfig, drv ingest.Driver) *SensorsController {
	return &SensorsController{Camera: ingest.NewCameraReader(cfg.Camera, drv)}
}

// Start opens the camera and connects the trigger link. On failure anything
// already opened is closed again.
func (sc *SensorsController) Start(ctx context.Context, cfg *utils.CaptureConfig) error {
	if err := sc.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	ch, err := trigger.Dial(ctx, cfg.Trigger)
	if err != nil {
		sc.Camera.Close()
		return err
	}
	sc.Triggers = ch
	return nil
}

// Stop releases both inputs.
func (sc *SensorsController) Stop() error {
	var errs []error
	if sc.Triggers != nil {
		errs = append(errs, sc.Triggers.Close())
	}
	errs = append(errs, sc.Camera.Close())
	return errors.Join(errs...)
}

// LogStats prints a summary line for each input.
func (sc *SensorsController) LogStats() {
	utils.L().Info("  camera  produced=%d", sc.Camera.Produced())
	if sc.Triggers != nil {
		r, d, f := sc.Triggers.Stats()
		utils.L().Info("  trigger received=%d dropped=%d filtered=%d", r, d, f)
	}
}
