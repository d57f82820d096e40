package models

import "fmt"

// TriggerEvent is the estimate published by the upstream tracker when an
// object of interest is seen. Every field is optional on the wire; missing
// fields decode to zero.
type TriggerEvent struct {
	ObjID     uint32  `json:"obj_id"`
	Frame     uint64  `json:"frame"`
	Timestamp float64 `json:"timestamp"`

	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	XVel float64 `json:"xvel"`
	YVel float64 `json:"yvel"`
	ZVel float64 `json:"zvel"`

	// Covariance diagonal and upper-triangle terms of the Kalman estimate.
	P00 float64 `json:"P00"`
	P01 float64 `json:"P01"`
	P02 float64 `json:"P02"`
	P11 float64 `json:"P11"`
	P12 float64 `json:"P12"`
	P22 float64 `json:"P22"`
	P33 float64 `json:"P33"`
	P44 float64 `json:"P44"`
	P55 float64 `json:"P55"`
}

// DirName is the per-window output directory: obj_id_<id>_frame_<frame>.
func (e TriggerEvent) DirName() string {
	return fmt.Sprintf("obj_id_%d_frame_%d", e.ObjID, e.Frame)
}

func (e TriggerEvent) String() string {
	return fmt.Sprintf("obj_id=%d frame=%d pos=(%.3f, %.3f, %.3f)",
		e.ObjID, e.Frame, e.X, e.Y, e.Z)
}
