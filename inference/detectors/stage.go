package detectors

import (
	"fmt"
)

// Stage is a state of the per-frame decode cycle.
type Stage int

const (
	StageAwaitingOutputs Stage = iota
	StageClassified
	StageDecoded
	StageSuppressed
	StageDelivered
	StageRejected
)

var stageNames = [...]string{
	StageAwaitingOutputs: "awaiting_outputs",
	StageClassified:      "classified",
	StageDecoded:         "decoded",
	StageSuppressed:      "suppressed",
	StageDelivered:       "delivered",
	StageRejected:        "rejected",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// RejectedError reports the stage a frame was rejected from.
type RejectedError struct {
	// Stage is the last stage the frame reached before rejection.
	Stage Stage
	Err   error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("frame rejected after %s: %v", e.Stage, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}
