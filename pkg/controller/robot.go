package controller

import (
	"context"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/storage"
)

const (
	VariableRobotPowered  = "robot-powered"
	VariableRobotCommand  = "robot-command"
	VariableRobotProgress = "robot-progress"
)

const robotDone = 100

// Robot is the G-code arm wired to the packer's controller.
type Robot struct{}

var _ Controller = (*Robot)(nil)

type robotReading struct {
	Powered  *bool  `mapstructure:"robot-powered"`
	Progress *int16 `mapstructure:"robot-progress"`
}

func (r *Robot) Unit() string {
	return UnitRobot
}

func (r *Robot) Label() string {
	return "Robot"
}

func (r *Robot) Actions() []Action {
	return []Action{ActionToggle, ActionReset, ActionSkip}
}

func (r *Robot) Derive(values s7runtime.Values, doc *storage.Document) error {
	reading := robotReading{}
	if err := decode(values, &reading); err != nil {
		return err
	}

	state := &doc.Robot
	state.TotalLines = storage.RobotTotalLines
	if reading.Powered != nil {
		if *reading.Powered {
			state.Status = storage.RobotWorking
		} else {
			state.Status = storage.RobotStopped
		}
	}
	if reading.Progress != nil {
		state.GcodeLine = s7runtime.ScaleProgress(*reading.Progress)
		if state.GcodeLine >= robotDone {
			state.Status = storage.RobotDone
		}
	}
	return nil
}

func (r *Robot) Apply(ctx context.Context, w RegisterWriter, doc *storage.Document, action Action) (*Outcome, error) {
	o := newOutcome()
	switch action {
	case ActionToggle:
		return o, write(ctx, w, o, r.Label(), VariableRobotPowered, doc.Robot.Status != storage.RobotWorking)
	case ActionReset:
		return o, write(ctx, w, o, r.Label(), VariableRobotCommand, CommandReset)
	case ActionSkip:
		return o, write(ctx, w, o, r.Label(), VariableRobotCommand, CommandSkip)
	}
	return unknownAction(r, action)
}
