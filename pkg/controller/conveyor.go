package controller

import (
	"context"
	"github.com/pkg/errors"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/runtime/constant"
	"scadabridge/pkg/storage"
)

const (
	VariableConveyorPowered = "powered"
	VariableConveyorMode    = "mode"
)

// 传送带模式
const (
	ModeIdle    uint16 = 0
	ModeForward uint16 = 1
	ModeReverse uint16 = 2
)

// Conveyor drives the belt on PLC1. Forward and reverse are exclusive and
// share the single mode register.
type Conveyor struct{}

var _ Controller = (*Conveyor)(nil)

type conveyorReading struct {
	Powered *bool   `mapstructure:"powered"`
	Mode    *uint16 `mapstructure:"mode"`
}

func (c *Conveyor) Unit() string {
	return UnitConveyor
}

func (c *Conveyor) Label() string {
	return "Banda"
}

func (c *Conveyor) Actions() []Action {
	return []Action{ActionPower, ActionForward, ActionReverse}
}

func (c *Conveyor) Derive(values s7runtime.Values, doc *storage.Document) error {
	r := conveyorReading{}
	if err := decode(values, &r); err != nil {
		return err
	}

	state := &doc.Conveyor
	if r.Powered != nil {
		state.Lights.Powered = *r.Powered
		if *r.Powered {
			state.State = storage.ConveyorPowered
		} else {
			state.State = storage.ConveyorStandby
			state.Lights.Forward = false
			state.Lights.Reverse = false
		}
	}
	if r.Mode != nil {
		state.Lights.Forward = *r.Mode == ModeForward
		state.Lights.Reverse = *r.Mode == ModeReverse
		switch {
		case state.Lights.Forward:
			state.State = storage.ConveyorForward
		case state.Lights.Reverse:
			state.State = storage.ConveyorReverse
		case state.Lights.Powered:
			state.State = storage.ConveyorPowered
		default:
			state.State = storage.ConveyorStandby
		}
	}
	return nil
}

func (c *Conveyor) Apply(ctx context.Context, w RegisterWriter, doc *storage.Document, action Action) (*Outcome, error) {
	o := newOutcome()
	lights := doc.Conveyor.Lights

	switch action {
	case ActionPower:
		if err := write(ctx, w, o, c.Label(), VariableConveyorPowered, !lights.Powered); err != nil {
			return o, err
		}
		// mode always goes back to idle after a power change
		return o, write(ctx, w, o, c.Label(), VariableConveyorMode, ModeIdle)
	case ActionForward:
		if !lights.Powered {
			o.audit("%s: No se puede avanzar, sistema apagado", c.Label())
			return o, errors.Wrapf(constant.ErrNotReady, "%s is off, cannot move forward", c.Unit())
		}
		mode := ModeForward
		if lights.Forward {
			mode = ModeIdle
		}
		return o, write(ctx, w, o, c.Label(), VariableConveyorMode, mode)
	case ActionReverse:
		if !lights.Powered {
			o.audit("%s: No se puede retroceder, sistema apagado", c.Label())
			return o, errors.Wrapf(constant.ErrNotReady, "%s is off, cannot reverse", c.Unit())
		}
		mode := ModeReverse
		if lights.Reverse {
			mode = ModeIdle
		}
		return o, write(ctx, w, o, c.Label(), VariableConveyorMode, mode)
	}
	return unknownAction(c, action)
}
