package controller

import (
	"context"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/storage"
)

const (
	VariableMachineDetected = "detected"
	VariableMachinePowered  = "powered"
	VariableMachineCommand  = "command"
	VariableMachineProgress = "progress"
)

// 命令寄存器取值
const (
	CommandNormal uint16 = 0
	CommandReset  uint16 = 1
	CommandSkip   uint16 = 2
)

// Machine is a batch station with a detection sensor, a run flag, a command
// register and a progress counter. The mixer and the packer only differ in
// their section of the document and in the packer clearing its command
// before a toggle.
type Machine struct {
	unit          string
	label         string
	section       func(doc *storage.Document) *storage.MachineState
	clearOnToggle bool
}

var _ Controller = (*Machine)(nil)

func NewMixer() *Machine {
	return &Machine{
		unit:    UnitMixer,
		label:   "Revolvedora",
		section: func(doc *storage.Document) *storage.MachineState { return &doc.Mixer },
	}
}

func NewPacker() *Machine {
	return &Machine{
		unit:          UnitPacker,
		label:         "Empacadora",
		section:       func(doc *storage.Document) *storage.MachineState { return &doc.Packer },
		clearOnToggle: true,
	}
}

type machineReading struct {
	Detected *bool  `mapstructure:"detected"`
	Powered  *bool  `mapstructure:"powered"`
	Progress *int16 `mapstructure:"progress"`
}

func (m *Machine) Unit() string {
	return m.unit
}

func (m *Machine) Label() string {
	return m.label
}

func (m *Machine) Actions() []Action {
	return []Action{ActionToggle, ActionReset, ActionSkip}
}

func (m *Machine) Derive(values s7runtime.Values, doc *storage.Document) error {
	r := machineReading{}
	if err := decode(values, &r); err != nil {
		return err
	}

	state := m.section(doc)
	if r.Detected != nil {
		state.Lights.Detected = *r.Detected
	}
	if r.Powered != nil {
		state.Lights.Working = *r.Powered
	}
	if r.Progress != nil {
		state.Progress = s7runtime.ScaleProgress(*r.Progress)
	}
	return nil
}

func (m *Machine) Apply(ctx context.Context, w RegisterWriter, doc *storage.Document, action Action) (*Outcome, error) {
	o := newOutcome()
	switch action {
	case ActionToggle:
		working := m.section(doc).Lights.Working
		if m.clearOnToggle {
			if err := write(ctx, w, o, m.label, VariableMachineCommand, CommandNormal); err != nil {
				return o, err
			}
		}
		return o, write(ctx, w, o, m.label, VariableMachinePowered, !working)
	case ActionReset:
		return o, write(ctx, w, o, m.label, VariableMachineCommand, CommandReset)
	case ActionSkip:
		return o, write(ctx, w, o, m.label, VariableMachineCommand, CommandSkip)
	}
	return unknownAction(m, action)
}
