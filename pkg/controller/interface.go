package controller

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/runtime/constant"
	"scadabridge/pkg/storage"
	"sort"
	"strings"
)

type Action string

const (
	ActionPower   Action = "power"
	ActionForward Action = "forward"
	ActionReverse Action = "reverse"
	ActionToggle  Action = "toggle"
	ActionReset   Action = "reset"
	ActionSkip    Action = "skip"
)

// 前端旧的动作名
var actionAliases = map[string]Action{
	"encender":  ActionPower,
	"adelante":  ActionForward,
	"reversa":   ActionReverse,
	"reiniciar": ActionReset,
}

var knownActions = map[Action]struct{}{
	ActionPower:   {},
	ActionForward: {},
	ActionReverse: {},
	ActionToggle:  {},
	ActionReset:   {},
	ActionSkip:    {},
}

// ParseAction accepts canonical names and the front end aliases, case
// insensitive.
func ParseAction(name string) (Action, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := actionAliases[n]; ok {
		return a, nil
	}
	if _, ok := knownActions[Action(n)]; ok {
		return Action(n), nil
	}
	return "", errors.Wrapf(constant.ErrUnknownAction, "%q", name)
}

const (
	UnitConveyor = "conveyor"
	UnitMixer    = "mixer"
	UnitPacker   = "packer"
	UnitRobot    = "robot"
)

// RegisterWriter writes one mapped variable on the device hosting a unit.
type RegisterWriter interface {
	WriteVariable(ctx context.Context, name string, value interface{}) error
}

// Controller is the state machine of one unit. Derive projects raw variable
// values into the unit's section of the document; Apply decides, from the
// document, which registers an action writes.
type Controller interface {
	Unit() string
	// Label is the name used in audit entries.
	Label() string
	Actions() []Action
	Derive(values s7runtime.Values, doc *storage.Document) error
	Apply(ctx context.Context, w RegisterWriter, doc *storage.Document, action Action) (*Outcome, error)
}

// Outcome holds the values that reached the device and the audit entries of an
// action, also when it failed halfway.
type Outcome struct {
	Written s7runtime.Values
	Audit   []string
}

func newOutcome() *Outcome {
	return &Outcome{Written: s7runtime.Values{}}
}

func (o *Outcome) audit(format string, args ...interface{}) {
	o.Audit = append(o.Audit, fmt.Sprintf(format, args...))
}

var controllers = map[string]Controller{
	UnitConveyor: &Conveyor{},
	UnitMixer:    NewMixer(),
	UnitPacker:   NewPacker(),
	UnitRobot:    &Robot{},
}

// 兼容旧的设备名
var unitAliases = map[string]string{
	"plc1": UnitConveyor,
	"plc2": UnitMixer,
	"plc3": UnitPacker,
}

// Lookup resolves a unit name or one of its legacy device aliases.
func Lookup(key string) (Controller, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if alias, ok := unitAliases[k]; ok {
		k = alias
	}
	c, ok := controllers[k]
	if !ok {
		return nil, errors.Wrapf(constant.ErrUnknownDevice, "%q", key)
	}
	return c, nil
}

// Units returns every known unit, sorted.
func Units() []string {
	units := make([]string, 0, len(controllers))
	for u := range controllers {
		units = append(units, u)
	}
	sort.Strings(units)
	return units
}

// Run applies action, projects whatever was written into doc with the same
// rules the poller uses and appends the audit entries. doc is mutated even on
// failure.
func Run(ctx context.Context, c Controller, w RegisterWriter, doc *storage.Document, action Action) error {
	outcome, err := c.Apply(ctx, w, doc, action)
	if outcome != nil {
		if len(outcome.Written) > 0 {
			if derr := c.Derive(outcome.Written, doc); derr != nil {
				klog.ErrorS(derr, "Failed to derive written values", "unit", c.Unit())
			}
		}
		for _, entry := range outcome.Audit {
			doc.AppendLog(entry)
		}
	}
	return err
}

func unknownAction(c Controller, action Action) (*Outcome, error) {
	supported := make([]string, 0, len(c.Actions()))
	for _, a := range c.Actions() {
		supported = append(supported, string(a))
	}
	o := newOutcome()
	o.audit("%s: Acción desconocida %s", c.Label(), action)
	return o, errors.Wrapf(constant.ErrUnknownAction, "%s does not support %s, supported: %s", c.Unit(), action, strings.Join(supported, ", "))
}
