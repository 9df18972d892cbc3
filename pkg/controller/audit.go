package controller

import (
	"context"
	"fmt"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"strings"
)

// 审计日志里的变量名
var variableLabels = map[string]string{
	"powered":       "encendido",
	"robot-powered": "encendido",
	"mode":          "modo",
	"command":       "comando",
	"robot-command": "comando",
}

var modeLabels = map[uint16]string{
	0: "Apagado",
	1: "Adelante",
	2: "Reversa",
}

var commandLabels = map[uint16]string{
	0: "Normal",
	1: "Reset",
	2: "Skip",
}

// write sends one value and records it on o. A failed write is audited too.
func write(ctx context.Context, w RegisterWriter, o *Outcome, label, name string, value interface{}) error {
	if err := w.WriteVariable(ctx, name, value); err != nil {
		klog.V(2).InfoS("Failed to write variable", "unit", label, "variable", name, "value", value, "err", err)
		o.audit("ERROR: %s - No se pudo escribir %s", label, variableLabel(name))
		return err
	}
	o.Written[name] = value
	o.audit("%s", describeWrite(label, name, value))
	return nil
}

func describeWrite(label, name string, value interface{}) string {
	switch v := value.(type) {
	case bool:
		state := "Desactivado"
		if v {
			state = "Activado"
		}
		return fmt.Sprintf("%s: %s %s", label, state, variableLabel(name))
	case uint16:
		if strings.HasSuffix(name, "mode") {
			if s, ok := modeLabels[v]; ok {
				return fmt.Sprintf("%s: Modo establecido a %s", label, s)
			}
		}
		if strings.HasSuffix(name, "command") {
			if s, ok := commandLabels[v]; ok {
				return fmt.Sprintf("%s: Comando %s enviado", label, s)
			}
		}
	}
	return fmt.Sprintf("%s: %s establecido a %v", label, variableLabel(name), value)
}

func variableLabel(name string) string {
	if l, ok := variableLabels[name]; ok {
		return l
	}
	return name
}

// decode copies the values a unit cares about into out, a struct of pointer
// fields, so absent variables stay nil.
func decode(values s7runtime.Values, out interface{}) error {
	if err := mapstructure.Decode(map[string]interface{}(values), out); err != nil {
		return errors.Wrap(err, "decode variable values")
	}
	return nil
}
