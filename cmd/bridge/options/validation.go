package options

import (
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"scadabridge/pkg/controller"
	"scadabridge/pkg/protocol/s7/model"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"strconv"
	"time"
)

func Validate(o *Options) []error {
	var errs []error
	if fieldErrs := validateOptions(o); len(fieldErrs) != 0 {
		errs = append(errs, fieldErrs.ToAggregate().Errors()...)
	}
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func validateOptions(o *Options) field.ErrorList {
	allErrs := field.ErrorList{}
	if port, err := strconv.Atoi(o.Port); err != nil || port <= 0 || port > 65535 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("port"), o.Port, "must be a port number between 1 and 65535"))
	}
	if len(o.StateFile) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("state-file"), ""))
	}
	for name, d := range map[string]int64{
		"graceful-timeout": int64(o.Wait.Duration),
		"poll-interval":    int64(o.PollInterval.Duration),
		"error-backoff":    int64(o.ErrorBackoff.Duration),
		"io-timeout":       int64(o.IOTimeout.Duration),
	} {
		if d <= 0 {
			allErrs = append(allErrs, field.Invalid(field.NewPath(name), time.Duration(d).String(), "must be greater than zero"))
		}
	}
	if o.MQTT.QoS > 2 {
		allErrs = append(allErrs, field.NotSupported(field.NewPath("mqtt", "qos"), o.MQTT.QoS, []string{"0", "1", "2"}))
	}
	if o.MQTT.Enabled() && len(o.MQTT.Topic) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("mqtt", "topic"), "required when a broker is set"))
	}
	allErrs = append(allErrs, validateDevices(o.Devices, field.NewPath("devices"))...)
	return allErrs
}

func validateDevices(devices []*s7runtime.S7Device, fldPath *field.Path) field.ErrorList {
	allErrs := field.ErrorList{}
	if len(devices) == 0 {
		return append(allErrs, field.Required(fldPath, "at least one device"))
	}

	knownUnits := sets.NewString(controller.Units()...)
	models := sets.StringKeySet(model.S7Modelers)
	names := sets.NewString()
	hosted := make(map[string]string)
	for i, d := range devices {
		idxPath := fldPath.Index(i)
		if d == nil {
			allErrs = append(allErrs, field.Required(idxPath, ""))
			continue
		}
		if len(d.Name) == 0 {
			allErrs = append(allErrs, field.Required(idxPath.Child("name"), ""))
		} else if names.Has(d.Name) {
			allErrs = append(allErrs, field.Duplicate(idxPath.Child("name"), d.Name))
		}
		names.Insert(d.Name)

		if !models.Has(d.DeviceModel) {
			allErrs = append(allErrs, field.NotSupported(idxPath.Child("deviceModel"), d.DeviceModel, models.List()))
		}
		if d.Address == nil || len(d.Address.Location) == 0 {
			allErrs = append(allErrs, field.Required(idxPath.Child("address", "location"), ""))
		}

		for j, unit := range d.Units {
			unitPath := idxPath.Child("units").Index(j)
			if !knownUnits.Has(unit) {
				allErrs = append(allErrs, field.NotSupported(unitPath, unit, knownUnits.List()))
				continue
			}
			if owner, ok := hosted[unit]; ok {
				allErrs = append(allErrs, field.Invalid(unitPath, unit, "already hosted by "+owner))
				continue
			}
			hosted[unit] = d.Name
		}

		allErrs = append(allErrs, validateVariables(d.Variables, idxPath.Child("variables"))...)
	}
	return allErrs
}

func validateVariables(variables []*s7runtime.Variable, fldPath *field.Path) field.ErrorList {
	allErrs := field.ErrorList{}
	names := sets.NewString()
	for i, v := range variables {
		idxPath := fldPath.Index(i)
		if v == nil {
			allErrs = append(allErrs, field.Required(idxPath, ""))
			continue
		}
		if len(v.Name) == 0 {
			allErrs = append(allErrs, field.Required(idxPath.Child("name"), ""))
		} else if names.Has(v.Name) {
			allErrs = append(allErrs, field.Duplicate(idxPath.Child("name"), v.Name))
		}
		names.Insert(v.Name)
		if _, err := v.ParseVariableAddress(); err != nil {
			allErrs = append(allErrs, field.Invalid(idxPath.Child("address"), v.Address, err.Error()))
		}
	}
	return allErrs
}
