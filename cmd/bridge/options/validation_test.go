package options

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/validation/field"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/runtime/constant"
	"sigs.k8s.io/yaml"
	"testing"
	"time"
)

func fields(errs field.ErrorList) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestDefaultOptionsAreValid(t *testing.T) {
	o := NewDefaultOptions().Complete()
	assert.Empty(t, validateOptions(o))
}

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *Options)
		field  string
	}{
		{"bad port", func(o *Options) { o.Port = "http" }, "port"},
		{"port out of range", func(o *Options) { o.Port = "70000" }, "port"},
		{"empty state file", func(o *Options) { o.StateFile = "" }, "state-file"},
		{"zero poll interval", func(o *Options) { o.PollInterval.Duration = 0 }, "poll-interval"},
		{"negative io timeout", func(o *Options) { o.IOTimeout.Duration = -1 }, "io-timeout"},
		{"qos", func(o *Options) { o.MQTT.QoS = 3 }, "mqtt.qos"},
		{"topic required with broker", func(o *Options) {
			o.MQTT.Broker = "tcp://127.0.0.1:1883"
			o.MQTT.Topic = ""
		}, "mqtt.topic"},
		{"no devices", func(o *Options) { o.Devices = nil }, "devices"},
		{"duplicate device", func(o *Options) { o.Devices[1].Name = o.Devices[0].Name }, "devices[1].name"},
		{"unknown model", func(o *Options) { o.Devices[0].DeviceModel = "s7400" }, "devices[0].deviceModel"},
		{"missing location", func(o *Options) { o.Devices[0].Address.Location = "" }, "devices[0].address.location"},
		{"unknown unit", func(o *Options) { o.Devices[0].Units = []string{"oven"} }, "devices[0].units[0]"},
		{"unit hosted twice", func(o *Options) { o.Devices[1].Units = append(o.Devices[1].Units, "conveyor") }, "devices[1].units[1]"},
		{"duplicate variable", func(o *Options) {
			o.Devices[0].Variables = append(o.Devices[0].Variables, &s7runtime.Variable{
				Name: "powered", Address: "DB2.DBX0.1", DataType: constant.BOOL, AccessMode: constant.AccessModeReadWrite,
			})
		}, "devices[0].variables[2].name"},
		{"bad address", func(o *Options) { o.Devices[0].Variables[0].Address = "M0.0" }, "devices[0].variables[0].address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewDefaultOptions().Complete()
			tt.modify(o)
			errs := validateOptions(o)
			require.NotEmpty(t, errs)
			assert.Contains(t, fields(errs), tt.field)
		})
	}
}

func TestDevicesFromConfigFile(t *testing.T) {
	data := []byte(`
port: "8080"
poll-interval: 250ms
graceful-timeout: 1m
devices:
- name: line
  deviceModel: s71500
  address:
    location: 10.0.0.7
  units: [conveyor]
  variables:
  - name: powered
    address: DB2.DBX0.0
    dataType: bool
    accessMode: rw
  - name: mode
    address: DB2.DBW2
    dataType: uint16
    accessMode: rw
`)
	o := NewDefaultOptions()
	require.NoError(t, yaml.Unmarshal(data, o))
	o.Complete()
	assert.Equal(t, "8080", o.Port)
	assert.Equal(t, 250*time.Millisecond, o.PollInterval.Duration)
	assert.Equal(t, time.Minute, o.Wait.Duration)
	assert.Equal(t, 2*time.Second, o.IOTimeout.Duration)
	require.Len(t, o.Devices, 1)
	assert.Nil(t, o.Devices[0].Address.Option)
	assert.Equal(t, "10.0.0.7:102", o.Devices[0].Address.Endpoint())
	assert.Equal(t, constant.UINT16, o.Devices[0].Variables[1].DataType)
	assert.Empty(t, validateOptions(o))
}

func TestCompleteFallsBackToPlantDevices(t *testing.T) {
	o := NewDefaultOptions()
	assert.Empty(t, o.Devices)
	o.Complete()
	require.Len(t, o.Devices, 3)
	assert.Equal(t, []string{"packer", "robot"}, o.Devices[2].Units)
}

func TestDefaultConfigWritesReadableDurations(t *testing.T) {
	data, err := yaml.Marshal(NewDefaultOptions().Complete())
	require.NoError(t, err)
	assert.Contains(t, string(data), "poll-interval: 1s")
	assert.Contains(t, string(data), "error-backoff: 5s")

	o := NewDefaultOptions()
	require.NoError(t, yaml.Unmarshal(data, o))
	assert.Equal(t, 5*time.Second, o.ErrorBackoff.Duration)
	assert.Equal(t, 15*time.Second, o.Wait.Duration)
}
