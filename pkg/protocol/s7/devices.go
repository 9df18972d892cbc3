package s7

import (
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/runtime/constant"
)

func boolVar(name, address string, mode constant.AccessMode) *s7runtime.Variable {
	return &s7runtime.Variable{Name: name, Address: address, DataType: constant.BOOL, AccessMode: mode}
}

func wordVar(name, address string, dt constant.DataType, mode constant.AccessMode) *s7runtime.Variable {
	return &s7runtime.Variable{Name: name, Address: address, DataType: dt, AccessMode: mode}
}

func defaultAddress(location string) *s7runtime.S7Address {
	return &s7runtime.S7Address{
		Location: location,
		Option:   &s7runtime.S7AddressOption{Port: s7runtime.DefaultPort, Rack: 0, Slot: 1},
	}
}

// DefaultDevices is the plant as wired on the line: the belt on PLC1, the
// mixer on PLC2, the packer and the robot sharing PLC3.
func DefaultDevices() []*s7runtime.S7Device {
	rw, r := constant.AccessModeReadWrite, constant.AccessModeReadOnly
	return []*s7runtime.S7Device{
		{
			Name:        "PLC1",
			DeviceModel: "s71200",
			Address:     defaultAddress("192.168.0.1"),
			Units:       []string{"conveyor"},
			Variables: []*s7runtime.Variable{
				boolVar("powered", "DB2.DBX0.0", rw),
				wordVar("mode", "DB2.DBW2", constant.UINT16, rw),
			},
		},
		{
			Name:        "PLC2",
			DeviceModel: "s71200",
			Address:     defaultAddress("192.168.0.2"),
			Units:       []string{"mixer"},
			Variables: []*s7runtime.Variable{
				boolVar("detected", "DB5.DBX0.0", r),
				wordVar("command", "DB5.DBW2", constant.UINT16, rw),
				boolVar("powered", "DB5.DBX4.0", rw),
				wordVar("progress", "DB5.DBW6", constant.INT16, r),
			},
		},
		{
			Name:        "PLC3",
			DeviceModel: "s71200",
			Address:     defaultAddress("192.168.0.4"),
			Units:       []string{"packer", "robot"},
			Variables: []*s7runtime.Variable{
				boolVar("powered", "DB3.DBX0.0", rw),
				wordVar("command", "DB3.DBW2", constant.UINT16, rw),
				boolVar("detected", "DB3.DBX4.0", r),
				wordVar("progress", "DB3.DBW6", constant.INT16, r),
				boolVar("robot-powered", "DB3.DBX8.0", rw),
				wordVar("robot-command", "DB3.DBW10", constant.UINT16, rw),
				wordVar("robot-progress", "DB3.DBW12", constant.INT16, r),
			},
		},
	}
}
