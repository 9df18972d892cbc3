package runtime

import (
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"scadabridge/pkg/runtime/constant"
	"testing"
)

func TestParseVariableAddress(t *testing.T) {
	cases := []struct {
		address  string
		dataType constant.DataType
		expect   VariableAddress
	}{
		{"DB2.DBX0.0", constant.BOOL, VariableAddress{Type: Bool, Block: 2, Offset: 0, Bit: 0}},
		{"DB5.DBX4.7", constant.BOOL, VariableAddress{Type: Bool, Block: 5, Offset: 4, Bit: 7}},
		{"DB3.X8.3", constant.BOOL, VariableAddress{Type: Bool, Block: 3, Offset: 8, Bit: 3}},
		{"DB2.DBW2", constant.UINT16, VariableAddress{Type: Word, Block: 2, Offset: 2}},
		{"DB5.W6", constant.INT16, VariableAddress{Type: Word, Block: 5, Offset: 6}},
	}
	for _, c := range cases {
		v := &Variable{Name: "v", Address: c.address, DataType: c.dataType}
		actual, err := v.ParseVariableAddress()
		require.NoError(t, err, c.address)
		assert.Equal(t, c.expect, *actual, c.address)
	}
}

func TestParseVariableAddressRejects(t *testing.T) {
	cases := []struct {
		address  string
		dataType constant.DataType
	}{
		{"M0.0", constant.BOOL},
		{"DB2", constant.BOOL},
		{"DBx.DBX0.0", constant.BOOL},
		{"DB2.DBX0.8", constant.BOOL},
		{"DB2.DBX0", constant.BOOL},
		{"DB2.DBW2", constant.BOOL},
		{"DB2.DBX0.1", constant.UINT16},
		{"DB2.DBD4", constant.INT16},
		{"DB0.DBW2", constant.INT16},
	}
	for _, c := range cases {
		v := &Variable{Name: "v", Address: c.address, DataType: c.dataType}
		_, err := v.ParseVariableAddress()
		assert.True(t, errors.Is(err, ErrInvalidAddress), c.address)
	}
}

func TestGetVariable(t *testing.T) {
	d := &S7Device{
		Name:      "PLC1",
		Variables: []*Variable{{Name: "powered", Address: "DB2.DBX0.0"}},
	}
	v, err := d.GetVariable("powered")
	require.NoError(t, err)
	assert.Equal(t, "DB2.DBX0.0", v.Address)

	_, err = d.GetVariable("mode")
	assert.True(t, errors.Is(err, constant.ErrVariableNotFound))
}

func TestEndpoint(t *testing.T) {
	a := &S7Address{Location: "192.168.0.1"}
	assert.Equal(t, "192.168.0.1:102", a.Endpoint())
	a.Option = &S7AddressOption{Port: 1102, Rack: 0, Slot: 1}
	assert.Equal(t, "192.168.0.1:1102", a.Endpoint())
}
