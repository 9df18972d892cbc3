package runtime

import (
	"fmt"
	"github.com/pkg/errors"
	"net"
	"scadabridge/pkg/runtime/constant"
	"strconv"
	"strings"
)

// Values holds decoded variable values keyed by variable name.
type Values map[string]interface{}

type Variable struct {
	DataType   constant.DataType   `json:"dataType"`   // bool、int16、uint16
	Name       string              `json:"name"`       // 变量名称
	Address    string              `json:"address"`    // 变量地址
	AccessMode constant.AccessMode `json:"accessMode"` // 读写属性
}

// VariableAddress is the parsed form of a data block address such as DB2.DBX0.0 or DB2.DBW2.
type VariableAddress struct {
	Type   AddressType
	Block  int
	Offset int
	Bit    uint8
}

func (v *Variable) Size() int {
	return constant.DataTypeBytes[v.DataType]
}

func (v *Variable) Writable() bool {
	return v.AccessMode.Writable()
}

// ParseVariableAddress accepts DB<n>.DBX<byte>.<bit> and DB<n>.DBW<byte>, with or
// without the inner DB prefix.
func (v *Variable) ParseVariableAddress() (*VariableAddress, error) {
	if !strings.HasPrefix(v.Address, "DB") {
		return nil, v.invalid("only data block addresses are supported")
	}
	index := strings.Index(v.Address, ".")
	if index == -1 {
		return nil, v.invalid("missing byte address")
	}
	block, err := strconv.Atoi(v.Address[2:index])
	if err != nil || block <= 0 {
		return nil, v.invalid("bad data block number")
	}

	byteAddress := strings.TrimPrefix(v.Address[index+1:], "DB")
	if len(byteAddress) < 2 {
		return nil, v.invalid("missing byte address")
	}
	at, ok := StringToAddressType[byteAddress[:1]]
	if !ok {
		return nil, v.invalid(fmt.Sprintf("unsupported address type %q", byteAddress[:1]))
	}
	byteAddress = byteAddress[1:]

	va := &VariableAddress{Type: at, Block: block}
	switch at {
	case Bool:
		lastIndex := strings.LastIndex(byteAddress, ".")
		if lastIndex == -1 {
			return nil, v.invalid("bit address required")
		}
		if va.Offset, err = strconv.Atoi(byteAddress[:lastIndex]); err != nil || va.Offset < 0 {
			return nil, v.invalid("bad byte offset")
		}
		bit, err := strconv.Atoi(byteAddress[lastIndex+1:])
		if err != nil || bit < 0 || bit > 7 {
			return nil, v.invalid("bit offset must be 0-7")
		}
		va.Bit = uint8(bit)
		if v.DataType != constant.BOOL {
			return nil, v.invalid("bit address used for " + v.DataType.String())
		}
	case Word:
		if va.Offset, err = strconv.Atoi(byteAddress); err != nil || va.Offset < 0 {
			return nil, v.invalid("bad byte offset")
		}
		if v.DataType == constant.BOOL {
			return nil, v.invalid("word address used for bool")
		}
	}
	return va, nil
}

func (v *Variable) invalid(reason string) error {
	return errors.Wrapf(ErrInvalidAddress, "%s %s: %s", v.Name, v.Address, reason)
}

type S7Device struct {
	Name        string      `json:"name"`        // 设备名称
	DeviceModel string      `json:"deviceModel"` // s71200、s71500、s7300
	Address     *S7Address  `json:"address"`     // IP地址
	Units       []string    `json:"units"`       // 挂载的控制单元
	Variables   []*Variable `json:"variables"`   // 自定义变量
}

type S7Address struct {
	Location string           `json:"location"` // 地址路径
	Option   *S7AddressOption `json:"option"`   // 地址其他参数
}

type S7AddressOption struct {
	Port uint  `json:"port"`           // 端口号
	Rack uint8 `json:"rack,omitempty"` // 机架号
	Slot uint8 `json:"slot,omitempty"` // 槽位号
}

func (a *S7Address) Endpoint() string {
	port := uint(DefaultPort)
	if a.Option != nil && a.Option.Port != 0 {
		port = a.Option.Port
	}
	return net.JoinHostPort(a.Location, strconv.FormatUint(uint64(port), 10))
}

func (d *S7Device) GetVariable(name string) (*Variable, error) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, nil
		}
	}
	return nil, errors.Wrapf(constant.ErrVariableNotFound, "%s on %s", name, d.Name)
}

func (d *S7Device) HasUnit(unit string) bool {
	for _, u := range d.Units {
		if u == unit {
			return true
		}
	}
	return false
}
