package constant

import (
	"encoding/json"
	"fmt"
)

type AccessMode int8

const (
	AccessModeReadOnly AccessMode = iota
	AccessModeReadWrite
)

var AccessModeToString = map[AccessMode]string{
	AccessModeReadOnly:  "r",
	AccessModeReadWrite: "rw",
}

var StringToAccessMode = map[string]AccessMode{
	"r":  AccessModeReadOnly,
	"rw": AccessModeReadWrite,
}

func (am AccessMode) Writable() bool {
	return am == AccessModeReadWrite
}

func (am AccessMode) MarshalJSON() ([]byte, error) {
	if s, ok := AccessModeToString[am]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown accessMode %d", am)
}

func (am *AccessMode) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToAccessMode[s]
	if !ok {
		return fmt.Errorf("unknown accessMode %s", s)
	}
	*am = v
	return nil
}
