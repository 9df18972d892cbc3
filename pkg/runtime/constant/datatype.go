package constant

import (
	"encoding/json"
	"fmt"
)

type DataType int8

const (
	BOOL DataType = iota
	INT16
	UINT16
)

var DataTypeToString = map[DataType]string{
	BOOL:   "bool",
	INT16:  "int16",
	UINT16: "uint16",
}

var StringToDataType = map[string]DataType{
	"bool":   BOOL,
	"int16":  INT16,
	"uint16": UINT16,
}

// DataTypeBytes is the number of bytes fetched from a data block for one value.
var DataTypeBytes = map[DataType]int{
	BOOL:   1,
	INT16:  2,
	UINT16: 2,
}

func (dt DataType) String() string {
	if s, ok := DataTypeToString[dt]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", dt)
}

func (dt DataType) MarshalJSON() ([]byte, error) {
	if s, ok := DataTypeToString[dt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown data type %d", dt)
}

func (dt *DataType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToDataType[s]
	if !ok {
		return fmt.Errorf("unknown data type %s", s)
	}
	*dt = v
	return nil
}
