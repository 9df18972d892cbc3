package runtime

import "errors"

var ErrInvalidAddress = errors.New("invalid s7 variable address")

const DefaultPort = 102

type AddressType int8

const (
	Bool AddressType = iota
	Word
)

var StringToAddressType = map[string]AddressType{
	"X": Bool,
	"W": Word,
}
