package model

import (
	"context"
	s7 "scadabridge/pkg/protocol/s7/runtime"
	"time"
)

var _ S7Modeler = (*S7)(nil)

var S7Modelers = map[string]S7Modeler{
	"s71200": &S7{DefaultRack: 0, DefaultSlot: 1},
	"s71500": &S7{DefaultRack: 0, DefaultSlot: 1},
	"s7300":  &S7{DefaultRack: 0, DefaultSlot: 2},
}

type S7Modeler interface {
	Dial(ctx context.Context, device *s7.S7Device, timeout time.Duration) (s7.Conn, error)
}
