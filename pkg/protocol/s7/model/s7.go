package model

import (
	"context"
	"github.com/robinson/gos7"
	s7 "scadabridge/pkg/protocol/s7/runtime"
	"time"
)

const idleTimeout = 60 * time.Second

// S7 dials a CPU over ISO-on-TCP. Rack and slot fall back to the model defaults
// when the device address leaves them out.
type S7 struct {
	DefaultRack int
	DefaultSlot int
}

type session struct {
	gos7.Client
	handler *gos7.TCPClientHandler
}

func (s *session) Close() error {
	return s.handler.Close()
}

func (m *S7) Dial(ctx context.Context, device *s7.S7Device, timeout time.Duration) (s7.Conn, error) {
	rack, slot := m.DefaultRack, m.DefaultSlot
	if o := device.Address.Option; o != nil && (o.Rack != 0 || o.Slot != 0) {
		rack, slot = int(o.Rack), int(o.Slot)
	}
	handler := gos7.NewTCPClientHandler(device.Address.Endpoint(), rack, slot)
	handler.Timeout = timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < handler.Timeout {
			handler.Timeout = left
		}
	}
	handler.IdleTimeout = idleTimeout
	if err := handler.Connect(); err != nil {
		return nil, err
	}
	return &session{
		Client:  gos7.NewClient(handler),
		handler: handler,
	}, nil
}
