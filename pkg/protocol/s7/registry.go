package s7

import (
	"context"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"scadabridge/pkg/protocol/s7/model"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/runtime/constant"
	"time"
)

// Registry owns one connection per configured device. It is shared by the
// poller and the action layer.
type Registry struct {
	clients map[string]*s7runtime.Client
	order   []*s7runtime.Client
}

// NewRegistry builds clients that dial through the modeler registered for each
// device model.
func NewRegistry(devices []*s7runtime.S7Device, ioTimeout time.Duration) (*Registry, error) {
	for _, d := range devices {
		if _, ok := model.S7Modelers[d.DeviceModel]; !ok {
			return nil, errors.Errorf("unsupported s7 device model %q for %s", d.DeviceModel, d.Name)
		}
	}
	return NewRegistryWithDialer(devices, func(ctx context.Context, device *s7runtime.S7Device) (s7runtime.Conn, error) {
		return model.S7Modelers[device.DeviceModel].Dial(ctx, device, ioTimeout)
	}), nil
}

func NewRegistryWithDialer(devices []*s7runtime.S7Device, dial s7runtime.DialFunc) *Registry {
	r := &Registry{
		clients: make(map[string]*s7runtime.Client, len(devices)),
		order:   make([]*s7runtime.Client, 0, len(devices)),
	}
	for _, d := range devices {
		c := s7runtime.NewClient(d.DeepCopy(), dial)
		r.clients[d.Name] = c
		r.order = append(r.order, c)
	}
	return r
}

func (r *Registry) Get(name string) (*s7runtime.Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, errors.Wrapf(constant.ErrUnknownDevice, "%s", name)
	}
	return c, nil
}

// ForUnit returns the device hosting unit.
func (r *Registry) ForUnit(unit string) (*s7runtime.Client, error) {
	for _, c := range r.order {
		if c.Device.HasUnit(unit) {
			return c, nil
		}
	}
	return nil, errors.Wrapf(constant.ErrUnknownDevice, "no device hosts %s", unit)
}

// Clients returns the clients in configuration order.
func (r *Registry) Clients() []*s7runtime.Client {
	return r.order
}

func (r *Registry) DisconnectAll() {
	for _, c := range r.order {
		c.Disconnect()
	}
	klog.V(2).InfoS("Disconnected all s7 devices", "count", len(r.order))
}
