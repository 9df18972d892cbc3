package collector

import (
	"context"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"scadabridge/pkg/broker"
	"scadabridge/pkg/controller"
	"scadabridge/pkg/protocol/s7"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/storage"
	"sync"
	"time"
)

const (
	DefaultInterval     = 1 * time.Second
	DefaultErrorBackoff = 5 * time.Second
)

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.interval = d
	}
}

func WithErrorBackoff(d time.Duration) Option {
	return func(p *Poller) {
		p.errorBackoff = d
	}
}

func WithPublisher(publisher broker.Publisher) Option {
	return func(p *Poller) {
		p.publisher = publisher
	}
}

// Poller keeps the document in step with the devices: every tick it
// reconnects what is down, reads what is up and derives the display fields.
type Poller struct {
	registry     *s7.Registry
	store        storage.StateStore
	publisher    broker.Publisher
	interval     time.Duration
	errorBackoff time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	startOnce    sync.Once
	stopOnce     sync.Once
}

type reading struct {
	client *s7runtime.Client
	values s7runtime.Values
}

func NewPoller(registry *s7.Registry, store storage.StateStore, opts ...Option) *Poller {
	p := &Poller{
		registry:     registry,
		store:        store,
		publisher:    broker.NopPublisher{},
		interval:     DefaultInterval,
		errorBackoff: DefaultErrorBackoff,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the loop in its own goroutine. Calling it twice is a no-op.
func (p *Poller) Start() {
	p.startOnce.Do(func() {
		go p.run()
	})
}

func (p *Poller) run() {
	defer close(p.doneCh)
	klog.V(1).InfoS("Started poller", "interval", p.interval)
	for {
		wait := p.interval
		if err := p.safeTick(context.Background()); err != nil {
			klog.ErrorS(err, "Poll tick failed, backing off", "backoff", p.errorBackoff)
			wait = p.errorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-p.stopCh:
			timer.Stop()
			klog.V(1).InfoS("Stopped poller")
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in poll tick: %v", r)
		}
	}()
	return p.Tick(ctx)
}

// Tick runs one poll cycle. A device failure is logged and skipped, only a
// failure to persist the document is returned.
func (p *Poller) Tick(ctx context.Context) error {
	readings := make([]reading, 0, len(p.registry.Clients()))
	for _, c := range p.registry.Clients() {
		if !c.Healthy() {
			if err := c.Connect(ctx); err != nil {
				klog.V(2).InfoS("Device still unreachable", "device", c.Device.Name, "err", err)
				continue
			}
		}
		values, err := c.ReadVariables(ctx)
		if err != nil {
			klog.V(2).InfoS("Failed to read device", "device", c.Device.Name, "err", err)
			continue
		}
		klog.V(4).InfoS("Read device", "device", c.Device.Name, "values", values)
		readings = append(readings, reading{client: c, values: values})
	}
	if len(readings) == 0 {
		return nil
	}

	doc, err := p.store.Update(func(doc *storage.Document) error {
		for _, r := range readings {
			deriveUnits(r, doc)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "save polled state")
	}
	p.publisher.Publish(doc)
	return nil
}

func deriveUnits(r reading, doc *storage.Document) {
	for _, unit := range r.client.Device.Units {
		c, err := controller.Lookup(unit)
		if err != nil {
			klog.V(2).InfoS("Unknown unit on device", "device", r.client.Device.Name, "unit", unit)
			continue
		}
		if err = c.Derive(r.values, doc); err != nil {
			klog.ErrorS(err, "Failed to derive unit state", "device", r.client.Device.Name, "unit", unit)
		}
	}
}

// Shutdown stops the loop, waits for the current tick, then closes every
// device session.
func (p *Poller) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	// never started, nothing to wait for
	p.startOnce.Do(func() {
		close(p.doneCh)
	})
	finished := false
	select {
	case <-p.doneCh:
		finished = true
	case <-ctx.Done():
	}
	p.registry.DisconnectAll()
	if !finished {
		return errors.Wrap(ctx.Err(), "wait for poller")
	}
	return nil
}
