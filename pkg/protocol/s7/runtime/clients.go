package runtime

import (
	"context"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"io"
	"k8s.io/klog/v2"
	"net"
	"scadabridge/pkg/runtime/constant"
	"sort"
	"sync"
	"syscall"
)

// Conn is a live session with one device.
type Conn interface {
	AGReadDB(dbNumber int, start int, size int, buffer []byte) error
	AGWriteDB(dbNumber int, start int, size int, buffer []byte) error
	Close() error
}

type DialFunc func(ctx context.Context, device *S7Device) (Conn, error)

// Client owns the connection to a single device and tracks its health. Every
// use of the session is serialized by opMu since the underlying s7 client is
// not safe for concurrent use. There is no retry here.
type Client struct {
	Device    *S7Device
	dial      DialFunc
	opMu      sync.Mutex
	conn      Conn
	connected atomic.Bool
}

func NewClient(device *S7Device, dial DialFunc) *Client {
	return &Client{
		Device: device,
		dial:   dial,
	}
}

func (c *Client) Healthy() bool {
	return c.connected.Load()
}

func (c *Client) Connect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, err := c.dial(ctx, c.Device)
	if err != nil {
		klog.V(2).InfoS("Failed to connect s7 device", "device", c.Device.Name, "endpoint", c.Device.Address.Endpoint(), "err", err)
		kind := constant.ErrConnection
		if isTimeout(err) {
			kind = constant.ErrIOTimeout
		}
		return errors.Wrapf(kind, "connect %s: %v", c.Device.Name, err)
	}
	c.conn = conn
	if !c.connected.Swap(true) {
		klog.V(1).InfoS("Connected to s7 device", "device", c.Device.Name, "endpoint", c.Device.Address.Endpoint())
	}
	return nil
}

func (c *Client) Disconnect() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.dropLocked(nil)
}

func (c *Client) ReadBlock(ctx context.Context, block, offset, size int) ([]byte, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.readBlockLocked(ctx, block, offset, size)
}

func (c *Client) WriteBlock(ctx context.Context, block, offset int, data []byte) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.writeBlockLocked(ctx, block, offset, data)
}

// Exclusive runs fn while holding the device lock, so a read followed by a
// write cannot interleave with any other use of the session.
func (c *Client) Exclusive(ctx context.Context, fn func(rw BlockReadWriter) error) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.conn == nil {
		return errors.Wrapf(constant.ErrDeviceUnavailable, "%s", c.Device.Name)
	}
	return fn(lockedClient{c})
}

// ReadVariables reads every mapped variable, one request per contiguous data
// block span.
func (c *Client) ReadVariables(ctx context.Context) (Values, error) {
	values := make(Values, len(c.Device.Variables))
	err := c.Exclusive(ctx, func(rw BlockReadWriter) error {
		spans, err := blockSpans(c.Device.Variables)
		if err != nil {
			return err
		}
		for _, span := range spans {
			buf, err := rw.ReadBlock(ctx, span.block, span.start, span.size)
			if err != nil {
				return err
			}
			for _, vp := range span.variables {
				value, err := Decode(vp.variable, buf[vp.offset-span.start:])
				if err != nil {
					return err
				}
				values[vp.variable.Name] = value
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// WriteVariable resolves name on this device and writes value through the
// read-modify-write primitive.
func (c *Client) WriteVariable(ctx context.Context, name string, value interface{}) error {
	v, err := c.Device.GetVariable(name)
	if err != nil {
		return err
	}
	if !v.Writable() {
		return errors.Wrapf(constant.ErrReadOnlyWrite, "%s on %s", name, c.Device.Name)
	}
	return c.Exclusive(ctx, func(rw BlockReadWriter) error {
		return ReadModifyWrite(ctx, rw, v, value)
	})
}

func (c *Client) readBlockLocked(ctx context.Context, block, offset, size int) ([]byte, error) {
	if c.conn == nil {
		return nil, errors.Wrapf(constant.ErrDeviceUnavailable, "%s", c.Device.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if err := c.conn.AGReadDB(block, offset, size, buf); err != nil {
		return nil, c.failLocked(err, "read", block, offset)
	}
	return buf, nil
}

func (c *Client) writeBlockLocked(ctx context.Context, block, offset int, data []byte) error {
	if c.conn == nil {
		return errors.Wrapf(constant.ErrDeviceUnavailable, "%s", c.Device.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.AGWriteDB(block, offset, len(data), data); err != nil {
		return c.failLocked(err, "write", block, offset)
	}
	return nil
}

// failLocked drops the session on any io failure; the poller reconnects it.
func (c *Client) failLocked(err error, op string, block, offset int) error {
	kind := constant.ErrProtocol
	switch {
	case isTimeout(err):
		kind = constant.ErrIOTimeout
	case isConnectionError(err):
		kind = constant.ErrConnection
	}
	wrapped := errors.Wrapf(kind, "%s DB%d.%d on %s: %v", op, block, offset, c.Device.Name, err)
	c.dropLocked(wrapped)
	return wrapped
}

func (c *Client) dropLocked(reason error) {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			klog.V(4).InfoS("Failed to close s7 session", "device", c.Device.Name, "err", err)
		}
		c.conn = nil
	}
	if c.connected.Swap(false) {
		if reason != nil {
			klog.V(1).InfoS("Disconnected from s7 device", "device", c.Device.Name, "reason", reason.Error())
		} else {
			klog.V(1).InfoS("Disconnected from s7 device", "device", c.Device.Name)
		}
	}
}

type lockedClient struct {
	c *Client
}

func (l lockedClient) ReadBlock(ctx context.Context, block, offset, size int) ([]byte, error) {
	return l.c.readBlockLocked(ctx, block, offset, size)
}

func (l lockedClient) WriteBlock(ctx context.Context, block, offset int, data []byte) error {
	return l.c.writeBlockLocked(ctx, block, offset, data)
}

type variableParse struct {
	variable *Variable
	offset   int
}

type blockSpan struct {
	block     int
	start     int
	size      int
	variables []variableParse
}

func blockSpans(variables []*Variable) ([]*blockSpan, error) {
	vs := make(VariableSlice, 0, len(variables))
	for _, v := range variables {
		if _, err := v.ParseVariableAddress(); err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	sort.Sort(vs)

	spans := make([]*blockSpan, 0)
	var current *blockSpan
	for _, v := range vs {
		va, _ := v.ParseVariableAddress()
		if current == nil || current.block != va.Block {
			current = &blockSpan{block: va.Block, start: va.Offset}
			spans = append(spans, current)
		}
		if end := va.Offset + v.Size() - current.start; end > current.size {
			current.size = end
		}
		current.variables = append(current.variables, variableParse{variable: v, offset: va.Offset})
	}
	return spans, nil
}

type VariableSlice []*Variable

func (vs VariableSlice) Len() int {
	return len(vs)
}

func (vs VariableSlice) Less(i, j int) bool {
	ai, _ := vs[i].ParseVariableAddress()
	aj, _ := vs[j].ParseVariableAddress()
	if ai.Block != aj.Block {
		return ai.Block < aj.Block
	}
	if ai.Offset != aj.Offset {
		return ai.Offset < aj.Offset
	}
	return ai.Bit < aj.Bit
}

func (vs VariableSlice) Swap(i, j int) {
	vs[i], vs[j] = vs[j], vs[i]
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnectionError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
