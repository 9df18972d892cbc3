// Package s7test provides an in-memory s7 device for tests.
package s7test

import (
	"context"
	"github.com/pkg/errors"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/utils/binutil"
	"sync"
)

const blockSize = 64

type Write struct {
	Block  int
	Offset int
	Data   []byte
}

// PLC holds data blocks in memory and records every write it receives.
type PLC struct {
	mu         sync.Mutex
	blocks     map[int][]byte
	writes     []Write
	reads      int
	dials      int
	connectErr error
	readErr    error
	writeErr   error
}

func NewPLC() *PLC {
	return &PLC{blocks: make(map[int][]byte)}
}

func (p *PLC) block(n int) []byte {
	b, ok := p.blocks[n]
	if !ok {
		b = make([]byte, blockSize)
		p.blocks[n] = b
	}
	return b
}

func (p *PLC) SetByte(block, offset int, v byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.block(block)[offset] = v
}

func (p *PLC) Byte(block, offset int) byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.block(block)[offset]
}

func (p *PLC) SetBit(block, offset int, bit uint8, v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.block(block)
	b[offset] = binutil.SetBit(b[offset], bit, v)
}

func (p *PLC) Bit(block, offset int, bit uint8) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return binutil.TestBit(p.block(block)[offset], bit)
}

func (p *PLC) SetWord(block, offset int, v uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	binutil.WriteUint16(p.block(block)[offset:], v)
}

func (p *PLC) Word(block, offset int) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return binutil.ParseUint16BigEndian(p.block(block)[offset:])
}

// SetConnectError makes every dial fail with err until cleared with nil.
func (p *PLC) SetConnectError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectErr = err
}

// FailNextRead makes the next read fail with err.
func (p *PLC) FailNextRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

// FailNextWrite makes the next write fail with err.
func (p *PLC) FailNextWrite(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

func (p *PLC) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Write(nil), p.writes...)
}

func (p *PLC) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

func (p *PLC) Dials() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dials
}

func (p *PLC) Dial(_ context.Context, _ *s7runtime.S7Device) (s7runtime.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dials++
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	return &conn{plc: p}, nil
}

type conn struct {
	plc    *PLC
	closed bool
}

func (c *conn) AGReadDB(dbNumber int, start int, size int, buffer []byte) error {
	p := c.plc
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.closed {
		return errors.New("s7test: read on closed session")
	}
	if err := p.readErr; err != nil {
		p.readErr = nil
		return err
	}
	p.reads++
	copy(buffer[:size], p.block(dbNumber)[start:start+size])
	return nil
}

func (c *conn) AGWriteDB(dbNumber int, start int, size int, buffer []byte) error {
	p := c.plc
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.closed {
		return errors.New("s7test: write on closed session")
	}
	if err := p.writeErr; err != nil {
		p.writeErr = nil
		return err
	}
	copy(p.block(dbNumber)[start:start+size], buffer[:size])
	p.writes = append(p.writes, Write{Block: dbNumber, Offset: start, Data: binutil.Dup(buffer[:size])})
	return nil
}

func (c *conn) Close() error {
	c.plc.mu.Lock()
	defer c.plc.mu.Unlock()
	c.closed = true
	return nil
}

// Fleet routes dials to one PLC per device name.
type Fleet map[string]*PLC

func (f Fleet) Dial(ctx context.Context, device *s7runtime.S7Device) (s7runtime.Conn, error) {
	p, ok := f[device.Name]
	if !ok {
		return nil, errors.Errorf("s7test: no plc for %s", device.Name)
	}
	return p.Dial(ctx, device)
}
