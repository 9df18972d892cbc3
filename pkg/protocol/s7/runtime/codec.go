package runtime

import (
	"context"
	"encoding/json"
	"github.com/pkg/errors"
	"math"
	"scadabridge/pkg/runtime/constant"
	"scadabridge/pkg/utils/binutil"
)

const (
	progressRawMax = 20
	progressFactor = 5
)

// BlockReadWriter moves raw bytes between a data block and the caller.
type BlockReadWriter interface {
	ReadBlock(ctx context.Context, block, offset, size int) ([]byte, error)
	WriteBlock(ctx context.Context, block, offset int, data []byte) error
}

// Decode turns the bytes read at v's address into a bool, int16 or uint16.
func Decode(v *Variable, buf []byte) (interface{}, error) {
	va, err := v.ParseVariableAddress()
	if err != nil {
		return nil, err
	}
	if len(buf) < v.Size() {
		return nil, errors.Wrapf(constant.ErrProtocol, "%s: got %d bytes, want %d", v.Name, len(buf), v.Size())
	}
	switch v.DataType {
	case constant.BOOL:
		return binutil.TestBit(buf[0], va.Bit), nil
	case constant.INT16:
		return int16(binutil.ParseUint16BigEndian(buf)), nil
	case constant.UINT16:
		return binutil.ParseUint16BigEndian(buf), nil
	}
	return nil, errors.Wrapf(constant.ErrProtocol, "%s: unsupported data type %s", v.Name, v.DataType)
}

// Encode patches value into buf. For booleans buf must already hold the current
// byte from the device; only bit k changes. Words overwrite both bytes.
func Encode(v *Variable, value interface{}, buf []byte) error {
	va, err := v.ParseVariableAddress()
	if err != nil {
		return err
	}
	if len(buf) < v.Size() {
		return errors.Wrapf(constant.ErrProtocol, "%s: buffer of %d bytes, want %d", v.Name, len(buf), v.Size())
	}
	switch v.DataType {
	case constant.BOOL:
		b, ok := value.(bool)
		if !ok {
			return errors.Wrapf(constant.ErrInvalidValue, "%s expects bool, got %T", v.Name, value)
		}
		buf[0] = binutil.SetBit(buf[0], va.Bit, b)
	case constant.INT16:
		n, err := toInteger(v, value, math.MinInt16, math.MaxInt16)
		if err != nil {
			return err
		}
		binutil.WriteUint16(buf, uint16(int16(n)))
	case constant.UINT16:
		n, err := toInteger(v, value, 0, math.MaxUint16)
		if err != nil {
			return err
		}
		binutil.WriteUint16(buf, uint16(n))
	default:
		return errors.Wrapf(constant.ErrInvalidValue, "%s: unsupported data type %s", v.Name, v.DataType)
	}
	return nil
}

// ReadVariable fetches and decodes a single variable.
func ReadVariable(ctx context.Context, rw BlockReadWriter, v *Variable) (interface{}, error) {
	va, err := v.ParseVariableAddress()
	if err != nil {
		return nil, err
	}
	buf, err := rw.ReadBlock(ctx, va.Block, va.Offset, v.Size())
	if err != nil {
		return nil, err
	}
	return Decode(v, buf)
}

// ReadModifyWrite is the only path that writes a variable. A boolean is never
// written blind: the containing byte is read fresh and only bit k is patched.
// Words are encoded into a fresh buffer. Read-only variables are refused before
// any IO.
func ReadModifyWrite(ctx context.Context, rw BlockReadWriter, v *Variable, value interface{}) error {
	if !v.Writable() {
		return errors.Wrapf(constant.ErrReadOnlyWrite, "%s", v.Name)
	}
	va, err := v.ParseVariableAddress()
	if err != nil {
		return err
	}

	var buf []byte
	switch v.DataType {
	case constant.BOOL:
		if _, ok := value.(bool); !ok {
			return errors.Wrapf(constant.ErrInvalidValue, "%s expects bool, got %T", v.Name, value)
		}
		if buf, err = rw.ReadBlock(ctx, va.Block, va.Offset, 1); err != nil {
			return err
		}
		buf = binutil.Dup(buf)
	default:
		buf = make([]byte, v.Size())
	}

	if err = Encode(v, value, buf); err != nil {
		return err
	}
	return rw.WriteBlock(ctx, va.Block, va.Offset, buf[:v.Size()])
}

// ScaleProgress maps the on-device progress counter (0..20) to a percentage.
func ScaleProgress(raw int16) int {
	pct := int(math.Round(float64(raw) * progressFactor))
	if pct < 0 {
		return 0
	}
	if pct > progressRawMax*progressFactor {
		return progressRawMax * progressFactor
	}
	return pct
}

func toInteger(v *Variable, value interface{}, min, max int64) (int64, error) {
	var n int64
	switch x := value.(type) {
	case int:
		n = int64(x)
	case int16:
		n = int64(x)
	case uint16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, errors.Wrapf(constant.ErrInvalidValue, "%s: %d out of range [%d, %d]", v.Name, x, min, max)
		}
		n = int64(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.Wrapf(constant.ErrInvalidValue, "%s expects an integer, got %v", v.Name, x)
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, errors.Wrapf(constant.ErrInvalidValue, "%s: %v", v.Name, err)
		}
		n = i
	default:
		return 0, errors.Wrapf(constant.ErrInvalidValue, "%s expects an integer, got %T", v.Name, value)
	}
	if n < min || n > max {
		return 0, errors.Wrapf(constant.ErrInvalidValue, "%s: %d out of range [%d, %d]", v.Name, n, min, max)
	}
	return n, nil
}
