package binutil

// ParseUint16BigEndian 解析
// AB
func ParseUint16BigEndian(buf []byte) uint16 {
	return uint16(buf[0])<<8 + uint16(buf[1])
}

// WriteUint16 编码
func WriteUint16(buf []byte, value uint16) {
	buf[0] = byte(value >> 8)
	buf[1] = byte(value)
}

// TestBit reports whether bit k of b is set.
func TestBit(b byte, k uint8) bool {
	return 1<<k&b != 0
}

// SetBit returns b with bit k forced to value, leaving the other bits untouched.
func SetBit(b byte, k uint8, value bool) byte {
	if value {
		return b | 1<<k
	}
	return b &^ (1 << k)
}

// Dup 复制
func Dup(buf []byte) []byte {
	b := make([]byte, len(buf))
	copy(b, buf)
	return b
}
