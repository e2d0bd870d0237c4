package keywrap

import (
	"encoding/binary"
	"fmt"
)

// cursor reads little-endian fields from an untrusted buffer. Every read is
// checked against the remaining length and fails closed.
type cursor struct {
	buf   []byte
	off   int
	field string
}

func newCursor(field string, buf []byte) *cursor {
	return &cursor{buf: buf, field: field}
}

func (c *cursor) remaining() int { return len(c.buf) - c.off }

func (c *cursor) done() bool { return c.off >= len(c.buf) }

func (c *cursor) need(n uint64, what string) error {
	if n > uint64(c.remaining()) {
		return inputErr(c.field, fmt.Sprintf("truncated reading %s at offset %d: need %d bytes, have %d", what, c.off, n, c.remaining()))
	}
	return nil
}

func (c *cursor) next(n uint64, what string) ([]byte, error) {
	if err := c.need(n, what); err != nil {
		return nil, err
	}
	b := c.buf[c.off : c.off+int(n)]
	c.off += int(n)
	return b, nil
}

func (c *cursor) skip(n uint64, what string) error {
	_, err := c.next(n, what)
	return err
}

func (c *cursor) u8(what string) (byte, error) {
	b, err := c.next(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u16(what string) (uint16, error) {
	b, err := c.next(2, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) u32(what string) (uint32, error) {
	b, err := c.next(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) u64(what string) (uint64, error) {
	b, err := c.next(8, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) i64(what string) (int64, error) {
	v, err := c.u64(what)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// lenPrefixed reads a u64 length followed by that many bytes.
func (c *cursor) lenPrefixed(what string) ([]byte, error) {
	n, err := c.u64(what + " length")
	if err != nil {
		return nil, err
	}
	return c.next(n, what)
}
