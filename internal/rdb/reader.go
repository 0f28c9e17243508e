package rdb

import (
	"bufio"
	"encoding/binary"
	"io"
)

// maxBlobSize bounds any single length-prefixed read. Nothing in a valid
// RDB dump needs a string, ziplist, zipmap or intset blob anywhere near
// this size; a length field claiming more than this is corrupt or
// hostile, not merely large, and is rejected before an allocation is
// attempted.
const maxBlobSize = 512 << 20 // 512 MiB

// byteSource is the sequential cursor every decoder reads through. It
// tracks how many bytes have been consumed so ParseError can report a
// useful offset.
type byteSource struct {
	r      *bufio.Reader
	offset int64
}

func newByteSource(r io.Reader) *byteSource {
	return &byteSource{r: bufio.NewReaderSize(r, 64*1024)}
}

func (b *byteSource) Offset() int64 { return b.offset }

func (b *byteSource) readByte() (byte, error) {
	c, err := b.r.ReadByte()
	if err != nil {
		return 0, err
	}
	b.offset++
	return c, nil
}

// readBytes reads exactly n raw bytes.
func (b *byteSource) readBytes(n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if n < 0 || n > maxBlobSize {
		return nil, newParseErr(ErrBlobTooLarge, b.offset, "", errBlobTooLarge(n))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(b.r, buf); err != nil {
		return nil, err
	}
	b.offset += int64(n)
	return buf, nil
}

// discard skips n bytes without retaining them.
func (b *byteSource) discard(n int) error {
	if n == 0 {
		return nil
	}
	discarded, err := b.r.Discard(n)
	b.offset += int64(discarded)
	return err
}

func (b *byteSource) readUint16LE() (uint16, error) {
	buf, err := b.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (b *byteSource) readUint32LE() (uint32, error) {
	buf, err := b.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (b *byteSource) readUint32BE() (uint32, error) {
	buf, err := b.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

func (b *byteSource) readUint64LE() (uint64, error) {
	buf, err := b.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func (b *byteSource) readInt16LE() (int16, error) {
	v, err := b.readUint16LE()
	return int16(v), err
}

func (b *byteSource) readInt32LE() (int32, error) {
	v, err := b.readUint32LE()
	return int32(v), err
}

func (b *byteSource) readInt64LE() (int64, error) {
	v, err := b.readUint64LE()
	return int64(v), err
}

// readInt24LE reads a 3-byte little-endian two's-complement integer,
// sign-extended to int32, as used by ziplist's 24-bit integer encoding.
func (b *byteSource) readInt24LE() (int32, error) {
	buf, err := b.readBytes(3)
	if err != nil {
		return 0, err
	}
	v := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16
	if v&0x800000 != 0 {
		v |= ^int32(0xFFFFFF)
	}
	return v, nil
}
