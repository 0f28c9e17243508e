package rdb

import "strconv"

// skipString discards a length/encoding-prefixed string without
// allocating its payload, used when a record is filtered out.
func (b *byteSource) skipString() error {
	n, encoded, err := b.readLengthOrEncoding()
	if err != nil {
		return newParseErr(ErrMalformedString, b.Offset(), "", err)
	}
	if !encoded {
		return b.discard(int(n))
	}
	switch n {
	case encInt8:
		return b.discard(1)
	case encInt16:
		return b.discard(2)
	case encInt32:
		return b.discard(4)
	case encLZF:
		compressedLen, err := b.readLength()
		if err != nil {
			return newParseErr(ErrMalformedString, b.Offset(), "", err)
		}
		if _, err := b.readLength(); err != nil { // decompressed length, unused when skipping
			return newParseErr(ErrMalformedString, b.Offset(), "", err)
		}
		return b.discard(int(compressedLen))
	default:
		return newParseErr(ErrMalformedString, b.Offset(), "", errUnknownStringEncoding(n))
	}
}

// skipDoubleString discards a plain sorted-set score value.
func (b *byteSource) skipDoubleString() error {
	lengthByte, err := b.readByte()
	if err != nil {
		return newParseErr(ErrMalformedString, b.Offset(), "", err)
	}
	switch lengthByte {
	case 253, 254, 255:
		return nil
	}
	return b.discard(int(lengthByte))
}

// skipObject discards the body of a value for raw type tag, used when the
// Filter rejects a record but the stream must still advance past it.
func (b *byteSource) skipObject(tag byte) error {
	switch tag {
	case TypeString:
		return b.skipString()
	case TypeList:
		return b.skipLinear(b.skipString)
	case TypeSet:
		return b.skipLinear(b.skipString)
	case TypeZSet:
		return b.skipLinear(func() error {
			if err := b.skipString(); err != nil {
				return err
			}
			return b.skipDoubleString()
		})
	case TypeHash:
		return b.skipLinear(func() error {
			if err := b.skipString(); err != nil {
				return err
			}
			return b.skipString()
		})
	case TypeHashZipmap, TypeListZiplist, TypeZSetZiplist, TypeHashZiplist, TypeSetIntset:
		return b.skipString()
	default:
		return newParseErr(ErrUnknownType, b.Offset(), "", errUnknownTypeTag(tag))
	}
}

// skipLinear reads a count-prefixed sequence and calls elem once per
// logical entry (elem itself may consume more than one field, e.g. a
// hash's key+value pair).
func (b *byteSource) skipLinear(elem func() error) error {
	n, err := b.readLength()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if err := elem(); err != nil {
			return err
		}
	}
	return nil
}

func errUnknownTypeTag(tag byte) error {
	return &unknownTypeError{tag: tag}
}

type unknownTypeError struct{ tag byte }

func (e *unknownTypeError) Error() string {
	return "unknown type tag " + strconv.Itoa(int(e.tag))
}
