package rdb

import "bytes"

// decodeIntset walks an intset blob (the SET_INTSET payload): a 4-byte
// little-endian encoding width (2, 4 or 8), a 4-byte little-endian
// element count, then that many little-endian integers of the declared
// width, stored in ascending sorted order.
func decodeIntset(raw []byte) ([]int64, error) {
	b := newByteSource(bytes.NewReader(raw))
	encWidth, err := b.readUint32LE()
	if err != nil {
		return nil, newParseErr(ErrBadIntsetEncoding, b.Offset(), "", err)
	}
	count, err := b.readUint32LE()
	if err != nil {
		return nil, newParseErr(ErrBadIntsetEncoding, b.Offset(), "", err)
	}

	values := make([]int64, 0, count)
	for i := uint32(0); i < count; i++ {
		switch encWidth {
		case 2:
			v, err := b.readInt16LE()
			if err != nil {
				return nil, newParseErr(ErrBadIntsetEncoding, b.Offset(), "", err)
			}
			values = append(values, int64(v))
		case 4:
			v, err := b.readInt32LE()
			if err != nil {
				return nil, newParseErr(ErrBadIntsetEncoding, b.Offset(), "", err)
			}
			values = append(values, int64(v))
		case 8:
			v, err := b.readInt64LE()
			if err != nil {
				return nil, newParseErr(ErrBadIntsetEncoding, b.Offset(), "", err)
			}
			values = append(values, v)
		default:
			return nil, newParseErr(ErrBadIntsetEncoding, b.Offset(), "", errBadIntsetWidth(encWidth))
		}
	}
	return values, nil
}

func errBadIntsetWidth(width uint32) error {
	return &intsetWidthError{width: width}
}

type intsetWidthError struct{ width uint32 }

func (e *intsetWidthError) Error() string {
	return "unsupported intset encoding width"
}
