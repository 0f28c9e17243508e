package rdb

import (
	"fmt"
	"strconv"
)

// decodeObject dispatches a single record's value to the right decoder
// based on its raw type tag and replays it to the handler as Start*/...
// /End* calls. Called only for records the Filter has accepted; rejected
// records go through skipObject instead.
func (p *Parser) decodeObject(b *byteSource, tag byte, key string, expireAt int64) error {
	switch tag {
	case TypeString:
		v, err := b.readString()
		if err != nil {
			return withKey(err, key)
		}
		return p.handler.Set(key, v, expireAt, Info{Encoding: EncodingString})

	case TypeList:
		return p.decodeLinearList(b, key, expireAt)

	case TypeSet:
		return p.decodeLinearSet(b, key, expireAt)

	case TypeZSet:
		return p.decodeLinearZSet(b, key, expireAt)

	case TypeHash:
		return p.decodeLinearHash(b, key, expireAt)

	case TypeHashZipmap:
		raw, err := readContainerBlob(b)
		if err != nil {
			return withKey(err, key)
		}
		pairs, err := decodeZipmap(raw)
		if err != nil {
			return withKey(err, key)
		}
		info := Info{Encoding: EncodingZipmap, SizeofValue: len(raw)}
		if err := p.handler.StartHash(key, len(pairs), expireAt, info); err != nil {
			return err
		}
		for _, kv := range pairs {
			if err := p.handler.HSet(key, kv[0], kv[1]); err != nil {
				return err
			}
		}
		return p.handler.EndHash(key)

	case TypeListZiplist:
		raw, err := readContainerBlob(b)
		if err != nil {
			return withKey(err, key)
		}
		entries, err := decodeZiplist(raw)
		if err != nil {
			return withKey(err, key)
		}
		info := Info{Encoding: EncodingZiplist, SizeofValue: len(raw)}
		if err := p.handler.StartList(key, len(entries), expireAt, info); err != nil {
			return err
		}
		for _, v := range entries {
			if err := p.handler.RPush(key, v); err != nil {
				return err
			}
		}
		return p.handler.EndList(key)

	case TypeSetIntset:
		raw, err := readContainerBlob(b)
		if err != nil {
			return withKey(err, key)
		}
		ints, err := decodeIntset(raw)
		if err != nil {
			return withKey(err, key)
		}
		info := Info{Encoding: EncodingIntset, SizeofValue: len(raw)}
		if err := p.handler.StartSet(key, len(ints), expireAt, info); err != nil {
			return err
		}
		for _, n := range ints {
			if err := p.handler.SAdd(key, intValue(n)); err != nil {
				return err
			}
		}
		return p.handler.EndSet(key)

	case TypeZSetZiplist:
		raw, err := readContainerBlob(b)
		if err != nil {
			return withKey(err, key)
		}
		entries, err := decodeZiplist(raw)
		if err != nil {
			return withKey(err, key)
		}
		if len(entries)%2 != 0 {
			return withKey(newParseErr(ErrBadZiplistEntry, b.Offset(), key, errOddZiplistPairCount(len(entries))), key)
		}
		count := len(entries) / 2
		info := Info{Encoding: EncodingZiplist, SizeofValue: len(raw)}
		if err := p.handler.StartSortedSet(key, count, expireAt, info); err != nil {
			return err
		}
		for i := 0; i+1 < len(entries); i += 2 {
			member := entries[i]
			score, err := ziplistEntryAsFloat(entries[i+1])
			if err != nil {
				return withKey(newParseErr(ErrBadZiplistEntry, b.Offset(), key, err), key)
			}
			if err := p.handler.ZAdd(key, score, member); err != nil {
				return err
			}
		}
		return p.handler.EndSortedSet(key)

	case TypeHashZiplist:
		raw, err := readContainerBlob(b)
		if err != nil {
			return withKey(err, key)
		}
		entries, err := decodeZiplist(raw)
		if err != nil {
			return withKey(err, key)
		}
		if len(entries)%2 != 0 {
			return withKey(newParseErr(ErrBadZiplistEntry, b.Offset(), key, errOddZiplistPairCount(len(entries))), key)
		}
		count := len(entries) / 2
		info := Info{Encoding: EncodingZiplist, SizeofValue: len(raw)}
		if err := p.handler.StartHash(key, count, expireAt, info); err != nil {
			return err
		}
		for i := 0; i+1 < len(entries); i += 2 {
			if err := p.handler.HSet(key, entries[i], entries[i+1]); err != nil {
				return err
			}
		}
		return p.handler.EndHash(key)

	default:
		return newParseErr(ErrUnknownType, b.Offset(), key, errUnknownTypeTag(tag))
	}
}

func (p *Parser) decodeLinearList(b *byteSource, key string, expireAt int64) error {
	n, err := b.readLength()
	if err != nil {
		return withKey(err, key)
	}
	if err := p.handler.StartList(key, int(n), expireAt, Info{Encoding: EncodingLinkedList}); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		v, err := b.readString()
		if err != nil {
			return withKey(err, key)
		}
		if err := p.handler.RPush(key, v); err != nil {
			return err
		}
	}
	return p.handler.EndList(key)
}

func (p *Parser) decodeLinearSet(b *byteSource, key string, expireAt int64) error {
	n, err := b.readLength()
	if err != nil {
		return withKey(err, key)
	}
	if err := p.handler.StartSet(key, int(n), expireAt, Info{Encoding: EncodingHashTable}); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		v, err := b.readString()
		if err != nil {
			return withKey(err, key)
		}
		if err := p.handler.SAdd(key, v); err != nil {
			return err
		}
	}
	return p.handler.EndSet(key)
}

func (p *Parser) decodeLinearHash(b *byteSource, key string, expireAt int64) error {
	n, err := b.readLength()
	if err != nil {
		return withKey(err, key)
	}
	if err := p.handler.StartHash(key, int(n), expireAt, Info{Encoding: EncodingHashTable}); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		field, err := b.readString()
		if err != nil {
			return withKey(err, key)
		}
		val, err := b.readString()
		if err != nil {
			return withKey(err, key)
		}
		if err := p.handler.HSet(key, field, val); err != nil {
			return err
		}
	}
	return p.handler.EndHash(key)
}

func (p *Parser) decodeLinearZSet(b *byteSource, key string, expireAt int64) error {
	n, err := b.readLength()
	if err != nil {
		return withKey(err, key)
	}
	if err := p.handler.StartSortedSet(key, int(n), expireAt, Info{Encoding: EncodingSkipList}); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		member, err := b.readString()
		if err != nil {
			return withKey(err, key)
		}
		scoreVal, err := b.readDoubleString()
		if err != nil {
			return withKey(err, key)
		}
		score, _ := scoreVal.Float()
		if err := p.handler.ZAdd(key, score, member); err != nil {
			return err
		}
	}
	return p.handler.EndSortedSet(key)
}

// readContainerBlob reads the single length-prefixed string that holds a
// nested ziplist/zipmap/intset structure.
func readContainerBlob(b *byteSource) ([]byte, error) {
	v, err := b.readString()
	if err != nil {
		return nil, err
	}
	return v.Bytes(), nil
}

// ziplistEntryAsFloat converts a decoded ziplist entry into a sorted-set
// score. Ziplist-encoded zsets store the score as whichever encoding
// ziplist picked for its ASCII text (usually a plain string, sometimes an
// integer when the score happens to be a whole number), never as a
// binary double.
func ziplistEntryAsFloat(v Value) (float64, error) {
	if i, ok := v.Int(); ok {
		return float64(i), nil
	}
	return strconv.ParseFloat(v.String(), 64)
}

func errOddZiplistPairCount(n int) error {
	return fmt.Errorf("ziplist holds %d entries, not an even member/score or field/value count", n)
}

func withKey(err error, key string) error {
	if pe, ok := err.(*ParseError); ok && pe.Key == "" {
		pe.Key = key
		return pe
	}
	return err
}
