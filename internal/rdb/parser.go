package rdb

import (
	"errors"
	"io"
)

const (
	rdbMagic      = "REDIS"
	minRDBVersion = 1
	maxRDBVersion = 6
)

// Parser decodes a single RDB dump stream, pushing every accepted record
// to its Handler. A Parser is single-use: call Parse once per stream.
type Parser struct {
	handler Handler
	filter  *compiledFilter
}

// NewParser builds a Parser. A nil handler is replaced with BaseHandler
// (a parse that does nothing but validate the stream). A nil filter
// matches every record.
func NewParser(handler Handler, filter *Filter) *Parser {
	if handler == nil {
		handler = BaseHandler{}
	}
	return &Parser{handler: handler, filter: compileFilter(filter)}
}

// Parse reads r start to finish as one RDB dump. It returns as soon as
// the EOF opcode is reached, the stream ends unexpectedly, or the
// Handler returns an error from any callback.
func (p *Parser) Parse(r io.Reader) error {
	b := newByteSource(r)
	if err := p.parseHeader(b); err != nil {
		return err
	}
	if err := p.handler.StartRDB(); err != nil {
		return err
	}

	currentDB := 0
	dbOpen := false
	var pendingExpire int64 // microseconds since epoch; 0 means "no expiry pending"

	for {
		opcode, err := b.readByte()
		if err != nil {
			return wrapEOF(b, err)
		}

		switch opcode {
		case opExpireTimeMs:
			ms, err := b.readUint64LE()
			if err != nil {
				return wrapEOF(b, err)
			}
			pendingExpire = int64(ms) * 1000
			continue

		case opExpireTime:
			secs, err := b.readUint32LE()
			if err != nil {
				return wrapEOF(b, err)
			}
			pendingExpire = int64(secs) * 1_000_000
			continue

		case opSelectDB:
			if dbOpen {
				if err := p.handler.EndDatabase(currentDB); err != nil {
					return err
				}
			}
			n, err := b.readLength()
			if err != nil {
				return newParseErr(ErrMalformedLength, b.Offset(), "", err)
			}
			currentDB = int(n)
			dbOpen = true
			if err := p.handler.StartDatabase(currentDB); err != nil {
				return err
			}
			continue

		case opEOF:
			if dbOpen {
				if err := p.handler.EndDatabase(currentDB); err != nil {
					return err
				}
			}
			return p.handler.EndRDB()

		default:
			if err := p.handleRecord(b, opcode, currentDB, pendingExpire); err != nil {
				return err
			}
			pendingExpire = 0
		}
	}
}

func (p *Parser) handleRecord(b *byteSource, typeTag byte, db int, expireAt int64) error {
	keyVal, err := b.readString()
	if err != nil {
		return newParseErr(ErrMalformedString, b.Offset(), "", err)
	}
	key := keyVal.String()

	logType, ok := logicalTypeOf(typeTag)
	if !ok {
		return newParseErr(ErrUnknownType, b.Offset(), key, errUnknownTypeTag(typeTag))
	}

	if !p.filter.matchesDB(db) || !p.filter.matches(key, logType) {
		if obs, ok := p.handler.(SkipObserver); ok {
			if err := obs.SkipRecord(db, key, logType); err != nil {
				return err
			}
		}
		return b.skipObject(typeTag)
	}
	return p.decodeObject(b, typeTag, key, expireAt)
}

// parseHeader validates the magic string and version range: "REDIS" plus
// a four-digit ASCII version, 0001 through 0006.
func (p *Parser) parseHeader(b *byteSource) error {
	magic, err := b.readBytes(len(rdbMagic))
	if err != nil {
		return newParseErr(ErrBadMagic, b.Offset(), "", err)
	}
	if string(magic) != rdbMagic {
		return newParseErr(ErrBadMagic, b.Offset(), "", errBadMagicBytes(magic))
	}
	versionBytes, err := b.readBytes(4)
	if err != nil {
		return newParseErr(ErrBadVersion, b.Offset(), "", err)
	}
	version := 0
	for _, c := range versionBytes {
		if c < '0' || c > '9' {
			return newParseErr(ErrBadVersion, b.Offset(), "", errBadVersionBytes(versionBytes))
		}
		version = version*10 + int(c-'0')
	}
	if version < minRDBVersion || version > maxRDBVersion {
		return newParseErr(ErrBadVersion, b.Offset(), "", errVersionOutOfRange(version))
	}
	return nil
}

func wrapEOF(b *byteSource, err error) error {
	if errors.Is(err, io.EOF) {
		return newParseErr(ErrUnexpectedEOF, b.Offset(), "", err)
	}
	return err
}
