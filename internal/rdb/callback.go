package rdb

// Info carries the encoding facts a consumer needs to report memory/
// encoding statistics about a key — the reason the reference decoder this
// is modeled on exposes a callback layer at all, not just raw values.
// SizeofValue is populated only for the packed encodings (zipmap,
// ziplist, intset), where the source blob's byte length is cheap to
// capture and otherwise unrecoverable once flattened into callbacks; it
// is 0 for the linear encodings.
type Info struct {
	Encoding    string
	SizeofValue int
}

// Recognized Info.Encoding values.
const (
	EncodingString     = "string"
	EncodingLinkedList = "linkedlist"
	EncodingHashTable  = "hashtable"
	EncodingSkipList   = "skiplist"
	EncodingZiplist    = "ziplist"
	EncodingIntset     = "intset"
	EncodingZipmap     = "zipmap"
)

// Handler receives decoded events in the order they appear in the dump
// file. It is the decoder's one external collaborator: Parse never
// buffers a whole key's value in memory beyond what a single call needs.
//
// Every method returning an error aborts the parse; Parse returns that
// error to its caller unchanged, without wrapping it.
type Handler interface {
	StartRDB() error
	EndRDB() error

	StartDatabase(db int) error
	EndDatabase(db int) error

	// Set is called for a top-level string value. expireAtMicros is 0
	// when the key has no expiry.
	Set(key string, value Value, expireAtMicros int64, info Info) error

	StartHash(key string, length int, expireAtMicros int64, info Info) error
	HSet(key string, field, value Value) error
	EndHash(key string) error

	StartSet(key string, length int, expireAtMicros int64, info Info) error
	SAdd(key string, member Value) error
	EndSet(key string) error

	StartList(key string, length int, expireAtMicros int64, info Info) error
	RPush(key string, value Value) error
	EndList(key string) error

	StartSortedSet(key string, length int, expireAtMicros int64, info Info) error
	ZAdd(key string, score float64, member Value) error
	EndSortedSet(key string) error
}

// SkipObserver is an optional capability a Handler can implement to
// learn about records the Filter rejected before a single byte of their
// value was read. Parse checks for this interface with a type assertion
// rather than adding it to Handler itself, so consumers that don't care
// about skipped keys (jsonout, loader) aren't forced to implement a
// no-op for it.
type SkipObserver interface {
	SkipRecord(db int, key string, logType LogicalType) error
}

// BaseHandler implements Handler with no-op methods so a consumer can
// embed it and override only the events it cares about.
type BaseHandler struct{}

func (BaseHandler) StartRDB() error { return nil }
func (BaseHandler) EndRDB() error   { return nil }

func (BaseHandler) StartDatabase(db int) error { return nil }
func (BaseHandler) EndDatabase(db int) error   { return nil }

func (BaseHandler) Set(key string, value Value, expireAtMicros int64, info Info) error { return nil }

func (BaseHandler) StartHash(key string, length int, expireAtMicros int64, info Info) error {
	return nil
}
func (BaseHandler) HSet(key string, field, value Value) error { return nil }
func (BaseHandler) EndHash(key string) error                  { return nil }

func (BaseHandler) StartSet(key string, length int, expireAtMicros int64, info Info) error {
	return nil
}
func (BaseHandler) SAdd(key string, member Value) error { return nil }
func (BaseHandler) EndSet(key string) error              { return nil }

func (BaseHandler) StartList(key string, length int, expireAtMicros int64, info Info) error {
	return nil
}
func (BaseHandler) RPush(key string, value Value) error { return nil }
func (BaseHandler) EndList(key string) error             { return nil }

func (BaseHandler) StartSortedSet(key string, length int, expireAtMicros int64, info Info) error {
	return nil
}
func (BaseHandler) ZAdd(key string, score float64, member Value) error { return nil }
func (BaseHandler) EndSortedSet(key string) error                     { return nil }
