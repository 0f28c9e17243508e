package state

import "github.com/congmo/rdbscan/internal/rdb"

// TrackingHandler wraps another rdb.Handler and records decode progress
// to a Store as records arrive, without altering what gets passed
// through to the wrapped Handler.
type TrackingHandler struct {
	rdb.Handler
	store *Store
	db    int
}

// NewTrackingHandler returns a Handler that forwards every event to next
// and additionally updates store's snapshot.
func NewTrackingHandler(next rdb.Handler, store *Store) *TrackingHandler {
	return &TrackingHandler{Handler: next, store: store}
}

func (t *TrackingHandler) StartDatabase(db int) error {
	t.db = db
	return t.Handler.StartDatabase(db)
}

// SkipRecord implements rdb.SkipObserver: a key the Filter rejected
// still counts toward progress, just under KeysSkipped instead of a
// logical-type bucket.
func (t *TrackingHandler) SkipRecord(db int, key string, logType rdb.LogicalType) error {
	return t.store.RecordKey(db, logType.String(), key, true)
}

func (t *TrackingHandler) Set(key string, value rdb.Value, expireAtMicros int64, info rdb.Info) error {
	_ = t.store.RecordKey(t.db, "string", key, false)
	return t.Handler.Set(key, value, expireAtMicros, info)
}

func (t *TrackingHandler) StartHash(key string, length int, expireAtMicros int64, info rdb.Info) error {
	_ = t.store.RecordKey(t.db, "hash", key, false)
	return t.Handler.StartHash(key, length, expireAtMicros, info)
}

func (t *TrackingHandler) StartSet(key string, length int, expireAtMicros int64, info rdb.Info) error {
	_ = t.store.RecordKey(t.db, "set", key, false)
	return t.Handler.StartSet(key, length, expireAtMicros, info)
}

func (t *TrackingHandler) StartList(key string, length int, expireAtMicros int64, info rdb.Info) error {
	_ = t.store.RecordKey(t.db, "list", key, false)
	return t.Handler.StartList(key, length, expireAtMicros, info)
}

func (t *TrackingHandler) StartSortedSet(key string, length int, expireAtMicros int64, info rdb.Info) error {
	_ = t.store.RecordKey(t.db, "sortedset", key, false)
	return t.Handler.StartSortedSet(key, length, expireAtMicros, info)
}
