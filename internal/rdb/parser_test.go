package rdb

import (
	"bytes"
	"regexp"
	"testing"
)

// recordingHandler captures every callback invocation for assertions,
// including the Info each Start* call received.
type recordingHandler struct {
	BaseHandler
	events          []string
	sets            map[string]string
	setInfos        map[string]Info
	hashes          map[string]map[string]string
	hashInfos       map[string]Info
	lists           map[string][]string
	listInfos       map[string]Info
	setMembers      map[string][]string
	setMembersInfos map[string]Info
	zsets           map[string]map[string]float64
	zsetInfos       map[string]Info
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		sets:            map[string]string{},
		setInfos:        map[string]Info{},
		hashes:          map[string]map[string]string{},
		hashInfos:       map[string]Info{},
		lists:           map[string][]string{},
		listInfos:       map[string]Info{},
		setMembers:      map[string][]string{},
		setMembersInfos: map[string]Info{},
		zsets:           map[string]map[string]float64{},
		zsetInfos:       map[string]Info{},
	}
}

func (h *recordingHandler) StartRDB() error { h.events = append(h.events, "start-rdb"); return nil }
func (h *recordingHandler) EndRDB() error   { h.events = append(h.events, "end-rdb"); return nil }

func (h *recordingHandler) StartDatabase(db int) error {
	h.events = append(h.events, "start-db")
	return nil
}
func (h *recordingHandler) EndDatabase(db int) error {
	h.events = append(h.events, "end-db")
	return nil
}

func (h *recordingHandler) Set(key string, value Value, expireAtMicros int64, info Info) error {
	h.sets[key] = value.String()
	h.setInfos[key] = info
	return nil
}

func (h *recordingHandler) StartHash(key string, length int, expireAtMicros int64, info Info) error {
	h.hashes[key] = map[string]string{}
	h.hashInfos[key] = info
	return nil
}
func (h *recordingHandler) HSet(key string, field, value Value) error {
	h.hashes[key][field.String()] = value.String()
	return nil
}

func (h *recordingHandler) StartList(key string, length int, expireAtMicros int64, info Info) error {
	h.lists[key] = nil
	h.listInfos[key] = info
	return nil
}
func (h *recordingHandler) RPush(key string, value Value) error {
	h.lists[key] = append(h.lists[key], value.String())
	return nil
}

func (h *recordingHandler) StartSet(key string, length int, expireAtMicros int64, info Info) error {
	h.setMembers[key] = nil
	h.setMembersInfos[key] = info
	return nil
}
func (h *recordingHandler) SAdd(key string, member Value) error {
	h.setMembers[key] = append(h.setMembers[key], member.String())
	return nil
}

func (h *recordingHandler) StartSortedSet(key string, length int, expireAtMicros int64, info Info) error {
	h.zsets[key] = map[string]float64{}
	h.zsetInfos[key] = info
	return nil
}
func (h *recordingHandler) ZAdd(key string, score float64, member Value) error {
	h.zsets[key][member.String()] = score
	return nil
}

// --- fixture builders ---

func sixBitLen(n int) byte { return byte(n & 0x3F) }

func stringField(data []byte) []byte {
	out := []byte{sixBitLen(len(data))}
	return append(out, data...)
}

func header(version string) []byte {
	return append([]byte(rdbMagic), []byte(version)...)
}

func selectDB(n byte) []byte { return []byte{opSelectDB, n} }

// ziplistOf packs a sequence of already-length-prefixed entry payloads
// (each produced by a helper like stringField/intEntry8) into a full
// ziplist blob: header, prevlen-tagged entries, trailer.
func ziplistOf(entryBodies ...[]byte) []byte {
	var zl []byte
	zl = append(zl, 0, 0, 0, 0) // zlbytes, unused
	zl = append(zl, 0, 0, 0, 0) // zltail, unused
	zl = append(zl, byte(len(entryBodies)), 0)

	prevLen := 0
	for _, body := range entryBodies {
		entry := append([]byte{byte(prevLen)}, body...)
		zl = append(zl, entry...)
		prevLen = len(entry)
	}
	zl = append(zl, 0xFF)
	return zl
}

func intEntry8(n int8) []byte { return []byte{0xFE, byte(n)} }

func TestParseEmptyDump(t *testing.T) {
	buf := append(header("0001"), opEOF)
	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.events[0] != "start-rdb" || h.events[len(h.events)-1] != "end-rdb" {
		t.Fatalf("unexpected events: %v", h.events)
	}
}

func TestParseStringNoExpiry(t *testing.T) {
	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeString)
	buf = append(buf, stringField([]byte("foo"))...)
	buf = append(buf, stringField([]byte("bar"))...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.sets["foo"] != "bar" {
		t.Fatalf("got %q, want %q", h.sets["foo"], "bar")
	}
	if h.setInfos["foo"].Encoding != EncodingString {
		t.Fatalf("got encoding %q, want %q", h.setInfos["foo"].Encoding, EncodingString)
	}
}

func TestParseStringWithMsExpiry(t *testing.T) {
	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, opExpireTimeMs)
	buf = append(buf, 0xE8, 0x03, 0, 0, 0, 0, 0, 0) // 1000 ms, little-endian
	buf = append(buf, TypeString)
	buf = append(buf, stringField([]byte("k"))...)
	buf = append(buf, stringField([]byte("v"))...)
	buf = append(buf, opEOF)

	var gotExpire int64 = -1
	h := newRecordingHandler()
	wrapped := &expireCapture{recordingHandler: h, expire: &gotExpire}
	if err := NewParser(wrapped, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if gotExpire != 1_000_000 {
		t.Fatalf("got expiry %d micros, want 1000000", gotExpire)
	}
}

type expireCapture struct {
	*recordingHandler
	expire *int64
}

func (e *expireCapture) Set(key string, value Value, expireAtMicros int64, info Info) error {
	*e.expire = expireAtMicros
	return e.recordingHandler.Set(key, value, expireAtMicros, info)
}

func TestParseLinearList(t *testing.T) {
	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeList)
	buf = append(buf, stringField([]byte("l"))...)
	buf = append(buf, sixBitLen(2))
	buf = append(buf, stringField([]byte("a"))...)
	buf = append(buf, stringField([]byte("b"))...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := h.lists["l"]
	want := []string{"a", "b"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
	if h.listInfos["l"].Encoding != EncodingLinkedList {
		t.Fatalf("got encoding %q, want %q", h.listInfos["l"].Encoding, EncodingLinkedList)
	}
}

func TestParseLinearSet(t *testing.T) {
	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeSet)
	buf = append(buf, stringField([]byte("s"))...)
	buf = append(buf, sixBitLen(2))
	buf = append(buf, stringField([]byte("x"))...)
	buf = append(buf, stringField([]byte("y"))...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := h.setMembers["s"]
	want := []string{"x", "y"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
	if h.setMembersInfos["s"].Encoding != EncodingHashTable {
		t.Fatalf("got encoding %q, want %q", h.setMembersInfos["s"].Encoding, EncodingHashTable)
	}
}

func TestParseLinearHash(t *testing.T) {
	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeHash)
	buf = append(buf, stringField([]byte("h"))...)
	buf = append(buf, sixBitLen(1))
	buf = append(buf, stringField([]byte("field"))...)
	buf = append(buf, stringField([]byte("value"))...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.hashes["h"]["field"] != "value" {
		t.Fatalf("got %v, want field=value", h.hashes["h"])
	}
	if h.hashInfos["h"].Encoding != EncodingHashTable {
		t.Fatalf("got encoding %q, want %q", h.hashInfos["h"].Encoding, EncodingHashTable)
	}
}

func TestParseLinearZSet(t *testing.T) {
	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeZSet)
	buf = append(buf, stringField([]byte("z"))...)
	buf = append(buf, sixBitLen(1))
	buf = append(buf, stringField([]byte("alice"))...)
	score := []byte("3.5")
	buf = append(buf, byte(len(score)))
	buf = append(buf, score...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.zsets["z"]["alice"] != 3.5 {
		t.Fatalf("got %v, want alice=3.5", h.zsets["z"])
	}
	if h.zsetInfos["z"].Encoding != EncodingSkipList {
		t.Fatalf("got encoding %q, want %q", h.zsetInfos["z"].Encoding, EncodingSkipList)
	}
}

func TestParseIntsetSet(t *testing.T) {
	intset := []byte{2, 0, 0, 0, 3, 0, 0, 0} // encoding width 2, 3 elements
	intset = append(intset, 1, 0, 2, 0, 3, 0)

	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeSetIntset)
	buf = append(buf, stringField([]byte("s"))...)
	buf = append(buf, stringField(intset)...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := h.setMembers["s"]
	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if h.setMembersInfos["s"].Encoding != EncodingIntset {
		t.Fatalf("got encoding %q, want %q", h.setMembersInfos["s"].Encoding, EncodingIntset)
	}
}

func TestParseZiplistList(t *testing.T) {
	zl := ziplistOf(stringField([]byte("hello")), stringField([]byte("42")))

	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeListZiplist)
	buf = append(buf, stringField([]byte("l"))...)
	buf = append(buf, stringField(zl)...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := h.lists["l"]
	want := []string{"hello", "42"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
	if h.listInfos["l"].Encoding != EncodingZiplist {
		t.Fatalf("got encoding %q, want %q", h.listInfos["l"].Encoding, EncodingZiplist)
	}
	if h.listInfos["l"].SizeofValue != len(zl) {
		t.Fatalf("got sizeofValue %d, want %d", h.listInfos["l"].SizeofValue, len(zl))
	}
}

func TestParseZipmapHash(t *testing.T) {
	var zm []byte
	zm = append(zm, 1) // declared entry count, informational
	zm = append(zm, byte(len("field")))
	zm = append(zm, []byte("field")...)
	zm = append(zm, byte(len("value")), 0) // value length, free bytes
	zm = append(zm, []byte("value")...)
	zm = append(zm, 255) // terminator

	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeHashZipmap)
	buf = append(buf, stringField([]byte("h"))...)
	buf = append(buf, stringField(zm)...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.hashes["h"]["field"] != "value" {
		t.Fatalf("got %v, want field=value", h.hashes["h"])
	}
	if h.hashInfos["h"].Encoding != EncodingZipmap {
		t.Fatalf("got encoding %q, want %q", h.hashInfos["h"].Encoding, EncodingZipmap)
	}
	if h.hashInfos["h"].SizeofValue != len(zm) {
		t.Fatalf("got sizeofValue %d, want %d", h.hashInfos["h"].SizeofValue, len(zm))
	}
}

func TestParseZiplistHash(t *testing.T) {
	zl := ziplistOf(stringField([]byte("field")), stringField([]byte("value")))

	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeHashZiplist)
	buf = append(buf, stringField([]byte("h"))...)
	buf = append(buf, stringField(zl)...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.hashes["h"]["field"] != "value" {
		t.Fatalf("got %v, want field=value", h.hashes["h"])
	}
	if h.hashInfos["h"].Encoding != EncodingZiplist {
		t.Fatalf("got encoding %q, want %q", h.hashInfos["h"].Encoding, EncodingZiplist)
	}
}

func TestParseZiplistZSet(t *testing.T) {
	zl := ziplistOf(stringField([]byte("alice")), intEntry8(7))

	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeZSetZiplist)
	buf = append(buf, stringField([]byte("z"))...)
	buf = append(buf, stringField(zl)...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.zsets["z"]["alice"] != 7 {
		t.Fatalf("got %v, want alice=7", h.zsets["z"])
	}
	if h.zsetInfos["z"].Encoding != EncodingZiplist {
		t.Fatalf("got encoding %q, want %q", h.zsetInfos["z"].Encoding, EncodingZiplist)
	}
}

func TestParseLZFString(t *testing.T) {
	literal := []byte("aaaaaaaaaa") // 10 bytes
	compressed := append([]byte{byte(len(literal) - 1)}, literal...)

	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeString)
	buf = append(buf, stringField([]byte("k"))...)
	buf = append(buf, 0xC0|encLZF)
	buf = append(buf, sixBitLen(len(compressed)))
	buf = append(buf, sixBitLen(len(literal)))
	buf = append(buf, compressed...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	if err := NewParser(h, nil).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.sets["k"] != string(literal) {
		t.Fatalf("got %q, want %q", h.sets["k"], string(literal))
	}
}

func TestParseBadMagic(t *testing.T) {
	buf := []byte("NOTREDIS0001")
	err := NewParser(nil, nil).Parse(bytes.NewReader(buf))
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != ErrBadMagic {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

func TestParseBadVersion(t *testing.T) {
	buf := append(header("0099"), opEOF)
	err := NewParser(nil, nil).Parse(bytes.NewReader(buf))
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != ErrBadVersion {
		t.Fatalf("got %v, want ErrBadVersion", err)
	}
}

type skipRecordingHandler struct {
	*recordingHandler
	skipped []string
}

func (h *skipRecordingHandler) SkipRecord(db int, key string, logType LogicalType) error {
	h.skipped = append(h.skipped, key)
	return nil
}

func TestFilterNotifiesSkipObserver(t *testing.T) {
	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeString)
	buf = append(buf, stringField([]byte("skip-me"))...)
	buf = append(buf, stringField([]byte("x"))...)
	buf = append(buf, TypeString)
	buf = append(buf, stringField([]byte("keep-me"))...)
	buf = append(buf, stringField([]byte("y"))...)
	buf = append(buf, opEOF)

	h := &skipRecordingHandler{recordingHandler: newRecordingHandler()}
	filter := &Filter{KeyPattern: regexp.MustCompile("^keep")}
	if err := NewParser(h, filter).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(h.skipped) != 1 || h.skipped[0] != "skip-me" {
		t.Fatalf("got skipped %v, want [skip-me]", h.skipped)
	}
}

func TestFilterSkipsUnmatchedKeys(t *testing.T) {
	var buf []byte
	buf = append(buf, header("0001")...)
	buf = append(buf, selectDB(0)...)
	buf = append(buf, TypeString)
	buf = append(buf, stringField([]byte("skip-me"))...)
	buf = append(buf, stringField([]byte("x"))...)
	buf = append(buf, TypeString)
	buf = append(buf, stringField([]byte("keep-me"))...)
	buf = append(buf, stringField([]byte("y"))...)
	buf = append(buf, opEOF)

	h := newRecordingHandler()
	filter := &Filter{KeyPattern: regexp.MustCompile("^keep")}
	if err := NewParser(h, filter).Parse(bytes.NewReader(buf)); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := h.sets["skip-me"]; ok {
		t.Fatalf("expected skip-me to be filtered out")
	}
	if h.sets["keep-me"] != "y" {
		t.Fatalf("got %q, want y", h.sets["keep-me"])
	}
}
