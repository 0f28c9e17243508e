// Package jsonout implements an rdb.Handler that renders a decoded dump
// as newline-delimited JSON: one object per record, each carrying its
// database number and key.
package jsonout

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/congmo/rdbscan/internal/rdb"
)

// record is one key's JSON rendering. Only the field matching Type is
// populated.
type record struct {
	DB          int                `json:"db"`
	Key         string             `json:"key"`
	Type        string             `json:"type"`
	Encoding    string             `json:"encoding,omitempty"`
	SizeofValue int                `json:"sizeofValue,omitempty"`
	ExpireAt    int64              `json:"expireAtMicros,omitempty"`
	Value       string             `json:"value,omitempty"`
	List        []string           `json:"list,omitempty"`
	Set         []string           `json:"set,omitempty"`
	Hash        map[string]string  `json:"hash,omitempty"`
	SortedSet   map[string]float64 `json:"sortedSet,omitempty"`
}

// Handler streams one newline-delimited JSON object per decoded record
// to w.
type Handler struct {
	rdb.BaseHandler

	w       *bufio.Writer
	enc     *json.Encoder
	db      int
	current *record
}

// NewHandler returns a Handler writing one JSON object per decoded
// record, newline-delimited, to w.
func NewHandler(w io.Writer) *Handler {
	bw := bufio.NewWriter(w)
	return &Handler{w: bw, enc: json.NewEncoder(bw)}
}

// Flush must be called once decoding finishes to flush buffered output.
func (h *Handler) Flush() error { return h.w.Flush() }

func (h *Handler) StartDatabase(db int) error {
	h.db = db
	return nil
}

func (h *Handler) EndDatabase(db int) error { return nil }

func (h *Handler) Set(key string, value rdb.Value, expireAtMicros int64, info rdb.Info) error {
	return h.emit(record{
		DB: h.db, Key: key, Type: "string", Value: value.String(), ExpireAt: expireAtMicros,
		Encoding: info.Encoding, SizeofValue: info.SizeofValue,
	})
}

func (h *Handler) StartHash(key string, length int, expireAtMicros int64, info rdb.Info) error {
	h.current = &record{
		DB: h.db, Key: key, Type: "hash", ExpireAt: expireAtMicros, Hash: make(map[string]string, length),
		Encoding: info.Encoding, SizeofValue: info.SizeofValue,
	}
	return nil
}
func (h *Handler) HSet(key string, field, value rdb.Value) error {
	h.current.Hash[field.String()] = value.String()
	return nil
}
func (h *Handler) EndHash(key string) error { return h.emitCurrent() }

func (h *Handler) StartSet(key string, length int, expireAtMicros int64, info rdb.Info) error {
	h.current = &record{
		DB: h.db, Key: key, Type: "set", ExpireAt: expireAtMicros, Set: make([]string, 0, length),
		Encoding: info.Encoding, SizeofValue: info.SizeofValue,
	}
	return nil
}
func (h *Handler) SAdd(key string, member rdb.Value) error {
	h.current.Set = append(h.current.Set, member.String())
	return nil
}
func (h *Handler) EndSet(key string) error { return h.emitCurrent() }

func (h *Handler) StartList(key string, length int, expireAtMicros int64, info rdb.Info) error {
	h.current = &record{
		DB: h.db, Key: key, Type: "list", ExpireAt: expireAtMicros, List: make([]string, 0, length),
		Encoding: info.Encoding, SizeofValue: info.SizeofValue,
	}
	return nil
}
func (h *Handler) RPush(key string, value rdb.Value) error {
	h.current.List = append(h.current.List, value.String())
	return nil
}
func (h *Handler) EndList(key string) error { return h.emitCurrent() }

func (h *Handler) StartSortedSet(key string, length int, expireAtMicros int64, info rdb.Info) error {
	h.current = &record{
		DB: h.db, Key: key, Type: "sortedset", ExpireAt: expireAtMicros, SortedSet: make(map[string]float64, length),
		Encoding: info.Encoding, SizeofValue: info.SizeofValue,
	}
	return nil
}
func (h *Handler) ZAdd(key string, score float64, member rdb.Value) error {
	h.current.SortedSet[member.String()] = score
	return nil
}
func (h *Handler) EndSortedSet(key string) error { return h.emitCurrent() }

func (h *Handler) emitCurrent() error {
	r := h.current
	h.current = nil
	return h.emit(*r)
}

func (h *Handler) emit(r record) error {
	return h.enc.Encode(r)
}
