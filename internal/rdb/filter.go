package rdb

import "regexp"

// Filter gates which records Parse decodes in full versus skips over.
// A zero-value Filter matches everything.
type Filter struct {
	// DBs restricts decoding to the given database indexes. A nil or
	// empty slice matches every database.
	DBs []int
	// KeyPattern, if non-nil, must match a key for it to be decoded.
	KeyPattern *regexp.Regexp
	// Types restricts decoding to the given logical types. A nil or
	// empty slice matches every type.
	Types []LogicalType
}

// compiledFilter is the Filter normalized into fast lookup structures,
// built once per Parse call.
type compiledFilter struct {
	dbs        map[int]struct{}
	keyPattern *regexp.Regexp
	types      map[LogicalType]struct{}
}

func compileFilter(f *Filter) *compiledFilter {
	if f == nil {
		f = &Filter{}
	}
	cf := &compiledFilter{keyPattern: f.KeyPattern}
	if len(f.DBs) > 0 {
		cf.dbs = make(map[int]struct{}, len(f.DBs))
		for _, db := range f.DBs {
			cf.dbs[db] = struct{}{}
		}
	}
	if len(f.Types) > 0 {
		cf.types = make(map[LogicalType]struct{}, len(f.Types))
		for _, t := range f.Types {
			cf.types[t] = struct{}{}
		}
	}
	return cf
}

func (cf *compiledFilter) matchesDB(db int) bool {
	if cf.dbs == nil {
		return true
	}
	_, ok := cf.dbs[db]
	return ok
}

func (cf *compiledFilter) matchesKey(key string) bool {
	if cf.keyPattern == nil {
		return true
	}
	return cf.keyPattern.MatchString(key)
}

func (cf *compiledFilter) matchesType(t LogicalType) bool {
	if cf.types == nil {
		return true
	}
	_, ok := cf.types[t]
	return ok
}

// matches reports whether a record at the given database, key and
// logical type should be decoded. Database membership is checked
// separately by the driver (matchesDB), after the record's key has been
// read; a record in an excluded database is skipped one record at a time
// like any other rejected record.
func (cf *compiledFilter) matches(key string, t LogicalType) bool {
	return cf.matchesKey(key) && cf.matchesType(t)
}
