package config

import (
	"fmt"
	"regexp"

	"github.com/congmo/rdbscan/internal/rdb"
)

var logicalTypeByName = map[string]rdb.LogicalType{
	"string":    rdb.LogicalString,
	"list":      rdb.LogicalList,
	"set":       rdb.LogicalSet,
	"sortedset": rdb.LogicalSortedSet,
	"hash":      rdb.LogicalHash,
}

// ToFilter compiles the YAML-friendly FilterConfig into an rdb.Filter.
func (f FilterConfig) ToFilter() (*rdb.Filter, error) {
	filter := &rdb.Filter{DBs: f.DBs}

	if f.Keys != "" {
		pattern, err := regexp.Compile(f.Keys)
		if err != nil {
			return nil, fmt.Errorf("compile filter.keys: %w", err)
		}
		filter.KeyPattern = pattern
	}

	for _, name := range f.Types {
		lt, ok := logicalTypeByName[name]
		if !ok {
			return nil, fmt.Errorf("unknown filter.types entry %q", name)
		}
		filter.Types = append(filter.Types, lt)
	}
	return filter, nil
}
