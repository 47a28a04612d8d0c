package annoy

import (
	"fmt"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// FilterMode selects how a Filter's ids are applied.
type FilterMode uint8

const (
	// FilterExclude drops every id in the set.
	FilterExclude FilterMode = iota + 1
	// FilterInclude keeps only ids in the set.
	FilterInclude
)

func (m FilterMode) String() string {
	switch m {
	case FilterExclude:
		return "exclude"
	case FilterInclude:
		return "include"
	default:
		return fmt.Sprintf("FilterMode(%d)", m)
	}
}

// ParseFilterMode maps "include" or "exclude" to a FilterMode.
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exclude":
		return FilterExclude, nil
	case "include":
		return FilterInclude, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidFilterMode, s)
	}
}

// Filter is a set of item ids applied to query results.
// A Filter is not safe for concurrent mutation; concurrent queries may share it.
type Filter struct {
	mode FilterMode
	ids  *roaring.Bitmap
}

// NewFilter creates a filter over ids. Negative ids never name an item and
// are ignored.
func NewFilter(mode FilterMode, ids ...int) *Filter {
	f := &Filter{mode: mode, ids: roaring.New()}
	f.Add(ids...)
	return f
}

// NewFilterFromBitmap creates a filter that shares bm.
func NewFilterFromBitmap(mode FilterMode, bm *roaring.Bitmap) *Filter {
	if bm == nil {
		bm = roaring.New()
	}
	return &Filter{mode: mode, ids: bm}
}

// Add inserts ids into the set.
func (f *Filter) Add(ids ...int) {
	for _, id := range ids {
		if id >= 0 && uint64(id) <= math.MaxUint32 {
			f.ids.Add(uint32(id))
		}
	}
}

// Mode returns the filter mode.
func (f *Filter) Mode() FilterMode { return f.mode }

// Len returns the number of ids in the set.
func (f *Filter) Len() int { return int(f.ids.GetCardinality()) }

// Contains reports whether id is in the set.
func (f *Filter) Contains(id int) bool {
	return id >= 0 && uint64(id) <= math.MaxUint32 && f.ids.Contains(uint32(id))
}

// Allows reports whether a result with id passes the filter.
func (f *Filter) Allows(id int) bool {
	if f.mode == FilterInclude {
		return f.Contains(id)
	}
	return !f.Contains(id)
}

func (f *Filter) validate() error {
	switch f.mode {
	case FilterExclude, FilterInclude:
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrInvalidFilterMode, f.mode)
	}
}

func (f *Filter) accept() func(int32) bool {
	if f.mode == FilterInclude {
		return func(id int32) bool { return f.ids.Contains(uint32(id)) }
	}
	return func(id int32) bool { return !f.ids.Contains(uint32(id)) }
}
