package model

import (
	"math"
	"strconv"
)

// Page selects a 1-based, inclusive range of results. A nil bound means the
// range is open and no pagination is applied.
type Page struct {
	StartIndex *int `json:"startIndex,omitempty" yaml:"start_index,omitempty"`
	EndIndex   *int `json:"endIndex,omitempty" yaml:"end_index,omitempty"`
}

// NewPage builds a page covering startIndex..endIndex.
func NewPage(startIndex, endIndex int) *Page {
	return &Page{StartIndex: &startIndex, EndIndex: &endIndex}
}

// Window is a page normalized into skip/limit form.
type Window struct {
	Skip  int64
	Limit int64
}

// Empty reports whether the window can match nothing.
func (w Window) Empty() bool {
	return w.Limit == 0
}

// Window normalizes the page. ok is false when either bound is missing, in
// which case the query is unbounded.
func (p *Page) Window() (w Window, ok bool) {
	if p == nil || p.StartIndex == nil || p.EndIndex == nil {
		return Window{}, false
	}
	start, end := int64(*p.StartIndex), int64(*p.EndIndex)
	if start < 1 {
		start = 1
	}
	if end < start {
		return Window{Skip: start - 1}, true
	}
	return Window{Skip: start - 1, Limit: end - start + 1}, true
}

// PageNumber is the 1-based page index of the window, ceil((skip+1)/limit).
func (w Window) PageNumber() int64 {
	if w.Limit <= 0 {
		return 1
	}
	return (w.Skip + w.Limit) / w.Limit
}

// ParsePage reads a page from loosely typed input, e.g. a decoded JSON object
// with "startIndex" and "endIndex". Bounds that are missing or not integral
// leave the page open.
func ParsePage(v interface{}) *Page {
	var start, end interface{}
	switch val := v.(type) {
	case nil:
		return nil
	case *Page:
		return val
	case Page:
		return &val
	case M:
		start, end = val["startIndex"], val["endIndex"]
	case map[string]interface{}:
		start, end = val["startIndex"], val["endIndex"]
	default:
		return nil
	}

	s, okStart := integral(start)
	e, okEnd := integral(end)
	if !okStart || !okEnd {
		return &Page{}
	}
	return NewPage(s, e)
}

func integral(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if math.Trunc(n) != n || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		// -MinInt is a power of two, exact as a float64
		if n < float64(math.MinInt) || n >= -float64(math.MinInt) {
			return 0, false
		}
		return int(n), true
	case float32:
		return integral(float64(n))
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
