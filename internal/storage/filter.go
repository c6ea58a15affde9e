package storage

import (
	"strings"

	"github.com/google/shlex"
)

// Filter selects items whose text contains every term, ignoring case.
// The zero Filter matches everything.
type Filter struct {
	Terms []string
}

// ParseFilter splits a query into terms using shell quoting rules, so
// `"foo bar" baz` yields two terms. Unbalanced quotes fall back to
// whitespace splitting.
func ParseFilter(query string) Filter {
	query = strings.TrimSpace(query)
	if query == "" {
		return Filter{}
	}
	terms, err := shlex.Split(query)
	if err != nil {
		terms = strings.Fields(query)
	}
	out := terms[:0]
	for _, t := range terms {
		if t != "" {
			out = append(out, strings.ToLower(t))
		}
	}
	return Filter{Terms: out}
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return len(f.Terms) == 0
}

// where returns an SQL condition and its arguments. It is never empty so it
// can be dropped into a WHERE clause unconditionally.
func (f Filter) where() (string, []any) {
	if f.IsEmpty() {
		return "1 = 1", nil
	}
	conds := make([]string, len(f.Terms))
	args := make([]any, len(f.Terms))
	for i, t := range f.Terms {
		conds[i] = "instr(lower(text), ?) > 0"
		args[i] = t
	}
	return strings.Join(conds, " AND "), args
}
