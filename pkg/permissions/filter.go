// Package permissions builds chapter-scoped list filters and answers
// record-level access questions for the association directory.
package permissions

import (
	"fmt"
	"strings"
)

// Filter is a parameterized list predicate. Expr uses ? placeholders;
// Args carries the bound values. Values never appear in Expr, so a
// filter is safe to hand to any SQL layer.
type Filter struct {
	Expr string
	Args []interface{}
}

// Unrestricted matches every record.
func Unrestricted() Filter {
	return Filter{}
}

// DenyAll matches no record.
func DenyAll() Filter {
	return Filter{Expr: "1=0"}
}

// IsUnrestricted reports whether the filter matches everything.
func (f Filter) IsUnrestricted() bool {
	return f.Expr == ""
}

// IsDenyAll reports whether the filter matches nothing.
func (f Filter) IsDenyAll() bool {
	return f.Expr == "1=0"
}

// In builds a column IN (...) filter. An empty value set denies all,
// since SQL has no empty IN list.
func In(column string, values []string) Filter {
	if len(values) == 0 {
		return DenyAll()
	}
	placeholders := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return Filter{
		Expr: fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")),
		Args: args,
	}
}

// Eq builds a column = value filter.
func Eq(column string, value interface{}) Filter {
	return Filter{Expr: column + " = ?", Args: []interface{}{value}}
}

// Or combines filters disjunctively. Unrestricted absorbs everything;
// deny-all terms drop out.
func Or(filters ...Filter) Filter {
	var kept []Filter
	for _, f := range filters {
		if f.IsUnrestricted() {
			return Unrestricted()
		}
		if f.IsDenyAll() {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return DenyAll()
	}
	if len(kept) == 1 {
		return kept[0]
	}
	terms := make([]string, len(kept))
	var args []interface{}
	for i, f := range kept {
		terms[i] = "(" + f.Expr + ")"
		args = append(args, f.Args...)
	}
	return Filter{Expr: strings.Join(terms, " OR "), Args: args}
}

// And combines filters conjunctively.
func And(filters ...Filter) Filter {
	var kept []Filter
	for _, f := range filters {
		if f.IsDenyAll() {
			return DenyAll()
		}
		if f.IsUnrestricted() {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return Unrestricted()
	}
	if len(kept) == 1 {
		return kept[0]
	}
	terms := make([]string, len(kept))
	var args []interface{}
	for i, f := range kept {
		terms[i] = "(" + f.Expr + ")"
		args = append(args, f.Args...)
	}
	return Filter{Expr: strings.Join(terms, " AND "), Args: args}
}

// Rebind rewrites ? placeholders to $1..$n for PostgreSQL drivers.
func (f Filter) Rebind() string {
	var b strings.Builder
	n := 0
	for _, r := range f.Expr {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// WhereClause renders the filter as a SQL fragment for appending to a
// query, rebound for PostgreSQL. Unrestricted renders empty.
func (f Filter) WhereClause() string {
	if f.IsUnrestricted() {
		return ""
	}
	return " WHERE " + f.Rebind()
}
