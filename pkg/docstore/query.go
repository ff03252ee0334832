package docstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

type FilterOp string

const (
	OpEqual         FilterOp = "=="
	OpNotEqual      FilterOp = "!="
	OpLess          FilterOp = "<"
	OpLessEqual     FilterOp = "<="
	OpGreater       FilterOp = ">"
	OpGreaterEqual  FilterOp = ">="
	OpIn            FilterOp = "in"
	OpArrayContains FilterOp = "array-contains"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value any      `json:"value"`
}

type Order struct {
	Field string    `json:"field"`
	Dir   Direction `json:"dir"`
}

// Query selects documents of one collection. Builder methods return a
// modified copy and leave the receiver untouched.
type Query struct {
	Collection Path     `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
	Orders     []Order  `json:"orders,omitempty"`
	Max        int      `json:"limit,omitempty"`
}

// Collection starts a query over every document of p.
func Collection(p Path) *Query {
	return &Query{Collection: p}
}

func (q *Query) clone() *Query {
	c := *q
	c.Filters = append([]Filter(nil), q.Filters...)
	c.Orders = append([]Order(nil), q.Orders...)
	return &c
}

func (q *Query) Where(field string, op FilterOp, value any) *Query {
	c := q.clone()
	c.Filters = append(c.Filters, Filter{Field: field, Op: op, Value: value})
	return c
}

func (q *Query) OrderBy(field string, dir Direction) *Query {
	if dir == "" {
		dir = Asc
	}
	c := q.clone()
	c.Orders = append(c.Orders, Order{Field: field, Dir: dir})
	return c
}

func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.Max = n
	return c
}

// Validate checks the collection path, filter operators and limit.
func (q *Query) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: nil query", ErrInvalidArgument)
	}
	if err := q.Collection.ValidateCollection(); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("%w: filter without field", ErrInvalidArgument)
		}
		switch f.Op {
		case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpArrayContains:
		case OpIn:
			if _, ok := f.Value.([]any); !ok {
				return fmt.Errorf("%w: %q filter needs a []any value", ErrInvalidArgument, OpIn)
			}
		default:
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidArgument, f.Op)
		}
	}
	for _, o := range q.Orders {
		if o.Field == "" || (o.Dir != Asc && o.Dir != Desc) {
			return fmt.Errorf("%w: bad order %+v", ErrInvalidArgument, o)
		}
	}
	if q.Max < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidArgument)
	}
	return nil
}

// String is the canonical form of the query, equal for equal queries.
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString(string(q.Collection))
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "|where:%s%s%s", f.Field, f.Op, canonicalValue(f.Value))
	}
	for _, o := range q.Orders {
		fmt.Fprintf(&b, "|order:%s:%s", o.Field, o.Dir)
	}
	if q.Max > 0 {
		fmt.Fprintf(&b, "|limit:%d", q.Max)
	}
	return b.String()
}

// canonicalValue renders a filter value by type and content. Pointers
// inside the value never show up, so equal values render equally.
func canonicalValue(v any) string {
	if data, err := json.Marshal(v); err == nil {
		return fmt.Sprintf("%T:%s", v, data)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// Matches reports whether doc belongs to the collection and passes every filter.
func (q *Query) Matches(doc Document) bool {
	if doc.Path.Parent() != q.Collection {
		return false
	}
	for _, f := range q.Filters {
		if !f.matches(doc.Data) {
			return false
		}
	}
	return true
}

func (f Filter) matches(data map[string]any) bool {
	v, ok := Field(data, f.Field)
	if f.Op == OpNotEqual {
		return !ok || !valuesEqual(v, f.Value)
	}
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return valuesEqual(v, f.Value)
	case OpIn:
		list, _ := f.Value.([]any)
		for _, e := range list {
			if valuesEqual(v, e) {
				return true
			}
		}
		return false
	case OpArrayContains:
		list, isList := v.([]any)
		if !isList {
			return false
		}
		for _, e := range list {
			if valuesEqual(e, f.Value) {
				return true
			}
		}
		return false
	}
	c, ok := compareValues(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

// Run filters, orders and limits docs. Ties, and queries without an
// explicit order, fall back to document id so results are deterministic.
func (q *Query) Run(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.Orders {
			c := compareField(out[i].Data, out[j].Data, o.Field)
			if c == 0 {
				continue
			}
			if o.Dir == Desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	if q.Max > 0 && len(out) > q.Max {
		out = out[:q.Max]
	}
	return out
}

func compareField(a, b map[string]any, field string) int {
	av, aok := Field(a, field)
	bv, bok := Field(b, field)
	ar, br := typeRank(av, aok), typeRank(bv, bok)
	if ar != br {
		if ar < br {
			return -1
		}
		return 1
	}
	if c, ok := compareValues(av, bv); ok {
		return c
	}
	return 0
}
