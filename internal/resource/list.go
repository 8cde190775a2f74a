package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/rest"
)

// List is a filtered collection of resources of one type. It performs at
// most one bulk fetch per lifetime unless Refresh is called.
type List struct {
	cli       rest.Client
	typ       Type
	filter    rest.Body
	predicate func(Properties) bool

	items  []*Resource
	loaded bool
}

// ListOption configures a List.
type ListOption func(*List)

// WithFilter adds a server-side equality constraint. Unset values are
// ignored, so optional filters can be passed unconditionally.
func WithFilter(key string, value any) ListOption {
	return func(l *List) {
		if l.filter == nil {
			l.filter = rest.Body{}
		}
		if v, keep := rest.Normalize(value, false); keep {
			l.filter[key] = v
		}
	}
}

// WithPredicate adds a client-side predicate applied after the fetch.
// Multiple predicates must all match.
func WithPredicate(fn func(Properties) bool) ListOption {
	return func(l *List) {
		prev := l.predicate
		if prev == nil {
			l.predicate = fn
			return
		}
		l.predicate = func(p Properties) bool { return prev(p) && fn(p) }
	}
}

// NewList returns an unfetched collection.
func NewList(cli rest.Client, typ Type, opts ...ListOption) *List {
	l := &List{cli: cli, typ: typ}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *List) load(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	resp, err := rest.Check(l.cli.List(ctx, l.typ.Name, l.filter, l.typ.Fields))
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", l.typ.Name, err)
	}
	items := make([]*Resource, 0, len(resp.Contents))
	for _, content := range resp.Contents {
		props := Properties(content)
		if l.predicate != nil && !l.predicate(props) {
			continue
		}
		items = append(items, FromProperties(l.cli, l.typ, props))
	}
	l.items = items
	l.loaded = true
	return nil
}

// Refresh discards the cached fetch.
func (l *List) Refresh() {
	l.items = nil
	l.loaded = false
}

// Items returns the members in server order.
func (l *List) Items(ctx context.Context) ([]*Resource, error) {
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return l.items, nil
}

// Len returns the number of objects, fetching the list if needed.
func (l *List) Len(ctx context.Context) (int, error) {
	if err := l.load(ctx); err != nil {
		return 0, err
	}
	return len(l.items), nil
}

// At returns the i-th member.
func (l *List) At(ctx context.Context, i int) (*Resource, error) {
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(l.items) {
		return nil, fmt.Errorf("index %d out of range for %d %s items", i, len(l.items), l.typ.Name)
	}
	return l.items[i], nil
}

// First returns the first member, or nil when the collection is empty.
func (l *List) First(ctx context.Context) (*Resource, error) {
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	if len(l.items) == 0 {
		return nil, nil
	}
	return l.items[0], nil
}

// IDs returns member ids in server order.
func (l *List) IDs(ctx context.Context) ([]string, error) {
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(l.items))
	for _, r := range l.items {
		ids = append(ids, r.ID())
	}
	return ids, nil
}

// Table exports the given field paths of every member.
func (l *List) Table(ctx context.Context, fields ...string) (*Table, error) {
	items, err := l.Items(ctx)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		fields = []string{"id", "name"}
	}
	t := &Table{Kind: l.typ.Name, Columns: fields}
	for _, r := range items {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = r.props.String(f)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Table is a tabular export of selected fields.
type Table struct {
	Kind    string
	Columns []string
	Rows    [][]string
}

// Records returns each row keyed by column.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			rec[col] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, apierrors.ErrNotFound)
}
