// Package reconcile turns a current and a desired set into add and remove
// operations and applies them.
//
// Apply runs adds before removes and stops at the first failure. Work
// already done is not rolled back; callers that need compensation handle
// it themselves.
package reconcile

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Plan is the difference between two sets.
type Plan[K cmp.Ordered] struct {
	ToAdd    []K
	ToRemove []K
}

// Empty reports whether the plan has nothing to do.
func (p Plan[K]) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToRemove) == 0
}

// Len is the number of operations in the plan.
func (p Plan[K]) Len() int {
	return len(p.ToAdd) + len(p.ToRemove)
}

// Compute returns desired minus current as ToAdd and current minus desired
// as ToRemove. Duplicates collapse and both lists are sorted.
func Compute[K cmp.Ordered](current, desired []K) Plan[K] {
	cur := toSet(current)
	want := toSet(desired)

	var p Plan[K]
	for k := range want {
		if _, ok := cur[k]; !ok {
			p.ToAdd = append(p.ToAdd, k)
		}
	}
	for k := range cur {
		if _, ok := want[k]; !ok {
			p.ToRemove = append(p.ToRemove, k)
		}
	}
	slices.Sort(p.ToAdd)
	slices.Sort(p.ToRemove)
	return p
}

// Apply calls add for each ToAdd element, then remove for each ToRemove
// element. It returns how many calls succeeded.
func Apply[K cmp.Ordered](ctx context.Context, p Plan[K], add, remove func(context.Context, K) error) (int, error) {
	done := 0
	for _, k := range p.ToAdd {
		if err := add(ctx, k); err != nil {
			return done, fmt.Errorf("failed to add %v: %w", k, err)
		}
		done++
	}
	for _, k := range p.ToRemove {
		if err := remove(ctx, k); err != nil {
			return done, fmt.Errorf("failed to remove %v: %w", k, err)
		}
		done++
	}
	return done, nil
}

// Sync computes the plan from current to desired and applies it.
func Sync[K cmp.Ordered](ctx context.Context, current, desired []K, add, remove func(context.Context, K) error) (int, error) {
	return Apply(ctx, Compute(current, desired), add, remove)
}

func toSet[K comparable](items []K) map[K]struct{} {
	set := make(map[K]struct{}, len(items))
	for _, k := range items {
		set[k] = struct{}{}
	}
	return set
}
