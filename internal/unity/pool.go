package unity

import (
	"context"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/resource"
)

var poolType = resource.Type{
	Name: typePool,
	Fields: []string{
		"id", "name", "description", "health", "raidType",
		"sizeTotal", "sizeFree", "sizeUsed", "sizeSubscribed",
		"isFASTCacheEnabled", "isAllFlash",
	},
}

// Pool is a storage pool LUNs are carved from.
type Pool struct {
	*resource.Resource
	sys *System
}

// Pool returns a lazy handle for a pool.
func (s *System) Pool(id string) *Pool {
	return &Pool{Resource: resource.New(s.cli, poolType, id), sys: s}
}

// Pools lists pools.
func (s *System) Pools(opts ...resource.ListOption) *resource.Collection[*Pool] {
	return resource.NewCollection(resource.NewList(s.cli, poolType, opts...),
		func(r *resource.Resource) *Pool { return &Pool{Resource: r, sys: s} })
}

// PoolByName returns the pool with the given name.
func (s *System) PoolByName(ctx context.Context, name string) (*Pool, error) {
	pool, ok, err := s.Pools(resource.WithFilter("name", name)).First(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.New(apierrors.KindNotFound, "pool %q not found", name)
	}
	return pool, nil
}

// FreeBytes is the unallocated capacity of the pool.
func (p *Pool) FreeBytes(ctx context.Context) (uint64, error) {
	props, err := p.Properties(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := props.Int("sizeFree")
	return uint64(n), nil
}

// CreateLUN creates a LUN in this pool.
func (p *Pool) CreateLUN(ctx context.Context, opts LUNCreateOptions) (*LUN, error) {
	opts.Pool = p
	return p.sys.CreateLUN(ctx, opts)
}
