package unity

import (
	"context"

	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
)

var storageResourceType = resource.Type{
	Name: typeStorageResource,
	Fields: []string{
		"id", "name", "description", "type", "health", "sizeTotal", "sizeAllocated",
		"luns.id", "filesystem.id", "pools.id",
	},
}

// StorageResource is the provisioning container behind LUNs, consistency
// groups and filesystems.
type StorageResource struct {
	*resource.Resource
	sys *System
}

// StorageResource returns a hollow handle.
func (s *System) StorageResource(id string) *StorageResource {
	return &StorageResource{Resource: resource.New(s.cli, storageResourceType, id), sys: s}
}

// StorageResources lists storage resources.
func (s *System) StorageResources(opts ...resource.ListOption) *resource.Collection[*StorageResource] {
	return resource.NewCollection(resource.NewList(s.cli, storageResourceType, opts...),
		func(r *resource.Resource) *StorageResource { return &StorageResource{Resource: r, sys: s} })
}

// Kind is the storage resource type.
func (sr *StorageResource) Kind(ctx context.Context) (StorageResourceType, error) {
	p, err := sr.Properties(ctx)
	if err != nil {
		return 0, err
	}
	t, _ := p.Int("type")
	return StorageResourceType(t), nil
}

// LUNIDs returns the member LUN ids in array order.
func (sr *StorageResource) LUNIDs(ctx context.Context) ([]string, error) {
	p, err := sr.Properties(ctx)
	if err != nil {
		return nil, err
	}
	return p.RefIDs("luns"), nil
}

// LUNs returns handles for the member LUNs.
func (sr *StorageResource) LUNs(ctx context.Context) ([]*LUN, error) {
	ids, err := sr.LUNIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*LUN, 0, len(ids))
	for _, id := range ids {
		out = append(out, sr.sys.LUN(id))
	}
	return out, nil
}

// modifyFilesystem runs the filesystem modify action on a filesystem
// storage resource.
func (sr *StorageResource) modifyFilesystem(ctx context.Context, body rest.Body) (*rest.Response, error) {
	resp, err := sr.sys.storageResourceAction(ctx, sr.ID(), "modifyFilesystem", body)
	sr.Invalidate()
	return resp, err
}
