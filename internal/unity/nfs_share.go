package unity

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
)

var filesystemType = resource.Type{
	Name: typeFilesystem,
	Fields: []string{
		"id", "name", "description", "health", "sizeTotal", "sizeAllocated",
		"isThinEnabled", "storageResource.id", "pool.id", "nasServer.id", "nfsShare.id",
	},
}

var nfsShareType = resource.Type{
	Name: typeNFSShare,
	Fields: []string{
		"id", "name", "path", "description", "defaultAccess", "exportPaths",
		"filesystem.id", "snap.id",
	},
}

// Filesystem is a file storage resource served by a NAS server.
type Filesystem struct {
	*resource.Resource
	sys *System
}

// Filesystem returns a lazy handle for a filesystem.
func (s *System) Filesystem(id string) *Filesystem {
	return &Filesystem{Resource: resource.New(s.cli, filesystemType, id), sys: s}
}

// Filesystems lists filesystems.
func (s *System) Filesystems(opts ...resource.ListOption) *resource.Collection[*Filesystem] {
	return resource.NewCollection(resource.NewList(s.cli, filesystemType, opts...),
		func(r *resource.Resource) *Filesystem { return &Filesystem{Resource: r, sys: s} })
}

func (f *Filesystem) storageResource(ctx context.Context) (*StorageResource, error) {
	p, err := f.Properties(ctx)
	if err != nil {
		return nil, err
	}
	id := p.RefID("storageResource")
	if id == "" {
		return nil, apierrors.New(apierrors.KindNotFound, "filesystem %s has no storage resource", f.ID())
	}
	return f.sys.StorageResource(id), nil
}

// NFSShare exports a path of a filesystem over NFS.
type NFSShare struct {
	*resource.Resource
	sys *System
}

// NFSShare returns a lazy handle for an NFS share.
func (s *System) NFSShare(id string) *NFSShare {
	return &NFSShare{Resource: resource.New(s.cli, nfsShareType, id), sys: s}
}

// NFSShares lists NFS shares.
func (s *System) NFSShares(opts ...resource.ListOption) *resource.Collection[*NFSShare] {
	return resource.NewCollection(resource.NewList(s.cli, nfsShareType, opts...),
		func(r *resource.Resource) *NFSShare { return &NFSShare{Resource: r, sys: s} })
}

// CreateNFSShare exports path (default "/") of the filesystem under name.
func (f *Filesystem) CreateNFSShare(ctx context.Context, name, path string, access *NFSShareAccess) (*NFSShare, error) {
	if path == "" {
		path = "/"
	}
	sr, err := f.storageResource(ctx)
	if err != nil {
		return nil, err
	}
	param := rest.MakeBody(
		"name", name,
		"path", path,
		"nfsShareParameters", rest.MakeBody("defaultAccess", optEnum(access)),
	)
	if _, err := sr.modifyFilesystem(ctx, rest.MakeBody("nfsShareCreate", []any{param})); err != nil {
		return nil, fmt.Errorf("failed to create nfs share %s: %w", name, err)
	}
	f.Invalidate()

	share, ok, err := f.sys.NFSShares(resource.WithFilter("name", name)).First(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.New(apierrors.KindNotFound, "nfs share %q not found after create", name)
	}
	f.sys.log.WithFields(logrus.Fields{"share": share.ID(), "filesystem": f.ID()}).Info("created nfs share")
	return share, nil
}

// Remove deletes the share through its filesystem.
func (n *NFSShare) Remove(ctx context.Context) error {
	p, err := n.Properties(ctx)
	if err != nil {
		return err
	}
	fsID := p.RefID("filesystem")
	if fsID == "" {
		return apierrors.New(apierrors.KindNotFound, "nfs share %s has no filesystem", n.ID())
	}
	sr, err := n.sys.Filesystem(fsID).storageResource(ctx)
	if err != nil {
		return err
	}
	body := rest.MakeBody("nfsShareDelete", []any{rest.MakeBody("nfsShare", n)})
	if _, err := sr.modifyFilesystem(ctx, body); err != nil {
		return fmt.Errorf("failed to remove nfs share %s: %w", n.ID(), err)
	}
	n.Invalidate()
	return nil
}
