package unity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/version"
)

var snapType = resource.Type{
	Name: typeSnap,
	Fields: []string{
		"id", "name", "description", "state", "creationTime", "expirationTime",
		"isAutoDelete", "isReadOnly", "accessType", "attachedWWN",
		"storageResource.id", "storageResource.type",
		"lun.id", "snapGroup.id", "parentSnap.id",
		"hostAccess.host.id", "hostAccess.allowedAccess",
	},
}

// Snap is a point in time copy of a storage resource. A snapshot of a
// consistency group has one member snapshot per member LUN.
type Snap struct {
	*resource.Resource
	sys *System
}

var _ Attachable = (*Snap)(nil)

// Snap returns a hollow handle.
func (s *System) Snap(id string) *Snap {
	return &Snap{Resource: resource.New(s.cli, snapType, id), sys: s}
}

func (s *System) wrapSnap(r *resource.Resource) *Snap {
	return &Snap{Resource: r, sys: s}
}

// Snaps lists snapshots.
func (s *System) Snaps(opts ...resource.ListOption) *resource.Collection[*Snap] {
	return resource.NewCollection(resource.NewList(s.cli, snapType, opts...), s.wrapSnap)
}

// SnapByName returns the snapshot with the given name.
func (s *System) SnapByName(ctx context.Context, name string) (*Snap, error) {
	snap, ok, err := s.Snaps(resource.WithFilter("name", name)).First(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.New(apierrors.KindNotFound, "snap %q not found", name)
	}
	return snap, nil
}

// SnapCreateOptions configures CreateSnap.
type SnapCreateOptions struct {
	Name              string
	Description       string
	IsAutoDelete      *bool
	RetentionDuration time.Duration
	IsReadOnly        *bool
	// FSAccessType applies to filesystem snapshots only.
	FSAccessType *int
}

// CreateSnap snapshots the storage resource sr.
func (s *System) CreateSnap(ctx context.Context, sr rest.Identifier, opts SnapCreateOptions) (*Snap, error) {
	body := rest.MakeBody(
		"storageResource", sr,
		"name", opts.Name,
		"description", opts.Description,
		"isAutoDelete", opts.IsAutoDelete,
		"retentionDuration", optInt(int64(opts.RetentionDuration/time.Second)),
		"isReadOnly", opts.IsReadOnly,
		"filesystemAccessType", opts.FSAccessType,
	)
	resp, err := rest.Check(s.cli.Post(ctx, typeSnap, body))
	if err != nil {
		return nil, fmt.Errorf("failed to create snap of %s: %w", sr.ID(), err)
	}
	s.log.WithFields(logrus.Fields{"snap": resp.ResourceID(), "resource": sr.ID()}).Info("created snap")
	return s.Snap(resp.ResourceID()), nil
}

// IsMemberSnap reports whether this is the member snapshot of a CG
// snapshot.
func (sn *Snap) IsMemberSnap(ctx context.Context) (bool, error) {
	p, err := sn.Properties(ctx)
	if err != nil {
		return false, err
	}
	return p.RefID("snapGroup") != "", nil
}

// IsCGSnap reports whether this is a group snapshot of a CG.
func (sn *Snap) IsCGSnap(ctx context.Context) (bool, error) {
	p, err := sn.Properties(ctx)
	if err != nil {
		return false, err
	}
	t, _ := p.Int("storageResource.type")
	return StorageResourceType(t) == StorageResourceConsistencyGroup && p.RefID("snapGroup") == "", nil
}

// MemberSnap returns the member snapshot of this group snapshot that
// covers lun, or nil.
func (sn *Snap) MemberSnap(ctx context.Context, lun rest.Identifier) (*Snap, error) {
	member, ok, err := sn.sys.Snaps(
		resource.WithFilter("snapGroup", sn),
		resource.WithFilter("lun", lun),
	).First(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return member, nil
}

// SnapHostAccess is one host's access to a snapshot.
type SnapHostAccess struct {
	Host          rest.Identifier
	AllowedAccess SnapAccess
}

func (a SnapHostAccess) body() rest.Body {
	return rest.MakeBody("host", a.Host, "allowedAccess", int(a.AllowedAccess))
}

// HostAccess returns the hosts the snapshot is attached to.
func (sn *Snap) HostAccess(ctx context.Context) ([]SnapHostAccess, error) {
	p, err := sn.Properties(ctx)
	if err != nil {
		return nil, err
	}
	entries := p.Objects("hostAccess")
	out := make([]SnapHostAccess, 0, len(entries))
	for _, e := range entries {
		access, _ := e.Int("allowedAccess")
		out = append(out, SnapHostAccess{Host: rest.Ref(e.RefID("host")), AllowedAccess: SnapAccess(access)})
	}
	return out, nil
}

// accessHolder is the snapshot that carries host access: the group
// snapshot for member snapshots, the snapshot itself otherwise.
func (sn *Snap) accessHolder(ctx context.Context) (*Snap, error) {
	p, err := sn.Properties(ctx)
	if err != nil {
		return nil, err
	}
	if group := p.RefID("snapGroup"); group != "" {
		sn.sys.log.WithFields(logrus.Fields{"snap": sn.ID(), "group": group}).Info("member snap, using group snap for host access")
		return sn.sys.Snap(group), nil
	}
	return sn, nil
}

func (sn *Snap) hostAccessAction(ctx context.Context, action string, access []SnapHostAccess) error {
	body := rest.Body{}
	if access != nil {
		list := make([]any, 0, len(access))
		for _, a := range access {
			list = append(list, a.body())
		}
		body = rest.MakeBody("hostAccess", list)
	}
	_, err := rest.Check(sn.sys.cli.Action(ctx, typeSnap, sn.ID(), action, body))
	sn.Invalidate()
	if err != nil {
		return fmt.Errorf("failed to %s snap %s: %w", action, sn.ID(), err)
	}
	return nil
}

// AttachTo grants host access, keeping the access of other hosts. Member
// snapshots are attached through their group snapshot.
func (sn *Snap) AttachTo(ctx context.Context, host *Host, opts AttachOptions) error {
	if err := version.Require(sn.sys.Version(), version.SnapAttach, "snap attach"); err != nil {
		return err
	}
	access := SnapReadWrite
	if opts.SnapAccess != nil {
		access = *opts.SnapAccess
	}

	holder, err := sn.accessHolder(ctx)
	if err != nil {
		return err
	}
	// fresh read so other hosts are not dropped
	if err := holder.Update(ctx); err != nil {
		return err
	}
	existing, err := holder.HostAccess(ctx)
	if err != nil {
		return err
	}

	want := []SnapHostAccess{{Host: host, AllowedAccess: access}}
	if len(existing) == 0 {
		return holder.hostAccessAction(ctx, "attach", want)
	}
	for _, a := range existing {
		if a.Host.ID() != host.ID() {
			want = append(want, a)
		}
	}
	return holder.hostAccessAction(ctx, "modify", want)
}

// DetachFrom removes host access. A nil host, or the last attached host,
// detaches the snapshot entirely; other hosts keep their access. A snapshot
// with no host access is left alone.
func (sn *Snap) DetachFrom(ctx context.Context, host *Host) error {
	holder, err := sn.accessHolder(ctx)
	if err != nil {
		return err
	}
	existing, err := holder.HostAccess(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}
	if host == nil {
		return holder.hostAccessAction(ctx, "detach", nil)
	}

	remaining := make([]SnapHostAccess, 0, len(existing))
	for _, a := range existing {
		if a.Host.ID() != host.ID() {
			remaining = append(remaining, a)
		}
	}
	switch {
	case len(remaining) == len(existing):
		return nil
	case len(remaining) == 0:
		return holder.hostAccessAction(ctx, "detach", nil)
	default:
		return holder.hostAccessAction(ctx, "modify", remaining)
	}
}

// Copy creates a snapshot of this snapshot.
func (sn *Snap) Copy(ctx context.Context, name string) (*Snap, error) {
	resp, err := sn.Action(ctx, "copy", rest.MakeBody("copyName", name))
	if err != nil {
		return nil, err
	}
	copies := resource.Properties(resp.FirstContent()).Objects("copies")
	if len(copies) == 0 || copies[0].String("id") == "" {
		return nil, apierrors.New(apierrors.KindGeneric, "copy of snap %s returned no snap id", sn.ID())
	}
	return sn.sys.Snap(copies[0].String("id")), nil
}

// Restore rolls the storage resource back to this snapshot. The array
// takes a backup snapshot named backupName first; it is deleted afterwards
// when deleteBackup is set. The backup handle is returned either way.
func (sn *Snap) Restore(ctx context.Context, backupName string, deleteBackup bool) (*Snap, error) {
	resp, err := sn.Action(ctx, "restore", rest.MakeBody("copyName", backupName))
	if err != nil {
		return nil, err
	}
	backupID := resource.Properties(resp.FirstContent()).RefID("backup")
	if backupID == "" {
		return nil, apierrors.New(apierrors.KindGeneric, "restore of snap %s returned no backup", sn.ID())
	}
	backup := sn.sys.Snap(backupID)
	if deleteBackup {
		sn.sys.log.WithField("snap", backupID).Info("restore done, deleting backup snap")
		if err := backup.Delete(ctx, false); err != nil {
			return backup, err
		}
	}
	return backup, nil
}

// Delete removes the snapshot. With evenAttached, a snapshot that is still
// attached is detached from every host and deleted again.
func (sn *Snap) Delete(ctx context.Context, evenAttached bool) error {
	_, err := sn.Resource.Delete(ctx, nil)
	if !errors.Is(err, apierrors.ErrDeleteAttachedSnap) || !evenAttached {
		return err
	}
	sn.sys.log.WithField("snap", sn.ID()).Debug("snap is attached, detaching before delete")
	sn.Invalidate()
	if err := sn.DetachFrom(ctx, nil); err != nil {
		return err
	}
	_, err = sn.Resource.Delete(ctx, nil)
	return err
}

// ThinClone creates a thin clone LUN from this snapshot. The snapshot must
// not be auto-deleted.
func (sn *Snap) ThinClone(ctx context.Context, opts ThinCloneOptions) (*LUN, error) {
	if err := version.Require(sn.sys.Version(), version.ThinClone, "thin clone"); err != nil {
		return nil, err
	}
	member, err := sn.IsMemberSnap(ctx)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, apierrors.New(apierrors.KindCGMemberNotAllowed, "snap %s is a cg member snap", sn.ID())
	}
	p, err := sn.Properties(ctx)
	if err != nil {
		return nil, err
	}
	if lunID := p.RefID("lun"); lunID != "" {
		thin, err := sn.sys.LUN(lunID).IsThin(ctx)
		if err != nil {
			return nil, err
		}
		if !thin {
			return nil, apierrors.New(apierrors.KindThinCloneNotAllowed, "lun %s of snap %s is not thin", lunID, sn.ID())
		}
	}

	body := rest.MakeBody(
		"snap", sn,
		"name", opts.Name,
		"description", opts.Description,
		"lunParameters", rest.MakeBody("ioLimitParameters", rest.MakeBody("ioLimitPolicy", opts.IOLimitPolicy)),
	)
	resp, err := sn.sys.storageResourceAction(ctx, p.RefID("storageResource"), "createThinClone", body)
	if err != nil {
		return nil, fmt.Errorf("failed to thin clone snap %s: %w", sn.ID(), err)
	}
	ids, err := sn.sys.StorageResource(resp.ResourceID()).LUNIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apierrors.New(apierrors.KindNotFound, "thin clone %s has no lun", resp.ResourceID())
	}
	sn.sys.log.WithFields(logrus.Fields{"snap": sn.ID(), "lun": ids[0], "name": opts.Name}).Info("created thin clone")
	return sn.sys.LUN(ids[0]), nil
}
