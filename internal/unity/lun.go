package unity

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/reconcile"
	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/version"
)

var lunType = resource.Type{
	Name: typeLUN,
	Fields: []string{
		"id", "name", "description", "health", "sizeTotal", "sizeAllocated",
		"isThinEnabled", "isDataReductionEnabled", "isThinClone", "wwn",
		"defaultNode", "currentNode", "tieringPolicy",
		"pool.id", "pool.name", "pool.raidType", "pool.isFASTCacheEnabled",
		"hostAccess.host.id", "hostAccess.host.name", "hostAccess.accessMask",
		"storageResource.id", "storageResource.type",
		"ioLimitPolicy.id",
	},
}

// LUN is a block volume.
type LUN struct {
	*resource.Resource
	sys *System
}

var _ Attachable = (*LUN)(nil)

// LUN returns a hollow handle.
func (s *System) LUN(id string) *LUN {
	return &LUN{Resource: resource.New(s.cli, lunType, id), sys: s}
}

func (s *System) wrapLUN(r *resource.Resource) *LUN {
	return &LUN{Resource: r, sys: s}
}

// LUNs lists LUNs.
func (s *System) LUNs(opts ...resource.ListOption) *resource.Collection[*LUN] {
	return resource.NewCollection(resource.NewList(s.cli, lunType, opts...), s.wrapLUN)
}

// LUNByName returns the LUN with the given name.
func (s *System) LUNByName(ctx context.Context, name string) (*LUN, error) {
	lun, ok, err := s.LUNs(resource.WithFilter("name", name)).First(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.New(apierrors.KindNotFound, "lun %q not found", name)
	}
	return lun, nil
}

// BlockHostAccess grants one host access to a LUN or CG.
type BlockHostAccess struct {
	Host       rest.Identifier
	AccessMask AccessMask
	// HLU requests a specific host LUN number. Arrays before 4.4.0 reject it.
	HLU *int
}

func (a BlockHostAccess) body() rest.Body {
	b := rest.MakeBody("host", a.Host, "accessMask", int(a.AccessMask))
	if a.HLU != nil {
		b["hlu"] = *a.HLU
	}
	return b
}

func hostAccessBodies(list []BlockHostAccess) []any {
	out := make([]any, 0, len(list))
	for _, a := range list {
		out = append(out, a.body())
	}
	return out
}

// LUNParameters are the settings shared by LUN create, LUN modify and the
// CG member modify entry. Nil and zero fields are left unchanged. A non-nil
// empty HostAccess removes all host access.
type LUNParameters struct {
	Size          uint64
	Pool          rest.Identifier
	Thin          *bool
	SP            *Node
	TieringPolicy *TieringPolicy
	IOLimitPolicy rest.Identifier
	Compression   *bool
	HostAccess    []BlockHostAccess
}

func lunParametersBody(v *version.Version, p LUNParameters) rest.Body {
	body := rest.MakeBody(
		"isThinEnabled", p.Thin,
		"size", optInt(p.Size),
		"pool", p.Pool,
		"defaultNode", optEnum(p.SP),
		"fastVPParameters", rest.MakeBody("tieringPolicy", optEnum(p.TieringPolicy)),
		"ioLimitParameters", rest.MakeBody("ioLimitPolicy", p.IOLimitPolicy),
	)
	if p.Compression != nil {
		key := "isDataReductionEnabled"
		if v.Before(version.DataReduction) {
			key = "isCompressionEnabled"
		}
		body[key] = *p.Compression
	}
	if p.HostAccess != nil {
		body.Set("hostAccess", hostAccessBodies(p.HostAccess))
	}
	return body
}

// LUNCreateOptions configures CreateLUN.
type LUNCreateOptions struct {
	Name                     string
	Description              string
	IsReplicationDestination *bool
	LUNParameters
}

// LUNModifyOptions configures LUN.Modify.
type LUNModifyOptions struct {
	Name        string
	Description string
	// IsReplicationDestination cannot be changed on CG members.
	IsReplicationDestination *bool
	LUNParameters
}

func composeLUNBody(v *version.Version, name, desc string, replDst *bool, p LUNParameters) rest.Body {
	body := rest.MakeBody(
		"name", name,
		"description", desc,
		"replicationParameters", rest.MakeBody("isReplicationDestination", replDst),
	)
	if lp := lunParametersBody(v, p); len(lp) > 0 {
		body["lunParameters"] = lp
	}
	return body
}

// CreateLUN creates a standalone LUN and returns the first LUN of the new
// storage resource.
func (s *System) CreateLUN(ctx context.Context, opts LUNCreateOptions) (*LUN, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("lun name is required")
	}
	body := composeLUNBody(s.Version(), opts.Name, opts.Description, opts.IsReplicationDestination, opts.LUNParameters)
	resp, err := s.storageResourceTypeAction(ctx, "createLun", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create lun %s: %w", opts.Name, err)
	}

	ids, err := s.StorageResource(resp.ResourceID()).LUNIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apierrors.New(apierrors.KindNotFound, "storage resource %s has no lun", resp.ResourceID())
	}
	s.log.WithFields(logrus.Fields{"lun": ids[0], "name": opts.Name}).Info("created lun")
	return s.LUN(ids[0]), nil
}

// IsCGMember reports whether the LUN belongs to a consistency group.
func (l *LUN) IsCGMember(ctx context.Context) (bool, error) {
	p, err := l.Properties(ctx)
	if err != nil {
		return false, err
	}
	t, _ := p.Int("storageResource.type")
	return StorageResourceType(t) == StorageResourceConsistencyGroup, nil
}

// CG returns the owning consistency group, or nil for standalone LUNs.
func (l *LUN) CG(ctx context.Context) (*ConsistencyGroup, error) {
	member, err := l.IsCGMember(ctx)
	if err != nil || !member {
		return nil, err
	}
	p, _ := l.Properties(ctx)
	return l.sys.ConsistencyGroup(p.RefID("storageResource")), nil
}

// StorageResource returns the backing storage resource.
func (l *LUN) StorageResource(ctx context.Context) (*StorageResource, error) {
	p, err := l.Properties(ctx)
	if err != nil {
		return nil, err
	}
	id := p.RefID("storageResource")
	if id == "" {
		return nil, apierrors.New(apierrors.KindNotFound, "lun %s has no storage resource", l.ID())
	}
	return l.sys.StorageResource(id), nil
}

// SizeTotal is the provisioned size in bytes.
func (l *LUN) SizeTotal(ctx context.Context) (uint64, error) {
	p, err := l.Properties(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := p.Int("sizeTotal")
	return uint64(n), nil
}

// IsThin reports whether the LUN is thin provisioned.
func (l *LUN) IsThin(ctx context.Context) (bool, error) {
	p, err := l.Properties(ctx)
	if err != nil {
		return false, err
	}
	return p.Bool("isThinEnabled"), nil
}

// HostAccess returns the current host access entries.
func (l *LUN) HostAccess(ctx context.Context) ([]BlockHostAccess, error) {
	p, err := l.Properties(ctx)
	if err != nil {
		return nil, err
	}
	entries := p.Objects("hostAccess")
	out := make([]BlockHostAccess, 0, len(entries))
	for _, e := range entries {
		mask, _ := e.Int("accessMask")
		out = append(out, BlockHostAccess{Host: rest.Ref(e.RefID("host")), AccessMask: AccessMask(mask)})
	}
	return out, nil
}

// HostNames returns the names of hosts with access.
func (l *LUN) HostNames(ctx context.Context) ([]string, error) {
	p, err := l.Properties(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range p.Objects("hostAccess") {
		names = append(names, e.String("host.name"))
	}
	return names, nil
}

// Modify changes LUN settings. CG members cannot be modified directly, so
// for them the change is routed through the group.
func (l *LUN) Modify(ctx context.Context, opts LUNModifyOptions) (*rest.Response, error) {
	member, err := l.IsCGMember(ctx)
	if err != nil {
		return nil, err
	}
	if member {
		if opts.IsReplicationDestination != nil {
			l.sys.log.WithField("lun", l.ID()).Warn("replication destination flag cannot be modified on a cg member, ignoring")
		}
		cg, err := l.CG(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := cg.ModifyLUN(ctx, l, opts)
		l.Invalidate()
		return resp, err
	}

	body := composeLUNBody(l.sys.Version(), opts.Name, opts.Description, opts.IsReplicationDestination, opts.LUNParameters)
	resp, err := l.sys.storageResourceAction(ctx, l.ID(), "modifyLun", body)
	if err != nil {
		return resp, fmt.Errorf("failed to modify lun %s: %w", l.ID(), err)
	}
	l.Invalidate()
	return resp, nil
}

// Rename changes the LUN name. A standalone LUN keeps the rest of its
// cache; members of a group go through LUN.Modify and are refetched.
func (l *LUN) Rename(ctx context.Context, name string) error {
	member, err := l.IsCGMember(ctx)
	if err != nil {
		return err
	}
	if member {
		_, err := l.Modify(ctx, LUNModifyOptions{Name: name})
		return err
	}
	if _, err := l.sys.storageResourceAction(ctx, l.ID(), "modifyLun", rest.MakeBody("name", name)); err != nil {
		return fmt.Errorf("failed to rename lun %s: %w", l.ID(), err)
	}
	l.Patch("name", name)
	return nil
}

// Expand grows the LUN to newSize bytes and returns the previous size.
func (l *LUN) Expand(ctx context.Context, newSize uint64) (uint64, error) {
	old, err := l.SizeTotal(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := l.Modify(ctx, LUNModifyOptions{LUNParameters: LUNParameters{Size: newSize}}); err != nil {
		return 0, err
	}
	return old, nil
}

// LUNDeleteOptions configures LUN.Delete.
type LUNDeleteOptions struct {
	ForceSnapDeletion bool
	ForceVvolDeletion bool
}

// Delete removes the LUN. A LUN that is the base of a thin clone cannot be
// removed; that case is logged and reported as success.
func (l *LUN) Delete(ctx context.Context, opts LUNDeleteOptions) (*rest.Response, error) {
	if _, err := l.StorageResource(ctx); err != nil {
		return nil, fmt.Errorf("cannot find lun %s: %w", l.ID(), err)
	}
	body := rest.MakeBody(
		"forceSnapDeletion", opts.ForceSnapDeletion,
		"forceVvolDeletion", opts.ForceVvolDeletion,
	)
	resp, err := rest.Check(l.sys.cli.Delete(ctx, typeStorageResource, l.ID(), body))
	if errors.Is(err, apierrors.ErrBaseHasThinClone) {
		l.sys.log.WithField("lun", l.ID()).Warn("lun is the base of a thin clone, not deleted")
		return rest.OK(), nil
	}
	if err != nil {
		return resp, fmt.Errorf("failed to delete lun %s: %w", l.ID(), err)
	}
	l.Invalidate()
	return resp, nil
}

// AttachTo grants host access, keeping the access of other hosts.
func (l *LUN) AttachTo(ctx context.Context, host *Host, opts AttachOptions) error {
	if opts.HLU != nil {
		if err := version.Require(l.sys.Version(), version.AttachWithHLU, "attach with hlu"); err != nil {
			return err
		}
	}
	mask := opts.AccessMask
	if mask == AccessNone {
		mask = AccessProduction
	}

	existing, err := l.HostAccess(ctx)
	if err != nil {
		return err
	}
	access := []BlockHostAccess{{Host: host, AccessMask: mask, HLU: opts.HLU}}
	for _, a := range existing {
		if a.Host.ID() != host.ID() {
			access = append(access, a)
		}
	}

	if _, err := l.Modify(ctx, LUNModifyOptions{LUNParameters: LUNParameters{HostAccess: access}}); err != nil {
		return err
	}
	l.sys.log.WithFields(logrus.Fields{"lun": l.ID(), "host": host.ID()}).Debug("attached lun")
	return nil
}

// DetachFrom removes host access. A nil host removes every host. Detaching
// a host that has no access is a no-op.
func (l *LUN) DetachFrom(ctx context.Context, host *Host) error {
	existing, err := l.HostAccess(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	remaining := make([]BlockHostAccess, 0, len(existing))
	if host == nil {
		l.sys.log.WithField("lun", l.ID()).Info("detaching lun from all hosts")
	} else {
		for _, a := range existing {
			if a.Host.ID() != host.ID() {
				remaining = append(remaining, a)
			}
		}
		if len(remaining) == len(existing) {
			return nil
		}
	}

	_, err = l.Modify(ctx, LUNModifyOptions{LUNParameters: LUNParameters{HostAccess: remaining}})
	return err
}

// UpdateHosts sets the hosts with production access to exactly names. An
// unchanged set sends nothing.
func (l *LUN) UpdateHosts(ctx context.Context, names []string) (*rest.Response, error) {
	current, err := l.HostNames(ctx)
	if err != nil {
		return nil, err
	}
	if reconcile.Compute(current, names).Empty() {
		l.sys.log.WithField("lun", l.ID()).Info("hosts unchanged, skipping modify")
		return rest.OK(), nil
	}

	access := make([]BlockHostAccess, 0, len(names))
	for _, name := range names {
		host, err := l.sys.HostByName(ctx, name)
		if err != nil {
			return nil, err
		}
		access = append(access, BlockHostAccess{Host: host, AccessMask: AccessProduction})
	}
	return l.Modify(ctx, LUNModifyOptions{LUNParameters: LUNParameters{HostAccess: access}})
}

// Snapshots lists the snapshots of the LUN's storage resource.
func (l *LUN) Snapshots(ctx context.Context) ([]*Snap, error) {
	sr, err := l.StorageResource(ctx)
	if err != nil {
		return nil, err
	}
	return l.sys.Snaps(resource.WithFilter("storageResource", sr)).Items(ctx)
}

// CreateSnap snapshots a standalone LUN. CG members are snapshotted through
// their group.
func (l *LUN) CreateSnap(ctx context.Context, opts SnapCreateOptions) (*Snap, error) {
	member, err := l.IsCGMember(ctx)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, apierrors.New(apierrors.KindCGMemberNotAllowed, "lun %s is a cg member, snapshot the cg instead", l.ID())
	}
	sr, err := l.StorageResource(ctx)
	if err != nil {
		return nil, err
	}
	return l.sys.CreateSnap(ctx, sr, opts)
}

// ThinCloneOptions configures a thin clone.
type ThinCloneOptions struct {
	Name          string
	Description   string
	IOLimitPolicy rest.Identifier
}

// ThinClone creates a thin clone of the LUN through a new base snapshot.
func (l *LUN) ThinClone(ctx context.Context, opts ThinCloneOptions) (*LUN, error) {
	if err := version.Require(l.sys.Version(), version.ThinClone, "thin clone"); err != nil {
		return nil, err
	}
	member, err := l.IsCGMember(ctx)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, apierrors.New(apierrors.KindCGMemberNotAllowed, "lun %s is a cg member, thin clone not supported", l.ID())
	}
	thin, err := l.IsThin(ctx)
	if err != nil {
		return nil, err
	}
	if !thin {
		return nil, apierrors.New(apierrors.KindThinCloneNotAllowed, "lun %s is not thin", l.ID())
	}

	snap, err := l.CreateSnap(ctx, SnapCreateOptions{
		Name:         fmt.Sprintf("base-snap-for-%s", opts.Name),
		IsAutoDelete: boolPtr(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create thin clone base snap: %w", err)
	}
	return snap.ThinClone(ctx, opts)
}

func boolPtr(b bool) *bool { return &b }
