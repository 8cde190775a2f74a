package unity

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
)

// ConsistencyGroup is a block storage resource grouping LUNs that are
// snapshotted and replicated together.
type ConsistencyGroup struct {
	*resource.Resource
	sys *System
}

var _ Attachable = (*ConsistencyGroup)(nil)

// ConsistencyGroup returns a hollow handle.
func (s *System) ConsistencyGroup(id string) *ConsistencyGroup {
	return &ConsistencyGroup{Resource: resource.New(s.cli, storageResourceType, id), sys: s}
}

// ConsistencyGroups lists storage resources of the consistency group type.
func (s *System) ConsistencyGroups(opts ...resource.ListOption) *resource.Collection[*ConsistencyGroup] {
	cgType := int(StorageResourceConsistencyGroup)
	opts = append([]resource.ListOption{
		resource.WithFilter("type", cgType),
		resource.WithPredicate(func(p resource.Properties) bool {
			t, _ := p.Int("type")
			return int(t) == cgType
		}),
	}, opts...)
	return resource.NewCollection(resource.NewList(s.cli, storageResourceType, opts...),
		func(r *resource.Resource) *ConsistencyGroup { return &ConsistencyGroup{Resource: r, sys: s} })
}

// CGCreateOptions configures CreateConsistencyGroup.
type CGCreateOptions struct {
	Name                     string
	Description              string
	IsReplicationDestination *bool
	SnapSchedule             rest.Identifier
	TieringPolicy            *TieringPolicy
	Compression              *bool
	// Hosts get access to every member LUN.
	Hosts []rest.Identifier
	LUNs  []rest.Identifier
}

// CGModifyOptions is the full set of changes one modify request can carry.
// Nil fields are left unchanged.
type CGModifyOptions struct {
	Name                     string
	Description              string
	IsReplicationDestination *bool
	SnapSchedule             rest.Identifier
	TieringPolicy            *TieringPolicy
	Compression              *bool
	// Hosts replaces the host access list.
	Hosts      []rest.Identifier
	LUNAdd     []rest.Identifier
	LUNRemove  []rest.Identifier
	HostAdd    []rest.Identifier
	HostRemove []rest.Identifier
	// LUNModify entries are built by ModifyLUN.
	LUNModify []rest.Body
}

func wrapCGHosts(hosts []rest.Identifier) []any {
	if hosts == nil {
		return nil
	}
	out := make([]any, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, rest.MakeBody("host", h, "accessMask", int(AccessBoth)))
	}
	return out
}

func wrapCGLUNs(luns []rest.Identifier) []any {
	if luns == nil {
		return nil
	}
	out := make([]any, 0, len(luns))
	for _, l := range luns {
		out = append(out, rest.MakeBody("lun", l))
	}
	return out
}

func composeCGBody(o CGModifyOptions) rest.Body {
	body := rest.MakeBody(
		"name", o.Name,
		"description", o.Description,
		"replicationParameters", rest.MakeBody("isReplicationDestination", o.IsReplicationDestination),
		"fastVPParameters", rest.MakeBody("tieringPolicy", optEnum(o.TieringPolicy)),
		"dataReductionParameters", rest.MakeBody("isDataReductionEnabled", o.Compression),
		"snapScheduleParameters", rest.MakeBody("snapSchedule", o.SnapSchedule),
		"blockHostAccess", wrapCGHosts(o.Hosts),
		"lunAdd", wrapCGLUNs(o.LUNAdd),
		"lunRemove", wrapCGLUNs(o.LUNRemove),
		"addBlockHostAccess", wrapCGHosts(o.HostAdd),
		"removeBlockHostAccess", o.HostRemove,
	)
	// an empty hostAccess inside a lunModify entry clears access
	if o.LUNModify != nil {
		body.Set("lunModify", o.LUNModify)
	}
	return body
}

// CreateConsistencyGroup creates a group in one request. A storage resource
// name collision is reported as ErrCGNameInUse.
func (s *System) CreateConsistencyGroup(ctx context.Context, opts CGCreateOptions) (*ConsistencyGroup, error) {
	body := composeCGBody(CGModifyOptions{
		Name:                     opts.Name,
		Description:              opts.Description,
		IsReplicationDestination: opts.IsReplicationDestination,
		SnapSchedule:             opts.SnapSchedule,
		TieringPolicy:            opts.TieringPolicy,
		Compression:              opts.Compression,
		Hosts:                    opts.Hosts,
		LUNAdd:                   opts.LUNs,
	})
	resp, err := s.storageResourceTypeAction(ctx, "createConsistencyGroup", body)
	if errors.Is(err, apierrors.ErrStorageResourceNameInUse) {
		// translated, not wrapped: callers only ever see the cg kind
		return nil, apierrors.New(apierrors.KindCGNameInUse, "consistency group name %q in use: %v", opts.Name, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create consistency group %s: %w", opts.Name, err)
	}
	s.log.WithFields(logrus.Fields{"cg": resp.ResourceID(), "name": opts.Name}).Info("created consistency group")
	return s.ConsistencyGroup(resp.ResourceID()), nil
}

// Modify is the single mutation primitive of the group.
func (cg *ConsistencyGroup) Modify(ctx context.Context, opts CGModifyOptions) (*rest.Response, error) {
	resp, err := cg.sys.storageResourceAction(ctx, cg.ID(), "modifyConsistencyGroup", composeCGBody(opts))
	cg.Invalidate()
	if err != nil {
		return resp, fmt.Errorf("failed to modify consistency group %s: %w", cg.ID(), err)
	}
	return resp, nil
}

// Rename changes the group name without dropping the cache.
func (cg *ConsistencyGroup) Rename(ctx context.Context, name string) error {
	if _, err := cg.sys.storageResourceAction(ctx, cg.ID(), "modifyConsistencyGroup", rest.MakeBody("name", name)); err != nil {
		return fmt.Errorf("failed to rename consistency group %s: %w", cg.ID(), err)
	}
	cg.Patch("name", name)
	return nil
}

// ModifyLUN changes a member LUN through the group.
func (cg *ConsistencyGroup) ModifyLUN(ctx context.Context, lun rest.Identifier, opts LUNModifyOptions) (*rest.Response, error) {
	entry := rest.MakeBody("lun", lun, "name", opts.Name, "description", opts.Description)
	if lp := lunParametersBody(cg.sys.Version(), opts.LUNParameters); len(lp) > 0 {
		entry["lunParameters"] = lp
	}
	return cg.Modify(ctx, CGModifyOptions{LUNModify: []rest.Body{entry}})
}

// LUNIDs returns the member LUN ids in array order.
func (cg *ConsistencyGroup) LUNIDs(ctx context.Context) ([]string, error) {
	p, err := cg.Properties(ctx)
	if err != nil {
		return nil, err
	}
	return p.RefIDs("luns"), nil
}

// LUNs returns handles for the member LUNs.
func (cg *ConsistencyGroup) LUNs(ctx context.Context) ([]*LUN, error) {
	ids, err := cg.LUNIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*LUN, 0, len(ids))
	for _, id := range ids {
		out = append(out, cg.sys.LUN(id))
	}
	return out, nil
}

// AddLUN adds members unconditionally.
func (cg *ConsistencyGroup) AddLUN(ctx context.Context, luns ...rest.Identifier) (*rest.Response, error) {
	return cg.Modify(ctx, CGModifyOptions{LUNAdd: luns})
}

// RemoveLUN removes members unconditionally.
func (cg *ConsistencyGroup) RemoveLUN(ctx context.Context, luns ...rest.Identifier) (*rest.Response, error) {
	return cg.Modify(ctx, CGModifyOptions{LUNRemove: luns})
}

// ReplaceLUN makes the membership exactly luns. Calling it with no LUNs
// removes every member.
func (cg *ConsistencyGroup) ReplaceLUN(ctx context.Context, luns ...rest.Identifier) (*rest.Response, error) {
	existing, err := cg.LUNIDs(ctx)
	if err != nil {
		return nil, err
	}
	add := subtractIDs(luns, existing)
	remove := subtractIDs(refs(existing), idsOf(luns))
	return cg.applyMembership(ctx, add, remove)
}

// UpdateLUN adds the requested LUNs that are not members yet and removes the
// requested LUNs that are members. Requests that change nothing are not
// sent.
func (cg *ConsistencyGroup) UpdateLUN(ctx context.Context, add, remove []rest.Identifier) (*rest.Response, error) {
	if len(add) == 0 && len(remove) == 0 {
		cg.sys.log.WithField("cg", cg.ID()).Debug("no luns to add or remove, skipping update")
		return rest.OK(), nil
	}
	existing, err := cg.LUNIDs(ctx)
	if err != nil {
		return nil, err
	}
	toAdd := subtractIDs(add, existing)
	toRemove := intersectIDs(refs(existing), idsOf(remove))
	return cg.applyMembership(ctx, toAdd, toRemove)
}

func (cg *ConsistencyGroup) applyMembership(ctx context.Context, add, remove []rest.Identifier) (*rest.Response, error) {
	log := cg.sys.log.WithField("cg", cg.ID())
	if len(add) == 0 && len(remove) == 0 {
		log.Debug("membership unchanged, skipping modify")
		return rest.OK(), nil
	}
	log.WithFields(logrus.Fields{"add": idsOf(add), "remove": idsOf(remove)}).Debug("updating cg members")
	opts := CGModifyOptions{}
	if len(add) > 0 {
		opts.LUNAdd = add
	}
	if len(remove) > 0 {
		opts.LUNRemove = remove
	}
	return cg.Modify(ctx, opts)
}

// SetHostAccess replaces the hosts with access to the members.
func (cg *ConsistencyGroup) SetHostAccess(ctx context.Context, hosts ...rest.Identifier) (*rest.Response, error) {
	return cg.Modify(ctx, CGModifyOptions{Hosts: hosts})
}

// AddHostAccess gives hosts access to every member LUN.
func (cg *ConsistencyGroup) AddHostAccess(ctx context.Context, hosts ...rest.Identifier) (*rest.Response, error) {
	return cg.Modify(ctx, CGModifyOptions{HostAdd: hosts})
}

// RemoveHostAccess takes away the hosts' access to every member LUN.
func (cg *ConsistencyGroup) RemoveHostAccess(ctx context.Context, hosts ...rest.Identifier) (*rest.Response, error) {
	return cg.Modify(ctx, CGModifyOptions{HostRemove: hosts})
}

// AttachTo is not supported on a group; attach its members or snapshots.
func (cg *ConsistencyGroup) AttachTo(context.Context, *Host, AttachOptions) error {
	return apierrors.New(apierrors.KindActionNotSupported, "attach is not supported on consistency group %s", cg.ID())
}

// DetachFrom is not supported on a group.
func (cg *ConsistencyGroup) DetachFrom(context.Context, *Host) error {
	return apierrors.New(apierrors.KindActionNotSupported, "detach is not supported on consistency group %s", cg.ID())
}

// CreateSnap takes a group snapshot.
func (cg *ConsistencyGroup) CreateSnap(ctx context.Context, opts SnapCreateOptions) (*Snap, error) {
	opts.IsReadOnly = nil
	opts.FSAccessType = nil
	return cg.sys.CreateSnap(ctx, cg, opts)
}

// Snapshots lists group snapshots, leaving out their member snapshots.
func (cg *ConsistencyGroup) Snapshots(ctx context.Context) ([]*Snap, error) {
	return cg.sys.Snaps(
		resource.WithFilter("storageResource", cg),
		resource.WithPredicate(func(p resource.Properties) bool { return p.RefID("snapGroup") == "" }),
	).Items(ctx)
}

// Delete removes the group.
func (cg *ConsistencyGroup) Delete(ctx context.Context) error {
	if _, err := cg.Resource.Delete(ctx, nil); err != nil {
		return err
	}
	cg.sys.log.WithField("cg", cg.ID()).Info("deleted consistency group")
	return nil
}

func refs(ids []string) []rest.Identifier {
	out := make([]rest.Identifier, 0, len(ids))
	for _, id := range ids {
		out = append(out, rest.Ref(id))
	}
	return out
}

func idsOf(items []rest.Identifier) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID())
	}
	return out
}

// subtractIDs keeps the items of from whose id is not in ids, in order and
// without duplicates.
func subtractIDs(from []rest.Identifier, ids []string) []rest.Identifier {
	return filterIDs(from, ids, false)
}

func intersectIDs(from []rest.Identifier, ids []string) []rest.Identifier {
	return filterIDs(from, ids, true)
}

func filterIDs(from []rest.Identifier, ids []string, keepMatches bool) []rest.Identifier {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	seen := make(map[string]bool, len(from))
	var out []rest.Identifier
	for _, it := range from {
		if seen[it.ID()] || set[it.ID()] != keepMatches {
			continue
		}
		seen[it.ID()] = true
		out = append(out, it)
	}
	return out
}
