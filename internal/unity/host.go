package unity

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/naming"
	"github.com/jbweber/arrayops/internal/reconcile"
	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
)

var hostType = resource.Type{
	Name: typeHost,
	Fields: []string{
		"id", "name", "description", "type", "osType", "health",
		"fcHostInitiators.id", "fcHostInitiators.initiatorId",
		"iscsiHostInitiators.id", "iscsiHostInitiators.initiatorId",
		"hostLUNs.id", "hostLUNs.hlu", "hostLUNs.lun.id", "hostLUNs.lun.name", "hostLUNs.snap.id",
		"hostIPPorts.id", "hostIPPorts.address",
		"tenant.id",
	},
}

var initiatorType = resource.Type{
	Name:   typeHostInitiator,
	Fields: []string{"id", "initiatorId", "type", "host.id"},
}

var ipPortType = resource.Type{
	Name:   typeHostIPPort,
	Fields: []string{"id", "address", "netmask", "v6PrefixLength", "host.id"},
}

// Host is an initiator host registered on the array.
type Host struct {
	*resource.Resource
	sys *System
}

// HostLUN is one attachment of a LUN or snapshot to a host.
type HostLUN struct {
	ID      string
	HLU     int
	LUNID   string
	LUNName string
	// SnapID is set for snapshot attachments.
	SnapID string
}

// Host returns a hollow handle.
func (s *System) Host(id string) *Host {
	return &Host{Resource: resource.New(s.cli, hostType, id), sys: s}
}

func (s *System) wrapHost(r *resource.Resource) *Host {
	return &Host{Resource: r, sys: s}
}

// Hosts lists hosts.
func (s *System) Hosts(opts ...resource.ListOption) *resource.Collection[*Host] {
	return resource.NewCollection(resource.NewList(s.cli, hostType, opts...), s.wrapHost)
}

// HostByName returns the host with the given name.
func (s *System) HostByName(ctx context.Context, name string) (*Host, error) {
	host, ok, err := s.Hosts(resource.WithFilter("name", name)).First(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.New(apierrors.KindNotFound, "host %q not found", name)
	}
	return host, nil
}

// HostCreateOptions configures CreateHost.
type HostCreateOptions struct {
	Name        string
	Type        HostType
	Description string
	OSType      string
	Tenant      rest.Identifier
}

// CreateHost registers a host. The type defaults to a manually managed
// host.
func (s *System) CreateHost(ctx context.Context, opts HostCreateOptions) (*Host, error) {
	if opts.Type == HostUnknown {
		opts.Type = HostManual
	}
	body := rest.MakeBody(
		"type", int(opts.Type),
		"name", opts.Name,
		"description", opts.Description,
		"osType", opts.OSType,
		"tenant", opts.Tenant,
	)
	resp, err := rest.Check(s.cli.Post(ctx, typeHost, body))
	if err != nil {
		return nil, fmt.Errorf("failed to create host %s: %w", opts.Name, err)
	}
	s.log.WithFields(logrus.Fields{"host": resp.ResourceID(), "name": opts.Name}).Info("created host")
	return s.Host(resp.ResourceID()), nil
}

// FindHost resolves ref as a host id or, when it looks like an address, as
// the single host owning that IP port. With forceCreate a missing address
// host is created (a subnet host when ref carries a netmask) and given the
// IP port. A missing address host without forceCreate returns nil.
func (s *System) FindHost(ctx context.Context, ref string, forceCreate bool) (*Host, error) {
	if !naming.LooksLikeAddress(ref) {
		h := s.Host(ref)
		if err := h.Update(ctx); err != nil {
			return nil, err
		}
		return h, nil
	}

	addr, err := naming.ParseHostAddress(ref)
	if err != nil {
		return nil, err
	}
	ports, err := resource.NewList(s.cli, ipPortType, resource.WithFilter("address", addr.Address)).Items(ctx)
	if err != nil {
		return nil, err
	}
	if len(ports) == 1 {
		p, _ := ports[0].Properties(ctx)
		return s.Host(p.RefID("host")), nil
	}
	if !forceCreate {
		return nil, nil
	}

	s.log.WithField("address", addr.Address).Info("no host owns this address, creating one")
	hostKind := HostManual
	if addr.Netmask != "" {
		hostKind = HostSubnet
	}
	host, err := s.CreateHost(ctx, HostCreateOptions{Name: addr.HostName(), Type: hostKind})
	if err != nil {
		return nil, err
	}
	if err := host.AddIPPort(ctx, addr); err != nil {
		return nil, err
	}
	if err := host.Update(ctx); err != nil {
		return nil, err
	}
	return host, nil
}

// ResolveHost finds a host given by address, name or ID, in that order of
// preference for non-address refs: a name match wins over an ID. With
// create, a missing host is registered under ref. Unlike FindHost it
// never returns a nil host without an error.
func (s *System) ResolveHost(ctx context.Context, ref string, create bool) (*Host, error) {
	if naming.LooksLikeAddress(ref) {
		h, err := s.FindHost(ctx, ref, create)
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, apierrors.New(apierrors.KindNotFound, "no host owns %s", ref)
		}
		return h, nil
	}

	h, err := s.HostByName(ctx, ref)
	if err == nil || !errors.Is(err, apierrors.ErrNotFound) {
		return h, err
	}
	h, err = s.FindHost(ctx, ref, false)
	if err == nil || !errors.Is(err, apierrors.ErrNotFound) || !create {
		return h, err
	}
	s.log.WithField("host", ref).Info("host not found, registering it")
	h, err = s.CreateHost(ctx, HostCreateOptions{Name: ref})
	if err != nil {
		return nil, err
	}
	return h, h.Update(ctx)
}

// Modify changes the host name, description or OS type.
func (h *Host) Modify(ctx context.Context, name, description, osType string) error {
	body := rest.MakeBody("name", name, "description", description, "osType", osType)
	_, err := h.ModifyInPlace(ctx, body)
	return err
}

// HostLUNs returns the host's current attachments.
func (h *Host) HostLUNs(ctx context.Context) ([]HostLUN, error) {
	p, err := h.Properties(ctx)
	if err != nil {
		return nil, err
	}
	entries := p.Objects("hostLUNs")
	out := make([]HostLUN, 0, len(entries))
	for _, e := range entries {
		hlu, _ := e.Int("hlu")
		out = append(out, HostLUN{
			ID:      e.String("id"),
			HLU:     int(hlu),
			LUNID:   e.RefID("lun"),
			LUNName: e.String("lun.name"),
			SnapID:  e.RefID("snap"),
		})
	}
	return out, nil
}

// GetHostLUN finds the attachment for a LUN, snapshot or member snapshot.
// A CG snapshot has no attachment of its own; pass the member LUN as
// cgMember to look up that member's snapshot. Nil means not attached.
func (h *Host) GetHostLUN(ctx context.Context, target Attachable, cgMember *LUN) (*HostLUN, error) {
	entries, err := h.HostLUNs(ctx)
	if err != nil {
		return nil, err
	}

	var match func(HostLUN) bool
	switch t := target.(type) {
	case *LUN:
		match = func(hl HostLUN) bool { return hl.LUNID == t.ID() && hl.SnapID == "" }
	case *Snap:
		cgSnap, err := t.IsCGSnap(ctx)
		if err != nil {
			return nil, err
		}
		if !cgSnap {
			match = func(hl HostLUN) bool { return hl.SnapID == t.ID() }
			break
		}
		if cgMember == nil {
			h.sys.log.WithField("snap", t.ID()).Debug("cg snap has no host lun, pass a member lun")
			return nil, nil
		}
		member, err := t.MemberSnap(ctx, cgMember)
		if err != nil || member == nil {
			return nil, err
		}
		match = func(hl HostLUN) bool { return hl.LUNID == cgMember.ID() && hl.SnapID == member.ID() }
	default:
		return nil, apierrors.New(apierrors.KindActionNotSupported, "%T cannot be attached to a host", target)
	}

	for i := range entries {
		if match(entries[i]) {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// GetHLU returns the HLU of target and whether it is attached.
func (h *Host) GetHLU(ctx context.Context, target Attachable, cgMember *LUN) (int, bool, error) {
	hl, err := h.GetHostLUN(ctx, target, cgMember)
	if err != nil || hl == nil {
		return 0, false, err
	}
	return hl.HLU, true, nil
}

// HasHLU reports whether target is attached to the host.
func (h *Host) HasHLU(ctx context.Context, target Attachable, cgMember *LUN) (bool, error) {
	_, ok, err := h.GetHLU(ctx, target, cgMember)
	return ok, err
}

// ModifyHostLUN moves an existing attachment to a new HLU.
func (h *Host) ModifyHostLUN(ctx context.Context, target Attachable, hlu int) error {
	hl, err := h.GetHostLUN(ctx, target, nil)
	if err != nil {
		return err
	}
	if hl == nil {
		return apierrors.New(apierrors.KindNotAttached, "%s is not attached to host %s", target.ID(), h.ID())
	}
	return h.modifyHLU(ctx, hl, hlu)
}

// InitiatorIDs returns the FC and iSCSI initiator uids of the host.
func (h *Host) InitiatorIDs(ctx context.Context) ([]string, error) {
	p, err := h.Properties(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, path := range []string{"fcHostInitiators", "iscsiHostInitiators"} {
		for _, e := range p.Objects(path) {
			ids = append(ids, e.String("initiatorId"))
		}
	}
	return ids, nil
}

// AddInitiator binds an initiator to the host, registering it first when
// the array does not know it and force is set.
func (h *Host) AddInitiator(ctx context.Context, uid string, force bool) error {
	initiator, err := resource.NewList(h.sys.cli, initiatorType, resource.WithFilter("initiatorId", uid)).First(ctx)
	if err != nil {
		return err
	}

	if initiator == nil {
		if !force {
			return apierrors.New(apierrors.KindInitiatorNotFound, "initiator %s not found for host %s", uid, h.ID())
		}
		kind := InitiatorUnknown
		switch {
		case naming.IsFCUID(uid):
			kind = InitiatorFC
		case naming.IsISCSIUID(uid):
			kind = InitiatorISCSI
		default:
			return apierrors.New(apierrors.KindUnknownInitiatorType, "cannot tell the protocol of initiator %s", uid)
		}
		body := rest.MakeBody("host", h, "initiatorType", int(kind), "initiatorWWNorIqn", uid)
		resp, err := rest.Check(h.sys.cli.Post(ctx, typeHostInitiator, body))
		if err != nil {
			return fmt.Errorf("failed to create initiator %s: %w", uid, err)
		}
		initiator = resource.New(h.sys.cli, initiatorType, resp.ResourceID())
	}

	if _, err := initiator.Modify(ctx, rest.MakeBody("host", h)); err != nil {
		return err
	}
	h.Invalidate()
	return nil
}

// DeleteInitiator removes one of the host's initiators.
func (h *Host) DeleteInitiator(ctx context.Context, uid string) error {
	p, err := h.Properties(ctx)
	if err != nil {
		return err
	}
	for _, path := range []string{"fcHostInitiators", "iscsiHostInitiators"} {
		for _, e := range p.Objects(path) {
			if e.String("initiatorId") != uid {
				continue
			}
			if _, err := resource.New(h.sys.cli, initiatorType, e.String("id")).Delete(ctx, nil); err != nil {
				return err
			}
			h.Invalidate()
			return nil
		}
	}
	return apierrors.New(apierrors.KindInitiatorNotFound, "initiator %s not found under host %s", uid, h.ID())
}

// UpdateInitiators reconciles the host's initiators with the union of
// iqns and wwns. It returns how many initiators changed.
func (h *Host) UpdateInitiators(ctx context.Context, iqns, wwns []string) (int, error) {
	current, err := h.InitiatorIDs(ctx)
	if err != nil {
		return 0, err
	}
	desired := append(append([]string{}, iqns...), wwns...)
	return reconcile.Sync(ctx, current, desired,
		func(ctx context.Context, uid string) error { return h.AddInitiator(ctx, uid, true) },
		h.DeleteInitiator,
	)
}

// IPList returns the addresses of the host's IP ports.
func (h *Host) IPList(ctx context.Context) ([]string, error) {
	p, err := h.Properties(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range p.Objects("hostIPPorts") {
		out = append(out, e.String("address"))
	}
	return out, nil
}

// AddIPPort registers an address on the host.
func (h *Host) AddIPPort(ctx context.Context, addr naming.HostAddress) error {
	body := rest.MakeBody(
		"host", h,
		"address", addr.Address,
		"netmask", addr.Netmask,
		"v6PrefixLength", optInt(addr.PrefixLength),
	)
	if _, err := rest.Check(h.sys.cli.Post(ctx, typeHostIPPort, body)); err != nil {
		return fmt.Errorf("failed to add ip port %s to host %s: %w", addr.Address, h.ID(), err)
	}
	h.Invalidate()
	return nil
}

// DeleteIPPort removes an address from the host. Unknown addresses are
// logged and ignored.
func (h *Host) DeleteIPPort(ctx context.Context, address string) error {
	p, err := h.Properties(ctx)
	if err != nil {
		return err
	}
	for _, e := range p.Objects("hostIPPorts") {
		if e.String("address") != address {
			continue
		}
		if _, err := resource.New(h.sys.cli, ipPortType, e.String("id")).Delete(ctx, nil); err != nil {
			return err
		}
		h.Invalidate()
		return nil
	}
	h.sys.log.WithFields(logrus.Fields{"host": h.ID(), "address": address}).Info("ip port not found, nothing to delete")
	return nil
}

// UpdateIPPorts reconciles the host's IP ports with addresses.
func (h *Host) UpdateIPPorts(ctx context.Context, addresses []string) (int, error) {
	current, err := h.IPList(ctx)
	if err != nil {
		return 0, err
	}
	return reconcile.Sync(ctx, current, addresses,
		func(ctx context.Context, a string) error {
			addr, err := naming.ParseHostAddress(a)
			if err != nil {
				return err
			}
			return h.AddIPPort(ctx, addr)
		},
		h.DeleteIPPort,
	)
}
