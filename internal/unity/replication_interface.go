package unity

import (
	"context"
	"fmt"

	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
)

var replicationInterfaceType = resource.Type{
	Name: typeReplicationInterface,
	Fields: []string{
		"id", "name", "health", "ipAddress", "ipProtocolVersion", "netmask",
		"v6PrefixLength", "gateway", "vlanId", "macAddress",
		"ipPort.id", "sp.id",
	},
}

// ReplicationInterface is an IP interface dedicated to replication
// traffic.
type ReplicationInterface struct {
	*resource.Resource
	sys *System
}

// ReplicationInterface returns a lazy handle for a replication interface.
func (s *System) ReplicationInterface(id string) *ReplicationInterface {
	return &ReplicationInterface{Resource: resource.New(s.cli, replicationInterfaceType, id), sys: s}
}

// ReplicationInterfaces lists replication interfaces.
func (s *System) ReplicationInterfaces(opts ...resource.ListOption) *resource.Collection[*ReplicationInterface] {
	return resource.NewCollection(resource.NewList(s.cli, replicationInterfaceType, opts...),
		func(r *resource.Resource) *ReplicationInterface { return &ReplicationInterface{Resource: r, sys: s} })
}

// ReplicationInterfaceOptions configures create and modify. SP, IPPort and
// IPAddress are required on create.
type ReplicationInterfaceOptions struct {
	SP             rest.Identifier
	IPPort         rest.Identifier
	IPAddress      string
	Netmask        string
	V6PrefixLength int
	Gateway        string
	VLANID         int
}

func (o ReplicationInterfaceOptions) body() rest.Body {
	return rest.MakeBody(
		"sp", o.SP,
		"ipPort", o.IPPort,
		"ipAddress", o.IPAddress,
		"netmask", o.Netmask,
		"v6PrefixLength", optInt(o.V6PrefixLength),
		"gateway", o.Gateway,
		"vlanId", optInt(o.VLANID),
	)
}

// CreateReplicationInterface creates an interface on an SP port.
func (s *System) CreateReplicationInterface(ctx context.Context, opts ReplicationInterfaceOptions) (*ReplicationInterface, error) {
	if opts.SP == nil || opts.IPPort == nil || opts.IPAddress == "" {
		return nil, fmt.Errorf("sp, ip port and ip address are required")
	}
	resp, err := rest.Check(s.cli.Post(ctx, typeReplicationInterface, opts.body()))
	if err != nil {
		return nil, fmt.Errorf("failed to create replication interface %s: %w", opts.IPAddress, err)
	}
	return s.ReplicationInterface(resp.ResourceID()), nil
}

// Modify changes the interface. Unset options are left alone.
func (r *ReplicationInterface) Modify(ctx context.Context, opts ReplicationInterfaceOptions) error {
	_, err := r.Action(ctx, "modify", opts.body())
	return err
}
