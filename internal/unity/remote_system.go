package unity

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
)

var remoteSystemType = resource.Type{
	Name: typeRemoteSystem,
	Fields: []string{
		"id", "name", "model", "serialNumber", "health",
		"managementAddress", "connectionType", "syncFcPorts.id",
	},
}

// RemoteSystem is a peer array replication sessions can target.
type RemoteSystem struct {
	*resource.Resource
	sys *System
}

// RemoteSystem returns a lazy handle for a remote system.
func (s *System) RemoteSystem(id string) *RemoteSystem {
	return &RemoteSystem{Resource: resource.New(s.cli, remoteSystemType, id), sys: s}
}

// RemoteSystems lists configured remote systems.
func (s *System) RemoteSystems(opts ...resource.ListOption) *resource.Collection[*RemoteSystem] {
	return resource.NewCollection(resource.NewList(s.cli, remoteSystemType, opts...),
		func(r *resource.Resource) *RemoteSystem { return &RemoteSystem{Resource: r, sys: s} })
}

// RemoteSystemCreateOptions configures CreateRemoteSystem.
type RemoteSystemCreateOptions struct {
	ManagementAddress string
	LocalUsername     string
	LocalPassword     string
	RemoteUsername    string
	RemotePassword    string
	ConnectionType    *ReplicationConnection
}

// CreateRemoteSystem registers a peer array.
func (s *System) CreateRemoteSystem(ctx context.Context, opts RemoteSystemCreateOptions) (*RemoteSystem, error) {
	body := rest.MakeBody(
		"managementAddress", opts.ManagementAddress,
		"localUsername", opts.LocalUsername,
		"localPassword", opts.LocalPassword,
		"remoteUsername", opts.RemoteUsername,
		"remotePassword", opts.RemotePassword,
		"connectionType", optEnum(opts.ConnectionType),
	)
	resp, err := rest.Check(s.cli.Post(ctx, typeRemoteSystem, body))
	if err != nil {
		return nil, fmt.Errorf("failed to create remote system %s: %w", opts.ManagementAddress, err)
	}
	s.log.WithFields(logrus.Fields{"remote": resp.ResourceID(), "address": opts.ManagementAddress}).Info("created remote system")
	return s.RemoteSystem(resp.ResourceID()), nil
}

// RemoteSystemModifyOptions configures RemoteSystem.Modify.
type RemoteSystemModifyOptions struct {
	ManagementAddress string
	Username          string
	Password          string
	ConnectionType    *ReplicationConnection
}

// Modify changes the connection settings. Unset options are left alone.
func (r *RemoteSystem) Modify(ctx context.Context, opts RemoteSystemModifyOptions) error {
	body := rest.MakeBody(
		"managementAddress", opts.ManagementAddress,
		"username", opts.Username,
		"password", opts.Password,
		"connectionType", optEnum(opts.ConnectionType),
	)
	_, err := r.Action(ctx, "modify", body)
	return err
}

// Verify asks the array to check the connection and refresh the remote
// system settings.
func (r *RemoteSystem) Verify(ctx context.Context, connectionType *ReplicationConnection) error {
	_, err := r.Action(ctx, "verify", rest.MakeBody("connectionType", optEnum(connectionType)))
	return err
}
