package unity

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/status"
)

var replicationSessionType = resource.Type{
	Name: typeReplicationSession,
	Fields: []string{
		"id", "name", "health", "status", "syncState", "syncProgress",
		"operationalStatus", "replicationResourceType", "localRole",
		"maxTimeOutOfSync", "srcResourceId", "dstResourceId",
		"srcStatus", "dstStatus", "networkStatus",
		"remoteSystem.id", "members",
	},
}

// LUNMemberReplication pairs a source and destination LUN inside a CG
// replication session.
type LUNMemberReplication struct {
	SrcLUNID      string `json:"srcLunId"`
	DstLUNID      string `json:"dstLunId"`
	SrcStatus     int    `json:"srcStatus"`
	DstStatus     int    `json:"dstStatus"`
	NetworkStatus int    `json:"networkStatus"`
}

func (m LUNMemberReplication) body() rest.Body {
	return rest.Body{
		"srcLunId":      m.SrcLUNID,
		"dstLunId":      m.DstLUNID,
		"srcStatus":     m.SrcStatus,
		"dstStatus":     m.DstStatus,
		"networkStatus": m.NetworkStatus,
	}
}

// SnapReplicationPolicy controls how scheduled snapshots are replicated.
type SnapReplicationPolicy struct {
	IsReplicatingSnaps      bool
	IsRetentionSameAsSource bool
	IsAutoDelete            bool
	RetentionDuration       time.Duration
}

func (p *SnapReplicationPolicy) body() any {
	if p == nil {
		return nil
	}
	return rest.Body{
		"isReplicatingSnaps":      p.IsReplicatingSnaps,
		"isRetentionSameAsSource": p.IsRetentionSameAsSource,
		"isAutoDelete":            p.IsAutoDelete,
		"retentionDuration":       int64(p.RetentionDuration / time.Second),
	}
}

// ReplicationInterfaces selects the interfaces carrying replication
// traffic on each side.
type ReplicationInterfaces struct {
	SrcSPA rest.Identifier
	SrcSPB rest.Identifier
	DstSPA rest.Identifier
	DstSPB rest.Identifier
}

func (i ReplicationInterfaces) apply(b rest.Body) rest.Body {
	return b.Merge(rest.MakeBody(
		"srcSPAInterface", i.SrcSPA,
		"srcSPBInterface", i.SrcSPB,
		"dstSPAInterface", i.DstSPA,
		"dstSPBInterface", i.DstSPB,
	))
}

// ReplicationSession replicates a LUN, CG or filesystem to a destination.
type ReplicationSession struct {
	*resource.Resource
	sys *System
}

// ReplicationSession returns a lazy handle for a replication session.
func (s *System) ReplicationSession(id string) *ReplicationSession {
	return &ReplicationSession{Resource: resource.New(s.cli, replicationSessionType, id), sys: s}
}

// ReplicationSessions lists replication sessions.
func (s *System) ReplicationSessions(opts ...resource.ListOption) *resource.Collection[*ReplicationSession] {
	return resource.NewCollection(resource.NewList(s.cli, replicationSessionType, opts...),
		func(r *resource.Resource) *ReplicationSession { return &ReplicationSession{Resource: r, sys: s} })
}

// ReplicationCreateOptions configures CreateReplicationSession.
type ReplicationCreateOptions struct {
	SrcResourceID string
	DstResourceID string
	// MaxTimeOutOfSync in minutes. -1 disables automatic sync, 0 makes the
	// session synchronous.
	MaxTimeOutOfSync int
	Name             string
	// Members pairs member LUNs when the source is a CG.
	Members                     []LUNMemberReplication
	AutoInitiate                *bool
	HourlySnapReplicationPolicy *SnapReplicationPolicy
	DailySnapReplicationPolicy  *SnapReplicationPolicy
	ReplicateExistingSnaps      *bool
	RemoteSystem                rest.Identifier
	Interfaces                  ReplicationInterfaces
}

// CreateReplicationSession starts replicating a resource.
func (s *System) CreateReplicationSession(ctx context.Context, opts ReplicationCreateOptions) (*ReplicationSession, error) {
	var members []any
	for _, m := range opts.Members {
		members = append(members, m.body())
	}
	body := rest.MakeBody(
		"srcResourceId", opts.SrcResourceID,
		"dstResourceId", opts.DstResourceID,
		"name", opts.Name,
		"members", members,
		"autoInitiate", opts.AutoInitiate,
		"hourlySnapReplicationPolicy", opts.HourlySnapReplicationPolicy.body(),
		"dailySnapReplicationPolicy", opts.DailySnapReplicationPolicy.body(),
		"replicateExistingSnaps", opts.ReplicateExistingSnaps,
		"remoteSystem", opts.RemoteSystem,
	)
	// zero is meaningful here
	body["maxTimeOutOfSync"] = opts.MaxTimeOutOfSync
	opts.Interfaces.apply(body)

	resp, err := rest.Check(s.cli.Post(ctx, typeReplicationSession, body))
	if err != nil {
		return nil, fmt.Errorf("failed to create replication session %s -> %s: %w", opts.SrcResourceID, opts.DstResourceID, err)
	}
	s.log.WithFields(logrus.Fields{
		"session": resp.ResourceID(),
		"src":     opts.SrcResourceID,
		"dst":     opts.DstResourceID,
	}).Info("created replication session")
	return s.ReplicationSession(resp.ResourceID()), nil
}

// ReplicationModifyOptions configures ReplicationSession.Modify.
type ReplicationModifyOptions struct {
	Name                        string
	MaxTimeOutOfSync            *int
	HourlySnapReplicationPolicy *SnapReplicationPolicy
	DailySnapReplicationPolicy  *SnapReplicationPolicy
	Interfaces                  ReplicationInterfaces
}

// OperationalStatus is the current session status.
func (r *ReplicationSession) OperationalStatus(ctx context.Context) (status.ReplicationStatus, error) {
	p, err := r.Properties(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := p.Int("operationalStatus")
	return status.ReplicationStatus(n), nil
}

// freshStatus reads the status straight from the array.
func (r *ReplicationSession) freshStatus(ctx context.Context) (status.ReplicationStatus, error) {
	if err := r.Update(ctx); err != nil {
		return 0, err
	}
	return r.OperationalStatus(ctx)
}

func (r *ReplicationSession) action(ctx context.Context, name string, body rest.Body) error {
	if _, err := r.Action(ctx, name, body); err != nil {
		return err
	}
	r.sys.log.WithFields(logrus.Fields{"session": r.ID(), "action": name}).Info("replication session updated")
	return nil
}

// Modify changes session settings.
func (r *ReplicationSession) Modify(ctx context.Context, opts ReplicationModifyOptions) error {
	body := rest.MakeBody(
		"name", opts.Name,
		"maxTimeOutOfSync", opts.MaxTimeOutOfSync,
		"hourlySnapReplicationPolicy", opts.HourlySnapReplicationPolicy.body(),
		"dailySnapReplicationPolicy", opts.DailySnapReplicationPolicy.body(),
	)
	return r.action(ctx, "modify", opts.Interfaces.apply(body))
}

// Resume restarts a failed over or paused session.
func (r *ReplicationSession) Resume(ctx context.Context, forceFullCopy *bool, ifaces ReplicationInterfaces) error {
	st, err := r.freshStatus(ctx)
	if err != nil {
		return err
	}
	if err := status.CanResume(st); err != nil {
		return err
	}
	return r.action(ctx, "resume", ifaces.apply(rest.MakeBody("forceFullCopy", forceFullCopy)))
}

// Pause stops a healthy session.
func (r *ReplicationSession) Pause(ctx context.Context) error {
	st, err := r.freshStatus(ctx)
	if err != nil {
		return err
	}
	if err := status.CanPause(st); err != nil {
		return err
	}
	return r.action(ctx, "pause", nil)
}

// Sync starts an on-demand sync.
func (r *ReplicationSession) Sync(ctx context.Context) error {
	return r.action(ctx, "sync", nil)
}

// Failover makes the destination the production side.
func (r *ReplicationSession) Failover(ctx context.Context, sync, force *bool) error {
	return r.action(ctx, "failover", rest.MakeBody("sync", sync, "force", force))
}

// Failback restores the original direction of a failed over session.
func (r *ReplicationSession) Failback(ctx context.Context, forceFullCopy *bool) error {
	st, err := r.freshStatus(ctx)
	if err != nil {
		return err
	}
	if err := status.CanFailback(st); err != nil {
		return err
	}
	return r.action(ctx, "failback", rest.MakeBody("forceFullCopy", forceFullCopy))
}

// Delete removes the session.
func (r *ReplicationSession) Delete(ctx context.Context) error {
	_, err := r.Resource.Delete(ctx, nil)
	return err
}
