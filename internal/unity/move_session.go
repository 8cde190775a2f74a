package unity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
)

var moveSessionType = resource.Type{
	Name: typeMoveSession,
	Fields: []string{
		"id", "state", "status", "priority", "progressPct",
		"currentTransferRate", "avgTransferRate", "estimatedTimeRemaining",
		"sourceStorageResource.id", "sourceMemberLun.id", "destinationPool.id",
		"isDestThin", "isDataReductionApplied",
	},
}

// errMoveRunning marks a poll that found the move session still in flight.
var errMoveRunning = errors.New("move session still running")

// MovePriority orders concurrent move sessions.
type MovePriority int

const (
	MovePriorityIdle        MovePriority = 0
	MovePriorityLow         MovePriority = 1
	MovePriorityBelowNormal MovePriority = 2
	MovePriorityNormal      MovePriority = 3
	MovePriorityAboveNormal MovePriority = 4
	MovePriorityHigh        MovePriority = 5
)

// MoveSession is a background job moving a storage resource between pools.
type MoveSession struct {
	*resource.Resource
	sys *System
}

// MoveSession returns a lazy handle for a move session.
func (s *System) MoveSession(id string) *MoveSession {
	return &MoveSession{Resource: resource.New(s.cli, moveSessionType, id), sys: s}
}

// MoveSessions lists move sessions.
func (s *System) MoveSessions(opts ...resource.ListOption) *resource.Collection[*MoveSession] {
	return resource.NewCollection(resource.NewList(s.cli, moveSessionType, opts...),
		func(r *resource.Resource) *MoveSession { return &MoveSession{Resource: r, sys: s} })
}

// MoveSessionOptions configures CreateMoveSession.
type MoveSessionOptions struct {
	// SourceMemberLUN selects one member when the source is a CG.
	SourceMemberLUN        rest.Identifier
	IsDestThin             *bool
	IsDataReductionApplied *bool
	Priority               *MovePriority
}

// CreateMoveSession starts moving source into destPool.
func (s *System) CreateMoveSession(ctx context.Context, source, destPool rest.Identifier, opts MoveSessionOptions) (*MoveSession, error) {
	body := rest.MakeBody(
		"sourceStorageResource", source,
		"destinationPool", destPool,
		"sourceMemberLun", opts.SourceMemberLUN,
		"isDestThin", opts.IsDestThin,
		"isDataReductionApplied", opts.IsDataReductionApplied,
		"priority", optEnum(opts.Priority),
	)
	resp, err := rest.Check(s.cli.Post(ctx, typeMoveSession, body))
	if err != nil {
		return nil, fmt.Errorf("failed to create move session for %s: %w", source.ID(), err)
	}
	s.log.WithFields(logrus.Fields{"session": resp.ResourceID(), "source": source.ID(), "pool": destPool.ID()}).Info("created move session")
	return s.MoveSession(resp.ResourceID()), nil
}

// State is the current job state.
func (m *MoveSession) State(ctx context.Context) (MoveSessionState, error) {
	p, err := m.Properties(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := p.Int("state")
	return MoveSessionState(n), nil
}

// Progress is the completed percentage.
func (m *MoveSession) Progress(ctx context.Context) (int, error) {
	p, err := m.Properties(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := p.Int("progressPct")
	return int(n), nil
}

// SetPriority changes the job priority.
func (m *MoveSession) SetPriority(ctx context.Context, priority MovePriority) error {
	_, err := m.Action(ctx, "modify", rest.MakeBody("priority", int(priority)))
	return err
}

// Cancel stops the job.
func (m *MoveSession) Cancel(ctx context.Context) error {
	_, err := m.Action(ctx, "cancel", nil)
	return err
}

// MigrateOptions configures LUN.Migrate.
type MigrateOptions struct {
	MoveSessionOptions
	// Interval between state polls. Zero or negative uses the system poll
	// interval.
	Interval time.Duration
	// Timeout bounds the wait for the job to settle. Zero or negative means
	// 30 minutes.
	Timeout time.Duration
}

// Migrate moves the LUN to destPool and waits for the move to settle. It
// reports true when the move completed and false when the job failed, was
// cancelled or could not be started. A missing source or destination is an
// error, as is running out of time.
func (l *LUN) Migrate(ctx context.Context, destPool rest.Identifier, opts MigrateOptions) (bool, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = l.sys.pollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultMigrateWait
	}
	log := l.sys.log.WithFields(logrus.Fields{"lun": l.ID(), "pool": destPool.ID()})

	session, err := l.sys.CreateMoveSession(ctx, l, destPool, opts.MoveSessionOptions)
	switch {
	case errors.Is(err, apierrors.ErrMigrationSourceDestNotExists):
		return false, err
	case apierrors.IsArrayError(err):
		log.WithError(err).Warn("array refused the migration")
		return false, nil
	case err != nil:
		return false, err
	}

	var (
		final   MoveSessionState
		pollErr error
	)
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			if pollErr = ctx.Err(); pollErr != nil {
				return pollErr
			}
			if pollErr = session.Update(ctx); pollErr != nil {
				return pollErr
			}
			state, err := session.State(ctx)
			if err != nil {
				pollErr = err
				return err
			}
			log.WithField("state", state.String()).Debug("polled move session")
			final = state
			if !state.Settled() {
				return errMoveRunning
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errMoveRunning)
		},
		Attempts:    -1,
		Delay:       interval,
		MaxDuration: timeout,
		Clock:       clock.WallClock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
	case retry.IsDurationExceeded(err):
		return false, apierrors.Wrap(apierrors.KindMigrationTimeout, errMoveRunning,
			"migration of lun %s did not finish within %s", l.ID(), timeout)
	case retry.IsRetryStopped(err):
		return false, fmt.Errorf("migration of lun %s: %w", l.ID(), ctx.Err())
	default:
		return false, pollErr
	}

	if final != MoveCompleted {
		log.WithField("state", final.String()).Warn("migration did not complete")
		return false, nil
	}
	l.Invalidate()
	log.Info("migration completed")
	return true, nil
}
