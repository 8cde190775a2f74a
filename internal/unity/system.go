// Package unity models Unity array resources (LUNs, consistency groups,
// hosts, snapshots, replication) on top of the rest transport.
//
// Every resource handle is created from a System, which owns the transport
// client, the logger and the attach strategy picked from the array version.
// Handles are lazy: building one never performs I/O.
//
//	sys := unity.New(cli)
//	host := sys.Host("Host_12")
//	hlu, err := host.Attach(ctx, sys.LUN("sv_4"), true)
package unity

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/version"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMigrateWait  = 30 * time.Minute
	maxHLUAttempts      = 5
	hluRetryDelay       = 10 * time.Millisecond
)

// System is the entry point for one connected array.
type System struct {
	cli          rest.Client
	log          logrus.FieldLogger
	attach       attachStrategy
	rand         *rand.Rand
	pollInterval time.Duration
}

// Option configures a System.
type Option func(*System)

// WithRand sets the random source used for HLU selection.
func WithRand(r *rand.Rand) Option {
	return func(s *System) { s.rand = r }
}

// WithPollInterval sets the default interval for long running job polls.
// Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(s *System) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// New returns a System bound to cli. The attach strategy is chosen here,
// once, from cli.Version().
func New(cli rest.Client, opts ...Option) *System {
	log := cli.Logger()
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &System{
		cli:          cli,
		log:          log,
		rand:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.attach = strategyFor(cli.Version())
	s.log.WithFields(logrus.Fields{
		"version":  cli.Version().String(),
		"strategy": s.attach.name(),
	}).Debug("unity system ready")
	return s
}

// Client returns the transport.
func (s *System) Client() rest.Client { return s.cli }

// Version returns the array software version.
func (s *System) Version() *version.Version { return s.cli.Version() }

// Logger returns the system logger.
func (s *System) Logger() logrus.FieldLogger { return s.log }

// storageResourceAction runs an action on the storageResource that backs
// id. LUNs and consistency groups share their id with that resource.
func (s *System) storageResourceAction(ctx context.Context, id, action string, body rest.Body) (*rest.Response, error) {
	s.log.WithFields(logrus.Fields{"resource": typeStorageResource, "id": id, "action": action}).Debug("storage resource action")
	return rest.Check(s.cli.Action(ctx, typeStorageResource, id, action, body))
}

func (s *System) storageResourceTypeAction(ctx context.Context, action string, body rest.Body) (*rest.Response, error) {
	s.log.WithFields(logrus.Fields{"resource": typeStorageResource, "action": action}).Debug("storage resource type action")
	return rest.Check(s.cli.TypeAction(ctx, typeStorageResource, action, body))
}
