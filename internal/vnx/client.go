// Package vnx drives MirrorView replication on VNX arrays through the
// naviseccli command line.
//
// Handles are addressed by name and load their state lazily from the
// CLI's list output. Mutations drop the cached state so the next read
// reflects the array.
package vnx

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/naviseccli"
)

// Mode selects the synchronous or asynchronous MirrorView flavor.
type Mode string

const (
	ModeSync  Mode = "-sync"
	ModeAsync Mode = "-async"
)

// String returns "sync" or "async".
func (m Mode) String() string {
	return strings.TrimPrefix(string(m), "-")
}

// Client issues mirror commands through a naviseccli.Runner.
type Client struct {
	run naviseccli.Runner
	log logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger; the logrus standard logger is the default.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client over run.
func New(run naviseccli.Runner, opts ...Option) *Client {
	c := &Client{run: run, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// mirror runs a mirror subcommand and converts CLI failures into
// apierrors of kind Mirror.
func (c *Client) mirror(ctx context.Context, mode Mode, args ...string) (string, error) {
	full := append([]string{"mirror", string(mode)}, args...)
	out, err := c.run.Run(ctx, full...)
	if err != nil {
		return out, apierrors.Wrap(apierrors.KindMirror, err, "mirror %s %s failed", mode, args[0])
	}
	return out, nil
}

func validName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	return nil
}
