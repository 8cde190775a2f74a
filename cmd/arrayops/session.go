package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/api/v1alpha1"
	"github.com/jbweber/arrayops/internal/config"
	"github.com/jbweber/arrayops/internal/logging"
	"github.com/jbweber/arrayops/internal/naviseccli"
	"github.com/jbweber/arrayops/internal/output"
	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/unity"
	"github.com/jbweber/arrayops/internal/vnx"
)

const profileEnv = "ARRAYOPS_PROFILE"

func defaultProfilePath() string {
	if p := os.Getenv(profileEnv); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "arrayops.yaml"
	}
	return filepath.Join(dir, "arrayops", "profile.yaml")
}

// session holds what one command invocation needs: the profile, a logger
// and lazily opened array connections.
type session struct {
	profile *config.Profile
	log     *logrus.Logger
	client  *rest.HTTPClient
	metrics *rest.Metrics
}

func newSession() (*session, error) {
	profile, err := config.LoadFromFile(profilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	logCfg := profile.Logging()
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	return &session{profile: profile, log: log}, nil
}

// unity connects to the profile's Unity array.
func (s *session) unity(ctx context.Context) (*unity.System, error) {
	if !s.profile.HasUnity() {
		return nil, fmt.Errorf("profile %s has no Unity address", profilePath)
	}
	if s.client == nil {
		opts := s.profile.RESTOptions()
		opts.Logger = s.log
		s.metrics = rest.NewMetrics()
		opts.Metrics = s.metrics
		c, err := rest.Connect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", opts.Address, err)
		}
		s.client = c
	}
	return unity.New(s.client), nil
}

// vnx returns a MirrorView client for the profile's storage processors.
func (s *session) vnx() (*vnx.Client, error) {
	if !s.profile.HasVNX() {
		return nil, fmt.Errorf("profile %s has no vnx section", profilePath)
	}
	run, err := naviseccli.NewExecRunner(s.profile.NaviseccliConfig(), s.log)
	if err != nil {
		return nil, err
	}
	return vnx.New(run, vnx.WithLogger(s.log)), nil
}

func (s *session) close(ctx context.Context) {
	if s.client == nil {
		return
	}
	if err := s.client.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close array session: %v\n", err)
	}
	if metricsFile == "" {
		return
	}
	if err := s.metrics.WriteTextfile(metricsFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write metrics to %s: %v\n", metricsFile, err)
	}
}

// withUnity runs fn against a connected Unity system and closes the
// session afterwards.
func withUnity(fn func(ctx context.Context, sys *unity.System) error) error {
	ctx := context.Background()
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close(ctx)

	sys, err := s.unity(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, sys)
}

func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

func printTable(t *resource.Table) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	result, err := formatter.FormatTable(t)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(result)
	return nil
}

func printBindings(bindings []*v1alpha1.HostBinding) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	result, err := formatter.FormatBindings(bindings)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(result)
	return nil
}

// listTable fetches the given fields of a collection and prints them.
func listTable[T any](ctx context.Context, c *resource.Collection[T], fields ...string) error {
	t, err := c.Table(ctx, fields...)
	if err != nil {
		return err
	}
	return printTable(t)
}

// findHost resolves a host given by address, name or ID.
func findHost(ctx context.Context, sys *unity.System, ref string) (*unity.Host, error) {
	return sys.ResolveHost(ctx, ref, false)
}
