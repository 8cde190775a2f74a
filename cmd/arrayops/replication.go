package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/unity"
)

var replicationListFields = []string{
	"id", "name", "localRole", "syncState", "operationalStatus", "remoteSystem.id", "health",
}

var (
	replForceFullCopy bool
	replSync          bool
	replForce         bool
)

var replicationCmd = &cobra.Command{
	Use:     "replication",
	Aliases: []string{"repl"},
	Short:   "Control Unity replication sessions",
}

func init() {
	replResumeCmd.Flags().BoolVar(&replForceFullCopy, "force-full-copy", false, "resynchronize everything")
	replFailbackCmd.Flags().BoolVar(&replForceFullCopy, "force-full-copy", false, "resynchronize everything")
	replFailoverCmd.Flags().BoolVar(&replSync, "sync", false, "synchronize before failing over (planned failover)")
	replFailoverCmd.Flags().BoolVar(&replForce, "force", false, "fail over even when the source is reachable")

	replicationCmd.AddCommand(replListCmd)
	replicationCmd.AddCommand(replStatusCmd)
	replicationCmd.AddCommand(replSessionCmd("pause", "Pause a session", "paused",
		func(ctx context.Context, cmd *cobra.Command, r *unity.ReplicationSession) error { return r.Pause(ctx) }))
	replicationCmd.AddCommand(replResumeCmd)
	replicationCmd.AddCommand(replSessionCmd("sync", "Start an on-demand sync", "syncing",
		func(ctx context.Context, cmd *cobra.Command, r *unity.ReplicationSession) error { return r.Sync(ctx) }))
	replicationCmd.AddCommand(replFailoverCmd)
	replicationCmd.AddCommand(replFailbackCmd)
	replicationCmd.AddCommand(replSessionCmd("delete", "Delete a session", "deleted",
		func(ctx context.Context, cmd *cobra.Command, r *unity.ReplicationSession) error { return r.Delete(ctx) }))
}

func replicationByName(ctx context.Context, sys *unity.System, name string) (*unity.ReplicationSession, error) {
	r, ok, err := sys.ReplicationSessions(resource.WithFilter("name", name)).First(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.New(apierrors.KindNotFound, "replication session %s not found", name)
	}
	return r, nil
}

// replSessionCmd builds a command that runs one action on a named session.
func replSessionCmd(use, short, done string, fn func(context.Context, *cobra.Command, *unity.ReplicationSession) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <session>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUnity(func(ctx context.Context, sys *unity.System) error {
				r, err := replicationByName(ctx, sys, args[0])
				if err != nil {
					return err
				}
				if err := fn(ctx, cmd, r); err != nil {
					return fmt.Errorf("failed to %s replication session: %w", use, err)
				}
				fmt.Printf("%s Replication session %s %s\n", okMark, args[0], done)
				return nil
			})
		},
	}
}

// flagPtr returns &v when the flag was set on the command line.
func flagPtr(cmd *cobra.Command, name string, v bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

var replListCmd = &cobra.Command{
	Use:   "list",
	Short: "List replication sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			return listTable(ctx, sys.ReplicationSessions(), replicationListFields...)
		})
	},
}

var replStatusCmd = &cobra.Command{
	Use:   "status <session>",
	Short: "Print the operational status of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			r, err := replicationByName(ctx, sys, args[0])
			if err != nil {
				return err
			}
			st, err := r.OperationalStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", args[0], st)
			return nil
		})
	},
}

var replResumeCmd = replSessionCmd("resume", "Resume a paused or failed over session", "resumed",
	func(ctx context.Context, cmd *cobra.Command, r *unity.ReplicationSession) error {
		return r.Resume(ctx, flagPtr(cmd, "force-full-copy", replForceFullCopy), unity.ReplicationInterfaces{})
	})

var replFailoverCmd = replSessionCmd("failover", "Make the destination the production side", "failed over",
	func(ctx context.Context, cmd *cobra.Command, r *unity.ReplicationSession) error {
		return r.Failover(ctx, flagPtr(cmd, "sync", replSync), flagPtr(cmd, "force", replForce))
	})

var replFailbackCmd = replSessionCmd("failback", "Restore the original replication direction", "failed back",
	func(ctx context.Context, cmd *cobra.Command, r *unity.ReplicationSession) error {
		return r.Failback(ctx, flagPtr(cmd, "force-full-copy", replForceFullCopy))
	})
