package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/unity"
)

var lunListFields = []string{"id", "name", "sizeTotal", "isThinEnabled", "pool.name", "health"}

var lunShowFields = []string{
	"id", "name", "description", "wwn", "sizeTotal", "sizeAllocated",
	"isThinEnabled", "isThinClone", "defaultNode", "currentNode",
	"pool.name", "storageResource.id", "health",
}

var (
	lunPool        string
	lunSize        string
	lunThin        bool
	lunSP          string
	lunDescription string
	lunForceSnaps  bool
	lunSkipHLU0    bool
	lunHLU         int
	lunMigrateWait time.Duration
)

var lunCmd = &cobra.Command{
	Use:   "lun",
	Short: "Manage LUNs",
	Long:  `Create, inspect, resize, attach and delete LUNs on a Unity array.`,
}

func init() {
	lunListCmd.Flags().StringVar(&lunPool, "pool", "", "only list LUNs in this pool")

	lunCreateCmd.Flags().StringVar(&lunPool, "pool", "", "pool to create the LUN in (required)")
	lunCreateCmd.Flags().StringVar(&lunSize, "size", "", "LUN size, e.g. 100GiB (required)")
	lunCreateCmd.Flags().BoolVar(&lunThin, "thin", true, "thin provision the LUN")
	lunCreateCmd.Flags().StringVar(&lunSP, "sp", "", "default storage processor (spa or spb)")
	lunCreateCmd.Flags().StringVar(&lunDescription, "description", "", "LUN description")
	_ = lunCreateCmd.MarkFlagRequired("pool")
	_ = lunCreateCmd.MarkFlagRequired("size")

	lunDeleteCmd.Flags().BoolVar(&lunForceSnaps, "force-snap-deletion", false, "delete the LUN's snapshots too")

	lunAttachCmd.Flags().BoolVar(&lunSkipHLU0, "skip-hlu0", false, "never place the LUN on HLU 0")
	lunAttachCmd.Flags().IntVar(&lunHLU, "hlu", -1, "request a specific HLU (array 4.4.0 and later)")

	lunExpandCmd.Flags().StringVar(&lunSize, "size", "", "new size, e.g. 200GiB (required)")
	_ = lunExpandCmd.MarkFlagRequired("size")

	lunMigrateCmd.Flags().StringVar(&lunPool, "pool", "", "destination pool (required)")
	lunMigrateCmd.Flags().DurationVar(&lunMigrateWait, "timeout", 30*time.Minute, "how long to wait for the move")
	_ = lunMigrateCmd.MarkFlagRequired("pool")

	lunCmd.AddCommand(lunListCmd)
	lunCmd.AddCommand(lunShowCmd)
	lunCmd.AddCommand(lunCreateCmd)
	lunCmd.AddCommand(lunDeleteCmd)
	lunCmd.AddCommand(lunRenameCmd)
	lunCmd.AddCommand(lunAttachCmd)
	lunCmd.AddCommand(lunDetachCmd)
	lunCmd.AddCommand(lunExpandCmd)
	lunCmd.AddCommand(lunMigrateCmd)
}

var lunListCmd = &cobra.Command{
	Use:   "list",
	Short: "List LUNs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			var opts []resource.ListOption
			if lunPool != "" {
				pool, err := sys.PoolByName(ctx, lunPool)
				if err != nil {
					return err
				}
				opts = append(opts, resource.WithFilter("pool.id", pool.ID()))
			}
			return listTable(ctx, sys.LUNs(opts...), lunListFields...)
		})
	},
}

var lunShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one LUN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			lun, err := sys.LUNByName(ctx, args[0])
			if err != nil {
				return err
			}
			t, err := sys.LUNs(resource.WithFilter("id", lun.ID())).Table(ctx, lunShowFields...)
			if err != nil {
				return err
			}
			if err := printTable(t); err != nil {
				return err
			}
			if outputFormat != "table" {
				return nil
			}
			hosts, err := lun.HostNames(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("\nHosts: %v\n", hosts)
			return nil
		})
	},
}

var lunCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a LUN",
	Long: `Create a standalone LUN in a pool.

Example:
  arrayops lun create db-data --pool pool_1 --size 100GiB --sp spa`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := humanize.ParseBytes(lunSize)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", lunSize, err)
		}
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			pool, err := sys.PoolByName(ctx, lunPool)
			if err != nil {
				return err
			}
			params := unity.LUNParameters{Size: size, Thin: &lunThin}
			if lunSP != "" {
				sp, err := unity.ParseNode(lunSP)
				if err != nil {
					return err
				}
				params.SP = &sp
			}
			lun, err := pool.CreateLUN(ctx, unity.LUNCreateOptions{
				Name:          args[0],
				Description:   lunDescription,
				LUNParameters: params,
			})
			if err != nil {
				return fmt.Errorf("failed to create lun: %w", err)
			}
			fmt.Printf("%s LUN %s created (%s, %s)\n", okMark, args[0], lun.ID(), humanize.IBytes(size))
			return nil
		})
	},
}

var lunDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a LUN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			lun, err := sys.LUNByName(ctx, args[0])
			if err != nil {
				return err
			}
			if _, err := lun.Delete(ctx, unity.LUNDeleteOptions{ForceSnapDeletion: lunForceSnaps}); err != nil {
				return fmt.Errorf("failed to delete lun: %w", err)
			}
			fmt.Printf("%s LUN %s deleted\n", okMark, args[0])
			return nil
		})
	},
}

var lunRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a LUN",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			lun, err := sys.LUNByName(ctx, args[0])
			if err != nil {
				return err
			}
			if err := lun.Rename(ctx, args[1]); err != nil {
				return err
			}
			fmt.Printf("%s LUN %s renamed to %s\n", okMark, args[0], args[1])
			return nil
		})
	},
}

var lunAttachCmd = &cobra.Command{
	Use:   "attach <name> <host>",
	Short: "Attach a LUN to a host",
	Long: `Attach a LUN to a host and print the HLU it landed on.

The host may be given by name, ID or IP address. With --hlu the array is
asked for that HLU; otherwise a free one is chosen and conflicts are
retried.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			lun, err := sys.LUNByName(ctx, args[0])
			if err != nil {
				return err
			}
			host, err := findHost(ctx, sys, args[1])
			if err != nil {
				return err
			}

			var hlu int
			if lunHLU >= 0 {
				if err := lun.AttachTo(ctx, host, unity.AttachOptions{HLU: &lunHLU}); err != nil {
					return fmt.Errorf("failed to attach lun: %w", err)
				}
				host.Invalidate()
				hlu, _, err = host.GetHLU(ctx, lun, nil)
			} else {
				hlu, err = host.Attach(ctx, lun, lunSkipHLU0)
			}
			if err != nil {
				return fmt.Errorf("failed to attach lun: %w", err)
			}
			fmt.Printf("%s LUN %s attached to %s at HLU %d\n", okMark, args[0], args[1], hlu)
			return nil
		})
	},
}

var lunDetachCmd = &cobra.Command{
	Use:   "detach <name> [host]",
	Short: "Detach a LUN from a host, or from every host",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			lun, err := sys.LUNByName(ctx, args[0])
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := lun.DetachFrom(ctx, nil); err != nil {
					return fmt.Errorf("failed to detach lun: %w", err)
				}
				fmt.Printf("%s LUN %s detached from all hosts\n", okMark, args[0])
				return nil
			}
			host, err := findHost(ctx, sys, args[1])
			if err != nil {
				return err
			}
			if err := host.Detach(ctx, lun); err != nil {
				return fmt.Errorf("failed to detach lun: %w", err)
			}
			fmt.Printf("%s LUN %s detached from %s\n", okMark, args[0], args[1])
			return nil
		})
	},
}

var lunExpandCmd = &cobra.Command{
	Use:   "expand <name>",
	Short: "Grow a LUN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := humanize.ParseBytes(lunSize)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", lunSize, err)
		}
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			lun, err := sys.LUNByName(ctx, args[0])
			if err != nil {
				return err
			}
			old, err := lun.Expand(ctx, size)
			if err != nil {
				return fmt.Errorf("failed to expand lun: %w", err)
			}
			fmt.Printf("%s LUN %s expanded from %s to %s\n", okMark, args[0], humanize.IBytes(old), humanize.IBytes(size))
			return nil
		})
	},
}

var lunMigrateCmd = &cobra.Command{
	Use:   "migrate <name>",
	Short: "Move a LUN to another pool",
	Long: `Start a move session for the LUN and wait for it to finish.

Exits with an error when the move fails, is cancelled or does not settle
within --timeout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			lun, err := sys.LUNByName(ctx, args[0])
			if err != nil {
				return err
			}
			pool, err := sys.PoolByName(ctx, lunPool)
			if err != nil {
				return err
			}
			fmt.Printf("Migrating LUN %s to pool %s...\n", args[0], lunPool)
			ok, err := lun.Migrate(ctx, pool, unity.MigrateOptions{Timeout: lunMigrateWait})
			if err != nil {
				return fmt.Errorf("failed to migrate lun: %w", err)
			}
			if !ok {
				return fmt.Errorf("migration of lun %s did not complete", args[0])
			}
			fmt.Printf("%s LUN %s migrated to %s\n", okMark, args[0], lunPool)
			return nil
		})
	},
}
