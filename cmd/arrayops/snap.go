package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/unity"
)

var snapListFields = []string{"id", "name", "state", "creationTime", "expirationTime", "storageResource.id"}

var (
	snapLUN          string
	snapCG           string
	snapDescription  string
	snapRetention    time.Duration
	snapReadOnly     bool
	snapBackupName   string
	snapKeepBackup   bool
	snapEvenAttached bool
)

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Manage snapshots of LUNs and consistency groups",
}

func init() {
	snapListCmd.Flags().StringVar(&snapLUN, "lun", "", "only list snapshots of this LUN")
	snapListCmd.Flags().StringVar(&snapCG, "cg", "", "only list snapshots of this consistency group")

	snapCreateCmd.Flags().StringVar(&snapLUN, "lun", "", "LUN to snapshot")
	snapCreateCmd.Flags().StringVar(&snapCG, "cg", "", "consistency group to snapshot")
	snapCreateCmd.Flags().StringVar(&snapDescription, "description", "", "snapshot description")
	snapCreateCmd.Flags().DurationVar(&snapRetention, "retention", 0, "expire the snapshot after this long")
	snapCreateCmd.Flags().BoolVar(&snapReadOnly, "read-only", false, "create a read-only snapshot")
	snapCreateCmd.MarkFlagsMutuallyExclusive("lun", "cg")
	snapCreateCmd.MarkFlagsOneRequired("lun", "cg")

	snapRestoreCmd.Flags().StringVar(&snapBackupName, "backup-name", "", "name of the safety snapshot taken first")
	snapRestoreCmd.Flags().BoolVar(&snapKeepBackup, "keep-backup", false, "keep the safety snapshot")

	snapDeleteCmd.Flags().BoolVar(&snapEvenAttached, "even-attached", false, "detach from all hosts first if needed")

	snapCmd.AddCommand(snapListCmd)
	snapCmd.AddCommand(snapCreateCmd)
	snapCmd.AddCommand(snapRestoreCmd)
	snapCmd.AddCommand(snapDeleteCmd)
	snapCmd.AddCommand(snapCloneCmd)
}

var snapListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			var opts []resource.ListOption
			switch {
			case snapLUN != "":
				lun, err := sys.LUNByName(ctx, snapLUN)
				if err != nil {
					return err
				}
				opts = append(opts, resource.WithFilter("lun.id", lun.ID()))
			case snapCG != "":
				cg, err := cgByName(ctx, sys, snapCG)
				if err != nil {
					return err
				}
				opts = append(opts, resource.WithFilter("storageResource.id", cg.ID()))
			}
			return listTable(ctx, sys.Snaps(opts...), snapListFields...)
		})
	},
}

var snapCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Snapshot a LUN or consistency group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := unity.SnapCreateOptions{
			Name:              args[0],
			Description:       snapDescription,
			RetentionDuration: snapRetention,
		}
		if snapReadOnly {
			opts.IsReadOnly = &snapReadOnly
		}
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			var (
				snap *unity.Snap
				err  error
			)
			if snapLUN != "" {
				lun, lerr := sys.LUNByName(ctx, snapLUN)
				if lerr != nil {
					return lerr
				}
				snap, err = lun.CreateSnap(ctx, opts)
			} else {
				cg, cerr := cgByName(ctx, sys, snapCG)
				if cerr != nil {
					return cerr
				}
				snap, err = cg.CreateSnap(ctx, opts)
			}
			if err != nil {
				return fmt.Errorf("failed to create snapshot: %w", err)
			}
			fmt.Printf("%s Snapshot %s created (%s)\n", okMark, args[0], snap.ID())
			return nil
		})
	},
}

var snapRestoreCmd = &cobra.Command{
	Use:   "restore <name>",
	Short: "Roll the LUN or group back to a snapshot",
	Long: `Roll the snapshot's storage resource back to it. The array takes a
safety snapshot first; it is deleted after a successful restore unless
--keep-backup is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			snap, err := sys.SnapByName(ctx, args[0])
			if err != nil {
				return err
			}
			backup, err := snap.Restore(ctx, snapBackupName, !snapKeepBackup)
			if err != nil {
				return fmt.Errorf("failed to restore snapshot: %w", err)
			}
			fmt.Printf("%s Restored from %s\n", okMark, args[0])
			if snapKeepBackup {
				fmt.Printf("  backup snapshot: %s\n", backup.ID())
			}
			return nil
		})
	},
}

var snapDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			snap, err := sys.SnapByName(ctx, args[0])
			if err != nil {
				return err
			}
			if err := snap.Delete(ctx, snapEvenAttached); err != nil {
				return fmt.Errorf("failed to delete snapshot: %w", err)
			}
			fmt.Printf("%s Snapshot %s deleted\n", okMark, args[0])
			return nil
		})
	},
}

var snapCloneCmd = &cobra.Command{
	Use:   "clone <snap> <lun-name>",
	Short: "Create a thin clone LUN from a snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			snap, err := sys.SnapByName(ctx, args[0])
			if err != nil {
				return err
			}
			lun, err := snap.ThinClone(ctx, unity.ThinCloneOptions{Name: args[1]})
			if err != nil {
				return fmt.Errorf("failed to clone snapshot: %w", err)
			}
			fmt.Printf("%s Thin clone %s created (%s)\n", okMark, args[1], lun.ID())
			return nil
		})
	},
}
