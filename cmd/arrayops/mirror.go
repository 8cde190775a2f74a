package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/vnx"
)

var (
	mirrorAsync       bool
	mirrorSrcWWN      string
	mirrorTgtWWN      string
	mirrorImage       string
	mirrorForce       bool
	mirrorPromoteType string
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Manage VNX MirrorView mirrors and groups",
	Long: `Manage VNX MirrorView/S and MirrorView/A mirrors through naviseccli.

The profile needs a vnx section naming at least one storage processor.
Use --async to work with MirrorView/A.`,
}

var mirrorGroupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage mirror consistency groups",
}

func init() {
	mirrorCmd.PersistentFlags().BoolVar(&mirrorAsync, "async", false, "operate on asynchronous mirrors")

	mirrorListCmd.Flags().StringVar(&mirrorSrcWWN, "src-wwn", "", "only mirrors whose primary LUN has this WWN")
	mirrorListCmd.Flags().StringVar(&mirrorTgtWWN, "tgt-wwn", "", "only mirrors whose secondary LUN has this WWN")

	for _, c := range []*cobra.Command{mirrorPromoteCmd, mirrorFractureCmd, mirrorSyncCmd} {
		c.Flags().StringVar(&mirrorImage, "image", "", "image UID (default: the secondary image)")
	}
	mirrorPromoteCmd.Flags().BoolVar(&mirrorForce, "force", false, "promote even when the image is not in sync")
	mirrorPromoteCmd.Flags().StringVar(&mirrorPromoteType, "type", "", "async promote type (normal, local, oos)")
	mirrorGroupPromoteCmd.Flags().StringVar(&mirrorPromoteType, "type", "", "async promote type (normal, local, oos)")

	mirrorCmd.AddCommand(mirrorListCmd)
	mirrorCmd.AddCommand(mirrorPromoteCmd)
	mirrorCmd.AddCommand(mirrorFractureCmd)
	mirrorCmd.AddCommand(mirrorSyncCmd)

	mirrorGroupCmd.AddCommand(mirrorGroupListCmd)
	mirrorGroupCmd.AddCommand(mirrorGroupPromoteCmd)
	mirrorGroupCmd.AddCommand(mirrorGroupFractureCmd)
	mirrorGroupCmd.AddCommand(mirrorGroupSyncCmd)
	mirrorCmd.AddCommand(mirrorGroupCmd)
}

// mirrorHandle is what the sync and async mirror views share.
type mirrorHandle interface {
	Name() string
	Images(ctx context.Context) ([]vnx.Image, error)
	FractureImage(ctx context.Context, id string) error
	SyncImage(ctx context.Context, id string) error
}

// groupHandle is what the sync and async mirror groups share.
type groupHandle interface {
	Fracture(ctx context.Context) error
	Sync(ctx context.Context) error
}

func mirrorMode() vnx.Mode {
	if mirrorAsync {
		return vnx.ModeAsync
	}
	return vnx.ModeSync
}

// withVNX runs fn against the profile's VNX storage processors.
func withVNX(fn func(ctx context.Context, c *vnx.Client) error) error {
	ctx := context.Background()
	s, err := newSession()
	if err != nil {
		return err
	}
	c, err := s.vnx()
	if err != nil {
		return err
	}
	return fn(ctx, c)
}

func mirrorByName(c *vnx.Client, name string) mirrorHandle {
	if mirrorAsync {
		return c.MirrorViewAsync(name)
	}
	return c.MirrorView(name)
}

func groupByName(c *vnx.Client, name string) groupHandle {
	if mirrorAsync {
		return c.MirrorGroupAsync(name)
	}
	return c.MirrorGroup(name)
}

func mirrorTable(ctx context.Context, mirrors []mirrorHandle) (*resource.Table, error) {
	t := &resource.Table{
		Kind:    "mirrorview",
		Columns: []string{"name", "mode", "primary", "secondary", "state", "condition", "progress"},
	}
	for _, m := range mirrors {
		images, err := m.Images(ctx)
		if err != nil {
			return nil, err
		}
		var primary, secondary vnx.Image
		for _, img := range images {
			if img.Primary {
				primary = img
			} else {
				secondary = img
			}
		}
		progress := ""
		if secondary.Progress >= 0 && secondary.UID != "" {
			progress = strconv.Itoa(secondary.Progress) + "%"
		}
		t.Rows = append(t.Rows, []string{
			m.Name(), mirrorMode().String(), primary.LogicalUnitUID, secondary.LogicalUnitUID,
			secondary.State, secondary.Condition, progress,
		})
	}
	return t, nil
}

var mirrorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirror views and their images",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVNX(func(ctx context.Context, c *vnx.Client) error {
			filter := vnx.ListFilter{SrcLUNWWN: mirrorSrcWWN, TgtLUNWWN: mirrorTgtWWN}
			var mirrors []mirrorHandle
			if mirrorAsync {
				views, err := c.ListMirrorViewsAsync(ctx, filter)
				if err != nil {
					return err
				}
				for _, v := range views {
					mirrors = append(mirrors, v)
				}
			} else {
				views, err := c.ListMirrorViews(ctx, filter)
				if err != nil {
					return err
				}
				for _, v := range views {
					mirrors = append(mirrors, v)
				}
			}
			t, err := mirrorTable(ctx, mirrors)
			if err != nil {
				return err
			}
			return printTable(t)
		})
	},
}

var mirrorPromoteCmd = &cobra.Command{
	Use:   "promote <mirror>",
	Short: "Promote a secondary image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVNX(func(ctx context.Context, c *vnx.Client) error {
			var err error
			if mirrorAsync {
				err = c.MirrorViewAsync(args[0]).PromoteImage(ctx, mirrorImage, vnx.PromoteOptions{
					Type:  vnx.PromoteType(mirrorPromoteType),
					Force: mirrorForce,
				})
			} else {
				err = c.MirrorView(args[0]).PromoteImage(ctx, mirrorImage, mirrorForce)
			}
			if err != nil {
				return fmt.Errorf("failed to promote mirror: %w", err)
			}
			fmt.Printf("%s Mirror %s promoted\n", okMark, args[0])
			return nil
		})
	},
}

var mirrorFractureCmd = &cobra.Command{
	Use:   "fracture <mirror>",
	Short: "Fracture a secondary image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVNX(func(ctx context.Context, c *vnx.Client) error {
			if err := mirrorByName(c, args[0]).FractureImage(ctx, mirrorImage); err != nil {
				return fmt.Errorf("failed to fracture mirror: %w", err)
			}
			fmt.Printf("%s Mirror %s fractured\n", okMark, args[0])
			return nil
		})
	},
}

var mirrorSyncCmd = &cobra.Command{
	Use:   "sync <mirror>",
	Short: "Start synchronizing a secondary image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVNX(func(ctx context.Context, c *vnx.Client) error {
			if err := mirrorByName(c, args[0]).SyncImage(ctx, mirrorImage); err != nil {
				return fmt.Errorf("failed to sync mirror: %w", err)
			}
			fmt.Printf("%s Mirror %s synchronizing\n", okMark, args[0])
			return nil
		})
	},
}

var mirrorGroupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirror groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVNX(func(ctx context.Context, c *vnx.Client) error {
			names, err := c.ListMirrorGroups(ctx, mirrorMode())
			if err != nil {
				return err
			}
			t := &resource.Table{Kind: "mirrorgroup", Columns: []string{"name", "mode"}}
			for _, n := range names {
				t.Rows = append(t.Rows, []string{n, mirrorMode().String()})
			}
			return printTable(t)
		})
	},
}

var mirrorGroupPromoteCmd = &cobra.Command{
	Use:   "promote <group>",
	Short: "Promote every mirror in a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVNX(func(ctx context.Context, c *vnx.Client) error {
			var err error
			if mirrorAsync {
				err = c.MirrorGroupAsync(args[0]).Promote(ctx, vnx.PromoteType(mirrorPromoteType))
			} else {
				err = c.MirrorGroup(args[0]).Promote(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to promote mirror group: %w", err)
			}
			fmt.Printf("%s Mirror group %s promoted\n", okMark, args[0])
			return nil
		})
	},
}

var mirrorGroupFractureCmd = &cobra.Command{
	Use:   "fracture <group>",
	Short: "Fracture every mirror in a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVNX(func(ctx context.Context, c *vnx.Client) error {
			if err := groupByName(c, args[0]).Fracture(ctx); err != nil {
				return fmt.Errorf("failed to fracture mirror group: %w", err)
			}
			fmt.Printf("%s Mirror group %s fractured\n", okMark, args[0])
			return nil
		})
	},
}

var mirrorGroupSyncCmd = &cobra.Command{
	Use:   "sync <group>",
	Short: "Synchronize every mirror in a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVNX(func(ctx context.Context, c *vnx.Client) error {
			if err := groupByName(c, args[0]).Sync(ctx); err != nil {
				return fmt.Errorf("failed to sync mirror group: %w", err)
			}
			fmt.Printf("%s Mirror group %s synchronizing\n", okMark, args[0])
			return nil
		})
	},
}
