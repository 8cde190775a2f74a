package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/arrayops/internal/apierrors"
	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/rest"
	"github.com/jbweber/arrayops/internal/unity"
)

var cgListFields = []string{"id", "name", "description", "sizeTotal", "health"}

var (
	cgDescription string
	cgLUNs        []string
	cgHosts       []string
	cgAddLUNs     []string
	cgRemoveLUNs  []string
)

var cgCmd = &cobra.Command{
	Use:     "cg",
	Aliases: []string{"consistency-group"},
	Short:   "Manage consistency groups",
}

func init() {
	cgCreateCmd.Flags().StringVar(&cgDescription, "description", "", "group description")
	cgCreateCmd.Flags().StringSliceVar(&cgLUNs, "lun", nil, "existing LUN to add (repeatable)")
	cgCreateCmd.Flags().StringSliceVar(&cgHosts, "host", nil, "host to grant access (repeatable)")

	cgUpdateLUNCmd.Flags().StringSliceVar(&cgAddLUNs, "add", nil, "LUN to add (repeatable)")
	cgUpdateLUNCmd.Flags().StringSliceVar(&cgRemoveLUNs, "remove", nil, "LUN to remove (repeatable)")

	cgCmd.AddCommand(cgListCmd)
	cgCmd.AddCommand(cgCreateCmd)
	cgCmd.AddCommand(cgDeleteCmd)
	cgCmd.AddCommand(cgRenameCmd)
	cgCmd.AddCommand(cgAddLUNCmd)
	cgCmd.AddCommand(cgRemoveLUNCmd)
	cgCmd.AddCommand(cgReplaceLUNCmd)
	cgCmd.AddCommand(cgUpdateLUNCmd)
	cgCmd.AddCommand(cgSetHostsCmd)
}

func cgByName(ctx context.Context, sys *unity.System, name string) (*unity.ConsistencyGroup, error) {
	cg, ok, err := sys.ConsistencyGroups(resource.WithFilter("name", name)).First(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierrors.New(apierrors.KindNotFound, "consistency group %s not found", name)
	}
	return cg, nil
}

func lunRefs(ctx context.Context, sys *unity.System, names []string) ([]rest.Identifier, error) {
	refs := make([]rest.Identifier, 0, len(names))
	for _, n := range names {
		lun, err := sys.LUNByName(ctx, n)
		if err != nil {
			return nil, err
		}
		refs = append(refs, lun)
	}
	return refs, nil
}

func hostRefs(ctx context.Context, sys *unity.System, names []string) ([]rest.Identifier, error) {
	refs := make([]rest.Identifier, 0, len(names))
	for _, n := range names {
		host, err := findHost(ctx, sys, n)
		if err != nil {
			return nil, err
		}
		refs = append(refs, host)
	}
	return refs, nil
}

var cgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List consistency groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			return listTable(ctx, sys.ConsistencyGroups(), cgListFields...)
		})
	},
}

var cgCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a consistency group",
	Long: `Create a consistency group, optionally moving existing LUNs into it
and granting hosts access.

Example:
  arrayops cg create db --lun db-data --lun db-log --host db01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			luns, err := lunRefs(ctx, sys, cgLUNs)
			if err != nil {
				return err
			}
			hosts, err := hostRefs(ctx, sys, cgHosts)
			if err != nil {
				return err
			}
			cg, err := sys.CreateConsistencyGroup(ctx, unity.CGCreateOptions{
				Name:        args[0],
				Description: cgDescription,
				LUNs:        luns,
				Hosts:       hosts,
			})
			if err != nil {
				return fmt.Errorf("failed to create consistency group: %w", err)
			}
			fmt.Printf("%s Consistency group %s created (%s)\n", okMark, args[0], cg.ID())
			return nil
		})
	},
}

var cgDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a consistency group and its LUNs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			cg, err := cgByName(ctx, sys, args[0])
			if err != nil {
				return err
			}
			if err := cg.Delete(ctx); err != nil {
				return fmt.Errorf("failed to delete consistency group: %w", err)
			}
			fmt.Printf("%s Consistency group %s deleted\n", okMark, args[0])
			return nil
		})
	},
}

var cgRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a consistency group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			cg, err := cgByName(ctx, sys, args[0])
			if err != nil {
				return err
			}
			if err := cg.Rename(ctx, args[1]); err != nil {
				return err
			}
			fmt.Printf("%s Consistency group %s renamed to %s\n", okMark, args[0], args[1])
			return nil
		})
	},
}

// cgMembershipCmd builds the add-lun, remove-lun and replace-lun commands.
func cgMembershipCmd(use, short, verb string, op func(*unity.ConsistencyGroup, context.Context, ...rest.Identifier) (*rest.Response, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <group> <lun>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUnity(func(ctx context.Context, sys *unity.System) error {
				cg, err := cgByName(ctx, sys, args[0])
				if err != nil {
					return err
				}
				luns, err := lunRefs(ctx, sys, args[1:])
				if err != nil {
					return err
				}
				if _, err := op(cg, ctx, luns...); err != nil {
					return fmt.Errorf("failed to %s: %w", use, err)
				}
				fmt.Printf("%s %d LUN(s) %s %s\n", okMark, len(luns), verb, args[0])
				return nil
			})
		},
	}
}

var cgAddLUNCmd = cgMembershipCmd("add-lun", "Add LUNs to a consistency group", "added to",
	(*unity.ConsistencyGroup).AddLUN)

var cgRemoveLUNCmd = cgMembershipCmd("remove-lun", "Remove LUNs from a consistency group", "removed from",
	(*unity.ConsistencyGroup).RemoveLUN)

var cgReplaceLUNCmd = cgMembershipCmd("replace-lun", "Make the given LUNs the exact membership", "now in",
	(*unity.ConsistencyGroup).ReplaceLUN)

var cgUpdateLUNCmd = &cobra.Command{
	Use:   "update-lun <group>",
	Short: "Add and remove LUNs in one request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			cg, err := cgByName(ctx, sys, args[0])
			if err != nil {
				return err
			}
			add, err := lunRefs(ctx, sys, cgAddLUNs)
			if err != nil {
				return err
			}
			remove, err := lunRefs(ctx, sys, cgRemoveLUNs)
			if err != nil {
				return err
			}
			if _, err := cg.UpdateLUN(ctx, add, remove); err != nil {
				return fmt.Errorf("failed to update consistency group: %w", err)
			}
			fmt.Printf("%s Consistency group %s updated\n", okMark, args[0])
			return nil
		})
	},
}

var cgSetHostsCmd = &cobra.Command{
	Use:   "set-host-access <group> [host]...",
	Short: "Replace the hosts with access to the group",
	Long: `Replace the hosts with access to every LUN of the group. With no hosts,
access is removed from all of them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			cg, err := cgByName(ctx, sys, args[0])
			if err != nil {
				return err
			}
			hosts, err := hostRefs(ctx, sys, args[1:])
			if err != nil {
				return err
			}
			if _, err := cg.SetHostAccess(ctx, hosts...); err != nil {
				return fmt.Errorf("failed to set host access: %w", err)
			}
			fmt.Printf("%s Consistency group %s now accessible by %d host(s)\n", okMark, args[0], len(hosts))
			return nil
		})
	},
}
