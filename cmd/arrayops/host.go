package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbweber/arrayops/internal/naming"
	"github.com/jbweber/arrayops/internal/unity"
)

var hostListFields = []string{"id", "name", "type", "osType", "health"}

var (
	hostDescription string
	hostOSType      string
	hostIQNs        []string
	hostWWNs        []string
	hostIPs         []string
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage initiator hosts",
}

func init() {
	hostCreateCmd.Flags().StringVar(&hostDescription, "description", "", "host description")
	hostCreateCmd.Flags().StringVar(&hostOSType, "os-type", "", "host operating system")

	hostSyncCmd.Flags().StringSliceVar(&hostIQNs, "iqn", nil, "iSCSI initiator (repeatable)")
	hostSyncCmd.Flags().StringSliceVar(&hostWWNs, "wwn", nil, "FC initiator WWN (repeatable)")
	hostSyncCmd.Flags().StringSliceVar(&hostIPs, "ip", nil, "IP address (repeatable)")

	hostCmd.AddCommand(hostListCmd)
	hostCmd.AddCommand(hostShowCmd)
	hostCmd.AddCommand(hostCreateCmd)
	hostCmd.AddCommand(hostSyncCmd)
}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			return listTable(ctx, sys.Hosts(), hostListFields...)
		})
	},
}

var hostShowCmd = &cobra.Command{
	Use:   "show <host>",
	Short: "Show a host and the LUNs attached to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			host, err := findHost(ctx, sys, args[0])
			if err != nil {
				return err
			}
			inits, err := host.InitiatorIDs(ctx)
			if err != nil {
				return err
			}
			ips, err := host.IPList(ctx)
			if err != nil {
				return err
			}
			luns, err := host.HostLUNs(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("ID:         %s\n", host.ID())
			fmt.Printf("Initiators: %s\n", strings.Join(inits, ", "))
			fmt.Printf("Addresses:  %s\n", strings.Join(ips, ", "))
			if len(luns) == 0 {
				fmt.Println("No LUNs attached")
				return nil
			}
			fmt.Println("HLU  LUN")
			for _, l := range luns {
				name := l.LUNName
				if l.SnapID != "" {
					name = "snap " + l.SnapID
				}
				fmt.Printf("%-4d %s\n", l.HLU, name)
			}
			return nil
		})
	},
}

var hostCreateCmd = &cobra.Command{
	Use:   "create <name|address>",
	Short: "Register a host",
	Long: `Register a host. When the argument is an address (optionally with a
/netmask or /prefix) the host is created with an IP port for it, as a
subnet host when a mask is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			var (
				host *unity.Host
				err  error
			)
			if naming.LooksLikeAddress(args[0]) {
				host, err = sys.FindHost(ctx, args[0], true)
			} else {
				host, err = sys.CreateHost(ctx, unity.HostCreateOptions{
					Name:        args[0],
					Description: hostDescription,
					OSType:      hostOSType,
				})
			}
			if err != nil {
				return fmt.Errorf("failed to create host: %w", err)
			}
			fmt.Printf("%s Host %s ready (%s)\n", okMark, args[0], host.ID())
			return nil
		})
	},
}

var hostSyncCmd = &cobra.Command{
	Use:   "sync <host>",
	Short: "Make the host's initiators and IP ports match the given lists",
	Long: `Make the host's initiators match --iqn and --wwn and, when --ip is
given, its IP ports match --ip. Initiators or ports not listed are
removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			host, err := findHost(ctx, sys, args[0])
			if err != nil {
				return err
			}
			n, err := host.UpdateInitiators(ctx, hostIQNs, hostWWNs)
			if err != nil {
				return fmt.Errorf("failed to update initiators: %w", err)
			}
			fmt.Printf("%s %d initiator(s) changed on %s\n", okMark, n, args[0])

			if !cmd.Flags().Changed("ip") {
				return nil
			}
			n, err = host.UpdateIPPorts(ctx, hostIPs)
			if err != nil {
				return fmt.Errorf("failed to update ip ports: %w", err)
			}
			fmt.Printf("%s %d IP port(s) changed on %s\n", okMark, n, args[0])
			return nil
		})
	},
}
