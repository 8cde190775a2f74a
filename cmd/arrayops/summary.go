package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jbweber/arrayops/internal/resource"
	"github.com/jbweber/arrayops/internal/unity"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show object counts and pool capacity of the array",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUnity(func(ctx context.Context, sys *unity.System) error {
			counts, pools, err := collectSummary(ctx, sys)
			if err != nil {
				return err
			}
			if outputFormat != "table" {
				if err := printTable(counts); err != nil {
					return err
				}
				return printTable(pools)
			}

			fmt.Printf("Array software %s\n\n", sys.Version())
			for _, row := range counts.Rows {
				fmt.Printf("  %-22s %s\n", row[0]+":", row[1])
			}
			fmt.Println()
			return printTable(pools)
		})
	},
}

// collectSummary counts the main object kinds and reads pool capacity,
// one request per kind, in parallel.
func collectSummary(ctx context.Context, sys *unity.System) (*resource.Table, *resource.Table, error) {
	kinds := []struct {
		name string
		len  func(context.Context) (int, error)
	}{
		{"LUNs", sys.LUNs().Len},
		{"Hosts", sys.Hosts().Len},
		{"Consistency groups", sys.ConsistencyGroups().Len},
		{"Snapshots", sys.Snaps().Len},
		{"Replication sessions", sys.ReplicationSessions().Len},
		{"Remote systems", sys.RemoteSystems().Len},
	}
	n := make([]int, len(kinds))

	var pools *resource.Table
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, k := range kinds {
		g.Go(func() error {
			c, err := k.len(gctx)
			if err != nil {
				return fmt.Errorf("failed to count %s: %w", k.name, err)
			}
			n[i] = c
			return nil
		})
	}
	g.Go(func() error {
		t, err := sys.Pools().Table(gctx, "name", "sizeTotal", "sizeUsed", "sizeFree")
		if err != nil {
			return fmt.Errorf("failed to read pools: %w", err)
		}
		pools = humanizePools(t)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	counts := &resource.Table{Kind: "summary", Columns: []string{"kind", "count"}}
	for i, k := range kinds {
		counts.Rows = append(counts.Rows, []string{k.name, fmt.Sprint(n[i])})
	}
	return counts, pools, nil
}

// humanizePools renders the byte columns of a pool table in IEC units and
// adds a percent used column.
func humanizePools(t *resource.Table) *resource.Table {
	out := &resource.Table{Kind: t.Kind, Columns: []string{"name", "total", "used", "free", "used%"}}
	for _, row := range t.Rows {
		total, _ := strconv.ParseUint(row[1], 10, 64)
		used, _ := strconv.ParseUint(row[2], 10, 64)
		free, _ := strconv.ParseUint(row[3], 10, 64)
		pct := "-"
		if total > 0 {
			pct = fmt.Sprintf("%.1f%%", float64(used)*100/float64(total))
		}
		out.Rows = append(out.Rows, []string{
			row[0], humanize.IBytes(total), humanize.IBytes(used), humanize.IBytes(free), pct,
		})
	}
	return out
}
