package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/layout"
	"github.com/yesC48/CyberIO/internal/sim/tuning"
	"github.com/yesC48/CyberIO/internal/sim/world"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check catalogs, tuning and an optional layout without starting the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			configDir := v.GetString("configs")

			cats, err := catalogs.Load(configDir)
			if err != nil {
				return fmt.Errorf("catalogs: %w", err)
			}
			fmt.Fprintf(out, "catalogs ok: %d blocks, %d items, digest %s\n", len(cats.Blocks.Palette), len(cats.Items.Palette), cats.Digest())

			tp := v.GetString("tuning")
			if tp == "" {
				tp = filepath.Join(configDir, "tuning.yaml")
			}
			tune, err := tuning.Load(tp)
			if err != nil {
				return fmt.Errorf("tuning: %w", err)
			}
			fmt.Fprintf(out, "tuning ok: %d Hz, snapshot every %d ticks\n", tune.TickRateHz, tune.SnapshotEveryTicks)

			lp := v.GetString("layout")
			if lp == "" {
				return nil
			}
			return validateLayout(out, lp, cats, tune)
		},
	}
	cmd.Flags().String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	cmd.Flags().String("layout", "", "layout YAML to check")
	return cmd
}

// validateLayout applies the layout to a scratch world so command-level
// rejections (range, sides, capacity) surface too, not just schema errors.
func validateLayout(out io.Writer, path string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	l, err := layout.Load(path)
	if err != nil {
		return err
	}
	w, err := world.New(world.WorldConfig{ID: "validate", Width: l.Width, Height: l.Height, Tuning: tune}, cats)
	if err != nil {
		return err
	}
	if err := w.ApplyLayout(l); err != nil {
		return fmt.Errorf("layout %s: %w", path, err)
	}
	counts := map[string]int{}
	for _, b := range l.Buildings {
		counts[b.Block]++
	}
	fmt.Fprintf(out, "layout ok: %q %dx%d, %d networks\n", l.Name, l.Width, l.Height, w.Graph().Registry().Len())
	for _, k := range sortedKeys(counts) {
		fmt.Fprintf(out, "  %-16s %d\n", k, counts[k])
	}
	return nil
}
