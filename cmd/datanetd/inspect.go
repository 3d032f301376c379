package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	persistlog "github.com/yesC48/CyberIO/internal/persistence/log"
	"github.com/yesC48/CyberIO/internal/persistence/snapshot"
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/world"
)

type snapshotSummary struct {
	Path          string         `json:"path"`
	WorldID       string         `json:"world_id"`
	RunID         string         `json:"run_id,omitempty"`
	Tick          uint64         `json:"tick"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	CatalogDigest string         `json:"catalog_digest"`
	Buildings     map[string]int `json:"buildings"`
	Networks      int            `json:"networks"`
	Nodes         int            `json:"nodes"`
	Violations    int            `json:"link_violations"`
	Digest        string         `json:"digest"`
}

type tickLogSummary struct {
	Path      string         `json:"path"`
	Entries   int            `json:"entries"`
	FirstTick uint64         `json:"first_tick"`
	LastTick  uint64         `json:"last_tick"`
	Commands  int            `json:"commands"`
	Rejected  map[string]int `json:"rejected,omitempty"`
	Delivered int            `json:"delivered"`
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <snapshot.snap.zst>",
		Short: "Summarize a snapshot, or a tick log with --ticks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if tl := v.GetString("ticks"); tl != "" {
				s, err := summarizeTickLog(tl)
				if err != nil {
					return err
				}
				return writeSummary(out, s)
			}
			if len(args) != 1 {
				return fmt.Errorf("inspect: need a snapshot path or --ticks")
			}
			cats, err := catalogs.Load(v.GetString("configs"))
			if err != nil {
				return fmt.Errorf("load catalogs: %w", err)
			}
			s, err := summarizeSnapshot(args[0], cats)
			if err != nil {
				return err
			}
			return writeSummary(out, s)
		},
	}
	cmd.Flags().String("ticks", "", "tick log file (.jsonl.zst) to summarize instead of a snapshot")
	return cmd
}

// summarizeSnapshot restores the snapshot into a scratch world so the
// reported networks and digest are the ones a resumed daemon would see.
func summarizeSnapshot(path string, cats *catalogs.Catalogs) (snapshotSummary, error) {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return snapshotSummary{}, fmt.Errorf("read snapshot: %w", err)
	}
	w, err := world.New(world.WorldConfig{ID: snap.Header.WorldID, Width: snap.Width, Height: snap.Height, TickRateHz: snap.TickRate}, cats)
	if err != nil {
		return snapshotSummary{}, err
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return snapshotSummary{}, fmt.Errorf("import snapshot: %w", err)
	}

	s := snapshotSummary{
		Path:          path,
		WorldID:       snap.Header.WorldID,
		RunID:         snap.Header.RunID,
		Tick:          snap.Header.Tick,
		Width:         snap.Width,
		Height:        snap.Height,
		CatalogDigest: snap.CatalogDigest,
		Buildings:     map[string]int{},
		Networks:      w.Graph().Registry().Len(),
		Nodes:         w.Graph().Len(),
		Violations:    len(w.Graph().CheckSymmetry()),
		Digest:        w.StateDigest(snap.Header.Tick),
	}
	for _, b := range snap.Buildings {
		s.Buildings[b.Block]++
	}
	return s, nil
}

func summarizeTickLog(path string) (tickLogSummary, error) {
	s := tickLogSummary{Path: path, Rejected: map[string]int{}}
	err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
		var e world.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("tick log line %d: %w", s.Entries+1, err)
		}
		if s.Entries == 0 {
			s.FirstTick = e.Tick
		}
		s.LastTick = e.Tick
		s.Entries++
		s.Commands += len(e.Commands)
		s.Delivered += e.Transfers.Delivered
		for _, r := range e.Results {
			if !r.OK {
				s.Rejected[r.Code]++
			}
		}
		return nil
	})
	return s, err
}

func writeSummary(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
