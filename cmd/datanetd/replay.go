package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	persistlog "github.com/yesC48/CyberIO/internal/persistence/log"
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/world"
)

var errStopReplay = errors.New("stop replay")

type replayOptions struct {
	TicksDir string
	FromTick uint64
	ToTick   uint64
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a tick log from a snapshot (or a fresh layout) and verify every digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			cfg.LoadLatest = false
			logger := newLogger()
			cats, err := catalogs.Load(cfg.ConfigDir)
			if err != nil {
				return fmt.Errorf("load catalogs: %w", err)
			}
			tune, err := loadTuning(cfg, logger)
			if err != nil {
				return err
			}
			w, err := buildWorld(cfg, "", cats, tune, logger)
			if err != nil {
				return err
			}
			opts := replayOptions{
				TicksDir: v.GetString("ticks"),
				FromTick: v.GetUint64("from_tick"),
				ToTick:   v.GetUint64("to_tick"),
			}
			if opts.TicksDir == "" {
				opts.TicksDir = filepath.Join(cfg.DataDir, "worlds", cfg.WorldID, "ticks")
			}
			return replay(cmd.OutOrStdout(), w, opts)
		},
	}
	f := cmd.Flags()
	f.String("world", "world_1", "world id (must match the snapshot)")
	f.String("snapshot", "", "path to .snap.zst to start from")
	f.String("layout", "", "layout applied to a fresh world when no snapshot is given")
	f.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	f.String("data", "./data", "runtime data directory")
	f.String("ticks", "", "directory containing ticks-*.jsonl.zst (default: <data>/worlds/<world>/ticks)")
	f.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
	f.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	return cmd
}

// replay steps w through the logged ticks. Ticks before the world's current
// tick are skipped; digests are compared from FromTick on.
func replay(out io.Writer, w *world.World, opts replayOptions) error {
	startTick := w.CurrentTick()
	verifyFrom := opts.FromTick
	if verifyFrom < startTick {
		verifyFrom = startTick
	}

	files, err := listTickFiles(opts.TicksDir)
	if err != nil {
		return fmt.Errorf("list ticks: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no tick files found in %s", opts.TicksDir)
	}

	var checked uint64
	for _, path := range files {
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var entry world.TickLogEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if entry.Tick < startTick {
				return nil
			}
			if opts.ToTick != 0 && entry.Tick > opts.ToTick {
				return errStopReplay
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick gap: want=%d got=%d (file=%s)", w.CurrentTick(), entry.Tick, filepath.Base(path))
			}

			cmds := make([]world.CommandRequest, 0, len(entry.Commands))
			for _, c := range entry.Commands {
				cmds = append(cmds, world.CommandRequest{Actor: c.Actor, Cmd: c.Cmd})
			}
			tick, got := w.StepOnce(cmds)
			if tick != entry.Tick {
				return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
			}
			if tick >= verifyFrom {
				checked++
				if got != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, got, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errStopReplay) {
			break
		}
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
	}
	fmt.Fprintf(out, "replay ok: checked=%d ticks (from tick=%d)\n", checked, startTick)
	return nil
}

func listTickFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}
