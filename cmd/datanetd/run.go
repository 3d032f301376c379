package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"

	"github.com/yesC48/CyberIO/internal/observability"
	"github.com/yesC48/CyberIO/internal/persistence/archive"
	"github.com/yesC48/CyberIO/internal/persistence/indexdb"
	persistlog "github.com/yesC48/CyberIO/internal/persistence/log"
	"github.com/yesC48/CyberIO/internal/persistence/snapshot"
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/datanet"
	"github.com/yesC48/CyberIO/internal/sim/layout"
	"github.com/yesC48/CyberIO/internal/sim/tuning"
	"github.com/yesC48/CyberIO/internal/sim/world"
	"github.com/yesC48/CyberIO/internal/transport/observer"
	"github.com/yesC48/CyberIO/internal/transport/ws"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation and serve observers, commands and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runDaemon(cfg, newLogger())
		},
	}
	f := cmd.Flags()
	f.String("addr", "127.0.0.1:8080", "http listen address")
	f.String("world", "world_1", "world id")
	f.String("data", "./data", "runtime data directory")
	f.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	f.String("layout", "", "layout YAML applied to a fresh world")
	f.String("schemas", "./schemas", "directory holding command.schema.json (optional)")
	f.Int("width", 64, "fresh world width when no layout is given")
	f.Int("height", 64, "fresh world height when no layout is given")
	f.String("snapshot", "", "path to snapshot to load (optional)")
	f.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when --snapshot is empty)")
	f.Bool("disable_db", false, "disable the sqlite index (tick/audit + catalogs + snapshot metadata)")
	f.Bool("enable_admin", true, "serve loopback-only admin endpoints")
	f.Int("keep_snapshots", 10, "newest snapshots kept on disk (0 keeps all)")
	f.Uint64("archive_every", 0, "copy snapshots at multiples of this tick into archives/ (0 disables)")
	f.Bool("tracing.enabled", false, "export a span per world step")
	f.String("tracing.exporter", "stdout", "trace exporter (stdout|none)")
	f.Float64("tracing.sample_ratio", 1.0, "trace sample ratio")
	return cmd
}

func runDaemon(cfg Config, logger *log.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "datanetd",
		Exporter:    cfg.Tracing.Exporter,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	tune, err := loadTuning(cfg, logger)
	if err != nil {
		return err
	}

	worldDir := filepath.Join(cfg.DataDir, "worlds", cfg.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return err
	}

	// Optional: read-model index (does not affect sim determinism).
	var idx *indexdb.SQLiteIndex
	if !cfg.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cfg.ConfigDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	w, err := buildWorld(cfg, worldDir, cats, tune, logger)
	if err != nil {
		return err
	}
	w.SetLogger(logger)
	w.SetRunID(uuid.NewString())

	collector, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	w.SetCollector(collector)

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	if idx != nil {
		w.SetTickLogger(persistlog.TickFanout{tickLog, idx})
		w.SetAuditLogger(persistlog.AuditFanout{auditLog, idx})
	} else {
		w.SetTickLogger(tickLog)
		w.SetAuditLogger(auditLog)
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.Path(worldDir, snap.Header.Tick)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				idx.RecordSnapshot(path, snap)
				if dst, ok, err := archive.ArchiveCheckpoint(worldDir, path, snap, cfg.ArchiveEvery); err != nil {
					logger.Printf("snapshot archive: %v", err)
				} else if ok {
					logger.Printf("archived checkpoint tick=%d path=%s", snap.Header.Tick, dst)
				}
				if _, err := archive.PruneSnapshots(worldDir, cfg.KeepSnapshots); err != nil {
					logger.Printf("snapshot prune: %v", err)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", collector.Handler())

	cmdSrv := ws.NewServer(w, logger)
	if schema := loadCommandSchema(cfg.SchemaDir, logger); schema != nil {
		cmdSrv.SetValidator(schema)
	}
	mux.HandleFunc("/v1/ws", cmdSrv.Handler())

	obsSrv := observer.NewServer(w, logger)
	mux.HandleFunc("/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obsSrv.WSHandler())

	if cfg.EnableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/command", cmdSrv.CommandHandler())
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !ws.IsLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			checked, violations, err := w.CheckTopology(ctx2)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID    string              `json:"world_id"`
				Tick       uint64              `json:"tick"`
				Metrics    world.WorldMetrics  `json:"metrics"`
				Index      indexdb.Stats       `json:"index"`
				CheckedAt  uint64              `json:"topology_checked_at"`
				Violations []datanet.Violation `json:"topology_violations"`
			}{
				WorldID:    cfg.WorldID,
				Tick:       w.CurrentTick(),
				Metrics:    w.Metrics(),
				Index:      idx.Stats(),
				CheckedAt:  checked,
				Violations: violations,
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !ws.IsLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			tick, err := w.RequestSnapshot(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		})
	} else {
		logger.Printf("admin endpoints disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s size=%dx%d tick=%d listening on %s", w.ID(), w.Width(), w.Height(), w.CurrentTick(), cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// buildWorld resumes from a snapshot when one is given or found, and
// otherwise creates a fresh world, optionally seeded from a layout.
// loadTuning falls back to defaults only when the file does not exist.
func loadTuning(cfg Config, logger *log.Logger) (tuning.Tuning, error) {
	tp := cfg.TuningPath
	if tp == "" {
		tp = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return tuning.Tuning{}, fmt.Errorf("load tuning: %w", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		return tuning.Defaults(), nil
	}
	return tune, nil
}

func buildWorld(cfg Config, worldDir string, cats *catalogs.Catalogs, tune tuning.Tuning, logger *log.Logger) (*world.World, error) {
	snapshotToLoad := cfg.SnapshotPath
	if snapshotToLoad == "" && cfg.LoadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != cfg.WorldID {
			return nil, fmt.Errorf("snapshot world id mismatch: flag=%s snap=%s", cfg.WorldID, snap.Header.WorldID)
		}
		w, err := world.New(world.WorldConfig{
			ID:                 cfg.WorldID,
			Width:              snap.Width,
			Height:             snap.Height,
			TickRateHz:         snap.TickRate,
			SnapshotEveryTicks: tune.SnapshotEveryTicks,
			Tuning:             tune,
		}, cats)
		if err != nil {
			return nil, fmt.Errorf("world: %w", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			return nil, fmt.Errorf("import snapshot: %w", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
		return w, nil
	}

	width, height := cfg.Width, cfg.Height
	var l *layout.Layout
	if cfg.LayoutPath != "" {
		loaded, err := layout.Load(cfg.LayoutPath)
		if err != nil {
			return nil, err
		}
		l = &loaded
		width, height = l.Width, l.Height
	}
	w, err := world.New(world.WorldConfig{
		ID:                 cfg.WorldID,
		Width:              width,
		Height:             height,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		Tuning:             tune,
	}, cats)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if l != nil {
		if err := w.ApplyLayout(*l); err != nil {
			return nil, fmt.Errorf("apply layout %s: %w", cfg.LayoutPath, err)
		}
		logger.Printf("applied layout %q (%d buildings)", l.Name, len(l.Buildings))
	}
	return w, nil
}

func loadCommandSchema(dir string, logger *log.Logger) *jsonschema.Schema {
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, "command.schema.json")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	s, err := jsonschema.Compile(path)
	if err != nil {
		logger.Printf("command schema: %v (validation disabled)", err)
		return nil
	}
	return s
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
