package main

import (
	"bytes"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	persistlog "github.com/yesC48/CyberIO/internal/persistence/log"
	"github.com/yesC48/CyberIO/internal/protocol"
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/tuning"
	"github.com/yesC48/CyberIO/internal/sim/world"
)

func demoWorld(t *testing.T, cats *catalogs.Catalogs, withLayout bool) *world.World {
	t.Helper()
	cfg := Config{WorldID: "demo", Width: 16, Height: 12}
	if withLayout {
		cfg.LayoutPath = filepath.Join(configDir, "layouts", "demo.yaml")
	}
	w, err := buildWorld(cfg, "", cats, tuning.Defaults(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("build world: %v", err)
	}
	return w
}

func recordTicks(t *testing.T, cats *catalogs.Catalogs, n int) string {
	t.Helper()
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	w := demoWorld(t, cats, true)
	w.SetTickLogger(tl)

	add := protocol.CommandMsg{Op: protocol.OpAddItems, At: [2]int{1, 9}, Item: "copper", Count: 4}
	to := [2]int{8, 9}
	dispatch := protocol.CommandMsg{Op: protocol.OpDispatch, At: [2]int{1, 9}, To: &to, Item: "copper", Count: 2}
	for i := 0; i < n; i++ {
		var cmds []world.CommandRequest
		switch i {
		case 1:
			cmds = append(cmds, world.CommandRequest{Actor: "op", Cmd: add})
		case 3:
			cmds = append(cmds, world.CommandRequest{Actor: "op", Cmd: dispatch})
		}
		w.StepOnce(cmds)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}
	return filepath.Join(dir, "ticks")
}

func TestReplay_VerifiesDigests(t *testing.T) {
	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	ticks := recordTicks(t, cats, 30)

	var out bytes.Buffer
	if err := replay(&out, demoWorld(t, cats, true), replayOptions{TicksDir: ticks}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(out.String(), "checked=30") {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	if err := replay(&out, demoWorld(t, cats, true), replayOptions{TicksDir: ticks, FromTick: 5, ToTick: 9}); err != nil {
		t.Fatalf("bounded replay: %v", err)
	}
	if !strings.Contains(out.String(), "checked=5") {
		t.Fatalf("bounded output = %q", out.String())
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	ticks := recordTicks(t, cats, 5)

	// Same size, but without the layout the first digest already differs.
	err = replay(io.Discard, demoWorld(t, cats, false), replayOptions{TicksDir: ticks})
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 0") {
		t.Fatalf("err = %v", err)
	}

	if err := replay(io.Discard, demoWorld(t, cats, true), replayOptions{TicksDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for empty ticks dir")
	}
}
