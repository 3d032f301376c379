package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yesC48/CyberIO/internal/persistence/snapshot"
)

type CheckpointMeta struct {
	WorldID       string `json:"world_id"`
	Tick          uint64 `json:"tick"`
	RunID         string `json:"run_id,omitempty"`
	Snapshot      string `json:"snapshot"`
	Buildings     int    `json:"buildings"`
	CatalogDigest string `json:"catalog_digest"`
	CreatedAt     string `json:"created_at"`
}

// ArchiveCheckpoint copies a snapshot into `worldDir/archives/tick_<N>/` when its
// tick is a positive multiple of every. Archived checkpoints are never pruned.
func ArchiveCheckpoint(worldDir, snapshotPath string, snap snapshot.SnapshotV1, every uint64) (archivedPath string, archived bool, err error) {
	tick := snap.Header.Tick
	if every == 0 || tick == 0 || tick%every != 0 {
		return "", false, nil
	}

	archiveDir := filepath.Join(worldDir, "archives", fmt.Sprintf("tick_%010d", tick))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := CheckpointMeta{
		WorldID:       snap.Header.WorldID,
		Tick:          tick,
		RunID:         snap.Header.RunID,
		Snapshot:      filepath.Base(dst),
		Buildings:     len(snap.Buildings),
		CatalogDigest: snap.CatalogDigest,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// PruneSnapshots keeps the newest keep snapshots in `worldDir/snapshots` and
// removes the rest. keep <= 0 disables pruning.
func PruneSnapshots(worldDir string, keep int) (removed []string, err error) {
	if keep <= 0 {
		return nil, nil
	}
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type entry struct {
		tick uint64
		name string
	}
	var snaps []entry
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, entry{tick: tick, name: e.Name()})
	}
	if len(snaps) <= keep {
		return nil, nil
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].tick < snaps[j].tick })

	for _, s := range snaps[:len(snaps)-keep] {
		p := filepath.Join(dir, s.name)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
