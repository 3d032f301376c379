package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/yesC48/CyberIO/internal/sim/encoding"
	"github.com/yesC48/CyberIO/internal/sim/model"
)

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

const (
	RoleNode        = "node"
	RoleSender      = "sender"
	RoleDistributor = "distributor"
	RoleStorage     = "storage"
	RoleConsumer    = "consumer"
)

type BlockDef struct {
	ID         string           `json:"id"`
	Roles      []string         `json:"roles"`
	Capacity   int              `json:"capacity,omitempty"`
	LinkRange  float64          `json:"link_range,omitempty"`
	Sides      []string         `json:"sides,omitempty"`
	Unloadable bool             `json:"unloadable,omitempty"`
	Consume    *ConsumeDef      `json:"consume,omitempty"`
	Output     *model.ItemStack `json:"output,omitempty"`
}

func (d BlockDef) Has(role string) bool {
	for _, r := range d.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ConsumeDef is a consumer's declaration: "items" lists fixed inputs,
// "dynamic" rotates through phases, "filter" takes every item carrying one
// of the tags.
type ConsumeDef struct {
	Kind   string              `json:"kind"`
	Items  []model.ItemStack   `json:"items,omitempty"`
	Phases [][]model.ItemStack `json:"phases,omitempty"`
	Tags   []string            `json:"tags,omitempty"`
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

func (d ItemDef) Tagged(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks, &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

// Digest combines both catalog digests; snapshots record it so a restore
// can detect catalog drift.
func (c *Catalogs) Digest() string {
	return sha256Hex([]byte(c.Blocks.DefsDigest + ":" + c.Items.DefsDigest))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog, items *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if err := validateBlock(d, items); err != nil {
			return fmt.Errorf("blocks.json: %s: %w", d.ID, err)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// AIR is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func validateBlock(d BlockDef, items *ItemCatalog) error {
	for _, r := range d.Roles {
		switch r {
		case RoleNode, RoleSender, RoleDistributor, RoleStorage, RoleConsumer:
		default:
			return fmt.Errorf("unknown role %q", r)
		}
	}
	if d.Has(RoleConsumer) && d.Consume == nil {
		return fmt.Errorf("consumer without consume")
	}
	if d.Has(RoleSender) && d.Has(RoleDistributor) {
		return fmt.Errorf("sender and distributor roles are exclusive")
	}
	if c := d.Consume; c != nil {
		switch c.Kind {
		case "items":
			if len(c.Items) == 0 {
				return fmt.Errorf("items consume needs items")
			}
		case "dynamic":
			if len(c.Phases) == 0 {
				return fmt.Errorf("dynamic consume needs phases")
			}
		case "filter":
			if len(c.Tags) == 0 {
				return fmt.Errorf("filter consume needs tags")
			}
		default:
			return fmt.Errorf("unknown consume kind %q", c.Kind)
		}
		for _, st := range c.Items {
			if _, ok := items.Defs[st.Item]; !ok {
				return fmt.Errorf("unknown item %q", st.Item)
			}
		}
		for _, phase := range c.Phases {
			for _, st := range phase {
				if _, ok := items.Defs[st.Item]; !ok {
					return fmt.Errorf("unknown item %q", st.Item)
				}
			}
		}
	}
	if d.Output != nil {
		if _, ok := items.Defs[d.Output.Item]; !ok {
			return fmt.Errorf("unknown output item %q", d.Output.Item)
		}
	}
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if len(d.ID) > encoding.MaxStringLen {
			return fmt.Errorf("items.json: id of %d bytes exceeds %d", len(d.ID), encoding.MaxStringLen)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
