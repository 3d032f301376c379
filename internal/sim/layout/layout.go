package layout

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yesC48/CyberIO/internal/protocol"
	"github.com/yesC48/CyberIO/internal/sim/catalogs"
	"github.com/yesC48/CyberIO/internal/sim/datanet"
)

const (
	defaultSize = 32
	maxSize     = 4096
)

// Layout is a starting arrangement of buildings, links and sender
// connections loaded from YAML.
type Layout struct {
	Name        string           `yaml:"name"`
	Width       int              `yaml:"width"`
	Height      int              `yaml:"height"`
	Buildings   []BuildingSpec   `yaml:"buildings"`
	Links       []LinkSpec       `yaml:"links,omitempty"`
	Connections []ConnectionSpec `yaml:"connections,omitempty"`
}

type BuildingSpec struct {
	Block     string         `yaml:"block"`
	At        [2]int         `yaml:"at"`
	Items     map[string]int `yaml:"items,omitempty"`
	Power     *float64       `yaml:"power,omitempty"`
	TimeScale *float64       `yaml:"time_scale,omitempty"`
	Phase     *int           `yaml:"phase,omitempty"`
}

type LinkSpec struct {
	From [2]int `yaml:"from"`
	Side string `yaml:"side"`
	To   [2]int `yaml:"to"`
}

type ConnectionSpec struct {
	Sender   [2]int `yaml:"sender"`
	Receiver [2]int `yaml:"receiver"`
}

func Load(path string) (Layout, error) {
	var l Layout
	if strings.TrimSpace(path) == "" {
		l.Normalize()
		return l, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(b, &l); err != nil {
		return l, fmt.Errorf("layout %s: %w", path, err)
	}
	l.Normalize()
	return l, nil
}

func (l *Layout) Normalize() {
	if l == nil {
		return
	}
	if l.Width <= 0 {
		l.Width = defaultSize
	}
	if l.Height <= 0 {
		l.Height = defaultSize
	}
	for i := range l.Buildings {
		l.Buildings[i].Block = strings.ToUpper(strings.TrimSpace(l.Buildings[i].Block))
	}
	for i := range l.Links {
		l.Links[i].Side = strings.ToUpper(strings.TrimSpace(l.Links[i].Side))
	}
}

func (l Layout) InBounds(at [2]int) bool {
	return at[0] >= 0 && at[1] >= 0 && at[0] < l.Width && at[1] < l.Height
}

// Validate checks the layout against the catalogs without building a world.
func (l Layout) Validate(cats *catalogs.Catalogs) error {
	if l.Width > maxSize || l.Height > maxSize {
		return fmt.Errorf("grid %dx%d exceeds %d", l.Width, l.Height, maxSize)
	}
	blocks := map[[2]int]catalogs.BlockDef{}
	for i, b := range l.Buildings {
		def, ok := cats.Blocks.Defs[b.Block]
		if !ok || b.Block == "AIR" {
			return fmt.Errorf("buildings[%d]: unknown block %q", i, b.Block)
		}
		if !l.InBounds(b.At) {
			return fmt.Errorf("buildings[%d]: %v out of bounds", i, b.At)
		}
		if _, dup := blocks[b.At]; dup {
			return fmt.Errorf("buildings[%d]: %v already occupied", i, b.At)
		}
		for item, n := range b.Items {
			if _, ok := cats.Items.Defs[item]; !ok {
				return fmt.Errorf("buildings[%d]: unknown item %q", i, item)
			}
			if n <= 0 {
				return fmt.Errorf("buildings[%d]: item %q count must be > 0", i, item)
			}
		}
		if b.Power != nil && (*b.Power < 0 || *b.Power > 1) {
			return fmt.Errorf("buildings[%d]: power must be within [0,1]", i)
		}
		if b.TimeScale != nil && *b.TimeScale < 0 {
			return fmt.Errorf("buildings[%d]: time_scale must be >= 0", i)
		}
		blocks[b.At] = def
	}
	for i, ln := range l.Links {
		if _, ok := datanet.ParseSide(ln.Side); !ok {
			return fmt.Errorf("links[%d]: bad side %q", i, ln.Side)
		}
		for _, at := range [][2]int{ln.From, ln.To} {
			def, ok := blocks[at]
			if !ok || !def.Has(catalogs.RoleNode) {
				return fmt.Errorf("links[%d]: no network node at %v", i, at)
			}
		}
	}
	for i, c := range l.Connections {
		if def, ok := blocks[c.Sender]; !ok || !def.Has(catalogs.RoleSender) {
			return fmt.Errorf("connections[%d]: no sender at %v", i, c.Sender)
		}
		if def, ok := blocks[c.Receiver]; !ok || !def.Has(catalogs.RoleDistributor) {
			return fmt.Errorf("connections[%d]: no receiver at %v", i, c.Receiver)
		}
	}
	return nil
}

// Commands expands the layout into the command sequence that builds it:
// placements first, then stock and settings, then links and connections.
func (l Layout) Commands() []protocol.CommandMsg {
	var out []protocol.CommandMsg
	cmd := func(op string, at [2]int) protocol.CommandMsg {
		return protocol.CommandMsg{
			Type:            protocol.TypeCommand,
			ProtocolVersion: protocol.Version,
			CommandID:       fmt.Sprintf("layout-%d", len(out)+1),
			Op:              op,
			At:              at,
		}
	}
	for _, b := range l.Buildings {
		c := cmd(protocol.OpPlace, b.At)
		c.Block = b.Block
		out = append(out, c)
	}
	for _, b := range l.Buildings {
		items := make([]string, 0, len(b.Items))
		for item := range b.Items {
			items = append(items, item)
		}
		sort.Strings(items)
		for _, item := range items {
			c := cmd(protocol.OpAddItems, b.At)
			c.Item = item
			c.Count = b.Items[item]
			out = append(out, c)
		}
		if b.Power != nil {
			c := cmd(protocol.OpSetPower, b.At)
			c.Value = *b.Power
			out = append(out, c)
		}
		if b.TimeScale != nil {
			c := cmd(protocol.OpSetTimeScale, b.At)
			c.Value = *b.TimeScale
			out = append(out, c)
		}
		if b.Phase != nil {
			c := cmd(protocol.OpSetDynamic, b.At)
			c.Phase = *b.Phase
			out = append(out, c)
		}
	}
	for _, ln := range l.Links {
		c := cmd(protocol.OpLink, ln.From)
		to := ln.To
		c.To = &to
		c.Side = ln.Side
		out = append(out, c)
	}
	for _, cn := range l.Connections {
		c := cmd(protocol.OpConnect, cn.Sender)
		to := cn.Receiver
		c.To = &to
		out = append(out, c)
	}
	return out
}
