package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int     `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks"`
	MaxAttempts        int     `yaml:"max_attempts"`
	TransferSpeed      float64 `yaml:"transfer_speed"`

	Network     NetworkTuning     `yaml:"network"`
	Unloader    UnloaderTuning    `yaml:"unloader"`
	Distributor DistributorTuning `yaml:"distributor"`
	Consumer    ConsumerTuning    `yaml:"consumer"`
}

type NetworkTuning struct {
	LinkRange    float64 `yaml:"link_range"`
	DataCapacity int     `yaml:"data_capacity"`
}

type UnloaderTuning struct {
	Capacity           int     `yaml:"capacity"`
	MaxConnections     int     `yaml:"max_connections"`
	TrackerSize        int     `yaml:"tracker_size"`
	MaxRange           float64 `yaml:"max_range"`
	UnloadSpeed        float64 `yaml:"unload_speed"`
	PowerBase          float64 `yaml:"power_base"`
	PowerPerItem       float64 `yaml:"power_per_item"`
	PowerPerConnection float64 `yaml:"power_per_connection"`
}

type DistributorTuning struct {
	Capacity          int     `yaml:"capacity"`
	MaxConnections    int     `yaml:"max_connections"`
	DynamicEveryTicks float64 `yaml:"dynamic_every_ticks"`
	PowerBase         float64 `yaml:"power_base"`
	PowerPerItem      float64 `yaml:"power_per_item"`
}

type ConsumerTuning struct {
	Capacity   int `yaml:"capacity"`
	CraftTicks int `yaml:"craft_ticks"`
}

// Load reads tuning.yaml over the defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         5,
		SnapshotEveryTicks: 3000,
		MaxAttempts:        8,
		TransferSpeed:      0.25,
		Network: NetworkTuning{
			LinkRange:    10,
			DataCapacity: 10,
		},
		Unloader: UnloaderTuning{
			Capacity:           50,
			MaxConnections:     5,
			TrackerSize:        5,
			MaxRange:           -1,
			UnloadSpeed:        1,
			PowerBase:          1.5,
			PowerPerItem:       2.5,
			PowerPerConnection: 2,
		},
		Distributor: DistributorTuning{
			Capacity:          50,
			MaxConnections:    -1,
			DynamicEveryTicks: 1,
			PowerBase:         3,
			PowerPerItem:      2.5,
		},
		Consumer: ConsumerTuning{
			Capacity:   10,
			CraftTicks: 20,
		},
	}
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = d.MaxAttempts
	}
	if t.TransferSpeed <= 0 {
		t.TransferSpeed = d.TransferSpeed
	}
	if t.Unloader.TrackerSize == 0 {
		t.Unloader.TrackerSize = t.Unloader.MaxConnections
	}
	if t.Distributor.DynamicEveryTicks <= 0 {
		t.Distributor.DynamicEveryTicks = d.Distributor.DynamicEveryTicks
	}
	if t.Consumer.CraftTicks <= 0 {
		t.Consumer.CraftTicks = d.Consumer.CraftTicks
	}
}

func (t Tuning) Validate() error {
	if t.Network.LinkRange <= 0 {
		return fmt.Errorf("network.link_range must be > 0")
	}
	if t.Network.DataCapacity <= 0 {
		return fmt.Errorf("network.data_capacity must be > 0")
	}
	if t.Unloader.Capacity <= 0 || t.Distributor.Capacity <= 0 || t.Consumer.Capacity <= 0 {
		return fmt.Errorf("capacities must be > 0")
	}
	if t.Unloader.MaxConnections == 0 {
		return fmt.Errorf("unloader.max_connections must be non-zero")
	}
	if t.Unloader.UnloadSpeed < 0 {
		return fmt.Errorf("unloader.unload_speed must be >= 0")
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	}
	return nil
}
