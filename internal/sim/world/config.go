package world

import "github.com/yesC48/CyberIO/internal/sim/tuning"

type WorldConfig struct {
	ID         string
	Width      int
	Height     int
	TickRateHz int

	// SnapshotEveryTicks is the cadence of snapshots pushed to the sink;
	// zero disables them.
	SnapshotEveryTicks int

	Tuning tuning.Tuning
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "default"
	}
	if c.Width <= 0 {
		c.Width = 32
	}
	if c.Height <= 0 {
		c.Height = 32
	}
	if c.Tuning.TickRateHz == 0 && c.Tuning.Network.LinkRange == 0 {
		c.Tuning = tuning.Defaults()
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = c.Tuning.TickRateHz
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.SnapshotEveryTicks < 0 {
		c.SnapshotEveryTicks = 0
	}
}
