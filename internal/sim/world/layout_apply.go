package world

import (
	"fmt"

	"github.com/yesC48/CyberIO/internal/sim/layout"
)

// ApplyLayout validates l and replays it through the command path at the
// current tick. Call it before Run or from the loop goroutine.
func (w *World) ApplyLayout(l layout.Layout) error {
	if l.Width != w.cfg.Width || l.Height != w.cfg.Height {
		return fmt.Errorf("layout %q: size %dx%d does not match world %dx%d", l.Name, l.Width, l.Height, w.cfg.Width, w.cfg.Height)
	}
	if err := l.Validate(w.catalogs); err != nil {
		return err
	}
	nowTick := w.tick.Load()
	for _, cmd := range l.Commands() {
		res := w.applyCommand("layout", cmd, nowTick)
		if !res.OK {
			return fmt.Errorf("layout %q: %s %v: %s %s", l.Name, cmd.Op, cmd.At, res.Code, res.Message)
		}
	}
	return nil
}
