package worldtest

import "github.com/yesC48/CyberIO/internal/protocol"

func Cmd(op string, x, y int) protocol.CommandMsg {
	return protocol.CommandMsg{
		Type:            protocol.TypeCommand,
		ProtocolVersion: protocol.Version,
		Op:              op,
		At:              [2]int{x, y},
	}
}

func Place(block string, x, y int) protocol.CommandMsg {
	c := Cmd(protocol.OpPlace, x, y)
	c.Block = block
	return c
}

func Remove(x, y int) protocol.CommandMsg { return Cmd(protocol.OpRemove, x, y) }

func Link(x, y int, side string, tx, ty int) protocol.CommandMsg {
	c := Cmd(protocol.OpLink, x, y)
	c.Side = side
	c.To = &[2]int{tx, ty}
	return c
}

func Unlink(x, y int, side string) protocol.CommandMsg {
	c := Cmd(protocol.OpUnlink, x, y)
	c.Side = side
	return c
}

func Connect(x, y, tx, ty int) protocol.CommandMsg {
	c := Cmd(protocol.OpConnect, x, y)
	c.To = &[2]int{tx, ty}
	return c
}

func AddItems(x, y int, item string, n int) protocol.CommandMsg {
	c := Cmd(protocol.OpAddItems, x, y)
	c.Item = item
	c.Count = n
	return c
}

func Dispatch(x, y, tx, ty int, item string, n int) protocol.CommandMsg {
	c := Cmd(protocol.OpDispatch, x, y)
	c.To = &[2]int{tx, ty}
	c.Item = item
	c.Count = n
	return c
}

func SetPower(x, y int, v float64) protocol.CommandMsg {
	c := Cmd(protocol.OpSetPower, x, y)
	c.Value = v
	return c
}
