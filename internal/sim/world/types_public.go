package world

import "github.com/yesC48/CyberIO/internal/protocol"

// CommandRequest carries one operator command into the world loop. Resp,
// when set, receives the result after the tick that applied it.
type CommandRequest struct {
	Actor string
	Cmd   protocol.CommandMsg
	Resp  chan protocol.CommandResultMsg
}

type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick      uint64                      `json:"tick"`
	Commands  []RecordedCommand           `json:"commands,omitempty"`
	Transfers protocol.TransferCounts     `json:"transfers"`
	Results   []protocol.CommandResultMsg `json:"results,omitempty"`
	Digest    string                      `json:"digest"`
}

type RecordedCommand struct {
	Actor string              `json:"actor"`
	Cmd   protocol.CommandMsg `json:"cmd"`
}

type AuditEntry struct {
	Tick    uint64  `json:"tick"`
	Actor   string  `json:"actor"`
	Action  string  `json:"action"` // PLACE, REMOVE, LINK, UNLINK, CONNECT, DISCONNECT
	Pos     [2]int  `json:"pos"`
	To      *[2]int `json:"to,omitempty"`
	Block   string  `json:"block,omitempty"`
	Side    string  `json:"side,omitempty"`
	Network uint32  `json:"network,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}
