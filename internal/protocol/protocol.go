package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeCommand       = "COMMAND"
	TypeCommandResult = "COMMAND_RESULT"
	TypeNetworkFrame  = "NETWORK_FRAME"
	TypeBootstrap     = "BOOTSTRAP"
)

// Command ops.
const (
	OpPlace        = "PLACE"
	OpRemove       = "REMOVE"
	OpLink         = "LINK"
	OpUnlink       = "UNLINK"
	OpConnect      = "CONNECT"
	OpDisconnect   = "DISCONNECT"
	OpSetPower     = "SET_POWER"
	OpSetTimeScale = "SET_TIME_SCALE"
	OpSetDynamic   = "SET_DYNAMIC"
	OpAddItems     = "ADD_ITEMS"
	OpDispatch     = "DISPATCH"
)

var knownOps = map[string]struct{}{
	OpPlace:        {},
	OpRemove:       {},
	OpLink:         {},
	OpUnlink:       {},
	OpConnect:      {},
	OpDisconnect:   {},
	OpSetPower:     {},
	OpSetTimeScale: {},
	OpSetDynamic:   {},
	OpAddItems:     {},
	OpDispatch:     {},
}

func IsKnownOp(op string) bool {
	_, ok := knownOps[op]
	return ok
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
