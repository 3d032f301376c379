package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrWorldBusy       = "E_WORLD_BUSY"
	// The command was queued but no result arrived in time. It may still be
	// applied, so clients must not resubmit blindly.
	ErrResultUnknown = "E_RESULT_UNKNOWN"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrOccupied      = "E_OCCUPIED"
	ErrOutOfRange    = "E_OUT_OF_RANGE"
	ErrSidesFull     = "E_SIDES_FULL"
	ErrSideDisabled  = "E_SIDE_DISABLED"
	ErrCapacity      = "E_CAPACITY"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrStaleRoute    = "E_STALE_ROUTE"
	ErrConflict      = "E_CONFLICT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrResultUnknown:   {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrOccupied:        {},
	ErrOutOfRange:      {},
	ErrSidesFull:       {},
	ErrSideDisabled:    {},
	ErrCapacity:        {},
	ErrNoResource:      {},
	ErrStaleRoute:      {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
