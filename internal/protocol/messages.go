package protocol

// COMMAND (operator -> server)
type CommandMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	CommandID       string  `json:"command_id,omitempty"`
	Op              string  `json:"op"`
	Block           string  `json:"block,omitempty"`
	At              [2]int  `json:"at"`
	To              *[2]int `json:"to,omitempty"`
	Side            string  `json:"side,omitempty"`
	Item            string  `json:"item,omitempty"`
	Count           int     `json:"count,omitempty"`
	Value           float64 `json:"value,omitempty"`
	Phase           int     `json:"phase,omitempty"`
}

// COMMAND_RESULT (server -> operator)
type CommandResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CommandID       string `json:"command_id,omitempty"`
	Tick            uint64 `json:"tick"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type NetworkRef struct {
	ID      uint32 `json:"id"`
	Members int    `json:"members"`
}

type LinkRef struct {
	Side string `json:"side"`
	To   [2]int `json:"to"`
}

type BuildingState struct {
	ID           string      `json:"id"`
	Block        string      `json:"block"`
	Pos          [2]int      `json:"pos"`
	Network      uint32      `json:"network,omitempty"`
	Links        []LinkRef   `json:"links,omitempty"`
	Items        []ItemCount `json:"items,omitempty"`
	Pending      int         `json:"pending,omitempty"`
	Requirements []string    `json:"requirements,omitempty"`
	Receivers    []string    `json:"receivers,omitempty"`
	Senders      []string    `json:"senders,omitempty"`
	Efficiency   float64     `json:"efficiency"`
	TimeScale    float64     `json:"time_scale"`
	PowerUse     float64     `json:"power_use,omitempty"`
	Status       string      `json:"status,omitempty"`
}

type TransferCounts struct {
	Unloaded    int `json:"unloaded"`
	Sent        int `json:"sent"`
	Distributed int `json:"distributed"`
	Crafted     int `json:"crafted"`
	Hops        int `json:"hops"`
	Delivered   int `json:"delivered"`
	Missed      int `json:"missed"`
}

// NETWORK_FRAME (server -> observer), one per tick.
type NetworkFrameMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Tick            uint64          `json:"tick"`
	Networks        []NetworkRef    `json:"networks"`
	Buildings       []BuildingState `json:"buildings"`
	Transfers       TransferCounts  `json:"transfers"`
	Heals           uint64          `json:"heals"`
	Digest          string          `json:"digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

type CatalogDigests struct {
	BlockPalette DigestRef `json:"block_palette"`
	ItemPalette  DigestRef `json:"item_palette"`
	BlocksDigest string    `json:"blocks_digest"`
	ItemsDigest  string    `json:"items_digest"`
}

// BOOTSTRAP (server -> observer), answered once per session.
type BootstrapMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	TickRateHz      int            `json:"tick_rate_hz"`
	Tick            uint64         `json:"tick"`
	BlockPalette    []string       `json:"block_palette"`
	ItemPalette     []string       `json:"item_palette"`
	Catalogs        CatalogDigests `json:"catalogs"`
}
