package domain

// Control frame types exchanged on the live connection. Any frame whose
// type is not a known control type is treated as a message payload.
const (
	FrameTypePing = "ping"
	FrameTypePong = "pong"
)

// BaseFrame is decoded first to sniff control frames.
type BaseFrame struct {
	Type string `json:"type"`
}

// PingFrame is the outbound keepalive control frame.
type PingFrame struct {
	Type string `json:"type"`
}

// NewPingFrame returns the keepalive frame sent each period while a
// connection is open.
func NewPingFrame() PingFrame {
	return PingFrame{Type: FrameTypePing}
}

// PongFrame is the keepalive acknowledgement; it is recognized inbound
// and discarded.
type PongFrame struct {
	Type string `json:"type"`
}
