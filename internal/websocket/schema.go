package websocket

import "time"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventState     Event = "state"
	EventViolation Event = "violation"
	EventFinished  Event = "finished"
	EventPong      Event = "pong"
)

// StateResponse is the periodic attempt snapshot pushed to the client:
// remaining time, violation count and status.
type StateResponse struct {
	Event            Event      `json:"event"`
	Status           string     `json:"status"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	ViolationCount   int        `json:"violation_count"`
	EndTime          *time.Time `json:"end_time,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
