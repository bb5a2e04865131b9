package models

// Round phases
const (
	PhaseIdle         = "IDLE"
	PhaseLive         = "LIVE"
	PhaseWinnerLocked = "WINNER_LOCKED"
	PhaseClosed       = "CLOSED"
)

// Claim outcomes
const (
	OutcomeWon      = "won"
	OutcomeRunnerUp = "runner_up"
	OutcomeRejected = "rejected"
)

// ModeratorKeyHeader carries the moderator key on moderator routes.
const ModeratorKeyHeader = "X-Moderator-Key"

// Request types

type ClaimRequest struct {
	Name string `json:"name"`
}

type RegisterRequest struct {
	Name string `json:"name"`
}

type DeltaRequest struct {
	Delta int    `json:"delta"`
	Name  string `json:"name,omitempty"`
}

// Response types

type ClaimResponse struct {
	Outcome string `json:"outcome"`
	Round   Round  `json:"round"`
	// Set when the claim committed but a configured bonus was not applied.
	Warning string `json:"warning,omitempty"`
}

type ScoreResponse struct {
	Key   string `json:"key"`
	Score int    `json:"score"`
}

type BulkResponse struct {
	Affected int    `json:"affected"`
	Message  string `json:"message,omitempty"`
}

// Domain types

type Claim struct {
	ParticipantID string `json:"participantId"`
	ClaimedAt     uint64 `json:"claimedAt"`
}

type Round struct {
	Phase    string `json:"phase"`
	GateOpen bool   `json:"gateOpen"`
	Winner   *Claim `json:"winner,omitempty"`
	RunnerUp *Claim `json:"runnerUp,omitempty"`
	Revision uint64 `json:"revision"`
}

type Entry struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

type Scoreboard struct {
	Entries []Entry `json:"entries"`
}

// EntryFrame is one websocket frame on an entry stream.
type EntryFrame struct {
	Present bool   `json:"present"`
	Entry   *Entry `json:"entry,omitempty"`
}

// StreamError is sent on a stream before it closes after a store failure.
type StreamError struct {
	Error string `json:"error"`
	Stale bool   `json:"stale"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
