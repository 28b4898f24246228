package model

// PositionType is the asset class a position is held in.
type PositionType string

const (
	PositionBTC PositionType = "BTC"
	PositionNDX PositionType = "NDX"
)

// PositionStatus tracks whether a position is still held.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// User holds per-user ledger state, keyed by email.
// CreatedAt and LastLoginDate are epoch millis.
type User struct {
	Email          string  `json:"email"`
	Balance        float64 `json:"balance"`
	InitialBalance float64 `json:"initialBalance"`
	CreatedAt      int64   `json:"createdAt"`
	LastLoginDate  int64   `json:"lastLoginDate"`
}

// Position is one holding opened by a buy. Closed positions are kept, never
// deleted. ClosedAt is zero while the position is open.
type Position struct {
	ID        int64          `json:"id"`
	Email     string         `json:"email"`
	Type      PositionType   `json:"type"`
	Amount    float64        `json:"amount"`
	Status    PositionStatus `json:"status"`
	CreatedAt int64          `json:"createdAt"`
	ClosedAt  int64          `json:"closedAt,omitempty"`
}
