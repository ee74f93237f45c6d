package topics

const (
	// Bets
	BetPlaced   = "bet_placed"
	BetResolved = "bet_resolved"
	BetRefunded = "bet_refunded"

	// DLQs
	BetPlacedDLQ = "bet_placed_dlq"
)
