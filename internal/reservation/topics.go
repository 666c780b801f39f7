package reservation

// Topic and ledger key names for the two reservation use cases. Both topics
// run the same handler; they are separate so each gets its own FIFO order
// and concurrency limit.
const (
	SeatTopic  = "reserve_seat"
	StockTopic = "reserve_stock"

	// SeatKey is the ledger key holding the remaining seat count.
	SeatKey = "available_seats"
)
