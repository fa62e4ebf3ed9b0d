package enums

type EscrowStatus string

const (
	EscrowHeld          EscrowStatus = "held"
	EscrowRefundPending EscrowStatus = "refund_pending"
	EscrowRefunded      EscrowStatus = "refunded"
	EscrowForfeited     EscrowStatus = "forfeited"
)
