package enums

type TerminalState string

const (
	TerminalExpired   TerminalState = "expired"
	TerminalUnmatched TerminalState = "unmatched"
)
