package enums

// ConsentPhase is the derived position of a conversation in the consent state machine.
type ConsentPhase string

const (
	PhaseNoConsent       ConsentPhase = "no_consent"
	PhaseOneSidedConsent ConsentPhase = "one_sided_consent"
	PhaseBothConsented   ConsentPhase = "both_consented"
	PhaseActive          ConsentPhase = "active"
	PhaseTerminal        ConsentPhase = "terminal"
)
