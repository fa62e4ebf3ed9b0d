package enums

type MessageKind string

const (
	MessageText       MessageKind = "text"
	MessageSystemHint MessageKind = "system_hint"
)
