package enums

type BlockReason string

const (
	BlockReasonSpam    BlockReason = "spam"
	BlockReasonFake    BlockReason = "fake"
	BlockReasonAbusive BlockReason = "abusive"
	BlockReasonOther   BlockReason = "other"
)

func (r BlockReason) Valid() bool {
	switch r {
	case BlockReasonSpam, BlockReasonFake, BlockReasonAbusive, BlockReasonOther:
		return true
	default:
		return false
	}
}
