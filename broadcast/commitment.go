package broadcast

import sgorpc "github.com/gagliardetto/solana-go/rpc"

func rank(level string) int {
	switch level {
	case string(sgorpc.CommitmentProcessed):
		return 1
	case string(sgorpc.CommitmentConfirmed):
		return 2
	case string(sgorpc.CommitmentFinalized):
		return 3
	default:
		return 0
	}
}

// Satisfies reports whether a status at level reached the target; finalized satisfies
// confirmed but not the other way around.
func Satisfies(level sgorpc.ConfirmationStatusType, target sgorpc.CommitmentType) bool {
	r := rank(string(level))
	return 0 < r && rank(string(target)) <= r
}
