package policy

import "fmt"

// InvalidInstructionError names the first instruction that broke the relay policy.
type InvalidInstructionError struct {
	Index  int
	Reason string
}

func (e *InvalidInstructionError) Error() string {
	return fmt.Sprintf("invalid relay instruction at index %d: %s", e.Index, e.Reason)
}
