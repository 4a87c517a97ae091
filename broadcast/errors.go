package broadcast

import (
	"errors"
	"fmt"
	"strings"
)

var ErrExpired = errors.New("block height exceeded")

var errEmptyConfirmation = errors.New("empty confirmation")

type SimulationFailedError struct {
	Err  interface{}
	Logs []string
}

func (e *SimulationFailedError) Error() string {
	return fmt.Sprintf("simulation failed: %v; logs: %s", e.Err, strings.Join(e.Logs, " | "))
}

type BroadcastFailedError struct {
	LastError error
}

func (e *BroadcastFailedError) Error() string {
	return fmt.Sprintf("broadcast failed: %s", e.LastError.Error())
}

func (e *BroadcastFailedError) Unwrap() error {
	return e.LastError
}

// ExecutionError is a transaction that landed but failed on chain.
type ExecutionError struct {
	Err interface{}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("transaction failed: %v", e.Err)
}
