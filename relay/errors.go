package relay

import (
	"errors"
	"fmt"
	"net/http"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/solpipe/solana-relay/peer"
	"github.com/solpipe/solana-relay/policy"
)

type MalformedTransactionError struct {
	Err error
}

func (e *MalformedTransactionError) Error() string {
	return fmt.Sprintf("malformed transaction: %s", e.Err.Error())
}

func (e *MalformedTransactionError) Unwrap() error {
	return e.Err
}

type UnknownFeePayerError struct {
	FeePayer sgo.PublicKey
}

func (e *UnknownFeePayerError) Error() string {
	return fmt.Sprintf("unknown fee payer: %s", e.FeePayer)
}

// UnauthorizedRelayError is a missing (401) or wrong (403) signer.
type UnauthorizedRelayError struct {
	Missing bool
	Err     error
}

func (e *UnauthorizedRelayError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Err.Error())
}

func (e *UnauthorizedRelayError) Unwrap() error {
	return e.Err
}

// PeerForwardFailedError never reaches the caller; it is only logged.
type PeerForwardFailedError struct {
	Signature sgo.Signature
	Err       error
}

func (e *PeerForwardFailedError) Error() string {
	return fmt.Sprintf("peer forward of %s failed: %s", e.Signature, e.Err.Error())
}

func (e *PeerForwardFailedError) Unwrap() error {
	return e.Err
}

// StatusCode maps an error from the relay path to its http status.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var invalid *policy.InvalidInstructionError
	var malformed *MalformedTransactionError
	var unknown *UnknownFeePayerError
	var unauthorized *UnauthorizedRelayError
	var badPayload *peer.BadPayloadError
	switch {
	case errors.As(err, &invalid), errors.As(err, &malformed), errors.As(err, &unknown), errors.As(err, &badPayload):
		return http.StatusBadRequest
	case errors.As(err, &unauthorized):
		if unauthorized.Missing {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case errors.Is(err, peer.ErrMissingSignature):
		return http.StatusUnauthorized
	case errors.Is(err, peer.ErrUnknownSigner):
		return http.StatusForbidden
	default:
		// simulation and broadcast failures
		return http.StatusInternalServerError
	}
}
