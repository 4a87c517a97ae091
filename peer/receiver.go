package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	ErrMissingSignature = errors.New("missing relay signature")
	ErrUnknownSigner    = errors.New("signer is not a known relay")
)

// Receiver accepts records pushed by other relays.
type Receiver struct {
	cache     Cache
	directory Directory
}

func CreateReceiver(cache Cache, directory Directory) (*Receiver, error) {
	if directory == nil {
		return nil, ErrNoDirectory
	}
	return &Receiver{cache: cache, directory: directory}, nil
}

// Receive checks that body was signed by a peer wallet and stores the record without
// touching the network.
func (r *Receiver) Receive(ctx context.Context, body []byte, signature string) error {
	if len(signature) == 0 {
		return ErrMissingSignature
	}
	signer, err := Recover(body, signature)
	if err != nil {
		return ErrUnknownSigner
	}
	wallets, err := Wallets(ctx, r.directory)
	if err != nil {
		return fmt.Errorf("failed to list peers: %w", err)
	}
	if !wallets[signer] {
		log.Debugf("rejecting cache push from %s", signer.Hex())
		return ErrUnknownSigner
	}

	var payload CacheBody
	if err = json.Unmarshal(body, &payload); err != nil {
		return &BadPayloadError{err: err}
	}
	raw := []byte(payload.Transaction)
	sig, err := SignatureOf(raw)
	if err != nil {
		return &BadPayloadError{err: err}
	}
	return r.cache.Put(ctx, sig, raw)
}

type BadPayloadError struct {
	err error
}

func (e *BadPayloadError) Error() string {
	return fmt.Sprintf("bad cache payload: %s", e.err.Error())
}

func (e *BadPayloadError) Unwrap() error {
	return e.err
}
