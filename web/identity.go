package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/errormsg"
	"github.com/solpipe/solana-relay/peer"
)

const (
	HEADER_MESSAGE   = "Encoded-Data-Message"
	HEADER_SIGNATURE = "Encoded-Data-Signature"
)

type callerKey struct{}

// CallerFrom returns the wallet recovered by the identity middleware, or nil for anonymous requests.
func CallerFrom(ctx context.Context) *common.Address {
	caller, ok := ctx.Value(callerKey{}).(common.Address)
	if !ok {
		return nil
	}
	return &caller
}

// identity recovers the caller wallet from a personal-sign signature over the message header.
// Requests without both headers stay anonymous.
func identity(em errormsg.ErrorMessage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			message := r.Header.Get(HEADER_MESSAGE)
			signature := r.Header.Get(HEADER_SIGNATURE)
			if len(message) == 0 && len(signature) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if len(message) == 0 || len(signature) == 0 {
				writeError(w, em, http.StatusUnauthorized, errors.New("incomplete identity headers"))
				return
			}
			caller, err := peer.Recover([]byte(message), signature)
			if err != nil {
				writeError(w, em, http.StatusUnauthorized, err)
				return
			}
			log.Debugf("caller=%s", caller.Hex())
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
		})
	}
}
