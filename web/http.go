package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/broadcast"
	"github.com/solpipe/solana-relay/errormsg"
	"github.com/solpipe/solana-relay/peer"
	"github.com/solpipe/solana-relay/relay"
	"github.com/solpipe/solana-relay/util"
)

const (
	MAX_RELAY_BODY = 64 * 1024
	MAX_CACHE_BODY = 1024 * 1024
)

type strategyBody struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type confirmationBody struct {
	Commitment string        `json:"commitment"`
	Strategy   *strategyBody `json:"strategy"`
}

type sendBody struct {
	SkipPreflight bool  `json:"skipPreflight"`
	MaxRetries    *uint `json:"maxRetries"`
}

type relayBody struct {
	Transaction         string            `json:"transaction"`
	ConfirmationOptions *confirmationBody `json:"confirmationOptions"`
	SendOptions         *sendBody         `json:"sendOptions"`
}

type relayResponse struct {
	Signature string `json:"signature"`
}

type feePayerResponse struct {
	FeePayer string `json:"feePayer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJson(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("failed to write response: %s", err.Error())
	}
}

func writeError(w http.ResponseWriter, em errormsg.ErrorMessage, code int, err error) {
	writeJson(w, code, errorResponse{Error: em.ErrorWithCode(code, err).Error()})
}

func badRequest(format string, args ...interface{}) error {
	return &relay.MalformedTransactionError{Err: fmt.Errorf(format, args...)}
}

func parseRelayBody(body relayBody, req *relay.Request) error {
	var err error
	req.Transaction, err = base64.StdEncoding.DecodeString(body.Transaction)
	if err != nil || len(req.Transaction) == 0 {
		return badRequest("transaction must be base64")
	}
	if c := body.ConfirmationOptions; c != nil {
		req.Confirmation = new(relay.ConfirmationOptions)
		switch sgorpc.CommitmentType(c.Commitment) {
		case "":
		case sgorpc.CommitmentProcessed, sgorpc.CommitmentConfirmed, sgorpc.CommitmentFinalized:
			req.Confirmation.Commitment = sgorpc.CommitmentType(c.Commitment)
		default:
			return badRequest("unknown commitment %s", c.Commitment)
		}
		if c.Strategy != nil {
			s := &broadcast.Strategy{LastValidBlockHeight: c.Strategy.LastValidBlockHeight}
			if 0 < len(c.Strategy.Blockhash) {
				s.Blockhash, err = sgo.HashFromBase58(c.Strategy.Blockhash)
				if err != nil {
					return badRequest("bad blockhash")
				}
			}
			req.Confirmation.Strategy = s
		}
	}
	if s := body.SendOptions; s != nil {
		req.Send = &relay.SendOptions{SkipPreflight: s.SkipPreflight}
	}
	return nil
}

func (e1 *external) relay(w http.ResponseWriter, r *http.Request) {
	em := e1.services.ErrorMessage
	var body relayBody
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MAX_RELAY_BODY)).Decode(&body)
	if err != nil {
		writeError(w, em, http.StatusBadRequest, errors.New("bad request body"))
		return
	}
	req := relay.Request{ID: uuid.New(), Caller: CallerFrom(r.Context())}
	if err = parseRelayBody(body, &req); err != nil {
		writeError(w, em, http.StatusBadRequest, err)
		return
	}

	// a server shutdown cancels the race as well as a client disconnect
	ctx, cancel := util.MergeCtx(r.Context(), e1.ctx)
	defer cancel()
	sig, err := e1.services.Relay.Submit(ctx, req)
	if err != nil {
		code := relay.StatusCode(err)
		if http.StatusInternalServerError <= code {
			log.WithField("request", req.ID.String()).WithError(err).Error("relay failed")
		}
		writeError(w, em, code, err)
		return
	}
	writeJson(w, http.StatusOK, relayResponse{Signature: sig.String()})
}

func (e1 *external) cache(w http.ResponseWriter, r *http.Request) {
	em := e1.services.ErrorMessage
	if e1.services.Receiver == nil {
		writeError(w, em, http.StatusNotFound, errors.New("no peer cache"))
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MAX_CACHE_BODY))
	if err != nil {
		writeError(w, em, http.StatusBadRequest, errors.New("bad request body"))
		return
	}
	err = e1.services.Receiver.Receive(r.Context(), data, r.Header.Get(peer.SIGNATURE_HEADER))
	if errors.Is(err, peer.ErrMissingSignature) || errors.Is(err, peer.ErrUnknownSigner) {
		err = &relay.UnauthorizedRelayError{Missing: errors.Is(err, peer.ErrMissingSignature), Err: err}
	}
	if err != nil {
		writeError(w, em, relay.StatusCode(err), err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (e1 *external) feePayer(w http.ResponseWriter, r *http.Request) {
	wallet, ok := e1.services.Pool.Random()
	if !ok {
		writeError(w, e1.services.ErrorMessage, http.StatusInternalServerError, errors.New("no fee payers"))
		return
	}
	writeJson(w, http.StatusOK, feePayerResponse{FeePayer: wallet.PublicKey.String()})
}
