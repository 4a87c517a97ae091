package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	bin "github.com/gagliardetto/binary"
	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/broadcast"
	"github.com/solpipe/solana-relay/feepayer"
	"github.com/solpipe/solana-relay/policy"
)

// Relay validates, co-signs and confirms transactions built by untrusted clients.
type Relay interface {
	Submit(ctx context.Context, req Request) (sgo.Signature, error)
}

type ConfirmationOptions struct {
	Commitment sgorpc.CommitmentType
	Strategy   *broadcast.Strategy
}

type SendOptions struct {
	SkipPreflight bool
}

type Request struct {
	ID           uuid.UUID
	Transaction  []byte
	Confirmation *ConfirmationOptions
	Send         *SendOptions
	// Caller is nil unless an upstream step recovered a wallet from a signed header.
	Caller *common.Address
}

type Validator interface {
	Validate(ctx context.Context, instructions []policy.Instruction, opts policy.Options) error
}

type Broadcaster interface {
	Send(ctx context.Context, p broadcast.Payload) (sgo.Signature, error)
	DefaultStrategy(ctx context.Context, tx *sgo.Transaction) (broadcast.Strategy, error)
}

type Forwarder interface {
	Forward(ctx context.Context, sig sgo.Signature) error
}

type Configuration struct {
	Pool        feepayer.Pool
	Validator   Validator
	Broadcaster Broadcaster
	// optional
	Forwarder Forwarder
	Resolver  policy.LookupResolver
	Recorder  Recorder
}

func (config Configuration) Check() error {
	if config.Pool.Size() == 0 {
		return errors.New("no fee payers")
	}
	if config.Validator == nil {
		return errors.New("no validator")
	}
	if config.Broadcaster == nil {
		return errors.New("no broadcaster")
	}
	return nil
}

type external struct {
	ctx    context.Context
	config Configuration
}

// Create returns a Relay whose detached forwarding runs on ctx rather than on the
// context of each request.
func Create(ctx context.Context, config Configuration) (Relay, error) {
	if err := config.Check(); err != nil {
		return nil, err
	}
	if config.Recorder == nil {
		config.Recorder = nopRecorder{}
	}
	return external{ctx: ctx, config: config}, nil
}

type trace struct {
	entry    *log.Entry
	recorder Recorder
	stage    Stage
}

func (t *trace) move(stage Stage) {
	t.stage = stage
	t.recorder.Observe(stage)
	t.entry.WithField("stage", stage.String()).Debug("relay stage")
}

func (e1 external) Submit(ctx context.Context, req Request) (sig sgo.Signature, err error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	t := &trace{
		entry:    log.WithField("request", req.ID.String()),
		recorder: e1.config.Recorder,
	}
	t.move(STAGE_RECEIVED)
	defer func() {
		if err == nil {
			return
		}
		if t.stage < STAGE_SIGNED {
			t.move(STAGE_REJECTED)
		} else {
			t.move(STAGE_FAILED)
		}
		t.entry.WithError(err).Info("relay failed")
	}()

	tx, err := sgo.TransactionFromDecoder(bin.NewBinDecoder(req.Transaction))
	if err != nil {
		return sig, &MalformedTransactionError{Err: err}
	}
	if len(tx.Message.AccountKeys) == 0 {
		return sig, &MalformedTransactionError{Err: errors.New("no account keys")}
	}

	declared := tx.Message.AccountKeys[0]
	wallet, ok := e1.config.Pool.Resolve(declared)
	if !ok {
		return sig, &UnknownFeePayerError{FeePayer: declared}
	}
	t.move(STAGE_FEE_PAYER_RESOLVED)

	instructions, err := policy.Decompile(ctx, tx, e1.config.Resolver)
	if err != nil {
		return sig, &MalformedTransactionError{Err: err}
	}
	err = e1.config.Validator.Validate(ctx, instructions, policy.Options{
		Caller:   req.Caller,
		FeePayer: &wallet.PublicKey,
	})
	if err != nil {
		return sig, err
	}
	t.move(STAGE_POLICY_VALIDATED)

	raw, err := coSign(tx, wallet)
	if err != nil {
		return sig, err
	}
	t.move(STAGE_SIGNED)

	payload := broadcast.Payload{
		Tx:         tx,
		Raw:        raw,
		Commitment: sgorpc.CommitmentConfirmed,
	}
	if req.Send != nil {
		payload.SkipPreflight = req.Send.SkipPreflight
	}
	if req.Confirmation != nil {
		if req.Confirmation.Commitment != "" {
			payload.Commitment = req.Confirmation.Commitment
		}
		if req.Confirmation.Strategy != nil {
			payload.Strategy = *req.Confirmation.Strategy
		}
	}
	if payload.Strategy.LastValidBlockHeight == 0 {
		payload.Strategy, err = e1.config.Broadcaster.DefaultStrategy(ctx, tx)
		if err != nil {
			return sig, fmt.Errorf("failed to build confirmation strategy: %w", err)
		}
	}
	payload.Strategy.Signature = tx.Signatures[0]
	t.entry = t.entry.WithField("signature", payload.Strategy.Signature.String())

	t.move(STAGE_BROADCASTING)
	sig, err = e1.config.Broadcaster.Send(ctx, payload)
	if err != nil {
		return sig, err
	}
	t.move(STAGE_CONFIRMED)

	if e1.config.Forwarder != nil {
		t.move(STAGE_CACHING_AND_FORWARDING)
		go loopForward(e1.ctx, e1.config.Forwarder, sig, t.entry)
	}
	return sig, nil
}

// coSign puts the fee payer signature in its slot and returns the wire bytes.
func coSign(tx *sgo.Transaction, wallet feepayer.Wallet) ([]byte, error) {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, err
	}
	numSigners := int(tx.Message.Header.NumRequiredSignatures)
	index := -1
	for i := 0; i < numSigners && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(wallet.PublicKey) {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, &UnknownFeePayerError{FeePayer: wallet.PublicKey}
	}
	sig, err := wallet.PrivateKey.Sign(msg)
	if err != nil {
		return nil, err
	}
	for len(tx.Signatures) < numSigners {
		tx.Signatures = append(tx.Signatures, sgo.Signature{})
	}
	tx.Signatures[index] = sig
	return tx.MarshalBinary()
}

func loopForward(ctx context.Context, forwarder Forwarder, sig sgo.Signature, entry *log.Entry) {
	err := forwarder.Forward(ctx, sig)
	if err != nil {
		entry.WithError(&PeerForwardFailedError{Signature: sig, Err: err}).Warn("forwarding failed")
	}
}
