package relay_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/solpipe/solana-relay/broadcast"
	"github.com/solpipe/solana-relay/feepayer"
	"github.com/solpipe/solana-relay/policy"
	"github.com/solpipe/solana-relay/relay"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct {
	m        sync.Mutex
	payloads []broadcast.Payload
	err      error
}

func (f *fakeBroadcaster) Send(ctx context.Context, p broadcast.Payload) (sgo.Signature, error) {
	f.m.Lock()
	f.payloads = append(f.payloads, p)
	f.m.Unlock()
	if f.err != nil {
		return sgo.Signature{}, f.err
	}
	return p.Strategy.Signature, nil
}

func (f *fakeBroadcaster) DefaultStrategy(ctx context.Context, tx *sgo.Transaction) (broadcast.Strategy, error) {
	return broadcast.Strategy{Blockhash: tx.Message.RecentBlockhash, LastValidBlockHeight: 1000}, nil
}

type fakeForwarder struct {
	sigC chan sgo.Signature
}

func (f fakeForwarder) Forward(ctx context.Context, sig sgo.Signature) error {
	f.sigC <- sig
	return nil
}

type stageLog struct {
	m    sync.Mutex
	list []relay.Stage
}

func (s *stageLog) Observe(stage relay.Stage) {
	s.m.Lock()
	defer s.m.Unlock()
	s.list = append(s.list, stage)
}

func (s *stageLog) stages() []relay.Stage {
	s.m.Lock()
	defer s.m.Unlock()
	return append([]relay.Stage{}, s.list...)
}

type fixture struct {
	relay       relay.Relay
	feePayer    sgo.PublicKey
	broadcaster *fakeBroadcaster
	forwarded   chan sgo.Signature
	stages      *stageLog
}

func setup(t *testing.T, ctx context.Context) *fixture {
	key, err := sgo.NewRandomPrivateKey()
	require.NoError(t, err)
	pool, err := feepayer.Create([]sgo.PrivateKey{key})
	require.NoError(t, err)
	validator, err := policy.Create(policy.DefaultConfiguration(), pool, nil)
	require.NoError(t, err)
	f := &fixture{
		feePayer:    key.PublicKey(),
		broadcaster: &fakeBroadcaster{},
		forwarded:   make(chan sgo.Signature, 1),
		stages:      &stageLog{},
	}
	f.relay, err = relay.Create(ctx, relay.Configuration{
		Pool:        pool,
		Validator:   validator,
		Broadcaster: f.broadcaster,
		Forwarder:   fakeForwarder{sigC: f.forwarded},
		Recorder:    f.stages,
	})
	require.NoError(t, err)
	return f
}

func buildTx(t *testing.T, payer sgo.PublicKey, programID sgo.PublicKey) []byte {
	ix := sgo.NewInstruction(programID, sgo.AccountMetaSlice{}, []byte("hello"))
	tx, err := sgo.NewTransaction([]sgo.Instruction{ix}, sgo.Hash{1, 2, 3}, sgo.TransactionPayer(payer))
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func TestSubmitSignsAndForwards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setup(t, ctx)

	sig, err := f.relay.Submit(ctx, relay.Request{Transaction: buildTx(t, f.feePayer, policy.MEMO_PROGRAM_ID)})
	require.NoError(t, err)

	require.Len(t, f.broadcaster.payloads, 1)
	p := f.broadcaster.payloads[0]
	require.Equal(t, sgorpc.CommitmentConfirmed, p.Commitment)
	require.Equal(t, uint64(1000), p.Strategy.LastValidBlockHeight)
	require.Equal(t, p.Tx.Signatures[0], sig)

	msg, err := p.Tx.Message.MarshalBinary()
	require.NoError(t, err)
	require.True(t, sig.Verify(f.feePayer, msg))

	sent, err := sgo.TransactionFromDecoder(bin.NewBinDecoder(p.Raw))
	require.NoError(t, err)
	require.Equal(t, sig, sent.Signatures[0])

	select {
	case forwarded := <-f.forwarded:
		require.Equal(t, sig, forwarded)
	case <-time.After(2 * time.Second):
		t.Fatal("confirmed transaction was not forwarded")
	}
	require.Equal(t, []relay.Stage{
		relay.STAGE_RECEIVED,
		relay.STAGE_FEE_PAYER_RESOLVED,
		relay.STAGE_POLICY_VALIDATED,
		relay.STAGE_SIGNED,
		relay.STAGE_BROADCASTING,
		relay.STAGE_CONFIRMED,
		relay.STAGE_CACHING_AND_FORWARDING,
	}, f.stages.stages())
}

func TestSubmitKeepsCallerStrategy(t *testing.T) {
	ctx := context.Background()
	f := setup(t, ctx)

	_, err := f.relay.Submit(ctx, relay.Request{
		Transaction: buildTx(t, f.feePayer, policy.MEMO_PROGRAM_ID),
		Confirmation: &relay.ConfirmationOptions{
			Commitment: sgorpc.CommitmentFinalized,
			Strategy:   &broadcast.Strategy{LastValidBlockHeight: 77},
		},
		Send: &relay.SendOptions{SkipPreflight: true},
	})
	require.NoError(t, err)
	p := f.broadcaster.payloads[0]
	require.Equal(t, sgorpc.CommitmentFinalized, p.Commitment)
	require.Equal(t, uint64(77), p.Strategy.LastValidBlockHeight)
	require.True(t, p.SkipPreflight)
}

func TestSubmitUnknownFeePayer(t *testing.T) {
	ctx := context.Background()
	f := setup(t, ctx)
	other, err := sgo.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = f.relay.Submit(ctx, relay.Request{Transaction: buildTx(t, other.PublicKey(), policy.MEMO_PROGRAM_ID)})
	var unknown *relay.UnknownFeePayerError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, http.StatusBadRequest, relay.StatusCode(err))
	require.Empty(t, f.broadcaster.payloads)
	require.Equal(t, relay.STAGE_REJECTED, f.stages.stages()[len(f.stages.stages())-1])
}

func TestSubmitMalformed(t *testing.T) {
	ctx := context.Background()
	f := setup(t, ctx)

	_, err := f.relay.Submit(ctx, relay.Request{Transaction: []byte{1, 2}})
	var malformed *relay.MalformedTransactionError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, http.StatusBadRequest, relay.StatusCode(err))
}

func TestSubmitRejectsUnknownProgram(t *testing.T) {
	ctx := context.Background()
	f := setup(t, ctx)
	program, err := sgo.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = f.relay.Submit(ctx, relay.Request{Transaction: buildTx(t, f.feePayer, program.PublicKey())})
	var invalid *policy.InvalidInstructionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, 0, invalid.Index)
	require.Equal(t, http.StatusBadRequest, relay.StatusCode(err))
	require.Empty(t, f.broadcaster.payloads)
}

func TestSubmitBroadcastFailure(t *testing.T) {
	ctx := context.Background()
	f := setup(t, ctx)
	f.broadcaster.err = &broadcast.SimulationFailedError{Err: errors.New("insufficient funds")}

	_, err := f.relay.Submit(ctx, relay.Request{Transaction: buildTx(t, f.feePayer, policy.MEMO_PROGRAM_ID)})
	require.Error(t, err)
	require.Equal(t, http.StatusInternalServerError, relay.StatusCode(err))
	stages := f.stages.stages()
	require.Equal(t, relay.STAGE_FAILED, stages[len(stages)-1])
	select {
	case <-f.forwarded:
		t.Fatal("failed transaction was forwarded")
	default:
	}
}

func TestStageTerminal(t *testing.T) {
	require.True(t, relay.STAGE_CONFIRMED.Terminal())
	require.True(t, relay.STAGE_REJECTED.Terminal())
	require.False(t, relay.STAGE_CACHING_AND_FORWARDING.Terminal())
	require.Equal(t, "POLICY_VALIDATED", relay.STAGE_POLICY_VALIDATED.String())
}
