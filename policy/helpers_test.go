package policy_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	sgo "github.com/gagliardetto/solana-go"
	"github.com/solpipe/solana-relay/feepayer"
	"github.com/solpipe/solana-relay/policy"
	"github.com/solpipe/solana-relay/ratelimit"
	"github.com/stretchr/testify/require"
)

var (
	usdcMint    = sgo.MustPublicKeyFromBase58(policy.DEFAULT_USDC_MINT)
	waudioMint  = sgo.MustPublicKeyFromBase58(policy.DEFAULT_WAUDIO_MINT)
	claimable   = sgo.MustPublicKeyFromBase58(policy.DEFAULT_CLAIMABLE_PROGRAM_ID)
	rewardId    = sgo.MustPublicKeyFromBase58(policy.DEFAULT_REWARD_PROGRAM_ID)
	rewardState = sgo.MustPublicKeyFromBase58(policy.DEFAULT_REWARD_STATE)
)

type fakeLimiter struct {
	allowed bool
	calls   []string
}

func (f *fakeLimiter) CheckLimit(ctx context.Context, entity string) (ratelimit.Result, error) {
	f.calls = append(f.calls, entity)
	return ratelimit.Result{Allowed: f.allowed, HourLimitReached: !f.allowed}, nil
}

type fixture struct {
	validator      *policy.Validator
	pool           feepayer.Pool
	feePayer       sgo.PublicKey
	limiter        *fakeLimiter
	protocolWallet sgo.PublicKey
	collection     sgo.PublicKey
	caller         common.Address
}

func setup(t *testing.T) *fixture {
	key, err := sgo.NewRandomPrivateKey()
	require.NoError(t, err)
	pool, err := feepayer.Create([]sgo.PrivateKey{key})
	require.NoError(t, err)
	f := &fixture{
		pool:           pool,
		feePayer:       key.PublicKey(),
		limiter:        &fakeLimiter{allowed: true},
		protocolWallet: randomKey(),
		collection:     randomKey(),
		caller:         common.HexToAddress("0x8fcfa10bd3808570987dbb5b1ef4ab74400fbfda"),
	}
	config := policy.DefaultConfiguration()
	config.ProtocolWallets = []sgo.PublicKey{f.protocolWallet}
	config.CollectionAccount = f.collection
	f.validator, err = policy.Create(config, pool, f.limiter)
	require.NoError(t, err)
	return f
}

func (f *fixture) anonymous() policy.Options {
	return policy.Options{FeePayer: &f.feePayer}
}

func (f *fixture) authenticated() policy.Options {
	caller := f.caller
	return policy.Options{Caller: &caller, FeePayer: &f.feePayer}
}

func randomKey() sgo.PublicKey {
	key, err := sgo.NewRandomPrivateKey()
	if err != nil {
		panic(err)
	}
	return key.PublicKey()
}

func metas(keys ...sgo.PublicKey) []*sgo.AccountMeta {
	list := make([]*sgo.AccountMeta, len(keys))
	for i, k := range keys {
		list[i] = &sgo.AccountMeta{PublicKey: k, IsWritable: true}
	}
	return list
}

func createAta(payer, ata, owner, mint sgo.PublicKey) policy.Instruction {
	return policy.Instruction{
		ProgramID: sgo.SPLAssociatedTokenAccountProgramID,
		Accounts:  metas(payer, ata, owner, mint, sgo.SystemProgramID, sgo.TokenProgramID),
		Data:      []byte{},
	}
}

func closeAccount(account, destination, owner sgo.PublicKey) policy.Instruction {
	return policy.Instruction{
		ProgramID: sgo.TokenProgramID,
		Accounts:  metas(account, destination, owner),
		Data:      []byte{9},
	}
}

func transferChecked(source, mint, destination, owner sgo.PublicKey, amount uint64) policy.Instruction {
	data := make([]byte, 10)
	data[0] = 12
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = 6
	return policy.Instruction{
		ProgramID: sgo.TokenProgramID,
		Accounts:  metas(source, mint, destination, owner),
		Data:      data,
	}
}

func systemTransfer(from, to sgo.PublicKey, lamports uint64) policy.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return policy.Instruction{
		ProgramID: sgo.SystemProgramID,
		Accounts:  metas(from, to),
		Data:      data,
	}
}

func memo(text string) policy.Instruction {
	return policy.Instruction{ProgramID: policy.MEMO_PROGRAM_ID, Data: []byte(text)}
}

func requireReject(t *testing.T, err error, index int, reason string) {
	t.Helper()
	require.Error(t, err)
	var invalid *policy.InvalidInstructionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, index, invalid.Index)
	require.Contains(t, invalid.Reason, reason)
}
