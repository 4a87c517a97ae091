package policy_test

import (
	"context"
	"encoding/binary"
	"testing"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/solpipe/solana-relay/policy"
	"github.com/stretchr/testify/require"
)

func TestTokenCloseAndSyncNative(t *testing.T) {
	f := setup(t)
	err := f.validator.Validate(context.Background(), []policy.Instruction{
		closeAccount(randomKey(), randomKey(), randomKey()),
		{ProgramID: sgo.TokenProgramID, Accounts: metas(randomKey()), Data: []byte{17}},
	}, f.anonymous())
	require.NoError(t, err)
}

func TestTransferToUserbank(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, mint := range []sgo.PublicKey{usdcMint, waudioMint} {
		userbank, err := policy.DeriveUserbank(claimable, mint, f.caller)
		require.NoError(t, err)
		err = f.validator.Validate(ctx, []policy.Instruction{
			transferChecked(randomKey(), mint, userbank, randomKey(), 1000000),
		}, f.authenticated())
		require.NoError(t, err)
	}
}

func TestTransferToCollection(t *testing.T) {
	f := setup(t)
	err := f.validator.Validate(context.Background(), []policy.Instruction{
		transferChecked(randomKey(), usdcMint, f.collection, randomKey(), 5),
	}, f.authenticated())
	require.NoError(t, err)
}

func TestTransferToOtherAccount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	destination := randomKey()

	err := f.validator.Validate(ctx, []policy.Instruction{
		transferChecked(randomKey(), usdcMint, destination, randomKey(), 5),
	}, f.authenticated())
	requireReject(t, err, 0, "Invalid destination account: "+destination.String())

	// userbank of a different mint
	audioBank, err := policy.DeriveUserbank(claimable, waudioMint, f.caller)
	require.NoError(t, err)
	err = f.validator.Validate(ctx, []policy.Instruction{
		transferChecked(randomKey(), usdcMint, audioBank, randomKey(), 5),
	}, f.authenticated())
	requireReject(t, err, 0, "Invalid destination account")
}

func TestTransferRequiresAuthentication(t *testing.T) {
	f := setup(t)
	userbank, err := policy.DeriveUserbank(claimable, usdcMint, f.caller)
	require.NoError(t, err)
	err = f.validator.Validate(context.Background(), []policy.Instruction{
		transferChecked(randomKey(), usdcMint, userbank, randomKey(), 5),
	}, f.anonymous())
	requireReject(t, err, 0, "Token transfers require authentication")
}

func TestOtherTokenInstructions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	approve := make([]byte, 9)
	approve[0] = 4
	binary.LittleEndian.PutUint64(approve[1:], 100)
	err := f.validator.Validate(ctx, []policy.Instruction{
		{ProgramID: sgo.TokenProgramID, Accounts: metas(randomKey(), randomKey(), randomKey()), Data: approve},
	}, f.authenticated())
	requireReject(t, err, 0, "")

	err = f.validator.Validate(ctx, []policy.Instruction{
		{ProgramID: sgo.TokenProgramID, Accounts: metas(randomKey(), usdcMint, randomKey(), sgo.SysVarRentPubkey), Data: []byte{1}},
	}, f.authenticated())
	requireReject(t, err, 0, "")
}
