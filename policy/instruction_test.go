package policy_test

import (
	"context"
	"testing"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/solpipe/solana-relay/policy"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	tables map[sgo.PublicKey]sgo.PublicKeySlice
}

func (f fakeResolver) Resolve(ctx context.Context, ids []sgo.PublicKey) (map[sgo.PublicKey]sgo.PublicKeySlice, error) {
	return f.tables, nil
}

func TestDecompileLegacy(t *testing.T) {
	payer := randomKey()
	destination := randomKey()
	tx, err := sgo.NewTransaction(
		[]sgo.Instruction{
			sgo.NewInstruction(policy.MEMO_PROGRAM_ID, sgo.AccountMetaSlice{}, []byte("hi")),
			sgo.NewInstruction(sgo.SystemProgramID, sgo.AccountMetaSlice{
				sgo.Meta(payer).WRITE().SIGNER(),
				sgo.Meta(destination).WRITE(),
			}, []byte{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}),
		},
		sgo.Hash{},
		sgo.TransactionPayer(payer),
	)
	require.NoError(t, err)

	list, err := policy.Decompile(context.Background(), tx, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, policy.MEMO_PROGRAM_ID, list[0].ProgramID)
	require.Equal(t, []byte("hi"), list[0].Data)

	require.Equal(t, sgo.SystemProgramID, list[1].ProgramID)
	require.Len(t, list[1].Accounts, 2)
	require.Equal(t, payer, list[1].Accounts[0].PublicKey)
	require.True(t, list[1].Accounts[0].IsSigner)
	require.True(t, list[1].Accounts[0].IsWritable)
	require.Equal(t, destination, list[1].Accounts[1].PublicKey)
	require.False(t, list[1].Accounts[1].IsSigner)
	require.True(t, list[1].Accounts[1].IsWritable)
}

func TestDecompileLookupTables(t *testing.T) {
	payer := randomKey()
	tableId := randomKey()
	loadedWritable := randomKey()
	loadedReadonly := randomKey()

	tx := &sgo.Transaction{Message: sgo.Message{
		Header: sgo.MessageHeader{
			NumRequiredSignatures:       1,
			NumReadonlySignedAccounts:   0,
			NumReadonlyUnsignedAccounts: 1,
		},
		AccountKeys: sgo.PublicKeySlice{payer, policy.MEMO_PROGRAM_ID},
		Instructions: []sgo.CompiledInstruction{
			{ProgramIDIndex: 1, Accounts: []uint16{0, 2, 3}, Data: []byte("x")},
		},
		AddressTableLookups: sgo.MessageAddressTableLookupSlice{
			{AccountKey: tableId, WritableIndexes: []uint8{1}, ReadonlyIndexes: []uint8{0}},
		},
	}}

	_, err := policy.Decompile(context.Background(), tx, nil)
	require.Error(t, err)

	resolver := fakeResolver{tables: map[sgo.PublicKey]sgo.PublicKeySlice{
		tableId: {loadedReadonly, loadedWritable},
	}}
	list, err := policy.Decompile(context.Background(), tx, resolver)
	require.NoError(t, err)
	require.Len(t, list, 1)
	accounts := list[0].Accounts
	require.Equal(t, payer, accounts[0].PublicKey)
	require.Equal(t, loadedWritable, accounts[1].PublicKey)
	require.True(t, accounts[1].IsWritable)
	require.Equal(t, loadedReadonly, accounts[2].PublicKey)
	require.False(t, accounts[2].IsWritable)
}
