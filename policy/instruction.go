package policy

import (
	"context"
	"errors"
	"fmt"

	sgo "github.com/gagliardetto/solana-go"
)

type Instruction struct {
	ProgramID sgo.PublicKey
	Accounts  []*sgo.AccountMeta
	Data      []byte
}

// Account returns the key at position i of the instruction account list.
func (ix Instruction) Account(i int) (sgo.PublicKey, bool) {
	if i < 0 || len(ix.Accounts) <= i || ix.Accounts[i] == nil {
		return sgo.PublicKey{}, false
	}
	return ix.Accounts[i].PublicKey, true
}

// LookupResolver loads the addresses of v0 address lookup tables.
type LookupResolver interface {
	Resolve(ctx context.Context, tables []sgo.PublicKey) (map[sgo.PublicKey]sgo.PublicKeySlice, error)
}

// Decompile expands the compiled instructions of tx into full account metas. Keys loaded
// from lookup tables follow the static keys: first every writable key, then every readonly key.
func Decompile(ctx context.Context, tx *sgo.Transaction, resolver LookupResolver) ([]Instruction, error) {
	if tx == nil {
		return nil, errors.New("blank transaction")
	}
	msg := &tx.Message
	static := msg.AccountKeys
	keys := make([]sgo.PublicKey, 0, len(static))
	keys = append(keys, static...)
	writable := make([]bool, len(static))

	numSigned := int(msg.Header.NumRequiredSignatures)
	roSigned := int(msg.Header.NumReadonlySignedAccounts)
	roUnsigned := int(msg.Header.NumReadonlyUnsignedAccounts)
	for i := range static {
		if i < numSigned {
			writable[i] = i < numSigned-roSigned
		} else {
			writable[i] = i < len(static)-roUnsigned
		}
	}

	if 0 < len(msg.AddressTableLookups) {
		if resolver == nil {
			return nil, errors.New("transaction uses address lookup tables but no resolver is set")
		}
		ids := make([]sgo.PublicKey, len(msg.AddressTableLookups))
		for i, lookup := range msg.AddressTableLookups {
			ids[i] = lookup.AccountKey
		}
		tables, err := resolver.Resolve(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve lookup tables: %w", err)
		}
		var ro []sgo.PublicKey
		for _, lookup := range msg.AddressTableLookups {
			table, present := tables[lookup.AccountKey]
			if !present {
				return nil, fmt.Errorf("lookup table %s not found", lookup.AccountKey)
			}
			for _, j := range lookup.WritableIndexes {
				if len(table) <= int(j) {
					return nil, fmt.Errorf("lookup table %s has no index %d", lookup.AccountKey, j)
				}
				keys = append(keys, table[j])
				writable = append(writable, true)
			}
			for _, j := range lookup.ReadonlyIndexes {
				if len(table) <= int(j) {
					return nil, fmt.Errorf("lookup table %s has no index %d", lookup.AccountKey, j)
				}
				ro = append(ro, table[j])
			}
		}
		for _, k := range ro {
			keys = append(keys, k)
			writable = append(writable, false)
		}
	}

	list := make([]Instruction, len(msg.Instructions))
	for i, ci := range msg.Instructions {
		if len(keys) <= int(ci.ProgramIDIndex) {
			return nil, fmt.Errorf("instruction %d has bad program index %d", i, ci.ProgramIDIndex)
		}
		accounts := make([]*sgo.AccountMeta, len(ci.Accounts))
		for j, k := range ci.Accounts {
			if len(keys) <= int(k) {
				return nil, fmt.Errorf("instruction %d has bad account index %d", i, k)
			}
			accounts[j] = &sgo.AccountMeta{
				PublicKey:  keys[k],
				IsSigner:   int(k) < numSigned,
				IsWritable: writable[k],
			}
		}
		list[i] = Instruction{
			ProgramID: keys[ci.ProgramIDIndex],
			Accounts:  accounts,
			Data:      []byte(ci.Data),
		}
	}
	return list, nil
}
