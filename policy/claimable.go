package policy

import (
	"context"
	"errors"
	"fmt"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

const (
	CLAIMABLE_CREATE_TOKEN_ACCOUNT uint8 = 0
	CLAIMABLE_TRANSFER             uint8 = 1
)

type ethAddressArgs struct {
	EthAddress [20]byte
}

type claimableProgram struct {
	authorities []sgo.PublicKey
}

func (p claimableProgram) Decode(ix Instruction) (Decoded, error) {
	if len(ix.Data) == 0 {
		return Decoded{}, errors.New("Missing claimable token instruction data")
	}
	var kind Kind
	var authorityIndex int
	switch ix.Data[0] {
	case CLAIMABLE_CREATE_TOKEN_ACCOUNT:
		kind = KIND_CLAIMABLE_CREATE
		authorityIndex = 2
	case CLAIMABLE_TRANSFER:
		kind = KIND_CLAIMABLE_TRANSFER
		authorityIndex = 4
	default:
		return Decoded{}, fmt.Errorf("Unsupported claimable token instruction: %d", ix.Data[0])
	}
	var args ethAddressArgs
	if err := borsh.Deserialize(&args, ix.Data[1:]); err != nil {
		return Decoded{}, fmt.Errorf("Malformed claimable token instruction: %s", err.Error())
	}
	authority, ok := ix.Account(authorityIndex)
	if !ok {
		return Decoded{}, errors.New("Missing claimable token authority")
	}
	return Decoded{Kind: kind, Claimable: &ClaimableInstruction{
		Authority:  authority,
		EthAddress: args.EthAddress,
	}}, nil
}

func (p claimableProgram) Check(ctx context.Context, s *Session, d Decoded) error {
	if !containsKey(p.authorities, d.Claimable.Authority) {
		return errors.New("Invalid claimable token authority")
	}
	return nil
}
