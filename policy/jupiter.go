package policy

import (
	"bytes"
	"context"
	"errors"

	sgo "github.com/gagliardetto/solana-go"
)

// anchor discriminator of sharedAccountsRoute
var JUPITER_SHARED_ACCOUNTS_ROUTE = []byte{193, 32, 155, 51, 65, 214, 156, 129}

type jupiterProgram struct {
	sourceMints      []sgo.PublicKey
	destinationMints []sgo.PublicKey
	feePayers        FeePayers
}

func (p jupiterProgram) Decode(ix Instruction) (Decoded, error) {
	if len(ix.Data) < 8 || !bytes.Equal(ix.Data[:8], JUPITER_SHARED_ACCOUNTS_ROUTE) {
		return Decoded{Kind: KIND_JUPITER_OTHER}, nil
	}
	authority, ok1 := ix.Account(2)
	source, ok2 := ix.Account(7)
	destination, ok3 := ix.Account(8)
	if !(ok1 && ok2 && ok3) {
		return Decoded{}, errors.New("Missing swap keys")
	}
	return Decoded{Kind: KIND_JUPITER_SHARED_ACCOUNTS_ROUTE, Swap: &JupiterRoute{
		UserTransferAuthority: authority,
		SourceMint:            source,
		DestinationMint:       destination,
	}}, nil
}

func (p jupiterProgram) Check(ctx context.Context, s *Session, d Decoded) error {
	if d.Kind != KIND_JUPITER_SHARED_ACCOUNTS_ROUTE {
		return errors.New("Unsupported Jupiter instruction")
	}
	if s.Options.Caller == nil {
		return errors.New("Jupiter swaps require authentication")
	}
	if !containsKey(p.sourceMints, d.Swap.SourceMint) || !containsKey(p.destinationMints, d.Swap.DestinationMint) {
		return errors.New("Invalid mints for swap")
	}
	if p.feePayers.Contains(d.Swap.UserTransferAuthority) {
		return errors.New("Invalid user transfer authority")
	}
	return nil
}
