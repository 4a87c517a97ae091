package policy

import (
	"context"
	"errors"

	sgo "github.com/gagliardetto/solana-go"
)

const (
	ATA_CREATE            uint8 = 0
	ATA_CREATE_IDEMPOTENT uint8 = 1
)

type associatedProgram struct {
	mints           []sgo.PublicKey
	protocolWallets []sgo.PublicKey
	limiter         Limiter
}

func (p associatedProgram) Decode(ix Instruction) (Decoded, error) {
	kind := KIND_ASSOCIATED_CREATE
	if 0 < len(ix.Data) {
		switch {
		case len(ix.Data) == 1 && ix.Data[0] == ATA_CREATE:
		case len(ix.Data) == 1 && ix.Data[0] == ATA_CREATE_IDEMPOTENT:
			kind = KIND_ASSOCIATED_CREATE_IDEMPOTENT
		default:
			return Decoded{}, errors.New("Unsupported associated token account instruction")
		}
	}
	payer, ok1 := ix.Account(0)
	ata, ok2 := ix.Account(1)
	owner, ok3 := ix.Account(2)
	mint, ok4 := ix.Account(3)
	if !(ok1 && ok2 && ok3 && ok4) {
		return Decoded{}, errors.New("Missing associated token account keys")
	}
	return Decoded{Kind: kind, Associated: &AssociatedCreate{
		Payer: payer,
		Ata:   ata,
		Owner: owner,
		Mint:  mint,
	}}, nil
}

func (p associatedProgram) Check(ctx context.Context, s *Session, d Decoded) error {
	create := d.Associated
	if !containsKey(p.mints, create.Mint) {
		return errors.New("Mint not allowed for token account creation")
	}
	if containsKey(p.protocolWallets, create.Owner) {
		return nil
	}
	// without a limiter authenticated callers need a matching close like anyone else
	if s.Options.Caller != nil && p.limiter != nil {
		result, err := p.limiter.CheckLimit(ctx, s.Options.Caller.Hex())
		if err != nil {
			return &internalError{err: err}
		}
		if !result.Allowed {
			return errors.New("Too many token account creations")
		}
		return nil
	}
	return matchClose(s.Decoded, create)
}

// matchClose looks through the whole list, in any order, for a close that returns the
// rent of the created account to the payer that funded it.
func matchClose(list []Decoded, create *AssociatedCreate) error {
	accountMatched := false
	destinationMatched := false
	for _, d := range list {
		if d.Kind != KIND_TOKEN_CLOSE {
			continue
		}
		sameAccount := d.Close.Account.Equals(create.Ata)
		sameDestination := d.Close.Destination.Equals(create.Payer)
		if sameAccount && sameDestination {
			return nil
		}
		accountMatched = accountMatched || sameAccount
		destinationMatched = destinationMatched || sameDestination
	}
	switch {
	case accountMatched:
		return errors.New("Mismatched account creation payer and close instruction destination")
	case destinationMatched:
		return errors.New("Mismatched target token accounts")
	default:
		return errors.New("Missing close instructions")
	}
}
