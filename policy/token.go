package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	sgo "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

type tokenProgram struct {
	collection  sgo.PublicKey
	authorities map[sgo.PublicKey]sgo.PublicKey
}

func (p tokenProgram) Decode(ix Instruction) (Decoded, error) {
	inst, err := token.DecodeInstruction(ix.Accounts, ix.Data)
	if err != nil {
		return Decoded{}, fmt.Errorf("Malformed token instruction: %s", err.Error())
	}
	switch inst.TypeID.Uint8() {
	case token.Instruction_CloseAccount:
		account, ok1 := ix.Account(0)
		destination, ok2 := ix.Account(1)
		owner, ok3 := ix.Account(2)
		if !(ok1 && ok2 && ok3) {
			return Decoded{}, errors.New("Missing close account keys")
		}
		return Decoded{Kind: KIND_TOKEN_CLOSE, Close: &TokenClose{
			Account:     account,
			Destination: destination,
			Owner:       owner,
		}}, nil
	case token.Instruction_SyncNative:
		return Decoded{Kind: KIND_TOKEN_SYNC_NATIVE}, nil
	case token.Instruction_TransferChecked:
		source, ok1 := ix.Account(0)
		mint, ok2 := ix.Account(1)
		destination, ok3 := ix.Account(2)
		owner, ok4 := ix.Account(3)
		if !(ok1 && ok2 && ok3 && ok4) {
			return Decoded{}, errors.New("Missing transfer keys")
		}
		transfer := &TokenTransferChecked{
			Source:      source,
			Mint:        mint,
			Destination: destination,
			Owner:       owner,
		}
		if impl, ok := inst.Impl.(*token.TransferChecked); ok {
			if impl.Amount != nil {
				transfer.Amount = *impl.Amount
			}
			if impl.Decimals != nil {
				transfer.Decimals = *impl.Decimals
			}
		}
		return Decoded{Kind: KIND_TOKEN_TRANSFER_CHECKED, Transfer: transfer}, nil
	default:
		return Decoded{Kind: KIND_TOKEN_OTHER}, nil
	}
}

func (p tokenProgram) Check(ctx context.Context, s *Session, d Decoded) error {
	switch d.Kind {
	case KIND_TOKEN_CLOSE, KIND_TOKEN_SYNC_NATIVE:
		return nil
	case KIND_TOKEN_TRANSFER_CHECKED:
		return p.checkTransfer(s.Options.Caller, d.Transfer)
	default:
		return errors.New("Unsupported token instruction")
	}
}

func (p tokenProgram) checkTransfer(caller *common.Address, transfer *TokenTransferChecked) error {
	if caller == nil {
		return errors.New("Token transfers require authentication")
	}
	if !p.collection.IsZero() && transfer.Destination.Equals(p.collection) {
		return nil
	}
	if authority, present := p.authorities[transfer.Mint]; present {
		userbank, err := userbankFromAuthority(authority, *caller)
		if err != nil {
			return &internalError{err: err}
		}
		if transfer.Destination.Equals(userbank) {
			return nil
		}
	}
	return fmt.Errorf("Invalid destination account: %s", transfer.Destination)
}
