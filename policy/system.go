package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go/programs/system"
)

type systemProgram struct{}

func (p systemProgram) Decode(ix Instruction) (Decoded, error) {
	inst, err := system.DecodeInstruction(ix.Accounts, ix.Data)
	if err != nil {
		return Decoded{}, fmt.Errorf("Malformed system instruction: %s", err.Error())
	}
	if inst.TypeID.Uint32() != system.Instruction_Transfer {
		return Decoded{Kind: KIND_SYSTEM_OTHER}, nil
	}
	from, ok1 := ix.Account(0)
	to, ok2 := ix.Account(1)
	if !(ok1 && ok2) {
		return Decoded{}, errors.New("Missing transfer keys")
	}
	transfer := &SystemTransfer{From: from, To: to}
	if impl, ok := inst.Impl.(*system.Transfer); ok && impl.Lamports != nil {
		transfer.Lamports = *impl.Lamports
	}
	return Decoded{Kind: KIND_SYSTEM_TRANSFER, System: transfer}, nil
}

func (p systemProgram) Check(ctx context.Context, s *Session, d Decoded) error {
	if s.Options.Caller == nil || s.Options.FeePayer == nil {
		return errors.New("System program requires authentication")
	}
	if d.Kind != KIND_SYSTEM_TRANSFER {
		return errors.New("Unsupported system instruction")
	}
	if d.System.From.Equals(*s.Options.FeePayer) {
		return errors.New("Transfers from the fee payer are not allowed")
	}
	return nil
}
