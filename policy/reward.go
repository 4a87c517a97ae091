package policy

import (
	"context"
	"errors"
	"fmt"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

const (
	REWARD_INIT                  uint8 = 0
	REWARD_CHANGE_MANAGER        uint8 = 1
	REWARD_CREATE_SENDER         uint8 = 2
	REWARD_DELETE_SENDER         uint8 = 3
	REWARD_CREATE_SENDER_PUBLIC  uint8 = 4
	REWARD_DELETE_SENDER_PUBLIC  uint8 = 5
	REWARD_SUBMIT_ATTESTATION    uint8 = 6
	REWARD_EVALUATE_ATTESTATIONS uint8 = 7
)

type createSenderPublicArgs struct {
	EthAddress [20]byte
	Operator   [20]byte
}

type submitAttestationArgs struct {
	ID string
}

type evaluateAttestationsArgs struct {
	Amount       uint64
	ID           string
	EthRecipient [20]byte
}

type rewardProgram struct {
	state sgo.PublicKey
}

func (p rewardProgram) Decode(ix Instruction) (Decoded, error) {
	if len(ix.Data) == 0 {
		return Decoded{}, errors.New("Missing reward manager instruction data")
	}
	tag := ix.Data[0]
	payload := ix.Data[1:]
	var kind Kind
	var err error
	stateIndex := 0
	switch tag {
	case REWARD_INIT, REWARD_CHANGE_MANAGER, REWARD_CREATE_SENDER, REWARD_DELETE_SENDER:
		kind = KIND_REWARD_PRIVILEGED
	case REWARD_CREATE_SENDER_PUBLIC:
		kind = KIND_REWARD_CREATE_SENDER_PUBLIC
		err = borsh.Deserialize(new(createSenderPublicArgs), payload)
	case REWARD_DELETE_SENDER_PUBLIC:
		kind = KIND_REWARD_DELETE_SENDER_PUBLIC
	case REWARD_SUBMIT_ATTESTATION:
		kind = KIND_REWARD_SUBMIT_ATTESTATION
		stateIndex = 1
		err = borsh.Deserialize(new(submitAttestationArgs), payload)
	case REWARD_EVALUATE_ATTESTATIONS:
		kind = KIND_REWARD_EVALUATE_ATTESTATIONS
		stateIndex = 1
		err = borsh.Deserialize(new(evaluateAttestationsArgs), payload)
	default:
		return Decoded{}, fmt.Errorf("Unsupported reward manager instruction: %d", tag)
	}
	if err != nil {
		return Decoded{}, fmt.Errorf("Malformed reward manager instruction: %s", err.Error())
	}
	state, ok := ix.Account(stateIndex)
	return Decoded{Kind: kind, Reward: &RewardInstruction{
		Tag:      tag,
		State:    state,
		HasState: ok,
	}}, nil
}

// Check applies two independent rules: the variant must be a public one and the
// state account must be the configured reward manager.
func (p rewardProgram) Check(ctx context.Context, s *Session, d Decoded) error {
	if d.Kind == KIND_REWARD_PRIVILEGED {
		return fmt.Errorf("Unsupported reward manager instruction: %d", d.Reward.Tag)
	}
	if !d.Reward.HasState || !d.Reward.State.Equals(p.state) {
		return fmt.Errorf("Invalid reward manager for %s", d.Kind)
	}
	return nil
}
