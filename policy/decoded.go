package policy

import (
	"github.com/ethereum/go-ethereum/common"
	sgo "github.com/gagliardetto/solana-go"
)

type Kind int

const (
	KIND_UNKNOWN Kind = iota
	KIND_ASSOCIATED_CREATE
	KIND_ASSOCIATED_CREATE_IDEMPOTENT
	KIND_TOKEN_CLOSE
	KIND_TOKEN_SYNC_NATIVE
	KIND_TOKEN_TRANSFER_CHECKED
	KIND_TOKEN_OTHER
	KIND_CLAIMABLE_CREATE
	KIND_CLAIMABLE_TRANSFER
	KIND_REWARD_PRIVILEGED
	KIND_REWARD_CREATE_SENDER_PUBLIC
	KIND_REWARD_DELETE_SENDER_PUBLIC
	KIND_REWARD_SUBMIT_ATTESTATION
	KIND_REWARD_EVALUATE_ATTESTATIONS
	KIND_SYSTEM_TRANSFER
	KIND_SYSTEM_OTHER
	KIND_JUPITER_SHARED_ACCOUNTS_ROUTE
	KIND_JUPITER_OTHER
	KIND_SECP256K1
	KIND_PASS_THROUGH
)

func (k Kind) String() string {
	switch k {
	case KIND_ASSOCIATED_CREATE:
		return "associatedTokenCreate"
	case KIND_ASSOCIATED_CREATE_IDEMPOTENT:
		return "associatedTokenCreateIdempotent"
	case KIND_TOKEN_CLOSE:
		return "closeAccount"
	case KIND_TOKEN_SYNC_NATIVE:
		return "syncNative"
	case KIND_TOKEN_TRANSFER_CHECKED:
		return "transferChecked"
	case KIND_TOKEN_OTHER:
		return "tokenOther"
	case KIND_CLAIMABLE_CREATE:
		return "createTokenAccount"
	case KIND_CLAIMABLE_TRANSFER:
		return "transfer"
	case KIND_REWARD_PRIVILEGED:
		return "privileged"
	case KIND_REWARD_CREATE_SENDER_PUBLIC:
		return "createSenderPublic"
	case KIND_REWARD_DELETE_SENDER_PUBLIC:
		return "deleteSenderPublic"
	case KIND_REWARD_SUBMIT_ATTESTATION:
		return "submitAttestation"
	case KIND_REWARD_EVALUATE_ATTESTATIONS:
		return "evaluateAttestations"
	case KIND_SYSTEM_TRANSFER:
		return "systemTransfer"
	case KIND_SYSTEM_OTHER:
		return "systemOther"
	case KIND_JUPITER_SHARED_ACCOUNTS_ROUTE:
		return "sharedAccountsRoute"
	case KIND_JUPITER_OTHER:
		return "jupiterOther"
	case KIND_SECP256K1:
		return "secp256k1"
	case KIND_PASS_THROUGH:
		return "passThrough"
	default:
		return "unknown"
	}
}

// Decoded is the typed view of one instruction. Only the field matching Kind is set.
type Decoded struct {
	Kind        Kind
	Index       int
	Instruction Instruction

	Associated *AssociatedCreate
	Close      *TokenClose
	Transfer   *TokenTransferChecked
	Claimable  *ClaimableInstruction
	Reward     *RewardInstruction
	System     *SystemTransfer
	Swap       *JupiterRoute
	Secp       []SecpSignature
}

type AssociatedCreate struct {
	Payer sgo.PublicKey
	Ata   sgo.PublicKey
	Owner sgo.PublicKey
	Mint  sgo.PublicKey
}

type TokenClose struct {
	Account     sgo.PublicKey
	Destination sgo.PublicKey
	Owner       sgo.PublicKey
}

type TokenTransferChecked struct {
	Source      sgo.PublicKey
	Mint        sgo.PublicKey
	Destination sgo.PublicKey
	Owner       sgo.PublicKey
	Amount      uint64
	Decimals    uint8
}

type ClaimableInstruction struct {
	Authority  sgo.PublicKey
	EthAddress common.Address
}

type RewardInstruction struct {
	Tag   uint8
	State sgo.PublicKey
	// false when the instruction carries no account at the state position
	HasState bool
}

type SystemTransfer struct {
	From     sgo.PublicKey
	To       sgo.PublicKey
	Lamports uint64
}

type JupiterRoute struct {
	UserTransferAuthority sgo.PublicKey
	SourceMint            sgo.PublicKey
	DestinationMint       sgo.PublicKey
}

type SecpSignature struct {
	EthAddress common.Address
	Signature  []byte
	RecoveryID uint8
	Message    []byte
}
