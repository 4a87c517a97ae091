package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	sgo "github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/ratelimit"
)

// Program decodes and checks the instructions addressed to one program id.
type Program interface {
	Decode(ix Instruction) (Decoded, error)
	// Check returns an error whose text is the rejection reason.
	Check(ctx context.Context, s *Session, d Decoded) error
}

type FeePayers interface {
	Contains(pk sgo.PublicKey) bool
}

type Limiter interface {
	CheckLimit(ctx context.Context, entity string) (ratelimit.Result, error)
}

// Options describe the caller of a relay request.
type Options struct {
	// Caller is set when the request carried a valid identity signature.
	Caller   *common.Address
	FeePayer *sgo.PublicKey
}

type Configuration struct {
	UsdcMint             sgo.PublicKey
	WaudioMint           sgo.PublicKey
	ClaimableProgram     sgo.PublicKey
	RewardManagerProgram sgo.PublicKey
	RewardManagerState   sgo.PublicKey
	PaymentRouterProgram sgo.PublicKey
	// the one account, besides a userbank, that may receive checked token transfers
	CollectionAccount sgo.PublicKey
	// owners of associated token accounts that need no matching close
	ProtocolWallets []sgo.PublicKey
	PassThrough     []sgo.PublicKey
}

func DefaultConfiguration() Configuration {
	return Configuration{
		UsdcMint:             sgo.MustPublicKeyFromBase58(DEFAULT_USDC_MINT),
		WaudioMint:           sgo.MustPublicKeyFromBase58(DEFAULT_WAUDIO_MINT),
		ClaimableProgram:     sgo.MustPublicKeyFromBase58(DEFAULT_CLAIMABLE_PROGRAM_ID),
		RewardManagerProgram: sgo.MustPublicKeyFromBase58(DEFAULT_REWARD_PROGRAM_ID),
		RewardManagerState:   sgo.MustPublicKeyFromBase58(DEFAULT_REWARD_STATE),
		PaymentRouterProgram: sgo.MustPublicKeyFromBase58(DEFAULT_PAYMENT_ROUTER),
	}
}

func (config Configuration) Check() error {
	if config.UsdcMint.IsZero() {
		return errors.New("no usdc mint")
	}
	if config.WaudioMint.IsZero() {
		return errors.New("no waudio mint")
	}
	if config.ClaimableProgram.IsZero() {
		return errors.New("no claimable tokens program")
	}
	if config.RewardManagerProgram.IsZero() {
		return errors.New("no reward manager program")
	}
	if config.RewardManagerState.IsZero() {
		return errors.New("no reward manager state account")
	}
	return nil
}

type Validator struct {
	config   Configuration
	programs map[sgo.PublicKey]Program
}

// Create registers the policy of every program the relay accepts. limiter may be nil,
// in which case authenticated callers need a matching close like anonymous ones.
func Create(config Configuration, feePayers FeePayers, limiter Limiter) (*Validator, error) {
	if err := config.Check(); err != nil {
		return nil, err
	}
	if feePayers == nil {
		return nil, errors.New("no fee payers")
	}
	usdcAuthority, err := ClaimableAuthority(config.ClaimableProgram, config.UsdcMint)
	if err != nil {
		return nil, err
	}
	waudioAuthority, err := ClaimableAuthority(config.ClaimableProgram, config.WaudioMint)
	if err != nil {
		return nil, err
	}

	v := &Validator{config: config, programs: make(map[sgo.PublicKey]Program)}
	v.Register(sgo.SPLAssociatedTokenAccountProgramID, associatedProgram{
		mints:           []sgo.PublicKey{config.UsdcMint, config.WaudioMint, WSOL_MINT},
		protocolWallets: config.ProtocolWallets,
		limiter:         limiter,
	})
	v.Register(sgo.TokenProgramID, tokenProgram{
		collection:  config.CollectionAccount,
		authorities: map[sgo.PublicKey]sgo.PublicKey{
			config.UsdcMint:   usdcAuthority,
			config.WaudioMint: waudioAuthority,
		},
	})
	v.Register(config.ClaimableProgram, claimableProgram{
		authorities: []sgo.PublicKey{usdcAuthority, waudioAuthority},
	})
	v.Register(config.RewardManagerProgram, rewardProgram{state: config.RewardManagerState})
	v.Register(JUPITER_V6_PROGRAM_ID, jupiterProgram{
		sourceMints:      []sgo.PublicKey{WSOL_MINT, config.UsdcMint},
		destinationMints: []sgo.PublicKey{WSOL_MINT, config.UsdcMint, config.WaudioMint},
		feePayers:        feePayers,
	})
	v.Register(sgo.SystemProgramID, systemProgram{})
	v.Register(SECP256K1_PROGRAM_ID, secpProgram{})

	pass := []sgo.PublicKey{MEMO_PROGRAM_ID, MEMO_V2_PROGRAM_ID, COMPUTE_BUDGET_PROGRAM_ID}
	if !config.PaymentRouterProgram.IsZero() {
		pass = append(pass, config.PaymentRouterProgram)
	}
	pass = append(pass, config.PassThrough...)
	for _, id := range pass {
		v.Register(id, passThroughProgram{})
	}
	return v, nil
}

// Register replaces any earlier policy for id.
func (v *Validator) Register(id sgo.PublicKey, p Program) {
	v.programs[id] = p
}

func (v *Validator) Registered(id sgo.PublicKey) bool {
	_, present := v.programs[id]
	return present
}

// Session is the state shared by the checks of one transaction.
type Session struct {
	Options Options
	Decoded []Decoded
}

// Validate fails on the first instruction, in the given order, that is not permitted.
func (v *Validator) Validate(ctx context.Context, instructions []Instruction, opts Options) error {
	s := &Session{Options: opts, Decoded: make([]Decoded, len(instructions))}
	decodeErr := make([]error, len(instructions))
	for i, ix := range instructions {
		p, present := v.programs[ix.ProgramID]
		if !present {
			decodeErr[i] = fmt.Errorf("Unknown program: %s", ix.ProgramID)
			continue
		}
		d, err := safeDecode(p, ix)
		if err != nil {
			decodeErr[i] = err
			continue
		}
		d.Index = i
		d.Instruction = ix
		s.Decoded[i] = d
	}

	for i, ix := range instructions {
		if decodeErr[i] != nil {
			return reject(i, decodeErr[i])
		}
		err := v.programs[ix.ProgramID].Check(ctx, s, s.Decoded[i])
		if err != nil {
			var internal *internalError
			if errors.As(err, &internal) {
				return internal.err
			}
			return reject(i, err)
		}
	}
	return nil
}

func reject(i int, reason error) error {
	log.Debugf("rejecting instruction %d: %s", i, reason.Error())
	return &InvalidInstructionError{Index: i, Reason: reason.Error()}
}

// instruction data is attacker controlled; a decoder panic is a rejection
func safeDecode(p Program, ix Instruction) (d Decoded, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Malformed instruction: %v", r)
		}
	}()
	return p.Decode(ix)
}

// internalError marks a failure of the relay itself, such as an unreachable rate limit store.
type internalError struct {
	err error
}

func (e *internalError) Error() string {
	return e.err.Error()
}

func containsKey(list []sgo.PublicKey, pk sgo.PublicKey) bool {
	for _, x := range list {
		if x.Equals(pk) {
			return true
		}
	}
	return false
}
