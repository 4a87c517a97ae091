package policy

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	sgo "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var (
	MEMO_PROGRAM_ID           = sgo.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
	MEMO_V2_PROGRAM_ID        = sgo.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	COMPUTE_BUDGET_PROGRAM_ID = sgo.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
	SECP256K1_PROGRAM_ID      = sgo.MustPublicKeyFromBase58("KeccakSecp256k11111111111111111111111111111")
	JUPITER_V6_PROGRAM_ID     = sgo.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	WSOL_MINT                 = sgo.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// mainnet defaults
const (
	DEFAULT_USDC_MINT            = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	DEFAULT_WAUDIO_MINT          = "9LzCMqDgTKYz9Drzqnpgee3SGa89up3a247ypMj2xrqM"
	DEFAULT_CLAIMABLE_PROGRAM_ID = "Ewkv3JahEFRKkcJmpoKB7pXbnUHwjAyXiwEo4ZY2rezQ"
	DEFAULT_REWARD_PROGRAM_ID    = "DDZDcYdQFEMwcu2Mwo75yGFjJ1mUQyyXLWzhZLEVFcei"
	DEFAULT_REWARD_STATE         = "71hWFVYokLaN1PNYzTAWi13EfJ7Xt9VbSWUKsXUT8mxE"
	DEFAULT_PAYMENT_ROUTER       = "paytYpX3LPN98TAeen6bFFeraGSuWnomZmCXjAsoqPa"
)

// ClaimableAuthority is the program derived account that owns every userbank of mint.
func ClaimableAuthority(claimableProgram sgo.PublicKey, mint sgo.PublicKey) (sgo.PublicKey, error) {
	authority, _, err := sgo.FindProgramAddress([][]byte{mint.Bytes()}, claimableProgram)
	if err != nil {
		return sgo.PublicKey{}, fmt.Errorf("failed to derive claimable authority for %s: %w", mint, err)
	}
	return authority, nil
}

// DeriveUserbank returns the deposit token account of an ethereum wallet for mint.
func DeriveUserbank(claimableProgram sgo.PublicKey, mint sgo.PublicKey, wallet common.Address) (sgo.PublicKey, error) {
	authority, err := ClaimableAuthority(claimableProgram, mint)
	if err != nil {
		return sgo.PublicKey{}, err
	}
	return userbankFromAuthority(authority, wallet)
}

func userbankFromAuthority(authority sgo.PublicKey, wallet common.Address) (sgo.PublicKey, error) {
	seed := base58.Encode(wallet.Bytes())
	return sgo.CreateWithSeed(authority, seed, sgo.TokenProgramID)
}
