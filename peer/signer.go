package peer

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const SIGNATURE_HEADER = "X-Relay-Signature"

var ErrBadSignature = errors.New("bad signature")

// Signer holds the operator identity key shared with the peer directory.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func SignerFromHex(s string) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	return CreateSigner(key), nil
}

func CreateSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey)}
}

func (s *Signer) Address() common.Address {
	return s.address
}

// Sign produces an ethereum personal-sign signature over data, hex encoded.
func (s *Signer) Sign(data []byte) (string, error) {
	sig, err := ethcrypto.Sign(accounts.TextHash(data), s.key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// Recover returns the address that produced signature over data.
func Recover(data []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, ErrBadSignature
	}
	if len(sig) != 65 {
		return common.Address{}, ErrBadSignature
	}
	if 27 <= sig[64] {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(accounts.TextHash(data), sig)
	if err != nil {
		return common.Address{}, ErrBadSignature
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
