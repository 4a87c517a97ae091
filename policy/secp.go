package policy

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	bin "github.com/gagliardetto/binary"
	"golang.org/x/crypto/sha3"
)

const (
	SECP_OFFSETS_START = 1
	SECP_OFFSETS_SIZE  = 11
	SECP_SIGNATURE_LEN = 64
)

type secpOffsets struct {
	SignatureOffset  uint16
	SignatureIx      uint8
	EthAddressOffset uint16
	EthAddressIx     uint8
	MessageOffset    uint16
	MessageSize      uint16
	MessageIx        uint8
}

type secpProgram struct{}

// Decode reads every signature from the instruction's own data; the instruction
// index fields are not followed.
func (p secpProgram) Decode(ix Instruction) (Decoded, error) {
	data := ix.Data
	if len(data) < SECP_OFFSETS_START {
		return Decoded{}, errors.New("Missing secp256k1 instruction data")
	}
	count := int(data[0])
	if count == 0 {
		return Decoded{}, errors.New("Invalid secp256k1 instruction: no signatures")
	}
	if len(data) < SECP_OFFSETS_START+count*SECP_OFFSETS_SIZE {
		return Decoded{}, errors.New("Invalid secp256k1 instruction: truncated offsets")
	}
	dec := bin.NewBinDecoder(data[SECP_OFFSETS_START:])
	list := make([]SecpSignature, count)
	for i := 0; i < count; i++ {
		o, err := readSecpOffsets(dec)
		if err != nil {
			return Decoded{}, fmt.Errorf("Invalid secp256k1 instruction: %s", err.Error())
		}
		eth, err := slice(data, int(o.EthAddressOffset), common.AddressLength)
		if err != nil {
			return Decoded{}, err
		}
		sig, err := slice(data, int(o.SignatureOffset), SECP_SIGNATURE_LEN+1)
		if err != nil {
			return Decoded{}, err
		}
		msg, err := slice(data, int(o.MessageOffset), int(o.MessageSize))
		if err != nil {
			return Decoded{}, err
		}
		list[i] = SecpSignature{
			EthAddress: common.BytesToAddress(eth),
			Signature:  sig[:SECP_SIGNATURE_LEN],
			RecoveryID: sig[SECP_SIGNATURE_LEN],
			Message:    msg,
		}
	}
	return Decoded{Kind: KIND_SECP256K1, Secp: list}, nil
}

func readSecpOffsets(dec *bin.Decoder) (o secpOffsets, err error) {
	if o.SignatureOffset, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return
	}
	if o.SignatureIx, err = dec.ReadUint8(); err != nil {
		return
	}
	if o.EthAddressOffset, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return
	}
	if o.EthAddressIx, err = dec.ReadUint8(); err != nil {
		return
	}
	if o.MessageOffset, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return
	}
	if o.MessageSize, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return
	}
	o.MessageIx, err = dec.ReadUint8()
	return
}

func slice(data []byte, offset int, size int) ([]byte, error) {
	if len(data) < offset+size {
		return nil, errors.New("Invalid secp256k1 instruction: offset out of range")
	}
	return data[offset : offset+size], nil
}

func (p secpProgram) Check(ctx context.Context, s *Session, d Decoded) error {
	for _, sig := range d.Secp {
		if !VerifySecp(sig) {
			return errors.New("Invalid secp256k1 signature")
		}
	}
	return nil
}

// VerifySecp recovers the signer of keccak256(message) and compares it with the embedded address.
func VerifySecp(sig SecpSignature) bool {
	if 1 < sig.RecoveryID {
		return false
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(sig.Message)
	hash := h.Sum(nil)

	full := make([]byte, SECP_SIGNATURE_LEN+1)
	copy(full, sig.Signature)
	full[SECP_SIGNATURE_LEN] = sig.RecoveryID
	pub, err := ethcrypto.SigToPub(hash, full)
	if err != nil {
		return false
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	return bytes.Equal(recovered.Bytes(), sig.EthAddress.Bytes())
}
