package feepayer

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	sgo "github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
)

type Wallet struct {
	PublicKey  sgo.PublicKey
	PrivateKey sgo.PrivateKey
}

// Pool is immutable after creation and safe for concurrent use.
type Pool struct {
	list  []Wallet
	index map[sgo.PublicKey]int
}

func Create(keys []sgo.PrivateKey) (Pool, error) {
	p := Pool{list: make([]Wallet, 0, len(keys)), index: make(map[sgo.PublicKey]int)}
	for _, key := range keys {
		if len(key) != 64 {
			return Pool{}, errors.New("fee payer key must be 64 bytes")
		}
		pk := key.PublicKey()
		if _, present := p.index[pk]; present {
			log.Debugf("duplicate fee payer %s", pk.String())
			continue
		}
		p.index[pk] = len(p.list)
		p.list = append(p.list, Wallet{PublicKey: pk, PrivateKey: key})
	}
	return p, nil
}

// FromStrings accepts base58 secret keys or paths to solana-keygen json files.
func FromStrings(list []string) (Pool, error) {
	keys := make([]sgo.PrivateKey, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if len(s) == 0 {
			continue
		}
		var key sgo.PrivateKey
		var err error
		if strings.HasSuffix(s, ".json") {
			key, err = sgo.PrivateKeyFromSolanaKeygenFile(s)
		} else {
			key, err = sgo.PrivateKeyFromBase58(s)
		}
		if err != nil {
			return Pool{}, fmt.Errorf("failed to load fee payer: %w", err)
		}
		keys = append(keys, key)
	}
	return Create(keys)
}

// Resolve is the only lookup allowed on the relay path.
func (p Pool) Resolve(declared sgo.PublicKey) (Wallet, bool) {
	i, present := p.index[declared]
	if !present {
		return Wallet{}, false
	}
	return p.list[i], true
}

func (p Pool) Contains(pk sgo.PublicKey) bool {
	_, present := p.index[pk]
	return present
}

// Random is for flows that build transactions from scratch.
func (p Pool) Random() (Wallet, bool) {
	if len(p.list) == 0 {
		return Wallet{}, false
	}
	return p.list[rand.Intn(len(p.list))], true
}

func (p Pool) Size() int {
	return len(p.list)
}

func (p Pool) PublicKeys() []sgo.PublicKey {
	ans := make([]sgo.PublicKey, len(p.list))
	for i, w := range p.list {
		ans[i] = w.PublicKey
	}
	return ans
}
