package peer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/store"
)

const (
	TX_CACHE_PREFIX = "relay:tx:"
	TX_CACHE_TTL    = 30 * time.Second
)

// Cache keeps raw getTransaction records for a short time so peers can skip the rpc.
type Cache struct {
	kv store.KV
}

func CreateCache(kv store.KV) Cache {
	return Cache{kv: kv}
}

func Key(sig sgo.Signature) string {
	return TX_CACHE_PREFIX + sig.String()
}

// Put writes the record once per signature; a record already cached is kept.
func (c Cache) Put(ctx context.Context, sig sgo.Signature, raw []byte) error {
	wrote, err := c.kv.SetNX(ctx, Key(sig), raw, TX_CACHE_TTL)
	if err != nil {
		return err
	}
	if !wrote {
		log.Debugf("signature=%s already cached", sig)
	}
	return nil
}

func (c Cache) Get(ctx context.Context, sig sgo.Signature) ([]byte, error) {
	return c.kv.Get(ctx, Key(sig))
}

type rawRecord struct {
	Transaction struct {
		Signatures []string `json:"signatures"`
	} `json:"transaction"`
}

// SignatureOf reads the first signature of a json encoded getTransaction record.
func SignatureOf(raw []byte) (sgo.Signature, error) {
	var record rawRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return sgo.Signature{}, err
	}
	if len(record.Transaction.Signatures) == 0 {
		return sgo.Signature{}, errors.New("record has no signatures")
	}
	return sgo.SignatureFromBase58(record.Transaction.Signatures[0])
}
