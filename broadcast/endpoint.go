package broadcast

import (
	"context"
	"errors"

	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	sgows "github.com/gagliardetto/solana-go/rpc/ws"
	log "github.com/sirupsen/logrus"
)

type Status struct {
	Slot         uint64
	Err          interface{}
	Confirmation sgorpc.ConfirmationStatusType
}

type Simulation struct {
	Err  interface{}
	Logs []string
}

// Endpoint is one network RPC node. Calls are independent and need no locking.
type Endpoint interface {
	Name() string
	SendRawTransaction(ctx context.Context, raw []byte) (sgo.Signature, error)
	Simulate(ctx context.Context, tx *sgo.Transaction) (*Simulation, error)
	// GetSignatureStatus returns nil when the node has not seen the signature.
	GetSignatureStatus(ctx context.Context, sig sgo.Signature) (*Status, error)
	GetBlockHeight(ctx context.Context) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (sgo.Hash, uint64, error)
}

// Subscriber blocks until the network reports the signature at the commitment level.
type Subscriber interface {
	WaitSignature(ctx context.Context, sig sgo.Signature, commitment sgorpc.CommitmentType) (*Status, error)
}

type rpcEndpoint struct {
	name   string
	client *sgorpc.Client
}

func RpcEndpoint(name string, client *sgorpc.Client) Endpoint {
	return rpcEndpoint{name: name, client: client}
}

func (e rpcEndpoint) Name() string {
	return e.name
}

func (e rpcEndpoint) SendRawTransaction(ctx context.Context, raw []byte) (sgo.Signature, error) {
	var noRetry uint = 0
	return e.client.SendRawTransactionWithOpts(ctx, raw, sgorpc.TransactionOpts{
		SkipPreflight: true,
		MaxRetries:    &noRetry,
	})
}

func (e rpcEndpoint) Simulate(ctx context.Context, tx *sgo.Transaction) (*Simulation, error) {
	out, err := e.client.SimulateTransactionWithOpts(ctx, tx, &sgorpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: sgorpc.CommitmentProcessed,
	})
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, errors.New("empty simulation response")
	}
	return &Simulation{Err: out.Value.Err, Logs: out.Value.Logs}, nil
}

func (e rpcEndpoint) GetSignatureStatus(ctx context.Context, sig sgo.Signature) (*Status, error) {
	out, err := e.client.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return nil, nil
	}
	v := out.Value[0]
	return &Status{Slot: v.Slot, Err: v.Err, Confirmation: v.ConfirmationStatus}, nil
}

func (e rpcEndpoint) GetBlockHeight(ctx context.Context) (uint64, error) {
	return e.client.GetBlockHeight(ctx, sgorpc.CommitmentConfirmed)
}

func (e rpcEndpoint) GetLatestBlockhash(ctx context.Context) (sgo.Hash, uint64, error) {
	out, err := e.client.GetLatestBlockhash(ctx, sgorpc.CommitmentConfirmed)
	if err != nil {
		return sgo.Hash{}, 0, err
	}
	if out == nil || out.Value == nil {
		return sgo.Hash{}, 0, errors.New("empty blockhash response")
	}
	return out.Value.Blockhash, out.Value.LastValidBlockHeight, nil
}

type wsSubscriber struct {
	url string
}

// WsSubscriber opens one websocket connection per wait.
func WsSubscriber(url string) Subscriber {
	return wsSubscriber{url: url}
}

func (s wsSubscriber) WaitSignature(ctx context.Context, sig sgo.Signature, commitment sgorpc.CommitmentType) (*Status, error) {
	wsClient, err := sgows.Connect(ctx, s.url)
	if err != nil {
		return nil, err
	}
	defer wsClient.Close()
	sub, err := wsClient.SignatureSubscribe(sig, commitment)
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()
	log.Debugf("subscribed to signature=%s", sig)
	res, err := sub.Recv(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("empty signature notification")
	}
	return &Status{
		Slot:         res.Context.Slot,
		Err:          res.Value.Err,
		Confirmation: sgorpc.ConfirmationStatusType(commitment),
	}, nil
}
