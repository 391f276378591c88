package explorer

import (
	"context"
	"fmt"
	"strings"

	"github.com/checksum0/go-electrum/electrum"
)

// ElectrumConfig holds the address of an Electrum server
type ElectrumConfig struct {
	ServerAddr string
	UseSSL     bool
}

// ElectrumVerifier checks broadcast transactions against an Electrum server.
type ElectrumVerifier struct {
	client *electrum.Client
}

func NewElectrumVerifier(ctx context.Context, config ElectrumConfig) (*ElectrumVerifier, error) {
	var (
		client *electrum.Client
		err    error
	)
	if config.UseSSL {
		client, err = electrum.NewClientSSL(ctx, config.ServerAddr, nil)
	} else {
		client, err = electrum.NewClientTCP(ctx, config.ServerAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to electrum server %s: %w", config.ServerAddr, err)
	}
	return &ElectrumVerifier{client: client}, nil
}

// RawTransaction returns the hex of txid as known to the server.
func (v *ElectrumVerifier) RawTransaction(ctx context.Context, txid string) (string, error) {
	tx, err := v.client.GetRawTransaction(ctx, txid)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no such") {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("error checking Electrum mempool: %w", err)
	}
	return tx, nil
}

// Known reports whether the server has seen txid, in the mempool or a block.
func (v *ElectrumVerifier) Known(ctx context.Context, txid string) (bool, error) {
	tx, err := v.RawTransaction(ctx, txid)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return tx != "", nil
}

func (v *ElectrumVerifier) Close() {
	v.client.Shutdown()
}
