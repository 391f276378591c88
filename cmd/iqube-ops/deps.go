package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Maphikza/iqube-ops/internal/config"
	opsdb "github.com/Maphikza/iqube-ops/internal/database"
	"github.com/Maphikza/iqube-ops/internal/events"
	"github.com/Maphikza/iqube-ops/internal/keyvault"
	"github.com/Maphikza/iqube-ops/internal/ledger"
	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/lib/anchoring"
	"github.com/Maphikza/iqube-ops/lib/explorer"
	"github.com/Maphikza/iqube-ops/lib/status"
	"github.com/Maphikza/iqube-ops/lib/transaction"
)

// deps holds the long-lived clients a command needs. Fields stay nil when
// the command never asks for them.
type deps struct {
	ledger    *ledger.Client
	store     *opsdb.Store
	publisher *events.Publisher
}

func (d *deps) Close() {
	if d.publisher != nil {
		d.publisher.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
}

// newLedgerTransport picks the ledger transport named by ledger.transport.
// "agent" talks Candid to the replica directly; "gateway" posts JSON to an
// HTTP gateway in front of it.
func newLedgerTransport(opts ledger.Options) (ledger.Transport, error) {
	host := viper.GetString("ledger.host")
	timeout := config.Duration("ledger.timeout", 30*time.Second)

	switch mode := viper.GetString("ledger.transport"); mode {
	case "", "agent":
		return ledger.NewAgentTransport(ledger.AgentConfig{
			Host:         host,
			FetchRootKey: viper.GetBool("ledger.fetch_root_key"),
			ServiceIDs:   opts.ServiceIDs,
			Timeout:      timeout,
		})
	case "gateway":
		return ledger.NewHTTPTransport(host, timeout), nil
	default:
		return nil, fmt.Errorf("unknown ledger transport %q", mode)
	}
}

func newLedgerClient() *ledger.Client {
	opts := ledger.OptionsFromConfig()
	transport, err := newLedgerTransport(opts)
	if err != nil {
		fail("Error connecting to ledger: %v", err)
	}
	return ledger.NewClient(transport, opts)
}

// loadDeps opens the ledger client and the result store. The event
// publisher is only connected when nats_url is set.
func loadDeps() *deps {
	d := &deps{ledger: newLedgerClient()}

	store, err := opsdb.InitSQLiteDB(viper.GetString("db_path"))
	if err != nil {
		logger.Warn("Result log unavailable", "error", err)
	} else {
		d.store = store
	}

	if url := viper.GetString("nats_url"); url != "" {
		p, err := events.Connect(url, 10*time.Second)
		if err != nil {
			logger.Warn("Event publishing disabled", "error", err)
		} else {
			d.publisher = p
		}
	}
	return d
}

func (d *deps) anchoringService() *anchoring.Service {
	var opts []anchoring.Option
	if d.store != nil {
		opts = append(opts, anchoring.WithRecorder(d.store))
	}
	if d.publisher != nil {
		opts = append(opts, anchoring.WithPublisher(d.publisher))
	}
	return anchoring.NewService(d.ledger, opts...)
}

func (d *deps) reconciler(indexer *explorer.Indexer) *status.Reconciler {
	opts := []status.Option{
		status.WithMatchMode(status.ParseMatchMode(viper.GetString("status.match_mode"))),
		status.WithRequiredDepth(viper.GetInt64("status.required_depth")),
	}
	if viper.GetBool("status.resolve_depth") && indexer != nil {
		opts = append(opts, status.WithDepthResolver(indexer))
	}
	return status.NewReconciler(d.ledger, d.ledger, opts...)
}

// feePolicy reads the spend parameters from the btc.* keys.
func feePolicy() transaction.FeePolicy {
	return transaction.FeePolicy{
		DefaultFeeRate: viper.GetInt64("btc.default_fee_rate"),
		FeeBuffer:      btcutil.Amount(viper.GetInt64("btc.fee_buffer")),
		DustLimit:      btcutil.Amount(viper.GetInt64("btc.dust_limit")),
	}
}

func newIndexer() *explorer.Indexer {
	return explorer.NewIndexer(
		explorer.NewEsplora(viper.GetString("explorer.esplora_url"), 30*time.Second),
		explorer.NewEsplora(viper.GetString("explorer.mempool_url"), 30*time.Second),
	)
}

func networkParams() *chaincfg.Params {
	switch viper.GetString("btc.network") {
	case "mainnet":
		return &chaincfg.MainNetParams
	case "signet":
		return &chaincfg.SigNetParams
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.TestNet3Params
	}
}

func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv("IQUBE_VAULT_PASSPHRASE"); p != "" {
		return p, nil
	}
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("error reading passphrase: %w", err)
	}
	return strings.TrimSpace(string(passwordBytes)), nil
}

// openSigner unlocks the key vault for the configured session length.
func openSigner() (*keyvault.Session, error) {
	vault, err := keyvault.LoadVault(viper.GetString("btc.vault_path"))
	if err != nil {
		return nil, fmt.Errorf("failed to load key vault: %w", err)
	}
	passphrase, err := readPassphrase("Vault passphrase: ")
	if err != nil {
		return nil, err
	}
	return vault.Open(passphrase, config.Duration("btc.vault_ttl", 5*time.Minute), networkParams())
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Minute)
}
