package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Maphikza/iqube-ops/internal/config"
	opsdb "github.com/Maphikza/iqube-ops/internal/database"
	"github.com/Maphikza/iqube-ops/internal/keyvault"
	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/lib/anchoring"
	"github.com/Maphikza/iqube-ops/lib/explorer"
	"github.com/Maphikza/iqube-ops/lib/transaction"
)

var btcCmd = &cobra.Command{
	Use:   "btc",
	Short: "Bitcoin testnet operations",
}

var btcAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Ask the signer service for its Bitcoin address",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		addr, err := d.anchoringService().GetBitcoinAddress(ctx, [][]byte{})
		if err != nil {
			fail("Error getting address: %v", err)
		}
		if d.store != nil {
			if err := d.store.SetMetadata(opsdb.LastAddressKey, addr.Address); err != nil {
				logger.Warn("Failed to remember address", "error", err)
			}
		}
		printJSON(addr)
	},
}

var btcImportCmd = &cobra.Command{
	Use:   "import [wif]",
	Short: "Seal a WIF key into the local key vault",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		passphrase, err := readPassphrase("New vault passphrase: ")
		if err != nil {
			fail("%v", err)
		}
		vault, err := keyvault.Seal(args[0], passphrase, networkParams())
		if err != nil {
			fail("Error sealing key: %v", err)
		}
		path := viper.GetString("btc.vault_path")
		if err := vault.Save(path); err != nil {
			fail("Error saving vault: %v", err)
		}
		printJSON(map[string]string{"address": vault.Address, "vault": path})
	},
}

var btcDirect bool

// chainSource talks to the explorers directly with --direct and through the
// proxy otherwise.
func chainSource() transaction.ChainSource {
	if btcDirect {
		return newIndexer()
	}
	return explorer.NewProxyClient(viper.GetString("btc.proxy_base"), config.Duration("btc.utxo_timeout", 15*time.Second))
}

var btcSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Spend the largest UTXO of the vault key back to itself",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		signer, err := openSigner()
		if err != nil {
			fail("Error opening vault: %v", err)
		}
		defer signer.Close()

		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		var recorder transaction.Recorder
		if d.store != nil {
			recorder = d.store
		}
		sender := transaction.NewSender(chainSource(), recorder)
		sender.EnableRBF = viper.GetBool("btc.enable_rbf")
		sender.Policy = feePolicy()

		res, err := sender.Send(ctx, signer)
		if err != nil {
			fail("Error sending transaction: %v", err)
		}
		printJSON(res)
	},
}

var btcVerifyCmd = &cobra.Command{
	Use:   "verify [txid]",
	Short: "Check whether a transaction reached the mempool or a block",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		txid := args[0]
		result := struct {
			TxID          string `json:"txid"`
			ElectrumKnown *bool  `json:"electrumKnown,omitempty"`
			Confirmations int64  `json:"confirmations"`
			BlockHeight   int64  `json:"blockHeight,omitempty"`
			RequiredDepth int64  `json:"requiredDepth"`
			Anchored      bool   `json:"anchored"`
		}{TxID: txid, RequiredDepth: viper.GetInt64("status.required_depth")}

		verifier, err := explorer.NewElectrumVerifier(ctx, explorer.ElectrumConfig{
			ServerAddr: viper.GetString("explorer.electrum_server"),
			UseSSL:     viper.GetBool("explorer.electrum_ssl"),
		})
		if err != nil {
			logger.Warn("Electrum unavailable", "error", err)
		} else {
			defer verifier.Close()
			known, err := verifier.Known(ctx, txid)
			if err != nil {
				logger.Warn("Electrum lookup failed", "txid", txid, "error", err)
			} else {
				result.ElectrumKnown = &known
			}
		}

		depth, err := newIndexer().Confirmations(ctx, txid)
		if err != nil {
			fail("Error checking transaction: %v", err)
		}
		result.Confirmations = depth.Confirmations
		result.BlockHeight = depth.BlockHeight
		result.Anchored = depth.Anchored(result.RequiredDepth)
		printJSON(result)
	},
}

var btcWaitDepth int64

var btcWaitCmd = &cobra.Command{
	Use:   "wait [txid]",
	Short: "Block until a transaction reaches the required depth",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
		defer cancel()

		depth, err := newIndexer().WaitForConfirmations(ctx, args[0], btcWaitDepth, time.Minute)
		if err != nil {
			fail("Error waiting for confirmations: %v", err)
		}
		printJSON(depth)
	},
}

var btcFeesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Show the recommended fee rates",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		rec, err := explorer.RecommendedFees(ctx, explorer.NewEsplora(viper.GetString("explorer.mempool_url"), 30*time.Second))
		if err != nil {
			fail("Error fetching fees: %v", err)
		}
		printJSON(rec)
	},
}

var btcAnchorCmd = &cobra.Command{
	Use:   "anchor [data-root] [amount-sats]",
	Short: "Have the signer service anchor a data root from its own address",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fail("Invalid amount: %v", err)
		}

		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		ops := d.anchoringService()
		addr, err := ops.GetBitcoinAddress(ctx, [][]byte{})
		if err != nil {
			fail("Error getting signer address: %v", err)
		}
		utxos, err := anchoring.FetchSignerUTXOs(ctx, newIndexer(), addr.Address)
		if err != nil {
			fail("Error fetching UTXOs: %v", err)
		}
		if len(utxos) == 0 {
			fail("No UTXOs at %s", addr.Address)
		}

		txid, err := ops.CreateSignBroadcastAnchor(ctx, args[0], utxos, amount, addr.DerivationPath)
		if err != nil {
			fail("Error anchoring: %v", err)
		}
		printJSON(map[string]string{"txid": txid, "address": addr.Address})
	},
}

func init() {
	btcCmd.PersistentFlags().BoolVar(&btcDirect, "direct", false, "talk to the explorers directly instead of the proxy")
	btcWaitCmd.Flags().Int64Var(&btcWaitDepth, "depth", 6, "confirmations to wait for")

	btcCmd.AddCommand(btcAddressCmd, btcImportCmd, btcSendCmd, btcVerifyCmd, btcWaitCmd, btcFeesCmd, btcAnchorCmd)
}
