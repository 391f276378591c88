package main

import (
	"strconv"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/Maphikza/iqube-ops/internal/keyvault"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query iQube anchor and dual-lock status",
}

var anchorStatusCmd = &cobra.Command{
	Use:   "anchor [iqube-id]",
	Short: "Show the Bitcoin anchor status of an iQube",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		printJSON(d.reconciler(newIndexer()).GetAnchorStatus(ctx, args[0]))
	},
}

var dualLockStatusCmd = &cobra.Command{
	Use:   "dual-lock [iqube-id]",
	Short: "Show the cross-chain lock status of an iQube",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		printJSON(d.reconciler(nil).GetDualLockStatus(ctx, args[0]))
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit [data] [metadata]",
	Short: "Issue a receipt for data, then batch and anchor",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		metadata := ""
		if len(args) > 1 {
			metadata = args[1]
		}
		res, err := d.anchoringService().SubmitForAnchoring(ctx, args[0], metadata)
		if err != nil {
			fail("Error submitting for anchoring: %v", err)
		}
		printJSON(res)
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint [data-hash]",
	Short: "Issue a proof-of-state receipt for a data hash",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		res, err := d.anchoringService().MintOnLedger(ctx, args[0])
		if err != nil {
			fail("Error minting receipt: %v", err)
		}
		printJSON(res)
	},
}

var anchorNowCmd = &cobra.Command{
	Use:   "anchor-now",
	Short: "Batch pending receipts and anchor them immediately",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		res, err := d.anchoringService().AnchorBatchesNow(ctx)
		if err != nil {
			fail("Error anchoring batches: %v", err)
		}
		printJSON(res)
	},
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List EVM chains known to the RPC service",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		printJSON(d.anchoringService().SupportedChains(ctx))
	},
}

var dvnCmd = &cobra.Command{
	Use:   "dvn",
	Short: "Work with cross-chain DVN messages",
}

var dvnSubmitCmd = &cobra.Command{
	Use:   "submit [source-chain] [dest-chain] [payload]",
	Short: "Submit a cross-chain message",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		src, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			fail("Invalid source chain: %v", err)
		}
		dst, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			fail("Invalid destination chain: %v", err)
		}

		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		id, err := d.anchoringService().SubmitCrossChainMessage(ctx, uint32(src), uint32(dst), args[2])
		if err != nil {
			fail("Error submitting message: %v", err)
		}
		printJSON(map[string]string{"messageId": id})
	},
}

var dvnValidators []string

var dvnAttestCmd = &cobra.Command{
	Use:   "attest [message-id]",
	Short: "Attest a message with each validator",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		ops := d.anchoringService()
		if err := ops.AttestMessage(ctx, args[0], dvnValidators); err != nil {
			fail("Error attesting message: %v", err)
		}
		st, err := ops.GetCrossChainMessageStatus(ctx, args[0])
		if err != nil {
			fail("Error reading message status: %v", err)
		}
		printJSON(st)
	},
}

var dvnStatusCmd = &cobra.Command{
	Use:   "status [message-id]",
	Short: "Show the attestation count of a message",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		st, err := d.anchoringService().GetCrossChainMessageStatus(ctx, args[0])
		if err != nil {
			fail("Error reading message status: %v", err)
		}
		printJSON(st)
	},
}

var dvnPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List messages awaiting attestations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		printJSON(d.anchoringService().PendingMessages(ctx))
	},
}

var dvnReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List messages with enough attestations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		printJSON(d.anchoringService().ReadyMessages(ctx))
	},
}

var burnCmd = &cobra.Command{
	Use:   "burn [receipt-id] [message-id] [true|false]",
	Short: "Set or show the burn state of a receipt",
	Long: `With one argument, show the burn state of the receipt. With three,
record whether the receipt was burned by the given cross-chain message.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return cobra.ExactArgs(3)(cmd, args)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		ctx, cancel := commandContext()
		defer cancel()

		ops := d.anchoringService()
		if len(args) == 1 {
			st, err := ops.GetBurnState(ctx, args[0])
			if err != nil {
				fail("Error reading burn state: %v", err)
			}
			printJSON(st)
			return
		}

		burned, err := strconv.ParseBool(args[2])
		if err != nil {
			fail("Invalid burn flag: %v", err)
		}
		msg, err := ops.SetBurnState(ctx, args[0], args[1], burned)
		if err != nil {
			fail("Error setting burn state: %v", err)
		}
		printJSON(map[string]string{"result": msg})
	},
}

var resultsLimit int

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the most recent operation results",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := loadDeps()
		defer d.Close()
		if d.store == nil {
			fail("Result log unavailable")
		}
		results, err := d.store.RecentResults(resultsLimit)
		if err != nil {
			fail("Error reading results: %v", err)
		}
		printJSON(results)
	},
}

var keygenCopy bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a testnet key with its recovery phrase",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		key, err := keyvault.GenerateKey(networkParams())
		if err != nil {
			fail("Error generating key: %v", err)
		}
		if keygenCopy {
			if err := clipboard.WriteAll(key.WIF); err != nil {
				fail("Error copying key to clipboard: %v", err)
			}
			key.WIF = "(copied to clipboard)"
		}
		printJSON(key)
	},
}

func init() {
	statusCmd.AddCommand(anchorStatusCmd, dualLockStatusCmd)

	dvnAttestCmd.Flags().StringSliceVar(&dvnValidators, "validators", nil, "validators to attest with (default v1,v2)")
	dvnCmd.AddCommand(dvnSubmitCmd, dvnAttestCmd, dvnStatusCmd, dvnPendingCmd, dvnReadyCmd)

	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 10, "number of results to show")
	keygenCmd.Flags().BoolVar(&keygenCopy, "copy", false, "copy the WIF to the clipboard instead of printing it")
}
