package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

var solCmd = &cobra.Command{
	Use:   "sol",
	Short: "Use the ledger-held Solana signer",
}

var solAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Show the signer's Solana address",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		addr, err := newLedgerClient().GetSolanaAddress(ctx)
		if err != nil {
			fail("Error reading Solana address: %v", err)
		}
		printJSON(map[string]string{"address": addr})
	},
}

var solBalanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show the balance of an address in lamports",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		lamports, err := newLedgerClient().GetSolanaBalance(ctx, args[0])
		if err != nil {
			fail("Error reading balance: %v", err)
		}
		printJSON(map[string]interface{}{"address": args[0], "lamports": lamports})
	},
}

var solAirdropCmd = &cobra.Command{
	Use:   "airdrop [address] [lamports]",
	Short: "Request a faucet airdrop",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		lamports := parseLamports(args[1])
		ctx, cancel := commandContext()
		defer cancel()

		sig, err := newLedgerClient().RequestAirdrop(ctx, args[0], lamports)
		if err != nil {
			fail("Error requesting airdrop: %v", err)
		}
		printJSON(map[string]string{"signature": sig})
	},
}

var solTransferCmd = &cobra.Command{
	Use:   "transfer [to] [lamports]",
	Short: "Transfer lamports from the signer's address",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		lamports := parseLamports(args[1])
		ctx, cancel := commandContext()
		defer cancel()

		sig, err := newLedgerClient().TransferSOL(ctx, args[0], lamports)
		if err != nil {
			fail("Error sending transfer: %v", err)
		}
		printJSON(map[string]string{"signature": sig})
	},
}

var solTxCmd = &cobra.Command{
	Use:   "tx [signature]",
	Short: "Show the confirmation slot of a transaction",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		st, err := newLedgerClient().GetSolanaTransaction(ctx, args[0])
		if err != nil {
			fail("Error reading transaction: %v", err)
		}
		if st == nil {
			fail("Transaction %s not found", args[0])
		}
		printJSON(st)
	},
}

var solBlockhashCmd = &cobra.Command{
	Use:   "blockhash",
	Short: "Show the latest cluster blockhash",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		hash, err := newLedgerClient().GetLatestBlockhash(ctx)
		if err != nil {
			fail("Error reading blockhash: %v", err)
		}
		printJSON(map[string]string{"blockhash": hash})
	},
}

var solSendRawCmd = &cobra.Command{
	Use:   "send-raw [base64-tx]",
	Short: "Submit a signed, base64 encoded transaction",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		sig, err := newLedgerClient().SendRawSolanaTransaction(ctx, args[0])
		if err != nil {
			fail("Error sending transaction: %v", err)
		}
		printJSON(map[string]string{"signature": sig})
	},
}

func parseLamports(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		fail("Invalid lamports amount: %s", s)
	}
	return n
}

func init() {
	solCmd.AddCommand(solAddressCmd, solBalanceCmd, solAirdropCmd, solTransferCmd, solTxCmd, solBlockhashCmd, solSendRawCmd)
}
