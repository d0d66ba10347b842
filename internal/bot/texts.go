package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/solwatch/internal/journal"
	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/monitor"
)

const (
	textNoWallets   = "No wallets are currently being monitored."
	textNoHistory   = "No activity recorded yet."
	textUnsupported = "Only text messages are supported. Please use /help for available commands."
	textRateLimited = "Too many messages, please slow down."
	textTxFailed    = "Transaction Status: Failed (only the fee was charged)"

	textUnknownCommand = "Unknown command. Please use /help for available commands."
)

func helpText(cmds []commandSpec) string {
	var b strings.Builder
	b.WriteString("Welcome to the SolBot!\n\nCommands:\n")
	for _, c := range cmds {
		fmt.Fprintf(&b, "%s - %s.\n", c.name, c.help)
	}
	b.WriteString("\nTo start, send the /start command and then enter your Solana wallet address when prompted.")
	return b.String()
}

func notificationText(ev monitor.Event) string {
	text := fmt.Sprintf(
		"Transaction detected for your wallet on %s:\n"+
			"Transaction Type: %s\n"+
			"Amount: %s SOL\n"+
			"New Balance: %s SOL\n"+
			"Transaction Signature: %s\n"+
			"Solscan Link: %s\n"+
			"Context Slot: %d",
		ev.Network, ev.Kind.Title(), ledger.FormatSOL(ev.Amount()), ledger.FormatSOL(ev.Balance),
		ev.Signature, ev.ExplorerURL, ev.Slot,
	)
	if ev.TxFailed {
		text += "\n" + textTxFailed
	}
	return text
}

func walletsText(watches []monitor.Watch) string {
	if len(watches) == 0 {
		return textNoWallets
	}
	var b strings.Builder
	b.WriteString("Currently monitored wallets:\n")
	for _, w := range watches {
		nets := make([]string, len(w.Networks))
		for i, n := range w.Networks {
			nets[i] = string(n)
		}
		fmt.Fprintf(&b, "- User ID: %d, Wallet Address: %s (%s)\n", w.UserID, w.Address, strings.Join(nets, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func historyText(entries []journal.Entry, explorerBase string) string {
	if len(entries) == 0 {
		return textNoHistory
	}
	var b strings.Builder
	b.WriteString("Recent activity:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s %s: %s %s SOL",
			e.CreatedAt.UTC().Format("2006-01-02 15:04"), e.Network, directionTitle(e.Direction), ledger.FormatSOL(uint64(e.Lamports)))
		if e.Counterparty != "" {
			fmt.Fprintf(&b, " to %s", e.Counterparty)
		}
		fmt.Fprintf(&b, "\n  %s\n", ledger.ExplorerURL(explorerBase, ledger.Network(e.Network), e.Signature))
	}
	return strings.TrimRight(b.String(), "\n")
}

func directionTitle(d journal.Direction) string {
	switch d {
	case journal.DirectionDeposit:
		return "Deposit"
	case journal.DirectionWithdrawal:
		return "Withdrawal"
	case journal.DirectionTransferOut:
		return "Sent"
	}
	return string(d)
}
