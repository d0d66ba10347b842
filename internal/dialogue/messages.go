package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/solwatch/internal/ledger"
	"github.com/m3rciful/solwatch/internal/transfer"
)

// Callback data for the key choice buttons.
const (
	ChoicePhrase = "use_secret_phrase"
	ChoiceRawKey = "use_private_key"
)

const (
	textWelcome            = "Welcome! Please enter your Solana wallet address to start monitoring."
	textInvalidAddress     = "Invalid wallet address format. Please provide a valid Solana wallet address."
	textRegisterFirst      = "Please provide your wallet address using the /start command before sending SOL."
	textKeyChoice          = "Choose how you would like to sign the transaction:"
	textEnterPhrase        = "Enter your secret recovery phrase:"
	textEnterRawKey        = "Enter your private key as 64 comma-separated byte values:"
	textInvalidPhrase      = "Invalid recovery phrase. Please try again."
	textInvalidRawFormat   = "Invalid private key. Enter 64 comma-separated numbers between 0 and 255."
	textInvalidRawLength   = "Invalid private key. It must contain exactly 64 byte values."
	textInvalidRawMismatch = "Invalid private key. Its public half does not match the secret half."
	textNetworkChoice      = "Enter the network number to use:"
	textInvalidNetwork     = "Invalid choice. Please select a valid network."
	textEnterRecipient     = "Enter the recipient's Solana wallet address:"
	textInvalidRecipient   = "Invalid recipient wallet address. Please provide a valid Solana wallet address."
	textEnterAmount        = "Enter the amount of SOL to send:"
	textInvalidAmount      = "Invalid amount. Please enter a positive number for the amount of SOL to send."
	textSubmitting         = "Sending transaction, waiting for confirmation..."
	textStopped            = "Stopped monitoring your wallet."
	textNotMonitoring      = "You are not currently monitoring any wallet."
	textUnexpected         = "Unexpected input. Please use /help for available commands."
	textWatchUnavailable   = "Could not start monitoring right now. Please try again later."
	textReauthorizeSuffix  = "Please enter your recovery phrase or private key again."
	textFailedGeneric      = "Failed to send SOL. Please ensure you have enough balance and the addresses are correct."
	textFailedFunds        = "Failed to send SOL: the account does not have enough balance to cover the amount and fee."
	textFailedTimeout      = "The transaction was not confirmed in time."
	textFailedTimeoutCheck = "It may still land, check the link before retrying:"
)

func keyChoiceMessage() Message {
	return Message{
		Text: textKeyChoice,
		Choices: [][]Choice{{
			{Label: "Secret Phrase", Data: ChoicePhrase},
			{Label: "Private Key", Data: ChoiceRawKey},
		}},
	}
}

func networkChoiceMessage(text string) Message {
	row := make([]Choice, 0, len(ledger.Networks))
	for i, n := range ledger.Networks {
		row = append(row, Choice{Label: n.Title(), Data: fmt.Sprint(i + 1)})
	}
	return Message{Text: text, Choices: [][]Choice{row}}
}

func monitoringMessage(addr ledger.Address, networks []ledger.Network) Message {
	names := make([]string, len(networks))
	for i, n := range networks {
		names[i] = string(n)
	}
	return Message{Text: fmt.Sprintf("Monitoring wallet: %s on %s.", addr, joinAnd(names))}
}

func successMessage(lamports uint64, to ledger.Address, res transfer.Result) Message {
	return Message{Text: fmt.Sprintf(
		"Transaction Successful!\nSent %s SOL to %s.\nTransaction Signature: %s\nSolscan Link: %s",
		ledger.FormatSOL(lamports), to, res.Signature, res.ExplorerURL,
	)}
}

func failureMessage(err error, network ledger.Network, explorerBase string) Message {
	var b strings.Builder
	switch transfer.ReasonOf(err) {
	case transfer.ReasonInsufficientFunds:
		b.WriteString(textFailedFunds)
	case transfer.ReasonTimeout:
		b.WriteString(textFailedTimeout)
		if sig := pendingSignature(err); sig != "" {
			fmt.Fprintf(&b, " %s %s", textFailedTimeoutCheck, ledger.ExplorerURL(explorerBase, network, sig))
		}
	default:
		b.WriteString(textFailedGeneric)
	}
	b.WriteString(" ")
	b.WriteString(textReauthorizeSuffix)
	msg := keyChoiceMessage()
	msg.Text = b.String() + "\n\n" + msg.Text
	return msg
}

func pendingSignature(err error) string {
	var te *transfer.Error
	if errors.As(err, &te) {
		return te.Signature
	}
	return ""
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
