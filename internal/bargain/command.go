package bargain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Command prefixes buyers use to confirm a payment.
const (
	ConfirmPrefix  = "#CONFIRM"
	TransferPrefix = "#TRANSFER"
)

// AddressPlaceholder is the text buyers replace with their address.
const AddressPlaceholder = "your_address"

var (
	balancePattern  = regexp.MustCompile(`#CONFIRM,\s*check if your wallet has BALANCE:\s*<(\d+(?:\.\d+)?)>\s*token`)
	transferPattern = regexp.MustCompile(`#TRANSFER,\s*please transfer NFT_ID:\s*<([\w-]+)>\s*to ADDRESS:\s*<(\w+)>`)
)

// TransactionCommand is a parsed #CONFIRM / #TRANSFER message. Fields the
// message does not carry in the strict grammar stay nil or empty.
type TransactionCommand struct {
	Balance *float64
	NFTID   string
	Address string
}

// Complete reports whether every part of the command was present.
func (c TransactionCommand) Complete() bool {
	return c.Balance != nil && c.NFTID != "" && c.Address != "" && c.Address != AddressPlaceholder
}

// ParseTransactionCommand extracts the balance, NFT id and address from msg.
func ParseTransactionCommand(msg string) TransactionCommand {
	var cmd TransactionCommand
	if m := balancePattern.FindStringSubmatch(msg); m != nil {
		if b, err := strconv.ParseFloat(m[1], 64); err == nil {
			cmd.Balance = &b
		}
	}
	if m := transferPattern.FindStringSubmatch(msg); m != nil {
		cmd.NFTID = m[1]
		cmd.Address = m[2]
	}
	return cmd
}

// IsCommand reports whether msg starts with a transaction command.
func IsCommand(msg string) bool {
	msg = strings.TrimSpace(msg)
	return strings.HasPrefix(msg, ConfirmPrefix) || strings.HasPrefix(msg, TransferPrefix)
}

// ConfirmCommand renders the command a buyer pastes back after paying.
func ConfirmCommand(balance float64, nftID string) string {
	return fmt.Sprintf("#CONFIRM, check if your wallet has BALANCE: <%s> token; #TRANSFER, please transfer NFT_ID: <%s> to ADDRESS: <%s>",
		formatAmount(balance), nftID, AddressPlaceholder)
}

// PaymentInstructions is the reply sent once a price is agreed.
func PaymentInstructions(price float64, wallet, confirm string) string {
	p := formatAmount(price)
	return fmt.Sprintf("#TRANSFER_%s Please transfer %s token to %s. \n\n Once finished, send me a confirmation command:\n '%s' \n\n Copy paste the message and replace %s in '<>' by your address (keep the < >)",
		p, p, wallet, confirm, AddressPlaceholder)
}

// ExpectedBalance is the seller balance after the buyer pays price.
func ExpectedBalance(current, price float64) float64 {
	return round6(current + price)
}

// BalanceMatches applies the relative tolerance check to an observed balance.
func BalanceMatches(actual, expected, tolerance float64) bool {
	return math.Abs(actual-expected) < expected*tolerance
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
