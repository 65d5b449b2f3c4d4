package bargain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleagent/teleagent/internal/bargain"
)

func TestParseTransactionCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      string
		balance  float64
		nftID    string
		address  string
		complete bool
	}{
		{
			name:     "full command with uuid",
			msg:      "#CONFIRM, check if your wallet has BALANCE: <3115> token; #TRANSFER, please transfer NFT_ID: <652f7cce-8a77-4657-8d53-bf27e3ee555b> to ADDRESS: <7KwpXpAKJS8x8NsX6EQxHYmWpyRjs9Qv7PhxqxcS5jV3>",
			balance:  3115,
			nftID:    "652f7cce-8a77-4657-8d53-bf27e3ee555b",
			address:  "7KwpXpAKJS8x8NsX6EQxHYmWpyRjs9Qv7PhxqxcS5jV3",
			complete: true,
		},
		{
			name:     "dot separator and decimal balance",
			msg:      "#CONFIRM, check if your wallet has BALANCE: <12.5> token. #TRANSFER, please transfer NFT_ID: <256wr> to ADDRESS: <ESDFDE>",
			balance:  12.5,
			nftID:    "256wr",
			address:  "ESDFDE",
			complete: true,
		},
		{
			name:    "placeholder address left in place",
			msg:     bargain.ConfirmCommand(4, "nft-1"),
			balance: 4,
			nftID:   "nft-1",
			address: bargain.AddressPlaceholder,
		},
		{
			name:    "transfer part missing",
			msg:     "#CONFIRM, check if your wallet has BALANCE: <1> token",
			balance: 1,
		},
		{
			name:  "balance missing",
			msg:   "#TRANSFER, please transfer NFT_ID: <abc> to ADDRESS: <Addr>",
			nftID: "abc", address: "Addr",
		},
		{
			name: "free text",
			msg:  "#CONFIRM I paid, send it",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cmd := bargain.ParseTransactionCommand(tc.msg)
			if tc.balance > 0 {
				require.NotNil(t, cmd.Balance)
				assert.Equal(t, tc.balance, *cmd.Balance)
			} else {
				assert.Nil(t, cmd.Balance)
			}
			assert.Equal(t, tc.nftID, cmd.NFTID)
			assert.Equal(t, tc.address, cmd.Address)
			assert.Equal(t, tc.complete, cmd.Complete())
		})
	}
}

func TestConfirmCommandCanBeFilledIn(t *testing.T) {
	t.Parallel()

	confirm := bargain.ConfirmCommand(12.000001, "nft-1")
	assert.Equal(t, "#CONFIRM, check if your wallet has BALANCE: <12.000001> token; #TRANSFER, please transfer NFT_ID: <nft-1> to ADDRESS: <your_address>", confirm)

	cmd := bargain.ParseTransactionCommand(strings.Replace(confirm, "your_address", "BuyerAddr9", 1))
	require.True(t, cmd.Complete())
	assert.Equal(t, 12.000001, *cmd.Balance)
	assert.Equal(t, "BuyerAddr9", cmd.Address)
}

func TestPaymentInstructions(t *testing.T) {
	t.Parallel()

	got := bargain.PaymentInstructions(0.5, "SellerWallet", "CMD")
	assert.Equal(t, "#TRANSFER_0.5 Please transfer 0.5 token to SellerWallet. \n\n Once finished, send me a confirmation command:\n 'CMD' \n\n Copy paste the message and replace your_address in '<>' by your address (keep the < >)", got)
}

func TestBalanceChecks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 12.123457, bargain.ExpectedBalance(10.1234566, 2))
	assert.True(t, bargain.BalanceMatches(11.5, 12, 0.1))
	assert.False(t, bargain.BalanceMatches(10.7, 12, 0.1))
	assert.False(t, bargain.BalanceMatches(13.3, 12, 0.1))

	assert.True(t, bargain.IsCommand("  #CONFIRM, check"))
	assert.True(t, bargain.IsCommand("#TRANSFER, please"))
	assert.False(t, bargain.IsCommand("please #CONFIRM"))
}
