// Package wallet reads agent token balances and records NFT ownership
// changes after a payment has been confirmed.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/database"
)

// LamportsPerSOL converts raw RPC balances to tokens.
const LamportsPerSOL = 1_000_000_000

// ErrUnknownAddress is returned by StaticWallet for unconfigured addresses.
var ErrUnknownAddress = errors.New("unknown wallet address")

// BalanceReader returns the token balance of an address.
type BalanceReader interface {
	Balance(ctx context.Context, address string) (float64, error)
}

// RPCWallet queries a Solana compatible JSON-RPC endpoint.
type RPCWallet struct {
	client *gethrpc.Client
	log    *slog.Logger
}

// NewRPCWallet dials the endpoint at url.
func NewRPCWallet(ctx context.Context, url string, log *slog.Logger) (*RPCWallet, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("wallet rpc url is required")
	}
	client, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet rpc: %w", err)
	}
	return &RPCWallet{client: client, log: log.With("component", "wallet_rpc")}, nil
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

// Balance calls getBalance and converts lamports to SOL.
func (w *RPCWallet) Balance(ctx context.Context, address string) (float64, error) {
	var res balanceResult
	if err := w.client.CallContext(ctx, &res, "getBalance", address); err != nil {
		w.log.ErrorContext(ctx, "getBalance failed", "address", address, "error", err)
		return 0, fmt.Errorf("failed to read balance of %s: %w", address, err)
	}
	balance := float64(res.Value) / LamportsPerSOL
	w.log.DebugContext(ctx, "Read wallet balance", "address", address, "balance", balance)
	return balance, nil
}

// Close releases the RPC connection.
func (w *RPCWallet) Close() {
	w.client.Close()
}

// StaticWallet serves balances from memory. Set adjusts them, which lets
// dry-run deployments and tests simulate incoming payments.
type StaticWallet struct {
	mu       sync.RWMutex
	balances map[string]float64
}

// NewStaticWallet copies balances into a new wallet.
func NewStaticWallet(balances map[string]float64) *StaticWallet {
	w := &StaticWallet{balances: make(map[string]float64, len(balances))}
	for addr, b := range balances {
		w.balances[strings.ToLower(addr)] = b
	}
	return w
}

func (w *StaticWallet) Balance(_ context.Context, address string) (float64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, ok := w.balances[strings.ToLower(address)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}
	return b, nil
}

// Set replaces the balance of address.
func (w *StaticWallet) Set(address string, balance float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[strings.ToLower(address)] = balance
}

// New builds the BalanceReader selected by cfg.Driver. The returned close
// function is never nil.
func New(ctx context.Context, cfg config.WalletConfig, log *slog.Logger) (BalanceReader, func(), error) {
	switch cfg.Driver {
	case "rpc":
		w, err := NewRPCWallet(ctx, cfg.RPCURL, log)
		if err != nil {
			return nil, func() {}, err
		}
		return w, w.Close, nil
	case "static", "":
		return NewStaticWallet(cfg.StaticBalances), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown wallet driver %q", cfg.Driver)
	}
}

// Ledger records off-chain NFT ownership.
type Ledger struct {
	store database.Store
	log   *slog.Logger
}

// NewLedger creates a Ledger over store.
func NewLedger(store database.Store, log *slog.Logger) *Ledger {
	return &Ledger{store: store, log: log.With("component", "ledger")}
}

// TransferNFT moves nftID from fromOwner to toOwner and records the sale.
// It fails with database.ErrOwnerChanged when fromOwner sold it already.
func (l *Ledger) TransferNFT(ctx context.Context, nftID, fromOwner, toOwner string, price float64) (*database.Transaction, error) {
	if toOwner == "" {
		return nil, errors.New("transfer target address is required")
	}
	tx, err := l.store.TransferNFT(ctx, nftID, fromOwner, toOwner, price)
	if err != nil {
		l.log.ErrorContext(ctx, "NFT transfer failed", "nft_id", nftID, "to", toOwner, "error", err)
		return nil, fmt.Errorf("failed to transfer nft %s: %w", nftID, err)
	}
	l.log.InfoContext(ctx, "NFT transferred", "nft_id", nftID, "from", tx.FromOwner, "to", toOwner, "price", price)
	return tx, nil
}
