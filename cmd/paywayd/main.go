package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"payway/config"
	"payway/core/events"
	"payway/core/state"
	"payway/crypto"
	"payway/native/storefront"
	"payway/native/token"
	"payway/observability/logging"
	"payway/rpc"
	"payway/storage"
)

// genesisAppliedKey guards the one-time application of configured allocations.
var genesisAppliedKey = []byte("genesis/applied")

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PAYWAY_ENV"))
	logger := logging.Setup("paywayd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	owner, err := cfg.OwnerAddress()
	if err != nil {
		logger.Error("Failed to resolve owner address", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	ledger := token.NewLedger(manager, owner)
	engine := storefront.NewEngine(manager, ledger, owner)

	stream := events.NewStream(0)
	engine.SetEmitter(stream)
	ledger.SetEmitter(stream)

	if err := applyAllocations(manager, ledger, owner, cfg.Allocations, logger); err != nil {
		logger.Error("Failed to apply genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}

	vault := storefront.VaultAddress()
	logger.Info("storefront ready",
		"owner", crypto.MustNewAddress(owner[:]).String(),
		"vault", crypto.MustNewAddress(vault[:]).String(),
	)

	server := rpc.NewServer(engine, ledger, stream, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// applyAllocations seeds the configured native and token balances exactly once
// per data directory.
func applyAllocations(manager *state.Manager, ledger *token.Ledger, owner [20]byte, allocations []config.Allocation, logger *slog.Logger) error {
	var applied bool
	if _, err := manager.KVGet(genesisAppliedKey, &applied); err != nil {
		return err
	}
	if applied {
		return nil
	}
	for _, alloc := range allocations {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(alloc.Address))
		if err != nil {
			return fmt.Errorf("allocation %q: %w", alloc.Address, err)
		}
		raw := addr.Raw()
		if amount, ok := parseAmount(alloc.NativeAmount); ok {
			if err := manager.Credit(raw, amount); err != nil {
				return fmt.Errorf("allocation %q: %w", alloc.Address, err)
			}
			logger.Info("seeded native balance", "address", alloc.Address, "amount", amount.String())
		}
		if amount, ok := parseAmount(alloc.TokenAmount); ok {
			if err := ledger.Mint(owner, raw, amount); err != nil {
				return fmt.Errorf("allocation %q: %w", alloc.Address, err)
			}
			logger.Info("seeded token balance", "address", alloc.Address, "amount", amount.String())
		}
	}
	return manager.KVPut(genesisAppliedKey, true)
}

func parseAmount(value string) (*big.Int, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, false
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, false
	}
	return amount, true
}
