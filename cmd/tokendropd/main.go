package main

import (
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokendrop/config"
	"tokendrop/native/admin"
	"tokendrop/native/bank"
	"tokendrop/native/distribution"
	"tokendrop/observability/logging"
	"tokendrop/rpc"
	"tokendrop/storage"
)

const envVar = "TOKENDROP_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	fundVault := flag.Bool("fund-vault", false, "Credit the vault with both pool caps on first start")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("tokendropd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(time.Now()); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	params, err := cfg.Params()
	if err != nil {
		logger.Error("invalid distribution parameters", "err", err)
		os.Exit(1)
	}
	signer, err := cfg.SignerBytes()
	if err != nil {
		logger.Error("invalid signer address", "err", err)
		os.Exit(1)
	}
	vault, err := cfg.VaultBytes()
	if err != nil {
		logger.Error("invalid vault address", "err", err)
		os.Exit(1)
	}
	owner, err := cfg.OwnerBytes()
	if err != nil {
		logger.Error("invalid owner address", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("failed to open state database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	kv := storage.NewKV(db)

	tokenLedger := bank.NewLedger(kv)
	if *fundVault {
		funded, err := fundVaultOnce(tokenLedger, vault, params)
		if err != nil {
			logger.Error("failed to fund vault", "err", err)
			os.Exit(1)
		}
		if funded {
			logger.Info("vault funded", "mining_cap", params.MiningCap.String(), "referral_cap", params.Vesting.Cap.String())
		} else {
			logger.Info("vault already funded, skipping")
		}
	}

	registry, err := admin.NewRegistry(kv, owner)
	if err != nil {
		logger.Error("failed to build admin registry", "err", err)
		os.Exit(1)
	}

	authorizer, err := distribution.NewAuthorizer(signer, cfg.ChainID)
	if err != nil {
		logger.Error("failed to build authorizer", "err", err)
		os.Exit(1)
	}
	engine, err := distribution.NewEngine(distribution.NewLedger(kv), authorizer, tokenLedger, vault, params)
	if err != nil {
		logger.Error("failed to build distribution engine", "err", err)
		os.Exit(1)
	}
	engine.SetOwnerGate(registry)
	engine.SetPauses(registry)
	// The token ledger shares the engine's store, so binding it to the staged
	// view lets payouts commit atomically with the claim bookkeeping.
	engine.SetTokenFactory(func(store distribution.Storage) distribution.TokenLedger {
		return bank.NewLedger(store)
	})

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics listening", "address", cfg.MetricsAddress)
		if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	server := rpc.NewServer(engine, logger)
	logger.Info("rpc listening", "address", cfg.RPCAddress, "launch_time", params.LaunchTime)
	if err := http.ListenAndServe(cfg.RPCAddress, server); err != nil {
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}

// fundVaultOnce credits the vault with the full allocation unless a balance
// already exists, keeping repeated --fund-vault starts idempotent.
func fundVaultOnce(ledger *bank.Ledger, vault [20]byte, params distribution.Params) (bool, error) {
	balance, err := ledger.BalanceOf(vault)
	if err != nil {
		return false, err
	}
	if balance.Sign() > 0 {
		return false, nil
	}
	if err := ledger.Mint(vault, params.MiningCap); err != nil {
		return false, err
	}
	if err := ledger.Mint(vault, params.Vesting.Cap); err != nil {
		return false, err
	}
	return true, nil
}
