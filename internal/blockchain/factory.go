package blockchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlender/backend/internal/config"
)

func NewBackendFromConfig(ctx context.Context, cfg config.Config) (Backend, error) {
	registry := common.HexToAddress(cfg.LoanContractAddress)
	mode := strings.ToLower(strings.TrimSpace(cfg.ChainMode))
	if mode == "" || mode == "stub" {
		initial, err := ParseEther(cfg.StubInitialBalance)
		if err != nil {
			return nil, fmt.Errorf("invalid STUB_INITIAL_BALANCE: %w", err)
		}
		return NewStubChain(registry, initial), nil
	}
	if mode != "real" {
		return nil, fmt.Errorf("invalid CHAIN_MODE: %s", cfg.ChainMode)
	}
	return NewEthBackend(ctx, EthBackendConfig{
		RPCURL:            cfg.ChainRPCURL,
		ChainID:           cfg.ChainID,
		RegistryAddress:   registry,
		PiggyBankAddress:  common.HexToAddress(cfg.PiggyBankAddress),
		EventLogFromBlock: cfg.EventLogFromBlock,
		EventLogBatch:     cfg.EventLogBlockBatch,
		HTTPTimeout:       cfg.HTTPClientTimeout,
		ConfirmTimeout:    cfg.TxConfirmTimeout,
	})
}
