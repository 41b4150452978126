package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || !strings.HasPrefix(out, "nftlender version ") {
		t.Fatalf("unexpected version output %q %v", out, err)
	}
}

func TestLoansListOnStubChain(t *testing.T) {
	t.Setenv("CHAIN_MODE", "stub")
	t.Setenv("WALLET_MODE", "none")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("TXLOG_STORE", "memory")

	out, err := run(t, "loans", "list")
	if err != nil {
		t.Fatalf("loans list: %v", err)
	}
	var loans []any
	if err := json.Unmarshal([]byte(out), &loans); err != nil || len(loans) != 0 {
		t.Fatalf("expected empty JSON list, got %q", out)
	}
}

func TestFundWithoutWalletFails(t *testing.T) {
	t.Setenv("CHAIN_MODE", "stub")
	t.Setenv("WALLET_MODE", "none")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("TXLOG_STORE", "memory")

	_, err := run(t, "loans", "fund", "0")
	if err == nil || !strings.HasPrefix(err.Error(), "provider_unavailable") {
		t.Fatalf("expected provider_unavailable, got %v", err)
	}
	if _, err := run(t, "loans", "show", "x"); err == nil {
		t.Fatalf("expected invalid id error")
	}
}
