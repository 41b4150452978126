package blockchain

import (
	"math/big"
	"testing"
)

func TestFormatEther(t *testing.T) {
	cases := map[string]string{
		"0":                    "0",
		"1000000000000000000":  "1",
		"1050000000000000000":  "1.05",
		"1":                    "0.000000000000000001",
		"12345600000000000000": "12.3456",
	}
	for in, want := range cases {
		wei, _ := new(big.Int).SetString(in, 10)
		if got := FormatEther(wei); got != want {
			t.Fatalf("FormatEther(%s) = %s, want %s", in, got, want)
		}
	}
	if FormatEther(nil) != "0" {
		t.Fatalf("nil should format as 0")
	}
}

func TestParseEther(t *testing.T) {
	wei, err := ParseEther(" 1.05 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if wei.String() != "1050000000000000000" {
		t.Fatalf("unexpected wei: %s", wei)
	}

	wei, err = ParseEther("0.000000000000000001")
	if err != nil || wei.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected 1 wei, got %v (%v)", wei, err)
	}

	for _, bad := range []string{"", "abc", "-1", "0.0000000000000000001"} {
		if _, err := ParseEther(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseUint(t *testing.T) {
	n, err := ParseUint("42")
	if err != nil || n.Int64() != 42 {
		t.Fatalf("unexpected parse: %v %v", n, err)
	}
	for _, bad := range []string{"", "-3", "1.5", "x"} {
		if _, err := ParseUint(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
