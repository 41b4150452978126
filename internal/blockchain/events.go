package blockchain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

var loanEventSignatures = map[string]string{
	"NewLoan":       "NewLoan(address,uint256)",
	"Loaned":        "Loaned(address,address,uint256,uint256)",
	"RequestClosed": "RequestClosed(address,uint256)",
	"LoanRepayed":   "LoanRepayed(address,address,uint256,uint256)",
	"NftCeased":     "NftCeased(address,address,uint256)",
}

var loanEventByTopic = func() map[string]string {
	out := make(map[string]string, len(loanEventSignatures))
	for name, sig := range loanEventSignatures {
		out[EventTopic(sig)] = name
	}
	return out
}()

func keccakHex(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// EventTopic returns topic0 for an event signature such as "NewLoan(address,uint256)".
func EventTopic(signature string) string {
	return keccakHex([]byte(signature))
}

func loanEventTopics() []string {
	out := make([]string, 0, len(loanEventSignatures))
	for _, sig := range loanEventSignatures {
		out = append(out, EventTopic(sig))
	}
	return out
}

func loanIDTopic(loanID uint64) string {
	return fmt.Sprintf("0x%064x", loanID)
}

// decodeLoanEvent maps a raw log onto a LoanEvent. Every contract event
// indexes the loan id as its only indexed argument.
func decodeLoanEvent(entry LogEntry) (LoanEvent, bool, error) {
	if len(entry.Topics) < 2 {
		return LoanEvent{}, false, nil
	}
	name, ok := loanEventByTopic[strings.ToLower(entry.Topics[0])]
	if !ok {
		return LoanEvent{}, false, nil
	}
	raw := strings.TrimPrefix(strings.ToLower(entry.Topics[1]), "0x")
	id, ok := new(big.Int).SetString(raw, 16)
	if !ok || !id.IsUint64() {
		return LoanEvent{}, false, fmt.Errorf("invalid loan id topic %q", entry.Topics[1])
	}
	return LoanEvent{
		Name:        name,
		LoanID:      id.Uint64(),
		BlockNumber: entry.BlockNumber,
		TxHash:      entry.TransactionHash,
		LogIndex:    entry.LogIndex,
	}, true, nil
}
