package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Address   string
	// Topics is positional; each position is an OR-set, nil matches anything.
	Topics [][]string
}

type LogEntry struct {
	Address         string
	Topics          []string
	Data            string
	BlockNumber     uint64
	TransactionHash string
	LogIndex        uint64
	Removed         bool
}

type LogRPCClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error)
}

type JSONRPCLogClient struct {
	httpURL    string
	httpClient *http.Client
}

func NewJSONRPCLogClient(httpURL string, timeout time.Duration) (*JSONRPCLogClient, error) {
	if strings.TrimSpace(httpURL) == "" {
		return nil, fmt.Errorf("missing CHAIN_RPC_URL")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &JSONRPCLogClient{
		httpURL:    strings.TrimSpace(httpURL),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *JSONRPCLogClient) BlockNumber(ctx context.Context) (uint64, error) {
	var out string
	if err := c.rpc(ctx, "eth_blockNumber", []any{}, &out); err != nil {
		return 0, err
	}
	return parseHexUint64(out)
}

func (c *JSONRPCLogClient) GetLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	topics := make([]any, 0, len(filter.Topics))
	for _, set := range filter.Topics {
		if len(set) == 0 {
			topics = append(topics, nil)
			continue
		}
		topics = append(topics, set)
	}
	reqFilter := map[string]any{
		"fromBlock": fmt.Sprintf("0x%x", filter.FromBlock),
		"toBlock":   fmt.Sprintf("0x%x", filter.ToBlock),
		"address":   filter.Address,
		"topics":    topics,
	}
	var rawLogs []struct {
		Address         string   `json:"address"`
		Topics          []string `json:"topics"`
		Data            string   `json:"data"`
		BlockNumber     string   `json:"blockNumber"`
		TransactionHash string   `json:"transactionHash"`
		LogIndex        string   `json:"logIndex"`
		Removed         bool     `json:"removed"`
	}
	if err := c.rpc(ctx, "eth_getLogs", []any{reqFilter}, &rawLogs); err != nil {
		return nil, err
	}

	out := make([]LogEntry, 0, len(rawLogs))
	for _, item := range rawLogs {
		blockNum, err := parseHexUint64(item.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("invalid blockNumber in log: %w", err)
		}
		logIndex, err := parseHexUint64(item.LogIndex)
		if err != nil {
			return nil, fmt.Errorf("invalid logIndex in log: %w", err)
		}
		out = append(out, LogEntry{
			Address:         item.Address,
			Topics:          item.Topics,
			Data:            item.Data,
			BlockNumber:     blockNum,
			TransactionHash: item.TransactionHash,
			LogIndex:        logIndex,
			Removed:         item.Removed,
		})
	}
	return out, nil
}

func (c *JSONRPCLogClient) rpc(ctx context.Context, method string, params []any, out any) error {
	reqBody, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.httpURL, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if payload.Error != nil {
		return fmt.Errorf("rpc error %d: %s", payload.Error.Code, payload.Error.Message)
	}
	if len(payload.Result) == 0 {
		return fmt.Errorf("rpc empty result")
	}
	if err := json.Unmarshal(payload.Result, out); err != nil {
		return err
	}
	return nil
}

func parseHexUint64(v string) (uint64, error) {
	clean := strings.TrimSpace(strings.ToLower(v))
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	return strconv.ParseUint(clean, 16, 64)
}

const defaultLogBlockBatch = 2000

// LoanEventReader reads the lifecycle events of one loan on demand. Each
// eth_getLogs call covers at most blockBatch blocks.
type LoanEventReader struct {
	logs       LogRPCClient
	registry   common.Address
	fromBlock  uint64
	blockBatch uint64
}

func NewLoanEventReader(logs LogRPCClient, registry common.Address, fromBlock, blockBatch uint64) *LoanEventReader {
	if blockBatch == 0 {
		blockBatch = defaultLogBlockBatch
	}
	return &LoanEventReader{logs: logs, registry: registry, fromBlock: fromBlock, blockBatch: blockBatch}
}

func (r *LoanEventReader) LoanEvents(ctx context.Context, loanID uint64) ([]LoanEvent, error) {
	head, err := r.logs.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	if r.fromBlock > head {
		return []LoanEvent{}, nil
	}

	topics := [][]string{loanEventTopics(), {loanIDTopic(loanID)}}
	var entries []LogEntry
	for from := r.fromBlock; ; {
		to := minUint64(head, from+r.blockBatch-1)
		batch, err := r.logs.GetLogs(ctx, LogFilter{
			FromBlock: from,
			ToBlock:   to,
			Address:   r.registry.Hex(),
			Topics:    topics,
		})
		if err != nil {
			return nil, fmt.Errorf("get logs %d-%d: %w", from, to, err)
		}
		entries = append(entries, batch...)
		if to == head {
			break
		}
		from = to + 1
	}

	out := make([]LoanEvent, 0, len(entries))
	for _, entry := range entries {
		if entry.Removed {
			continue
		}
		ev, ok, err := decodeLoanEvent(entry)
		if err != nil {
			return nil, err
		}
		if !ok || ev.LoanID != loanID {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out, nil
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
