package ancillary

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/blockchain"
	"github.com/nftlender/backend/internal/observability"
)

const historyLimit = 5

type HistoryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Transaction struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       string    `json:"value"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
	Failed      bool      `json:"failed"`
	ExplorerURL string    `json:"explorer_url"`
}

// History looks up the most recent transactions of an address on Etherscan.
// Reads are never cached.
type History struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewHistory(cfg HistoryConfig, logger *slog.Logger, metrics *observability.Metrics) *History {
	return &History{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.Timeout),
		logger:  logger,
		metrics: metrics,
	}
}

type txListResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

type txListItem struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	IsError     string `json:"isError"`
}

// FetchAddressHistory returns at most five transactions, newest first.
func (h *History) FetchAddressHistory(ctx context.Context, address string) ([]Transaction, error) {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return nil, apperr.New(apperr.KindPreconditionFailed, "Enter a valid address.")
	}
	addr := common.HexToAddress(strings.TrimSpace(address))

	items, err := h.txList(ctx, addr)
	if err != nil {
		h.logger.Error("address history fetch failed", "address", addr.Hex(), "err", err)
		h.metrics.ObserveUpstreamFailure("etherscan")
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "Could not load transaction history.", err)
	}

	out := make([]Transaction, 0, historyLimit)
	for _, it := range items {
		if len(out) == historyLimit {
			break
		}
		out = append(out, toTransaction(it))
	}
	return out, nil
}

func (h *History) txList(ctx context.Context, addr common.Address) ([]txListItem, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", addr.Hex())
	q.Set("startblock", "0")
	q.Set("endblock", "99999999")
	q.Set("page", "1")
	q.Set("offset", fmt.Sprint(historyLimit))
	q.Set("sort", "desc")
	q.Set("apikey", h.apiKey)

	req, err := http.NewRequest(http.MethodGet, h.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var raw txListResponse
	if err := doJSON(ctx, h.client, "etherscan", req, &raw); err != nil {
		return nil, err
	}
	if raw.Status != "1" {
		if strings.HasPrefix(strings.ToLower(raw.Message), "no transactions") {
			return []txListItem{}, nil
		}
		return nil, fmt.Errorf("etherscan: %s: %v", raw.Message, raw.Result)
	}

	list, ok := raw.Result.([]any)
	if !ok {
		return nil, fmt.Errorf("etherscan: unexpected result type %T", raw.Result)
	}
	items := make([]txListItem, 0, len(list))
	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, txListItem{
			Hash:        str(m["hash"]),
			From:        str(m["from"]),
			To:          str(m["to"]),
			Value:       str(m["value"]),
			BlockNumber: str(m["blockNumber"]),
			TimeStamp:   str(m["timeStamp"]),
			IsError:     str(m["isError"]),
		})
	}
	return items, nil
}

func toTransaction(it txListItem) Transaction {
	wei, ok := new(big.Int).SetString(it.Value, 10)
	if !ok {
		wei = new(big.Int)
	}
	block, _ := new(big.Int).SetString(it.BlockNumber, 10)
	var blockNumber uint64
	if block != nil && block.IsUint64() {
		blockNumber = block.Uint64()
	}
	var ts time.Time
	if secs, ok := new(big.Int).SetString(it.TimeStamp, 10); ok {
		ts = time.Unix(secs.Int64(), 0).UTC()
	}
	return Transaction{
		Hash:        it.Hash,
		From:        it.From,
		To:          it.To,
		Value:       blockchain.FormatEther(wei),
		BlockNumber: blockNumber,
		Timestamp:   ts,
		Failed:      it.IsError == "1",
		ExplorerURL: "https://etherscan.io/tx/" + it.Hash,
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
