package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nftlender/backend/internal/domain/loan"
	"github.com/nftlender/backend/internal/wallet"
)

// Notifier turns projection refreshes and session transitions into hub
// messages. Its methods are registered as listeners; nothing polls.
type Notifier struct {
	hub    *Hub
	logger *slog.Logger
}

func NewNotifier(hub *Hub, logger *slog.Logger) *Notifier {
	return &Notifier{hub: hub, logger: logger}
}

func (n *Notifier) PublishSnapshot(s loan.Snapshot) {
	n.publish(TopicOpenLoans, "open_loans_refreshed", map[string]any{
		"loans":      s.Loans,
		"count":      len(s.Loans),
		"fetched_at": s.FetchedAt.UTC().Format(time.RFC3339),
	})
}

func (n *Notifier) PublishSession(s wallet.Session) {
	n.publish(TopicSession, "session_changed", s)
}

func (n *Notifier) publish(topic, event string, data any) {
	payload, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		n.logger.Error("encode ws event", "event", event, "err", err)
		return
	}
	n.hub.Publish(topic, payload)
}
