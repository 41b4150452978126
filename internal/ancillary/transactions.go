package ancillary

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nftlender/backend/internal/txlog"
)

// MediaFetcher is satisfied by *Media.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, keyword string) (string, error)
}

type SendInput struct {
	Platform string `json:"platform"`
	Sender   string `json:"sender"`
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Message  string `json:"message"`
	Keyword  string `json:"keyword"`
}

// TransactionService simulates a transfer: nothing is sent on chain, the
// transfer is logged, decorated with a generated image and recorded.
type TransactionService struct {
	media  MediaFetcher
	log    txlog.Log
	logger *slog.Logger
	now    func() time.Time
}

func NewTransactionService(media MediaFetcher, log txlog.Log, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		media:  media,
		log:    log,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *TransactionService) Send(ctx context.Context, in SendInput) (string, error) {
	s.logger.Info("sending transaction",
		"platform", in.Platform,
		"sender", in.Sender,
		"address", in.Address,
		"amount", in.Amount,
		"message", in.Message,
	)

	image, err := s.media.FetchMedia(ctx, in.Keyword)
	if err != nil {
		return "", err
	}

	entry := txlog.Entry{
		ID:         uuid.NewString(),
		Platform:   in.Platform,
		Sender:     in.Sender,
		Address:    in.Address,
		Amount:     in.Amount,
		Message:    in.Message,
		Image:      image,
		RecordedAt: s.now(),
	}
	if err := s.log.Record(ctx, entry); err != nil {
		s.logger.Warn("record transaction failed", "id", entry.ID, "err", err)
	}
	return image, nil
}

func (s *TransactionService) Recent(ctx context.Context, n int) ([]txlog.Entry, error) {
	return s.log.Recent(ctx, n)
}
