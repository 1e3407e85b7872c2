package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/logging"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/market"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"go.uber.org/zap"
)

// Service holds the editable site copy such as the about and contact pages.
type Service struct {
	repo   store.ContentRepo
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo store.ContentRepo, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logging.OrNop(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) All(ctx context.Context) (map[string]string, error) {
	entries, err := s.repo.ListContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

func (s *Service) Set(ctx context.Context, p market.Principal, key, value string) (*models.ContentEntry, error) {
	if !p.Authenticated() {
		return nil, market.ErrAuthRequired
	}
	if !p.IsAdmin {
		return nil, market.ErrForbidden
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &market.ValidationError{Field: "key", Reason: "must not be empty"}
	}

	entry := models.ContentEntry{Key: key, Value: value, UpdatedAt: s.now()}
	if err := s.repo.PutContent(ctx, entry); err != nil {
		return nil, fmt.Errorf("put content: %w", err)
	}

	s.logger.Info("site content updated", zap.String("key", key), zap.String("admin_id", p.ID))
	return &entry, nil
}
