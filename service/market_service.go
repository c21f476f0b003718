package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"predictionarena/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ObservedValueCache caches the latest oracle sample per market so value
// reads do not hit the database between samples. Implementations must
// tolerate cache misses; the database row is always the source of truth.
type ObservedValueCache interface {
	GetObservedValue(ctx context.Context, marketID string) (float64, bool, error)
	SetObservedValue(ctx context.Context, marketID string, value float64) error
}

type marketService struct {
	uowFactory     UnitOfWorkFactory
	trustedSources map[string]struct{}
	bannedSources  map[string]struct{}
	valueCache     ObservedValueCache
}

// NewMarketService creates a market catalog service. valueCache may be nil,
// in which case observed values are served from the database only.
func NewMarketService(uowFactory UnitOfWorkFactory, trustedSources, bannedSources []string, valueCache ObservedValueCache) MarketService {
	s := &marketService{
		uowFactory:     uowFactory,
		trustedSources: make(map[string]struct{}, len(trustedSources)),
		bannedSources:  make(map[string]struct{}, len(bannedSources)),
		valueCache:     valueCache,
	}
	for _, src := range trustedSources {
		s.trustedSources[normalizeSource(src)] = struct{}{}
	}
	for _, src := range bannedSources {
		s.bannedSources[normalizeSource(src)] = struct{}{}
	}
	return s
}

func normalizeSource(src string) string {
	return strings.ToLower(strings.TrimSpace(src))
}

// CreateMarket validates a curation definition and opens a market.
func (s *marketService) CreateMarket(ctx context.Context, def models.MarketDefinition) (*models.Market, error) {
	if err := s.validateDefinition(def); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	market := &models.Market{
		ID:                 uuid.NewString(),
		Category:           strings.TrimSpace(def.Category),
		Description:        strings.TrimSpace(def.Description),
		Unit:               strings.TrimSpace(def.Unit),
		SourceName:         normalizeSource(def.SourceName),
		CurrentValue:       def.InitialValue,
		PreviousValue:      def.InitialValue,
		Threshold:          def.Threshold,
		ThresholdDirection: def.ThresholdDirection,
		ResolveAt:          now.Add(time.Duration(def.ResolveDurationHours) * time.Hour),
		Status:             models.MarketStatusOpen,
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.MarketRepository().Create(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to create market: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"marketId":     market.ID,
		"category":     market.Category,
		"source":       market.SourceName,
		"resolveAt":    market.ResolveAt,
		"hasThreshold": market.HasThreshold(),
	}).Info("Created market")

	return market, nil
}

func (s *marketService) validateDefinition(def models.MarketDefinition) error {
	if strings.TrimSpace(def.Description) == "" {
		return fmt.Errorf("market description is required")
	}
	if def.ResolveDurationHours <= 0 {
		return fmt.Errorf("resolve duration must be positive")
	}

	source := normalizeSource(def.SourceName)
	if source == "" {
		return ErrUntrustedSource
	}
	if _, banned := s.bannedSources[source]; banned {
		return ErrUntrustedSource
	}
	if _, trusted := s.trustedSources[source]; !trusted {
		return ErrUntrustedSource
	}

	// Threshold and its direction come as a pair or not at all.
	if (def.Threshold == nil) != (def.ThresholdDirection == nil) {
		return fmt.Errorf("threshold and threshold direction must be set together")
	}
	if def.ThresholdDirection != nil {
		if *def.ThresholdDirection != models.ThresholdAbove && *def.ThresholdDirection != models.ThresholdBelow {
			return fmt.Errorf("invalid threshold direction %q", *def.ThresholdDirection)
		}
	}
	return nil
}

// UpdateObservedValue records a new oracle sample for an open market. The
// update shifts the prior sample into previous_value; samples against a
// non-open market are dropped silently since the settler has already frozen
// the market's inputs.
func (s *marketService) UpdateObservedValue(ctx context.Context, marketID string, value float64, observedAt time.Time) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	market, err := uow.MarketRepository().GetByID(ctx, marketID)
	if err != nil {
		return fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return ErrMarketNotFound
	}

	updated, err := uow.MarketRepository().UpdateObservedValue(ctx, marketID, value)
	if err != nil {
		return fmt.Errorf("failed to update observed value: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if !updated {
		log.WithFields(log.Fields{
			"marketId": marketID,
			"status":   market.Status,
		}).Debug("Dropped oracle sample for non-open market")
		return nil
	}

	if s.valueCache != nil {
		if err := s.valueCache.SetObservedValue(ctx, marketID, value); err != nil {
			log.WithError(err).WithField("marketId", marketID).Warn("Failed to refresh value cache")
		}
	}

	log.WithFields(log.Fields{
		"marketId":   marketID,
		"value":      value,
		"observedAt": observedAt,
	}).Debug("Recorded oracle sample")

	return nil
}

// GetObservedValue serves the latest observed value for a market from the
// cache, refreshing it from the database on a miss.
func (s *marketService) GetObservedValue(ctx context.Context, marketID string) (float64, error) {
	if s.valueCache != nil {
		value, ok, err := s.valueCache.GetObservedValue(ctx, marketID)
		if err != nil {
			log.WithError(err).WithField("marketId", marketID).Warn("Failed to read value cache")
		} else if ok {
			return value, nil
		}
	}

	market, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return 0, err
	}

	if s.valueCache != nil {
		if err := s.valueCache.SetObservedValue(ctx, marketID, market.CurrentValue); err != nil {
			log.WithError(err).WithField("marketId", marketID).Warn("Failed to refresh value cache")
		}
	}
	return market.CurrentValue, nil
}

// GetOpenMarkets returns all open markets ordered by deadline.
func (s *marketService) GetOpenMarkets(ctx context.Context) ([]*models.Market, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	markets, err := uow.MarketRepository().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open markets: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return markets, nil
}

// GetMarket retrieves a market by ID.
func (s *marketService) GetMarket(ctx context.Context, marketID string) (*models.Market, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	market, err := uow.MarketRepository().GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, ErrMarketNotFound
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return market, nil
}
