package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/tobiaslindner/billhive/app/models"
	"github.com/tobiaslindner/billhive/internal/pkg/cache"
	"github.com/tobiaslindner/billhive/internal/pkg/database"
	"gorm.io/gorm"
)

// ErrPlanNotFound signals a plan id that does not exist in the catalog.
var ErrPlanNotFound = errors.New("plan not found")

// ErrUnavailable signals that the catalog store could not be read. Callers
// must not treat it as an empty catalog.
var ErrUnavailable = errors.New("plan catalog unavailable")

const planListCacheKey = "catalog:plans"
const planListCacheTTL = 5 * time.Minute

// Service exposes the read-only plan catalog with a redis read-through cache.
// Cache failures degrade to direct store reads.
type Service struct {
	repo     Repository
	useCache bool
}

// NewService creates a catalog service from an injected repository.
func NewService(repo Repository, useCache bool) *Service {
	return &Service{repo: repo, useCache: useCache}
}

// NewServiceFromDB creates a catalog service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), true)
}

// ListPlans returns all active plans ordered by level then id.
func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	if s.useCache {
		if raw, err := cache.Get(planListCacheKey); err == nil {
			var plans []models.Plan
			if jsonErr := json.Unmarshal([]byte(raw), &plans); jsonErr == nil {
				return plans, nil
			}
		} else if !cache.IsNotFound(err) {
			log.Debugf("catalog: cache read failed, falling back to store: %v", err)
		}
	}

	var plans []models.Plan
	err := database.WithRetry(func() error {
		var listErr error
		plans, listErr = s.repo.ListPlans(ctx)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if s.useCache {
		if raw, jsonErr := json.Marshal(plans); jsonErr == nil {
			if cacheErr := cache.Set(planListCacheKey, raw, planListCacheTTL); cacheErr != nil {
				log.Debugf("catalog: cache write failed: %v", cacheErr)
			}
		}
	}
	return plans, nil
}

// GetPlan returns one plan by id or ErrPlanNotFound.
func (s *Service) GetPlan(ctx context.Context, planID uint) (*models.Plan, error) {
	var plan *models.Plan
	err := database.WithRetry(func() error {
		var getErr error
		plan, getErr = s.repo.GetPlan(ctx, planID)
		return getErr
	})
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return plan, nil
}
