package entitlements

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/greatplr/membersync/app/models"
	"github.com/greatplr/membersync/app/repository"
	"github.com/greatplr/membersync/internal/pkg/cache"
	"github.com/greatplr/membersync/internal/pkg/config"
)

const accessCachePrefix = "membersync:access:"

// Service answers access control questions against the locally reconciled
// subscription store. Results are cached per user identifier; the
// reconciliation engine invalidates affected identifiers after every write.
type Service struct {
	repos *repository.Repositories
	cfg   config.Settings
}

func NewService(repos *repository.Repositories, cfg config.Settings) *Service {
	return &Service{repos: repos, cfg: cfg}
}

// ActiveSubscriptions returns the currently active subscriptions for the
// user identified by email. Users without an installation link have no
// entitlements.
func (s *Service) ActiveSubscriptions(email string) ([]models.Subscription, error) {
	subs, err := s.allSubscriptions(email)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	active := make([]models.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.IsActive(now) {
			active = append(active, sub)
		}
	}
	return active, nil
}

// HasProductAccess reports whether the user holds an active subscription to
// any of the given aMember product ids.
func (s *Service) HasProductAccess(email string, productIDs ...uint) (bool, error) {
	active, err := s.ActiveSubscriptions(email)
	if err != nil {
		return false, err
	}
	for _, sub := range active {
		for _, pid := range productIDs {
			if sub.ProductID == pid {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasActiveSubscription reports whether the user holds any active
// subscription at all.
func (s *Service) HasActiveSubscription(email string) (bool, error) {
	active, err := s.ActiveSubscriptions(email)
	if err != nil {
		return false, err
	}
	return len(active) > 0, nil
}

// HasTierAccess reports whether any of the user's active subscriptions maps
// onto the given tier through the installation's product mappings.
func (s *Service) HasTierAccess(email string, tier string) (bool, error) {
	active, err := s.ActiveSubscriptions(email)
	if err != nil {
		return false, err
	}
	for _, sub := range active {
		mapping, err := s.repos.Product.GetByAmemberProduct(sub.InstallationID, sub.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return false, err
		}
		if mapping.Tier == tier {
			return true, nil
		}
	}
	return false, nil
}

// HasFeatureAccess reports whether any of the user's active subscriptions
// maps onto a product whose feature map carries the given flag.
func (s *Service) HasFeatureAccess(email string, feature string) (bool, error) {
	active, err := s.ActiveSubscriptions(email)
	if err != nil {
		return false, err
	}
	for _, sub := range active {
		mapping, err := s.repos.Product.GetByAmemberProduct(sub.InstallationID, sub.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return false, err
		}
		if mapping.HasFeature(feature) {
			return true, nil
		}
	}
	return false, nil
}

// InvalidateAccessCache drops the cached subscription lists for the given
// user identifiers (login and email values as seen on the wire). Safe to
// call with identifiers that were never cached.
func (s *Service) InvalidateAccessCache(identifiers ...string) {
	if !s.cfg.CacheEnabled {
		return
	}
	for _, id := range identifiers {
		if id == "" {
			continue
		}
		if err := cache.Delete(accessCacheKey(id)); err != nil {
			log.Warnf("[Entitlements] failed to invalidate access cache for %s: %v", id, err)
		}
	}
}

// allSubscriptions loads the user's subscription rows, via cache when
// enabled.
func (s *Service) allSubscriptions(email string) ([]models.Subscription, error) {
	if s.cfg.CacheEnabled {
		if cached, err := cache.Get(accessCacheKey(email)); err == nil {
			var subs []models.Subscription
			if err := json.Unmarshal([]byte(cached), &subs); err == nil {
				return subs, nil
			}
		}
	}

	subs, err := s.fetchSubscriptions(email)
	if err != nil {
		return nil, err
	}

	if s.cfg.CacheEnabled {
		if data, err := json.Marshal(subs); err == nil {
			if err := cache.Set(accessCacheKey(email), data, s.cfg.CacheTTL); err != nil {
				log.Warnf("[Entitlements] failed to cache access for %s: %v", email, err)
			}
		}
	}
	return subs, nil
}

func (s *Service) fetchSubscriptions(email string) ([]models.Subscription, error) {
	user, err := s.repos.User.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.repos.Subscription.ListByLocalUser(user)
}

func accessCacheKey(identifier string) string {
	return fmt.Sprintf("%s%s", accessCachePrefix, identifier)
}
