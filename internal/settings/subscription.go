package settings

import (
	"math"
	"slices"
	"time"
)

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

// Subscription is the stored premium subscription record.
type Subscription struct {
	ID        string     `json:"id" yaml:"id"`
	Status    string     `json:"status" yaml:"status"`
	PlanID    string     `json:"planId" yaml:"plan_id"`
	StartDate time.Time  `json:"startDate" yaml:"start_date"`
	EndDate   *time.Time `json:"endDate,omitempty" yaml:"end_date,omitempty"`
}

// Feature sets checked by HasAccess.
var (
	FreeFeatures    = []string{"basic-calendar", "content-creation", "basic-filtering"}
	PremiumFeatures = []string{"analytics", "bulk-scheduling", "team-collaboration", "ai-suggestions", "advanced-export"}
)

// Expired reports whether the end date has passed.
func (s *Subscription) Expired(now time.Time) bool {
	return s != nil && s.EndDate != nil && s.EndDate.Before(now)
}

// IsPremium is true for active subscriptions and for cancelled ones whose
// end date is still ahead.
func (s *Subscription) IsPremium(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Status == SubscriptionCancelled && s.EndDate != nil {
		return s.EndDate.After(now)
	}
	return s.Status == SubscriptionActive
}

// StatusAt returns none, active, cancelled-active, expired, or the raw
// stored status for anything else.
func (s *Subscription) StatusAt(now time.Time) string {
	if s == nil {
		return "none"
	}
	if s.Status == SubscriptionCancelled {
		if s.EndDate != nil && s.EndDate.After(now) {
			return "cancelled-active"
		}
		return "expired"
	}
	return s.Status
}

// DaysUntilExpiration rounds up to whole days and never goes negative. ok is
// false when there is no end date.
func (s *Subscription) DaysUntilExpiration(now time.Time) (days int, ok bool) {
	if s == nil || s.EndDate == nil {
		return 0, false
	}
	d := int(math.Ceil(s.EndDate.Sub(now).Hours() / 24))
	if d < 0 {
		d = 0
	}
	return d, true
}

// HasAccess reports whether feature is available; unknown features never are.
func (s *Subscription) HasAccess(feature string, now time.Time) bool {
	if slices.Contains(FreeFeatures, feature) {
		return true
	}
	if slices.Contains(PremiumFeatures, feature) {
		return s.IsPremium(now)
	}
	return false
}
