package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contentcal/internal/log"
)

// Keys under which the typed settings are stored.
const (
	KeyProfile       = "user_profile"
	KeyNotifications = "user_notifications"
	KeySubscription  = "premium_subscription"
)

// cancelGrace is how long a cancelled subscription stays premium.
const cancelGrace = 30 * 24 * time.Hour

var (
	ErrNoSubscription = errors.New("no subscription")
	ErrInvalid        = errors.New("invalid settings")
)

type Profile struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Bio   string `json:"bio" yaml:"bio"`
}

func DefaultProfile() Profile {
	return Profile{Name: "User", Email: "user@example.com"}
}

type Notifications struct {
	Email     bool `json:"email" yaml:"email"`
	Push      bool `json:"push" yaml:"push"`
	Marketing bool `json:"marketing" yaml:"marketing"`
}

func DefaultNotifications() Notifications {
	return Notifications{Email: true}
}

// SubscriptionState is the derived view of the subscription at one instant.
type SubscriptionState struct {
	Subscription        *Subscription `json:"subscription"`
	Status              string        `json:"status"`
	Premium             bool          `json:"premium"`
	DaysUntilExpiration *int          `json:"daysUntilExpiration"`
}

// Service exposes typed settings on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Profile(ctx context.Context) (Profile, error) {
	p := DefaultProfile()
	if _, err := s.store.Get(ctx, KeyProfile, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) SaveProfile(ctx context.Context, p Profile) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return fmt.Errorf("%w: email %q is not an address", ErrInvalid, p.Email)
	}
	return s.store.Put(ctx, KeyProfile, p)
}

func (s *Service) Notifications(ctx context.Context) (Notifications, error) {
	n := DefaultNotifications()
	if _, err := s.store.Get(ctx, KeyNotifications, &n); err != nil {
		return Notifications{}, err
	}
	return n, nil
}

func (s *Service) SaveNotifications(ctx context.Context, n Notifications) error {
	return s.store.Put(ctx, KeyNotifications, n)
}

// Subscription loads the stored subscription. Expired records are deleted
// and reported as absent (nil, nil).
func (s *Service) Subscription(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	found, err := s.store.Get(ctx, KeySubscription, &sub)
	if err != nil || !found {
		return nil, err
	}
	if sub.Expired(s.now()) {
		log.Info("subscription expired; removing", "id", sub.ID, "end", sub.EndDate)
		if err := s.store.Delete(ctx, KeySubscription); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &sub, nil
}

func (s *Service) SaveSubscription(ctx context.Context, sub Subscription) error {
	if strings.TrimSpace(sub.Status) == "" {
		return fmt.Errorf("%w: subscription status is required", ErrInvalid)
	}
	if sub.StartDate.IsZero() {
		sub.StartDate = s.now().UTC()
	}
	return s.store.Put(ctx, KeySubscription, sub)
}

// CancelSubscription marks the subscription cancelled; it stays premium for
// another 30 days.
func (s *Service) CancelSubscription(ctx context.Context) (*Subscription, error) {
	sub, err := s.Subscription(ctx)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNoSubscription
	}
	end := s.now().Add(cancelGrace).UTC()
	sub.Status = SubscriptionCancelled
	sub.EndDate = &end
	if err := s.store.Put(ctx, KeySubscription, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) DeleteSubscription(ctx context.Context) error {
	return s.store.Delete(ctx, KeySubscription)
}

// State derives status, premium flag and remaining days.
func (s *Service) State(ctx context.Context) (SubscriptionState, error) {
	sub, err := s.Subscription(ctx)
	if err != nil {
		return SubscriptionState{}, err
	}
	now := s.now()
	st := SubscriptionState{
		Subscription: sub,
		Status:       sub.StatusAt(now),
		Premium:      sub.IsPremium(now),
	}
	if d, ok := sub.DaysUntilExpiration(now); ok {
		st.DaysUntilExpiration = &d
	}
	return st, nil
}

func (s *Service) HasAccess(ctx context.Context, feature string) (bool, error) {
	sub, err := s.Subscription(ctx)
	if err != nil {
		return false, err
	}
	return sub.HasAccess(feature, s.now()), nil
}

// Reset deletes every stored setting.
func (s *Service) Reset(ctx context.Context) error {
	for _, key := range []string{KeyProfile, KeyNotifications, KeySubscription} {
		if err := s.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
