package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"posorder/backend/internal/cart"
	"posorder/backend/internal/domain"
	"posorder/backend/internal/events"
	"posorder/backend/internal/notify"
	"posorder/backend/internal/settings"
	"posorder/backend/internal/store"
	"posorder/backend/internal/validation"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Notifier accepts invoice payloads for out-of-band delivery. Implementations
// must not block the caller or report delivery failures back to it.
type Notifier interface {
	Notify(ctx context.Context, payload notify.InvoicePayload)
}

type Service struct {
	repo         store.Repository
	carts        cart.Store
	notifier     Notifier
	events       events.Publisher
	assetBaseURL string
	now          func() time.Time
}

func New(repo store.Repository, carts cart.Store, notifier Notifier, publisher events.Publisher, assetBaseURL string) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		repo:         repo,
		carts:        carts,
		notifier:     notifier,
		events:       publisher,
		assetBaseURL: assetBaseURL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	customer := domain.Customer{
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
	}

	v := validation.Violations{}
	if customer.Name == "" {
		v.Add("name", "The name field is required.")
	}
	if customer.Email != "" && !strings.Contains(customer.Email, "@") {
		v.Add("email", "The email field must be a valid email address.")
	}
	if err := v.Err(); err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return *created, nil
}

func (s *Service) Settings(ctx context.Context) (domain.SettingsResponse, error) {
	lookup, err := s.lookup(ctx)
	if err != nil {
		return domain.SettingsResponse{}, err
	}
	return domain.SettingsResponse{Settings: lookup.All()}, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.SettingsResponse, error) {
	v := validation.Violations{}
	values := make(map[string]string, len(req.Settings))
	for key, val := range req.Settings {
		if !settings.IsKnown(key) {
			v.Add("settings."+key, "Unknown setting.")
			continue
		}
		values[key] = strings.TrimSpace(val)
	}
	if err := v.Err(); err != nil {
		return domain.SettingsResponse{}, err
	}

	if err := s.repo.UpsertSettings(ctx, values); err != nil {
		return domain.SettingsResponse{}, fmt.Errorf("update settings: %w", err)
	}
	return s.Settings(ctx)
}

func (s *Service) lookup(ctx context.Context) (settings.Lookup, error) {
	stored, err := s.repo.ListSettings(ctx)
	if err != nil {
		return settings.Lookup{}, fmt.Errorf("load settings: %w", err)
	}
	return settings.New(stored), nil
}

func (s *Service) publish(ctx context.Context, eventType string, orderID int64, payload any) {
	env, err := events.NewEnvelope(eventType, orderID, payload)
	if err == nil {
		err = s.events.Publish(ctx, env)
	}
	if err != nil {
		log.Printf("[service] WARN: failed to publish %s for order %d: %v", eventType, orderID, err)
	}
}

// notFound wraps store.ErrNotFound with the entity that was missing.
func notFound(entity string, id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", entity, id, store.ErrNotFound)
	}
	return err
}
