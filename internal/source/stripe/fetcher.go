// Package stripe pulls the full subscription list from Stripe and normalizes
// it into observations for the tracker.
package stripe

import (
	"context"
	"fmt"
	"time"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/logger"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/product"
	"github.com/stripe/stripe-go/v79/subscription"
)

const (
	fetcherModule = "StripeFetcher"
	pageSize      = 100
	isoLayout     = "2006-01-02T15:04:05.000Z"
)

// SubscriptionIterator is satisfied by *subscription.Iter.
type SubscriptionIterator interface {
	Next() bool
	Subscription() *stripeapi.Subscription
	Err() error
}

type API interface {
	ListSubscriptions(ctx context.Context) SubscriptionIterator
	GetCustomer(ctx context.Context, id string) (*stripeapi.Customer, error)
	GetProduct(ctx context.Context, id string) (*stripeapi.Product, error)
}

type liveAPI struct{}

func (liveAPI) ListSubscriptions(ctx context.Context) SubscriptionIterator {
	params := &stripeapi.SubscriptionListParams{}
	params.Limit = stripeapi.Int64(pageSize)
	params.Context = ctx
	return subscription.List(params)
}

func (liveAPI) GetCustomer(ctx context.Context, id string) (*stripeapi.Customer, error) {
	params := &stripeapi.CustomerParams{}
	params.Context = ctx
	return customer.Get(id, params)
}

func (liveAPI) GetProduct(ctx context.Context, id string) (*stripeapi.Product, error) {
	params := &stripeapi.ProductParams{}
	params.Context = ctx
	return product.Get(id, params)
}

type Fetcher struct {
	api    API
	logger logger.ILogger
}

// NewFetcher configures the global Stripe key and talks to the live API.
func NewFetcher(secretKey string, log logger.ILogger) *Fetcher {
	stripeapi.Key = secretKey
	return NewFetcherWithAPI(liveAPI{}, log)
}

func NewFetcherWithAPI(api API, log logger.ILogger) *Fetcher {
	return &Fetcher{api: api, logger: log}
}

func (f *Fetcher) Name() string {
	return string(entity.SourceStripe)
}

// FetchSnapshot pages through every subscription. A listing error aborts the
// whole fetch so a partial list never reaches reconciliation. Customer and
// product lookups fail soft with a warning.
func (f *Fetcher) FetchSnapshot(ctx context.Context) ([]*entity.Observation, error) {
	emails := make(map[string]string)
	products := make(map[string]string)

	var snapshot []*entity.Observation
	iter := f.api.ListSubscriptions(ctx)
	for iter.Next() {
		sub := iter.Subscription()
		if sub == nil {
			continue
		}
		snapshot = append(snapshot, f.toObservation(ctx, sub, emails, products))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe subscriptions: %w", err)
	}

	f.logger.Info(fetcherModule, "Fetched subscription snapshot", map[string]interface{}{"count": len(snapshot)})
	return snapshot, nil
}

func (f *Fetcher) toObservation(ctx context.Context, sub *stripeapi.Subscription, emails, products map[string]string) *entity.Observation {
	obs := &entity.Observation{
		Source:                entity.SourceStripe,
		SubscriptionId:        sub.ID,
		Status:                entity.SubscriptionStatus(sub.Status),
		SubscriptionStartDate: isoFromUnix(sub.StartDate),
		CurrentPeriodStart:    isoFromUnix(sub.CurrentPeriodStart),
		CurrentPeriodEnd:      isoFromUnix(sub.CurrentPeriodEnd),
	}

	if sub.Customer != nil && sub.Customer.ID != "" {
		obs.CustomerId = sub.Customer.ID
		obs.Email = f.customerEmail(ctx, sub.Customer.ID, emails)
	}

	plan := firstPlan(sub)
	if plan == nil {
		return obs
	}
	obs.PlanId = plan.ID
	obs.PlanAmount = centsToAmount(plan.Amount)
	obs.Currency = string(plan.Currency)
	obs.PlanNickname = plan.Nickname
	if plan.Product != nil && plan.Product.ID != "" {
		if name := f.productName(ctx, plan.Product.ID, products); name != "" {
			obs.PlanNickname = name
		}
	}
	return obs
}

func (f *Fetcher) customerEmail(ctx context.Context, id string, cache map[string]string) string {
	if email, ok := cache[id]; ok {
		return email
	}
	c, err := f.api.GetCustomer(ctx, id)
	if err != nil {
		f.logger.Warn(fetcherModule, "Failed to fetch customer email", map[string]interface{}{
			"customer_id": id,
			"error":       err.Error(),
		})
		cache[id] = ""
		return ""
	}
	cache[id] = c.Email
	return c.Email
}

func (f *Fetcher) productName(ctx context.Context, id string, cache map[string]string) string {
	if name, ok := cache[id]; ok {
		return name
	}
	p, err := f.api.GetProduct(ctx, id)
	if err != nil {
		f.logger.Warn(fetcherModule, "Failed to fetch product", map[string]interface{}{
			"product_id": id,
			"error":      err.Error(),
		})
		cache[id] = ""
		return ""
	}
	cache[id] = p.Name
	return p.Name
}

func firstPlan(sub *stripeapi.Subscription) *stripeapi.Plan {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return nil
	}
	return sub.Items.Data[0].Plan
}

func centsToAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func isoFromUnix(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(isoLayout)
}
