package stripe

import (
	"context"
	"errors"
	"testing"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/logger"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceIterator struct {
	subs []*stripeapi.Subscription
	pos  int
	err  error
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.subs) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Subscription() *stripeapi.Subscription {
	return it.subs[it.pos-1]
}

func (it *sliceIterator) Err() error {
	if it.pos >= len(it.subs) {
		return it.err
	}
	return nil
}

type fakeAPI struct {
	subs          []*stripeapi.Subscription
	listErr       error
	customers     map[string]*stripeapi.Customer
	products      map[string]*stripeapi.Product
	customerCalls int
}

func (f *fakeAPI) ListSubscriptions(ctx context.Context) SubscriptionIterator {
	return &sliceIterator{subs: f.subs, err: f.listErr}
}

func (f *fakeAPI) GetCustomer(ctx context.Context, id string) (*stripeapi.Customer, error) {
	f.customerCalls++
	c, ok := f.customers[id]
	if !ok {
		return nil, errors.New("no such customer")
	}
	return c, nil
}

func (f *fakeAPI) GetProduct(ctx context.Context, id string) (*stripeapi.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, errors.New("no such product")
	}
	return p, nil
}

func subscriptionFixture(id, customerId, productId string, amount int64) *stripeapi.Subscription {
	return &stripeapi.Subscription{
		ID:                 id,
		Customer:           &stripeapi.Customer{ID: customerId},
		Status:             stripeapi.SubscriptionStatusActive,
		StartDate:          1735689600, // 2025-01-01
		CurrentPeriodStart: 1735689600,
		CurrentPeriodEnd:   1738281600, // 2025-01-31
		Items: &stripeapi.SubscriptionItemList{
			Data: []*stripeapi.SubscriptionItem{{
				Plan: &stripeapi.Plan{
					ID:       "price_1",
					Nickname: "Monthly",
					Amount:   amount,
					Currency: stripeapi.CurrencyUSD,
					Product:  &stripeapi.Product{ID: productId},
				},
			}},
		},
	}
}

func TestFetcher_FetchSnapshot(t *testing.T) {
	api := &fakeAPI{
		subs: []*stripeapi.Subscription{
			subscriptionFixture("sub_1", "cus_1", "prod_cam", 2499),
			subscriptionFixture("sub_2", "cus_1", "prod_missing", 10000),
			subscriptionFixture("sub_3", "cus_gone", "prod_cam", 5),
		},
		customers: map[string]*stripeapi.Customer{"cus_1": {ID: "cus_1", Email: "a@x.com"}},
		products:  map[string]*stripeapi.Product{"prod_cam": {ID: "prod_cam", Name: "TradeCam"}},
	}
	fetcher := NewFetcherWithAPI(api, logger.NewNopLogger())

	snapshot, err := fetcher.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot, 3)

	first := snapshot[0]
	assert.Equal(t, entity.SourceStripe, first.Source)
	assert.Equal(t, "a@x.com", first.Email)
	assert.Equal(t, "cus_1", first.CustomerId)
	assert.Equal(t, entity.SubscriptionStatusActive, first.Status)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", first.CurrentPeriodStart)
	assert.Equal(t, "2025-01-31T00:00:00.000Z", first.CurrentPeriodEnd)
	assert.Equal(t, "24.99", first.PlanAmount)
	assert.Equal(t, "usd", first.Currency)
	assert.Equal(t, "TradeCam", first.PlanNickname)

	// product lookup failed: plan nickname is kept
	assert.Equal(t, "Monthly", snapshot[1].PlanNickname)
	assert.Equal(t, "100.00", snapshot[1].PlanAmount)

	// customer lookup failed: no email
	assert.Equal(t, "", snapshot[2].Email)
	assert.Equal(t, "0.05", snapshot[2].PlanAmount)

	// cus_1 resolved once for two subscriptions
	assert.Equal(t, 2, api.customerCalls)
}

func TestFetcher_ListErrorAbortsFetch(t *testing.T) {
	api := &fakeAPI{
		subs:    []*stripeapi.Subscription{subscriptionFixture("sub_1", "cus_1", "prod_cam", 2499)},
		listErr: errors.New("api_connection_error"),
	}
	fetcher := NewFetcherWithAPI(api, logger.NewNopLogger())

	snapshot, err := fetcher.FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.Nil(t, snapshot)
	assert.Contains(t, err.Error(), "api_connection_error")
}

func TestFetcher_SubscriptionWithoutItems(t *testing.T) {
	api := &fakeAPI{subs: []*stripeapi.Subscription{{ID: "sub_bare", Status: stripeapi.SubscriptionStatusCanceled}}}
	fetcher := NewFetcherWithAPI(api, logger.NewNopLogger())

	snapshot, err := fetcher.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, entity.SubscriptionStatusCanceled, snapshot[0].Status)
	assert.Equal(t, "", snapshot[0].PlanAmount)
	assert.Equal(t, "", snapshot[0].CurrentPeriodStart)
}

func TestCentsToAmount(t *testing.T) {
	assert.Equal(t, "0.00", centsToAmount(0))
	assert.Equal(t, "24.99", centsToAmount(2499))
	assert.Equal(t, "1234.50", centsToAmount(123450))
}
