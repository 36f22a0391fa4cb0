package csvsnapshot

import (
	"os"
	"path/filepath"
	"testing"

	"subscription-mailer-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stripe", "subscriptions.csv")
	snapshot := []*entity.Observation{
		{
			Email:              "a@x.com",
			CustomerId:         "cus_1",
			SubscriptionId:     "sub_1",
			Status:             entity.SubscriptionStatusActive,
			CurrentPeriodStart: "2025-01-01T00:00:00.000Z",
			CurrentPeriodEnd:   "2025-01-31T00:00:00.000Z",
			PlanId:             "price_1",
			PlanAmount:         "24.99",
			Currency:           "usd",
			PlanNickname:       "Core Bundle — Planner, TradeRx",
		},
		{SubscriptionId: "sub_2", Status: entity.SubscriptionStatusCanceled},
	}

	require.NoError(t, WriteSnapshot(path, snapshot))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, entity.SourceCSVWatcher, got[0].Source)
	assert.Equal(t, "a@x.com", got[0].Email)
	assert.Equal(t, "Core Bundle — Planner, TradeRx", got[0].PlanNickname)
	assert.Equal(t, "", got[0].SubscriptionStartDate)
	assert.Equal(t, "2025-01-31T00:00:00.000Z", got[0].CurrentPeriodEnd)

	// blanks were written as N/A and come back with reader defaults
	assert.Equal(t, "", got[1].Email)
	assert.Equal(t, "N/A", got[1].CustomerId)
	assert.Equal(t, "0.00", got[1].PlanAmount)
	assert.Equal(t, "usd", got[1].Currency)
	assert.Equal(t, "Your Subscription", got[1].PlanNickname)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Customer ID,Email,Subscription ID,Status,Subscription Start Date")
}

func TestReadSnapshot_MissingFile(t *testing.T) {
	got, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadSnapshot_ReorderedColumnsAndWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.csv")
	content := "\uFEFFSubscription ID,Status,Email,Plan Nickname\n" +
		" sub_9 , trialing ,  b@x.com  ,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sub_9", got[0].SubscriptionId)
	assert.Equal(t, entity.SubscriptionStatusTrialing, got[0].Status)
	assert.Equal(t, "b@x.com", got[0].Email)
	assert.Equal(t, "Your Subscription", got[0].PlanNickname)
}

func TestReadSnapshot_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}
