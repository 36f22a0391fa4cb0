package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/pkg/mailer"
	"subscription-mailer-be/internal/pkg/productlink"
	"subscription-mailer-be/internal/pkg/serverutils"
	"subscription-mailer-be/internal/repository/filestore"
	"subscription-mailer-be/internal/repository/memory"
	"subscription-mailer-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMailer struct{ sent int }

func (m *nopMailer) SendEmail(context.Context, mailer.Message) error { return nil }

func (m *nopMailer) SendSubscriptionEmail(context.Context, mailer.SubscriptionEmail) error {
	m.sent++
	return nil
}

type stubPoller struct {
	result *service.PollResult
	err    error
	runs   int
}

func (p *stubPoller) RunOnce(ctx context.Context) (*service.PollResult, error) {
	p.runs++
	return p.result, p.err
}

func (p *stubPoller) Run(ctx context.Context, interval time.Duration) {}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	app     *fiber.App
	tracker service.ITrackerService
	mailer  *nopMailer
}

func newTestApp(t *testing.T, poller service.ISnapshotPoller) *testApp {
	t.Helper()
	log := logger.NewNopLogger()
	tracker := service.NewTrackerService(
		memory.NewSubscriptionRecordRepository(),
		filestore.NewSendLogExporter(filepath.Join(t.TempDir(), "sent.csv")),
		log,
	)
	m := &nopMailer{}
	products := productlink.NewMapper("https://downloads.example.com", "", productlink.DefaultMappings)
	delivery := service.NewDeliveryService(tracker, m, products, log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewSubscriptionController(tracker, delivery, poller, products, log).
		RegisterRoutes(app.Group("/api"), func(ctx *fiber.Ctx) error { return ctx.Next() })

	return &testApp{app: app, tracker: tracker, mailer: m}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.app.Test(req)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func observationBody(subId string) map[string]string {
	return map[string]string{
		"email":                "a@x.com",
		"subscription_id":      subId,
		"status":               "active",
		"current_period_start": "2025-01-01T00:00:00Z",
		"current_period_end":   "2025-01-31T00:00:00Z",
		"planNickname":         "TradeCam",
		"plan_amount":          "24.99",
		"currency":             "usd",
	}
}

func TestSubscriptionController_ObservationThenQueries(t *testing.T) {
	a := newTestApp(t, nil)

	status, env := a.do(t, "POST", "/api/subscriptions/observations", observationBody("sub_1"))
	require.Equal(t, fiber.StatusOK, status)
	var delivery struct {
		Action       string `json:"action"`
		DownloadLink string `json:"download_link"`
		Record       struct {
			Duration     string `json:"duration"`
			PlanNickname string `json:"planNickname"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &delivery))
	assert.Equal(t, "sent", delivery.Action)
	assert.Equal(t, "https://downloads.example.com/download/TradeCam", delivery.DownloadLink)
	assert.Equal(t, "30 days", delivery.Record.Duration)
	assert.Equal(t, "TradeCam", delivery.Record.PlanNickname)
	assert.Equal(t, 1, a.mailer.sent)

	status, env = a.do(t, "POST", "/api/subscriptions/observations", observationBody("sub_1"))
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &delivery))
	assert.Equal(t, "skipped_duplicate", delivery.Action)
	assert.Equal(t, 1, a.mailer.sent)

	status, env = a.do(t, "GET", "/api/subscriptions/check?email=a@x.com&subscription_id=sub_1", nil)
	require.Equal(t, fiber.StatusOK, status)
	var check struct {
		ShouldSend bool `json:"should_send"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.False(t, check.ShouldSend)

	status, env = a.do(t, "GET", "/api/subscriptions/stats", nil)
	require.Equal(t, fiber.StatusOK, status)
	var stats struct {
		TotalSubscriptions int            `json:"total_subscriptions"`
		ByPlan             map[string]int `json:"by_plan"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.TotalSubscriptions)
	assert.Equal(t, map[string]int{"TradeCam": 1}, stats.ByPlan)

	status, env = a.do(t, "GET", "/api/subscriptions/by-email/A@X.com", nil)
	require.Equal(t, fiber.StatusOK, status)
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	// start date falls back to the period start
	assert.Equal(t, "2025-01-01T00:00:00Z", records[0]["subscription_start_date"])
	assert.Equal(t, "TradeCam", records[0]["planNickname"])
}

func TestSubscriptionController_ObservationValidation(t *testing.T) {
	a := newTestApp(t, nil)

	body := observationBody("sub_1")
	body["email"] = "not-an-email"
	status, env := a.do(t, "POST", "/api/subscriptions/observations", body)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", env.Message)
	assert.Zero(t, a.mailer.sent)
}

func TestSubscriptionController_CheckRequiresParams(t *testing.T) {
	a := newTestApp(t, nil)
	status, _ := a.do(t, "GET", "/api/subscriptions/check?email=a@x.com", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSubscriptionController_ReconcileWithSnapshotBody(t *testing.T) {
	a := newTestApp(t, nil)
	_, _ = a.do(t, "POST", "/api/subscriptions/observations", observationBody("sub_1"))
	_, _ = a.do(t, "POST", "/api/subscriptions/observations", observationBody("sub_2"))

	status, env := a.do(t, "POST", "/api/subscriptions/reconcile", map[string]interface{}{
		"subscriptions": []map[string]string{
			{"subscription_id": "sub_1", "status": "active"},
			{"subscription_id": "sub_2", "status": "canceled"},
		},
	})
	require.Equal(t, fiber.StatusOK, status)

	var result struct {
		Checked   int `json:"checked"`
		Cancelled []struct {
			SubscriptionId string `json:"subscription_id"`
		} `json:"cancelled"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Checked)
	require.Len(t, result.Cancelled, 1)
	assert.Equal(t, "sub_2", result.Cancelled[0].SubscriptionId)
}

func TestSubscriptionController_ReconcileEmptySnapshotRejected(t *testing.T) {
	a := newTestApp(t, nil)

	status, _ := a.do(t, "POST", "/api/subscriptions/reconcile", map[string]interface{}{
		"subscriptions": []map[string]string{},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSubscriptionController_ReconcileWithoutBody(t *testing.T) {
	t.Run("no upstream", func(t *testing.T) {
		a := newTestApp(t, nil)
		status, _ := a.do(t, "POST", "/api/subscriptions/reconcile", nil)
		assert.Equal(t, fiber.StatusServiceUnavailable, status)
	})

	t.Run("runs the poller", func(t *testing.T) {
		poller := &stubPoller{result: &service.PollResult{
			Source:    "stripe",
			Fetched:   3,
			Reconcile: &entity.ReconcileResult{SnapshotSize: 3},
		}}
		a := newTestApp(t, poller)
		status, env := a.do(t, "POST", "/api/subscriptions/reconcile", nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, 1, poller.runs)
		assert.Contains(t, string(env.Data), `"snapshot_size":3`)
	})

	t.Run("sweep already running", func(t *testing.T) {
		a := newTestApp(t, &stubPoller{err: service.ErrSweepInProgress})
		status, _ := a.do(t, "POST", "/api/subscriptions/reconcile", nil)
		assert.Equal(t, fiber.StatusConflict, status)
	})
}

func TestSubscriptionController_ClearAll(t *testing.T) {
	a := newTestApp(t, nil)
	_, _ = a.do(t, "POST", "/api/subscriptions/observations", observationBody("sub_1"))

	status, _ := a.do(t, "DELETE", "/api/subscriptions", nil)
	require.Equal(t, fiber.StatusOK, status)

	records, err := a.tracker.GetAllSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSubscriptionController_Products(t *testing.T) {
	a := newTestApp(t, nil)

	status, _ := a.do(t, "POST", "/api/subscriptions/products", map[string]string{
		"product_name":  "SignalDeck",
		"download_path": "/download/SignalDeck",
	})
	require.Equal(t, fiber.StatusOK, status)

	status, env := a.do(t, "GET", "/api/subscriptions/products", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), "https://downloads.example.com/download/SignalDeck")
}

func TestSubscriptionController_LogsWithNopLogger(t *testing.T) {
	a := newTestApp(t, nil)
	status, env := a.do(t, "GET", "/api/subscriptions/logs?level=info", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, "System logs", env.Message)
}
