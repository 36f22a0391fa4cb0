package filestore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/repository/contract"
)

var SendLogHeader = []string{
	"Email",
	"Subscription ID",
	"Customer ID",
	"Plan Name",
	"Status",
	"Amount",
	"Currency",
	"Duration",
	"Period Start",
	"Period End",
	"Email Sent At",
	"Created At",
}

type sendLogExporter struct {
	path string
	mu   sync.Mutex
}

// NewSendLogExporter writes the flat CSV send log at path.
func NewSendLogExporter(path string) contract.SendLogExporter {
	return &sendLogExporter{path: path}
}

func (e *sendLogExporter) Append(ctx context.Context, record *entity.SubscriptionRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureHeader(); err != nil {
		return err
	}

	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open send log %s: %w", e.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(sendLogRow(record)); err != nil {
		return fmt.Errorf("write send log row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (e *sendLogExporter) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.writeHeader()
}

func (e *sendLogExporter) ensureHeader() error {
	_, err := os.Stat(e.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat send log %s: %w", e.path, err)
	}
	return e.writeHeader()
}

func (e *sendLogExporter) writeHeader() error {
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", e.path, err)
	}
	f, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("create send log %s: %w", e.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(SendLogHeader); err != nil {
		return fmt.Errorf("write send log header: %w", err)
	}
	w.Flush()
	return w.Error()
}

func sendLogRow(r *entity.SubscriptionRecord) []string {
	return []string{
		r.Email,
		r.SubscriptionId,
		r.CustomerId,
		r.PlanNickname,
		string(r.Status),
		r.PlanAmount,
		r.Currency,
		r.Duration,
		r.CurrentPeriodStart,
		r.CurrentPeriodEnd,
		r.EmailSentAt.UTC().Format(time.RFC3339Nano),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
