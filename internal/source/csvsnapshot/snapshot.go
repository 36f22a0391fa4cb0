// Package csvsnapshot reads and writes the subscription snapshot CSV that
// links the Stripe poller to the CSV watcher.
package csvsnapshot

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"subscription-mailer-be/internal/entity"
)

const (
	missingValue    = "N/A"
	defaultNickname = "Your Subscription"
	defaultAmount   = "0.00"
	defaultCurrency = "usd"
)

const (
	colCustomerId    = "Customer ID"
	colEmail         = "Email"
	colSubscription  = "Subscription ID"
	colStatus        = "Status"
	colStartDate     = "Subscription Start Date"
	colPeriodStart   = "Current Period Start"
	colPeriodEnd     = "Current Period End"
	colPlanId        = "Plan ID"
	colPlanNickname  = "Plan Nickname"
	colPlanAmountUSD = "Plan Amount (USD)"
	colCurrency      = "Currency"
)

var Header = []string{
	colCustomerId,
	colEmail,
	colSubscription,
	colStatus,
	colStartDate,
	colPeriodStart,
	colPeriodEnd,
	colPlanId,
	colPlanNickname,
	colPlanAmountUSD,
	colCurrency,
}

// WriteSnapshot replaces the file at path. Empty fields are written as N/A.
func WriteSnapshot(path string, snapshot []*entity.Observation) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	for _, o := range snapshot {
		if o == nil {
			continue
		}
		row := []string{
			o.CustomerId,
			o.Email,
			o.SubscriptionId,
			string(o.Status),
			o.SubscriptionStartDate,
			o.CurrentPeriodStart,
			o.CurrentPeriodEnd,
			o.PlanId,
			o.PlanNickname,
			o.PlanAmount,
			o.Currency,
		}
		for i := range row {
			if row[i] == "" {
				row[i] = missingValue
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write snapshot row %s: %w", o.SubscriptionId, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return replaceFile(path, buf.Bytes())
}

// ReadSnapshot parses the file at path. A missing file is an empty snapshot.
// Columns are matched by header name, so extra or reordered columns are fine.
func ReadSnapshot(path string) ([]*entity.Observation, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []*entity.Observation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []*entity.Observation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))] = i
	}

	var snapshot []*entity.Observation
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot line %d: %w", line, err)
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			v := strings.TrimSpace(record[i])
			if v == missingValue {
				return ""
			}
			return v
		}
		snapshot = append(snapshot, &entity.Observation{
			Source:                entity.SourceCSVWatcher,
			Email:                 get(colEmail),
			CustomerId:            orDefault(get(colCustomerId), missingValue),
			SubscriptionId:        get(colSubscription),
			Status:                entity.SubscriptionStatus(get(colStatus)),
			SubscriptionStartDate: get(colStartDate),
			CurrentPeriodStart:    get(colPeriodStart),
			CurrentPeriodEnd:      get(colPeriodEnd),
			PlanId:                orDefault(get(colPlanId), missingValue),
			PlanAmount:            orDefault(get(colPlanAmountUSD), defaultAmount),
			Currency:              orDefault(get(colCurrency), defaultCurrency),
			PlanNickname:          orDefault(get(colPlanNickname), defaultNickname),
		})
	}
	return snapshot, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// replaceFile writes through a temp file so the watcher never reads half a snapshot.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
