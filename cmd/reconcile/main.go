package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"subscription-mailer-be/internal/bootstrap"
	"subscription-mailer-be/internal/config"
	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/source/csvsnapshot"
	"subscription-mailer-be/pkg/database"

	"github.com/fatih/color"
	"gorm.io/gorm"
)

func main() {
	snapshotPath := flag.String("snapshot", "", "reconcile against this snapshot CSV instead of Stripe")
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	flag.Parse()

	cfg := config.Load()

	var gormDB *gorm.DB
	if cfg.Tracker.Store == "gorm" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
		if err != nil {
			color.Red("Failed to connect to database: %v", err)
			os.Exit(1)
		}
		gormDB = db
	}

	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	snapshot, source, err := loadSnapshot(ctx, container, *snapshotPath)
	if err != nil {
		color.Red("Failed to load snapshot: %v", err)
		os.Exit(1)
	}
	color.Cyan("Loaded %d subscriptions from %s", len(snapshot), source)

	result, err := container.Tracker.Reconcile(ctx, snapshot)
	if result != nil {
		printResult(result)
	}
	if err != nil {
		color.Red("Reconciliation failed: %v", err)
		os.Exit(1)
	}

	stats, err := container.Tracker.GetStatistics(ctx)
	if err != nil {
		color.Red("Failed to load statistics: %v", err)
		os.Exit(1)
	}
	printStats(stats)
}

func loadSnapshot(ctx context.Context, c *bootstrap.Container, path string) ([]*entity.Observation, string, error) {
	if path != "" {
		rows, err := csvsnapshot.ReadSnapshot(path)
		return rows, path, err
	}
	if c.Snapshots == nil {
		return nil, "", fmt.Errorf("STRIPE_SECRET_KEY is not set; pass -snapshot to use a CSV file")
	}
	rows, err := c.Snapshots.FetchSnapshot(ctx)
	return rows, c.Snapshots.Name(), err
}

func printResult(r *entity.ReconcileResult) {
	color.Yellow("\nReconciliation")
	fmt.Printf("  snapshot size:      %d\n", r.SnapshotSize)
	fmt.Printf("  records checked:    %d\n", r.Checked)
	fmt.Printf("  already cancelled:  %d\n", r.AlreadyCancelled)

	if len(r.Cancelled) == 0 {
		color.Green("  no new cancellations")
		return
	}
	color.Red("  newly cancelled:    %d", len(r.Cancelled))
	for _, k := range r.Cancelled {
		fmt.Printf("    - %s (%s)\n", k.Email, k.SubscriptionId)
	}
}

func printStats(s *entity.SubscriptionStats) {
	color.Yellow("\nSend log")
	fmt.Printf("  emails sent:        %d\n", s.TotalEmailsSent)
	fmt.Printf("  unique customers:   %d\n", s.UniqueCustomers)
	fmt.Printf("  live at send time:  %d\n", s.ActiveSubscriptions)

	plans := make([]string, 0, len(s.ByPlan))
	for plan := range s.ByPlan {
		plans = append(plans, plan)
	}
	sort.Strings(plans)
	for _, plan := range plans {
		fmt.Printf("    %-40s %d\n", plan, s.ByPlan[plan])
	}
}
