package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/config"
	"github.com/smarttransit/seat-segment-backend/internal/database"
	"github.com/smarttransit/seat-segment-backend/internal/models"
	"github.com/smarttransit/seat-segment-backend/internal/services"
	"github.com/spf13/pflag"
)

// integrity-audit scans every run with active seat allocations once and
// exits 1 when any seat holds overlapping active allocations.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	flagSet := pflag.NewFlagSet("integrity-audit", pflag.ContinueOnError)
	dbURL := flagSet.String("database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	driver := flagSet.String("driver", "", "database driver: postgres or pgx (overrides DATABASE_DRIVER)")
	timeout := flagSet.Duration("timeout", 5*time.Minute, "maximum audit duration")
	asJSON := flagSet.Bool("json", false, "print the report as JSON")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbCfg := config.DatabaseConfig{
		URL:                firstNonEmpty(*dbURL, os.Getenv("DATABASE_URL")),
		Driver:             firstNonEmpty(*driver, os.Getenv("DATABASE_DRIVER"), "postgres"),
		MaxConnections:     2,
		MaxIdleConnections: 1,
	}
	if dbCfg.URL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set and --database-url was not provided")
		return 2
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	db, err := database.NewConnection(dbCfg)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		return 2
	}
	defer db.Close()

	topologyRepo := database.NewTopologyRepository(db.DB)
	stores := services.Stores{
		Topology: topologyRepo,
		Seats:    database.NewSeatRepository(db.DB),
		Fares:    database.NewFareRepository(db.DB),
		Orders:   database.NewOrderRepository(db.DB),
		Events:   database.NewOutboxRepository(db.DB),
	}
	auditor := services.NewIntegrityAuditor(stores, services.NewTopologyService(topologyRepo), services.NewSystemClock("UTC"), logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := auditor.Audit(ctx)
	if err != nil {
		logger.Errorf("Integrity audit failed: %v", err)
		return 2
	}

	if err := printReport(stdout, report, *asJSON); err != nil {
		logger.Errorf("Failed to print report: %v", err)
		return 2
	}

	if len(report.Violations) > 0 {
		return 1
	}
	return 0
}

func printReport(w io.Writer, report *models.AuditReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "Runs scanned:        %d\n", report.RunsScanned)
	fmt.Fprintf(w, "Active allocations:  %d\n", report.AllocationsSeen)
	fmt.Fprintf(w, "Violations:          %d\n", len(report.Violations))
	for _, v := range report.Violations {
		fmt.Fprintf(w, "  run %d seat %d: allocation %d (order %d) overlaps allocation %d (order %d)\n",
			v.RunID, v.SeatID, v.AllocationA, v.OrderA, v.AllocationB, v.OrderB)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
