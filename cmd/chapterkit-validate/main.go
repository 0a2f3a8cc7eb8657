package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/verenigingen/chapterkit/pkg/audit"
	"github.com/verenigingen/chapterkit/pkg/directory"
	"github.com/verenigingen/chapterkit/pkg/observability"
	"github.com/verenigingen/chapterkit/pkg/permissions"
	"github.com/verenigingen/chapterkit/pkg/rolesync"
	"github.com/verenigingen/chapterkit/pkg/secaudit"
)

// chapterkit-validate runs the security check suite once against a
// live database and prints the report. Exit codes: 0 secure, 1 issues
// found, 2 critical findings, 3 on operational errors.
func main() {
	dbURL := flag.String("db-url", os.Getenv("CHAPTERKIT_POSTGRES_URL"), "PostgreSQL connection URL")
	sampleSize := flag.Int("sample-size", secaudit.DefaultSampleSize, "How many chapters, users and expenses each check samples")
	jsonOut := flag.Bool("json", false, "Emit the report as JSON instead of text")
	verbose := flag.Bool("verbose", false, "Log check progress to stderr")
	flag.Parse()

	if *dbURL == "" {
		fmt.Fprintln(os.Stderr, "database URL required: set CHAPTERKIT_POSTGRES_URL or pass -db-url")
		os.Exit(3)
	}

	logOutput := io.Discard
	if *verbose {
		logOutput = os.Stderr
	}
	logger := observability.NewLogger(observability.InfoLevel, logOutput)

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open database: %v\n", err)
		os.Exit(3)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "could not reach database: %v\n", err)
		os.Exit(3)
	}

	store := directory.NewStore(db)
	cache := permissions.NewLRUScopeCache(256, time.Minute)
	resolver := permissions.NewResolver(store, cache)
	builder := permissions.NewQueryBuilder(resolver, logger, nil)
	evaluator := permissions.NewEvaluator(store, resolver, logger, nil)
	auditLog := audit.NewDBLogger(db)
	syncer := rolesync.NewSyncer(store, resolver, auditLog, logger, nil)

	validator := secaudit.NewValidator(store, resolver, builder, evaluator, syncer, auditLog, logger, nil)
	validator.SetSampleSize(*sampleSize)

	report := validator.Run(ctx)

	if *jsonOut {
		payload := struct {
			*secaudit.Report
			Overall secaudit.Overall `json:"overall"`
		}{Report: report, Overall: report.Overall()}
		raw, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not encode report: %v\n", err)
			os.Exit(3)
		}
		fmt.Println(string(raw))
	} else {
		fmt.Print(report.Render())
	}

	switch report.Overall() {
	case secaudit.OverallSecure:
		os.Exit(0)
	case secaudit.OverallIssuesFound:
		os.Exit(1)
	default:
		os.Exit(2)
	}
}
