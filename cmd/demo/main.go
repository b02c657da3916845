// Command demo wires the full lending library together with the in-memory
// store engine and walks through a borrow/return scenario, printing what
// happens along the way.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/libropolis/lending-library-go/asyncstore/memoryengine"
	"github.com/libropolis/lending-library-go/catalog"
	"github.com/libropolis/lending-library-go/config"
	"github.com/libropolis/lending-library-go/eventlog"
	"github.com/libropolis/lending-library-go/ledger"
	"github.com/libropolis/lending-library-go/lending"
	"github.com/libropolis/lending-library-go/membership"
	"github.com/libropolis/lending-library-go/promadapter"
	"github.com/libropolis/lending-library-go/search"
	"github.com/libropolis/lending-library-go/slogadapter"
	"github.com/libropolis/lending-library-go/snapshot"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "demo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slogadapter.NewLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	metrics := promadapter.NewCollector(prometheus.NewRegistry())

	store, err := memoryengine.NewEngine(
		memoryengine.WithBaseLatency(cfg.Store.BaseLatency),
		memoryengine.WithDegradedSaveProbability(cfg.Store.DegradedSaveProbability),
		memoryengine.WithFailureProbability(cfg.Store.FailureProbability),
		memoryengine.WithLogger(logger),
		memoryengine.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	events, err := eventlog.NewLog(eventlog.WithCapacity(cfg.Events.Capacity), eventlog.WithLogger(logger))
	if err != nil {
		return err
	}

	for _, eventType := range []string{
		eventlog.TypeBookAdded, eventlog.TypeUserRegistered, eventlog.TypeLoanCreated, eventlog.TypeLoanReturned,
	} {
		if err := events.Subscribe(eventType, func(e eventlog.Event) {
			fmt.Printf("  event: %s %v\n", e.Type, e.Data)
		}); err != nil {
			return err
		}
	}

	bookCatalog := catalog.New()
	members := membership.New(cfg.Library.MaxBooksPerUser)
	loanLedger := ledger.New(cfg.Library.LoanPeriod)

	engine, err := lending.NewEngine(bookCatalog, members, loanLedger, store, events,
		lending.WithLogger(logger),
		lending.WithMetrics(metrics),
		lending.WithRetryOptions(
			lending.WithMaxAttempts(cfg.Retry.MaxAttempts),
			lending.WithBaseDelay(cfg.Retry.BaseDelay),
			lending.WithJitterFactor(cfg.Retry.JitterFactor),
		),
	)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n\n1. Adding books\n", cfg.Library.Name)

	tally := engine.AddBooks(ctx, []catalog.AddBookInput{
		{ISBN: "9788375780635", Title: "The Witcher", Author: "Andrzej Sapkowski", PublicationYear: 1993, Genre: "Fantasy", TotalCopies: 3},
		{ISBN: "9780134190440", Title: "The Go Programming Language", Author: "Alan A. A. Donovan", PublicationYear: 2015, Genre: "Programming", TotalCopies: 1},
		{ISBN: "9780132350884", Title: "Clean Code", Author: "Robert C. Martin", PublicationYear: 2008, Genre: "Programming", TotalCopies: 2},
	})
	fmt.Printf("  added %d books, %d failures\n", len(tally.Successes), len(tally.Failures))

	fmt.Println("\n2. Registering users")

	for _, user := range []membership.RegisterUserInput{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
	} {
		if _, err := engine.RegisterUser(ctx, user); err != nil {
			return err
		}
	}

	fmt.Println("\n3. Borrowing")

	loan, err := engine.Borrow(ctx, "alice@example.com", "9780134190440")
	if err != nil {
		return err
	}
	fmt.Printf("  alice borrowed %q, due %s\n", loan.BookTitle, loan.DueDate.Format("2006-01-02"))

	if _, err := engine.Borrow(ctx, "bob@example.com", "9780134190440"); err != nil {
		fmt.Printf("  bob could not borrow the same title: %v\n", err)
	}

	fmt.Println("\n4. Searching across sources")

	finder, err := search.NewService(
		[]search.Source{search.NewCatalogSource(bookCatalog), search.NewStoreSource(store)},
		search.WithTimeout(cfg.Search.Timeout),
	)
	if err != nil {
		return err
	}

	book, err := finder.FindWithDeadline(ctx, "9780132350884")
	if err != nil {
		return err
	}
	fmt.Printf("  found %q by %s\n", book.Title, book.Author)

	fmt.Println("\n5. Returning")

	if _, err := engine.Return(ctx, "alice@example.com", "9780134190440"); err != nil {
		return err
	}

	fmt.Println("\n6. Statistics")

	stats := engine.Statistics()
	fmt.Printf("  titles=%d copies=%d available=%d users=%d activeLoans=%d popularGenre=%s\n",
		stats.UniqueTitles, stats.TotalCopies, stats.AvailableCopies, stats.TotalUsers, stats.ActiveLoans, stats.MostPopularGenre)

	fmt.Println("\n7. Snapshot round trip")

	if err := snapshot.SaveToStore(ctx, store, snapshot.DefaultStoreKey, snapshot.Capture(bookCatalog, members, loanLedger)); err != nil {
		return err
	}

	restored, err := snapshot.LoadFromStore(ctx, store, snapshot.DefaultStoreKey)
	if err != nil {
		return err
	}
	fmt.Printf("  snapshot holds %d books, %d users, %d loans\n", len(restored.Books), len(restored.Users), len(restored.Loans))

	fmt.Printf("\n8. Last events\n")
	for _, event := range events.Recent(5) {
		fmt.Printf("  %s at %s\n", event.Type, event.Timestamp.Format("15:04:05.000"))
	}

	return nil
}
