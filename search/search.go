package search

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/singleflight"

	"github.com/libropolis/lending-library-go/asyncstore"
	"github.com/libropolis/lending-library-go/catalog"
	"github.com/libropolis/lending-library-go/liberrors"
	"github.com/libropolis/lending-library-go/resolve"
)

// DefaultTimeout bounds a deadline lookup when the caller does not
// configure one.
const DefaultTimeout = 2 * time.Second

var (
	// ErrNoSourcesSupplied is returned when a service is built without sources.
	ErrNoSourcesSupplied = errors.New("at least one source must be supplied")

	// ErrInvalidTimeout is returned when a non-positive timeout is configured.
	ErrInvalidTimeout = errors.New("timeout must be positive")
)

var json = jsoniter.ConfigFastest

// Source is one independent place a book record can be looked up in.
type Source interface {
	Name() string
	FindByISBN(ctx context.Context, isbn string) (catalog.Book, error)
}

// Option configures a Service during construction.
type Option func(s *Service) error

// WithTimeout overrides the deadline applied by FindWithDeadline.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) error {
		if timeout <= 0 {
			return ErrInvalidTimeout
		}

		s.timeout = timeout

		return nil
	}
}

// Service looks up book records across several independent sources.
//
// Concurrent lookups for the same isbn are coalesced, so a burst of
// identical requests fans out to the sources only once.
type Service struct {
	sources []Source
	timeout time.Duration
	group   singleflight.Group
}

// NewService builds a search service over the given sources.
func NewService(sources []Source, options ...Option) (*Service, error) {
	if len(sources) == 0 {
		return nil, ErrNoSourcesSupplied
	}

	service := &Service{
		sources: append([]Source(nil), sources...),
		timeout: DefaultTimeout,
	}

	for _, applyOption := range options {
		if err := applyOption(service); err != nil {
			return nil, err
		}
	}

	return service, nil
}

// FindFirst queries every source concurrently and returns the first record
// found. Failing sources are tolerated; only when every source fails does
// the lookup fail, with an aggregate of all reasons.
func (s *Service) FindFirst(ctx context.Context, isbn string) (catalog.Book, error) {
	result, err, _ := s.group.Do(isbn, func() (any, error) {
		return resolve.FirstSuccessTolerant(ctx, s.operations(isbn))
	})
	if err != nil {
		return catalog.Book{}, err
	}

	return result.(catalog.Book), nil
}

// FindWithDeadline behaves like FindFirst but fails with a timeout error
// when no source has delivered within the configured deadline. Sources
// still pending at the deadline are abandoned, not cancelled.
func (s *Service) FindWithDeadline(ctx context.Context, isbn string) (catalog.Book, error) {
	return resolve.RaceWithTimeout(
		ctx,
		func(ctx context.Context) (catalog.Book, error) { return s.FindFirst(ctx, isbn) },
		s.timeout,
	)
}

// FindEverywhere queries every source and waits for all of them to settle,
// returning the full tally of hits and misses.
func (s *Service) FindEverywhere(ctx context.Context, isbn string) resolve.Tally[catalog.Book] {
	return resolve.FanOutAll(ctx, s.operations(isbn))
}

func (s *Service) operations(isbn string) []resolve.Operation[catalog.Book] {
	ops := make([]resolve.Operation[catalog.Book], 0, len(s.sources))
	for _, source := range s.sources {
		source := source // shadow for per-iteration capture pre-Go 1.22
		ops = append(ops, func(ctx context.Context) (catalog.Book, error) {
			return source.FindByISBN(ctx, isbn)
		})
	}

	return ops
}

// CatalogSource answers lookups from the in-memory catalog.
type CatalogSource struct {
	catalog *catalog.Catalog
}

// NewCatalogSource wraps a catalog as a search source.
func NewCatalogSource(bookCatalog *catalog.Catalog) *CatalogSource {
	return &CatalogSource{catalog: bookCatalog}
}

// Name identifies the source in tallies and logs.
func (s *CatalogSource) Name() string { return "catalog" }

// FindByISBN looks the book up in the catalog.
func (s *CatalogSource) FindByISBN(_ context.Context, isbn string) (catalog.Book, error) {
	return s.catalog.FindByISBN(isbn)
}

// StoreSource answers lookups from the backing store.
type StoreSource struct {
	store asyncstore.Store
}

// NewStoreSource wraps a record store as a search source.
func NewStoreSource(store asyncstore.Store) *StoreSource {
	return &StoreSource{store: store}
}

// Name identifies the source in tallies and logs.
func (s *StoreSource) Name() string { return "store" }

// FindByISBN loads and decodes the book record from the store.
func (s *StoreSource) FindByISBN(ctx context.Context, isbn string) (catalog.Book, error) {
	record, found, err := s.store.Get(ctx, asyncstore.BookKey(isbn))
	if err != nil {
		return catalog.Book{}, liberrors.Persistence(err, "loading book %s failed", isbn)
	}

	if !found {
		return catalog.Book{}, liberrors.NotFound("book %s is not in the store", isbn)
	}

	var book catalog.Book
	if err := json.Unmarshal(record.Value, &book); err != nil {
		return catalog.Book{}, liberrors.Persistence(err, "decoding book %s failed", isbn)
	}

	return book, nil
}
