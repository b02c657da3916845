package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/libropolis/lending-library-go/asyncstore"
	"github.com/libropolis/lending-library-go/asyncstore/postgresengine/internal/adapters"
)

var (
	// ErrEmptyTableNameSupplied is returned when an empty table name is configured.
	ErrEmptyTableNameSupplied = errors.New("empty record table name supplied")

	// ErrBuildingQueryFailed is returned when a SQL statement could not be built.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrSavingRecordFailed is returned when the upsert for a record fails.
	ErrSavingRecordFailed = errors.New("saving record failed")

	// ErrLoadingRecordFailed is returned when querying records fails.
	ErrLoadingRecordFailed = errors.New("loading record failed")

	// ErrDeletingRecordFailed is returned when deleting a record fails.
	ErrDeletingRecordFailed = errors.New("deleting record failed")

	// ErrScanningDBRowFailed is returned when a result row cannot be scanned.
	ErrScanningDBRowFailed = errors.New("scanning database row failed")
)

const (
	defaultRecordTableName = "records"

	logMsgSQLExecuted      = "executed sql for: "
	logMsgRecordSaved      = "record saved"
	logMsgRecordDeleted    = "record deleted"
	logAttrKey             = "key"
	logAttrError           = "error"
	logAttrQuery           = "query"
	logAttrDurationMS      = "duration_ms"
	logActionSave          = "save"
	logActionGet           = "get"
	logActionDelete        = "delete"
	logActionList          = "list"
	colKey                 = "key"
	colValue               = "value"
	colStoredAt            = "stored_at"
	dialectPostgres        = "postgres"
	castJsonb              = "?::jsonb"
	saveDurationMetric     = "asyncstore_save_duration"
	labelOperation         = "operation"
)

// Engine is the PostgreSQL-backed asyncstore.Store implementation.
//
// Records live in a single document table keyed by the record key; Save is a
// last-write-wins upsert, so retrying a failed persistence step is safe.
type Engine struct {
	db               adapters.DBAdapter
	recordTableName  string
	logger           asyncstore.Logger
	metricsCollector asyncstore.MetricsCollector
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithTableName sets the record table name for the Engine.
func WithTableName(tableName string) Option {
	return func(e *Engine) error {
		if tableName == "" {
			return ErrEmptyTableNameSupplied
		}

		e.recordTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Engine.
//
// Debug level: SQL statements with execution timing (development use)
// Info level: saved and deleted records (production-safe)
// Error level: failures that cause operation failures.
func WithLogger(logger asyncstore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector asyncstore.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// NewEngineFromPGXPool creates an Engine using a pgx pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, asyncstore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options...)
}

// NewEngineFromSQLDB creates an Engine using a sql.DB with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, asyncstore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options...)
}

// NewEngineFromSQLX creates an Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, asyncstore.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options...)
}

func newEngine(db adapters.DBAdapter, options ...Option) (*Engine, error) {
	e := &Engine{
		db:              db,
		recordTableName: defaultRecordTableName,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Save upserts the value under the key, last-write-wins.
func (e *Engine) Save(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return asyncstore.ErrEmptyKeySupplied
	}

	if !jsoniter.ConfigFastest.Valid(value) {
		return asyncstore.ErrInvalidValueJSON
	}

	sqlQuery, buildErr := e.buildUpsertQuery(key, value, time.Now())
	if buildErr != nil {
		return buildErr
	}

	start := time.Now()
	_, execErr := e.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(sqlQuery, logActionSave, duration)

	if execErr != nil {
		e.logError(logMsgRecordSaved, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		return errors.Join(ErrSavingRecordFailed, execErr)
	}

	e.logInfo(logMsgRecordSaved, logAttrKey, key, logAttrDurationMS, duration.Milliseconds())
	e.recordDuration(saveDurationMetric, duration, map[string]string{labelOperation: logActionSave})

	return nil
}

// Get loads the record stored under the key.
// A missing key resolves to an explicit absent result, never an error.
func (e *Engine) Get(ctx context.Context, key string) (asyncstore.Record, bool, error) {
	if key == "" {
		return asyncstore.Record{}, false, asyncstore.ErrEmptyKeySupplied
	}

	sqlQuery, buildErr := e.buildSelectQuery(&key)
	if buildErr != nil {
		return asyncstore.Record{}, false, buildErr
	}

	records, queryErr := e.queryRecords(ctx, sqlQuery, logActionGet)
	if queryErr != nil {
		return asyncstore.Record{}, false, queryErr
	}

	if len(records) == 0 {
		return asyncstore.Record{}, false, nil
	}

	return records[0], true, nil
}

// Delete removes the record stored under the key and reports whether it existed.
func (e *Engine) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, asyncstore.ErrEmptyKeySupplied
	}

	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(e.recordTableName).
		Where(goqu.C(colKey).Eq(key))

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		return false, errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	result, execErr := e.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(sqlQuery, logActionDelete, duration)

	if execErr != nil {
		return false, errors.Join(ErrDeletingRecordFailed, execErr)
	}

	rowsAffected, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return false, errors.Join(ErrDeletingRecordFailed, rowsErr)
	}

	if rowsAffected > 0 {
		e.logInfo(logMsgRecordDeleted, logAttrKey, key)
	}

	return rowsAffected > 0, nil
}

// List returns every stored record, ordered by key.
func (e *Engine) List(ctx context.Context) ([]asyncstore.Record, error) {
	sqlQuery, buildErr := e.buildSelectQuery(nil)
	if buildErr != nil {
		return nil, buildErr
	}

	return e.queryRecords(ctx, sqlQuery, logActionList)
}

func (e *Engine) buildSelectQuery(key *string) (string, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(e.recordTableName).
		Select(colKey, colValue, colStoredAt).
		Order(goqu.I(colKey).Asc())

	if key != nil {
		selectStmt = selectStmt.Where(goqu.C(colKey).Eq(*key))
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (e *Engine) buildUpsertQuery(key string, value []byte, storedAt time.Time) (string, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(e.recordTableName).
		Cols(colKey, colValue, colStoredAt).
		Vals(goqu.Vals{key, goqu.L(castJsonb, string(value)), storedAt}).
		OnConflict(goqu.DoUpdate(colKey, goqu.Record{
			colValue:    goqu.L(castJsonb, string(value)),
			colStoredAt: storedAt,
		}))

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (e *Engine) queryRecords(ctx context.Context, sqlQuery string, action string) ([]asyncstore.Record, error) {
	start := time.Now()
	rows, queryErr := e.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(sqlQuery, action, duration)

	if queryErr != nil {
		e.logError(logMsgSQLExecuted+action, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrLoadingRecordFailed, queryErr)
	}
	defer e.closeRows(rows)

	var records []asyncstore.Record

	for rows.Next() {
		var record asyncstore.Record
		if scanErr := rows.Scan(&record.Key, &record.Value, &record.StoredAt); scanErr != nil {
			e.logError(logMsgSQLExecuted+action, logAttrError, scanErr.Error())
			return nil, errors.Join(ErrScanningDBRowFailed, scanErr)
		}

		records = append(records, record)
	}

	return records, nil
}

func (e *Engine) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if e.logger != nil {
			e.logger.Warn(logMsgSQLExecuted+"close rows", logAttrError, closeErr.Error())
		}
	}
}

func (e *Engine) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, duration.Milliseconds(), logAttrQuery, sqlQuery)
	}
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logError(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}

func (e *Engine) recordDuration(metric string, duration time.Duration, labels map[string]string) {
	if e.metricsCollector != nil {
		e.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

// Ensure Engine implements the store contract.
var _ asyncstore.Store = (*Engine)(nil)
