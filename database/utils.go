package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"plasma-rootchain/common"
	"plasma-rootchain/log"

	"github.com/gobuffalo/packr/v2"
	"github.com/jmoiron/sqlx"

	// driver for postgres DB
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/russross/meddler"
	"golang.org/x/sync/semaphore"
)

var migrations = &migrate.PackrMigrationSource{
	Box: packr.New("history-migrations", "./migrations"),
}

func init() {
	meddler.Default = meddler.PostgreSQL
	meddler.Register("bigint", BigIntMeddler{})
}

// InitSQLDB runs migrations and registers meddlers
func InitSQLDB(port int, host, user, password, name string) (*sqlx.DB, error) {
	return initSQLDB(fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, name,
	))
}

func initSQLDB(psqlconn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", psqlconn)
	if err != nil {
		return nil, common.Wrap(fmt.Errorf("sqlx.Connect: %w", err))
	}
	if err := MigrationsUp(db.DB); err != nil {
		return nil, common.Wrap(err)
	}
	return db, nil
}

// InitTestSQLDB opens the database used by the package tests, reading the
// connection parameters from the environment with local defaults
func InitTestSQLDB() (*sqlx.DB, error) {
	host := envOr("PGHOST", "localhost")
	port, err := strconv.Atoi(envOr("PGPORT", "5432"))
	if err != nil {
		return nil, common.Wrap(err)
	}
	user := envOr("PGUSER", "plasma")
	password := envOr("PGPASSWORD", "plasma")
	name := envOr("PGDATABASE", "plasma")
	return InitSQLDB(port, host, user, password, name)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// MigrationsUp runs the SQL migrations of the DB forward
func MigrationsUp(db *sql.DB) error {
	nMigrations, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return common.Wrap(err)
	}
	log.Infow("successfully ran migrations Up", "nMigrations", nMigrations)
	return nil
}

// MigrationsDown reverts the last nMigrations of the DB, all of them when
// nMigrations is 0
func MigrationsDown(db *sql.DB, nMigrations uint) error {
	n, err := migrate.ExecMax(db, "postgres", migrations, migrate.Down, int(nMigrations))
	if err != nil {
		return common.Wrap(err)
	}
	log.Infow("successfully ran migrations Down", "nMigrations", n)
	return nil
}

// BulkInsert inserts all the rows of args into the table described by the
// query prefix, which must end right before the VALUES clause
func BulkInsert(txn meddler.DB, q string, args interface{}) error {
	arrayValue := reflect.ValueOf(args)
	arrayLen := arrayValue.Len()
	valueStrings := make([]string, 0, arrayLen)
	var arglist = make([]interface{}, 0)
	for i := 0; i < arrayLen; i++ {
		arg := arrayValue.Index(i).Addr().Interface()
		elemArglist, err := meddler.Default.Values(arg, true)
		if err != nil {
			return common.Wrap(err)
		}
		arglist = append(arglist, elemArglist...)
		value := ""
		for j := 0; j < len(elemArglist); j++ {
			value += fmt.Sprintf("$%d, ", i*len(elemArglist)+j+1)
		}
		value = value[:len(value)-2]
		valueStrings = append(valueStrings, fmt.Sprintf("(%s)", value))
	}
	stmt := q + strings.Join(valueStrings, ",")
	_, err := txn.Exec(stmt, arglist...)
	return common.Wrap(err)
}

// SlicePtrsToSlice converts a slice of pointers to a slice of values
func SlicePtrsToSlice(slice interface{}) interface{} {
	v := reflect.ValueOf(slice)
	vSlice := reflect.MakeSlice(reflect.SliceOf(v.Type().Elem().Elem()), v.Len(), v.Cap())
	for i := 0; i < v.Len(); i++ {
		vSlice.Index(i).Set(v.Index(i).Elem())
	}
	return vSlice.Interface()
}

// BigIntMeddler encodes or decodes the field value to or from string
type BigIntMeddler struct{}

// PreRead is called before a Scan operation for fields that have the
// BigIntMeddler
func (b BigIntMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	// give a pointer to a string to grab the decimal column as text
	return new(string), nil
}

// PostRead is called after a Scan operation for fields that have the
// BigIntMeddler
func (b BigIntMeddler) PostRead(fieldPtr, scanTarget interface{}) error {
	ptr := scanTarget.(*string)
	if ptr == nil {
		return common.Wrap(fmt.Errorf("BigIntMeddler.PostRead: nil pointer"))
	}
	field := fieldPtr.(**big.Int)
	var ok bool
	*field, ok = new(big.Int).SetString(*ptr, 10)
	if !ok {
		return common.Wrap(fmt.Errorf("big.Int.SetString failed on \"%v\"", *ptr))
	}
	return nil
}

// PreWrite is called before an Insert or Update operation for fields that
// have the BigIntMeddler
func (b BigIntMeddler) PreWrite(fieldPtr interface{}) (saveValue interface{}, err error) {
	field := fieldPtr.(*big.Int)
	return field.String(), nil
}

// APIConnectionController is used to limit the SQL open connections used by the API
type APIConnectionController struct {
	smphr   *semaphore.Weighted
	timeout time.Duration
}

// NewAPIConnectionController initialize APIConnectionController
func NewAPIConnectionController(maxConnections int, timeout time.Duration) *APIConnectionController {
	return &APIConnectionController{
		smphr:   semaphore.NewWeighted(int64(maxConnections)),
		timeout: timeout,
	}
}

// Acquire reserves a SQL connection slot, waiting up to the configured
// timeout. The returned cancel function must be called once the query ends.
func (acc *APIConnectionController) Acquire() (context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(context.Background(), acc.timeout)
	return cancel, common.Wrap(acc.smphr.Acquire(ctx, 1))
}

// Release frees a SQL connection slot
func (acc *APIConnectionController) Release() {
	acc.smphr.Release(1)
}
