// Package sqlrepo stores token records in SQLite or Postgres.
package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jrsteele09/go-token-broker/internal/errors"
	"github.com/jrsteele09/go-token-broker/token"
	"github.com/jrsteele09/go-token-broker/tokenstore"
	"github.com/jrsteele09/go-token-broker/tokenstore/sqlrepo/migrations"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var _ tokenstore.Repo = (*Repo)(nil)

type dialect struct {
	name   string
	driver string
	dollar bool // $1 placeholders instead of ?
}

var (
	dialectSQLite   = dialect{name: "sqlite3", driver: "sqlite"}
	dialectPostgres = dialect{name: "postgres", driver: "pgx", dollar: true}
)

func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Repo struct {
	db      *sql.DB
	dialect dialect
	sealer  *Sealer
	nowTime func() time.Time
	log     zerolog.Logger
}

type Option func(*Repo)

// WithSealer encrypts the token columns. Rows written without it stay readable.
func WithSealer(s *Sealer) Option {
	return func(r *Repo) {
		r.sealer = s
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Repo) {
		r.log = logger
	}
}

func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *Repo) {
		r.nowTime = nowFunc
	}
}

// Open connects to "sqlite://<path>" or a "postgres://" DSN and migrates the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Repo, error) {
	d, source, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if d == dialectSQLite {
		if err := ensureDir(source); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.driver, source)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if d == dialectSQLite {
		// One connection keeps :memory: databases and write locking sane.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	r := &Repo{
		db:      db,
		dialect: d,
		nowTime: time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return r, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) Get(ctx context.Context, userID string) (*token.Record, error) {
	return r.get(ctx, r.db, userID)
}

func (r *Repo) Upsert(ctx context.Context, record *token.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return r.put(ctx, r.db, record)
}

func (r *Repo) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	record, err := r.get(ctx, r.db, userID)
	if err != nil {
		return "", err
	}
	if record.RefreshToken == "" {
		return "", errors.Kindf(errors.ErrNotFound, nil, "no refresh token for user %s", userID)
	}
	return record.RefreshToken, nil
}

// Patch merges a partial write into the stored record inside one transaction.
func (r *Repo) Patch(ctx context.Context, patch tokenstore.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin patch %s: %w", patch.UserID, err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := r.get(ctx, tx, patch.UserID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	if err := r.put(ctx, tx, patch.Apply(current)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit patch %s: %w", patch.UserID, err)
	}
	return nil
}

func (r *Repo) get(ctx context.Context, q querier, userID string) (*token.Record, error) {
	record := token.Record{UserID: userID}
	var accessToken, refreshToken string
	err := q.QueryRowContext(ctx,
		r.dialect.rebind(`SELECT access_token, refresh_token, expires_at FROM tokens WHERE user_id = ?`),
		userID,
	).Scan(&accessToken, &refreshToken, &record.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, errors.Kindf(errors.ErrNotFound, nil, "user %s", userID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get token record %s", userID)
	}

	if record.AccessToken, err = r.sealer.Open(accessToken); err != nil {
		return nil, errors.Wrapf(err, "open access token %s", userID)
	}
	if record.RefreshToken, err = r.sealer.Open(refreshToken); err != nil {
		return nil, errors.Wrapf(err, "open refresh token %s", userID)
	}
	return &record, nil
}

func (r *Repo) put(ctx context.Context, q querier, record *token.Record) error {
	accessToken, err := r.sealer.Seal(record.AccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := r.sealer.Seal(record.RefreshToken)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, r.dialect.rebind(`
		INSERT INTO tokens (user_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`), record.UserID, accessToken, refreshToken, token.NormalizeExpiresAt(record.ExpiresAt), r.nowTime().Unix())
	if err != nil {
		return errors.Wrapf(err, "upsert token record %s", record.UserID)
	}
	return nil
}

// goose keeps its settings in package globals.
var migrateLock sync.Mutex

func (r *Repo) migrate(ctx context.Context) error {
	migrateLock.Lock()
	defer migrateLock.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{r.log})
	if err := goose.SetDialect(r.dialect.name); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, r.db, ".")
}

type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func parseDSN(dsn string) (dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return dialect{}, "", fmt.Errorf("sqlite dsn has no path")
		}
		return dialectSQLite, path, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return dialectPostgres, dsn, nil
	}
	return dialect{}, "", fmt.Errorf("unsupported token store dsn %q", redactDSN(dsn))
}

func ensureDir(path string) error {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// redactDSN drops anything after the scheme so passwords never reach logs.
func redactDSN(dsn string) string {
	if scheme, _, ok := strings.Cut(dsn, "://"); ok {
		return scheme + "://..."
	}
	return "..."
}
