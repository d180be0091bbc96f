// Package subjectcache persists subject listings keyed by source, board and
// level, so repeated lookups skip the upstream crawl.
package subjectcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"pastpapers-backend/internal/components/assert"
	"pastpapers-backend/internal/components/chrono"
	"pastpapers-backend/internal/papers"
	"pastpapers-backend/internal/subjectcache/db"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Config selects the cache database. File opens a local sqlite database,
// Url points at a remote libsql server.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Config) Enabled() bool {
	return config.File != "" || config.Url != ""
}

func (config Config) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		dsn, err := url.Parse(config.Url)
		if err != nil {
			return nil, fmt.Errorf("parse libsql url: %w", err)
		}
		if config.AuthToken != "" {
			query := dsn.Query()
			query.Set("authToken", config.AuthToken)
			dsn.RawQuery = query.Encode()
		}
		return sql.Open("libsql", dsn.String())
	}

	if config.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	if config.File != ":memory:" {
		err := os.MkdirAll(filepath.Dir(config.File), 0755)
		if err != nil {
			return nil, err
		}
	}

	database, err := sql.Open("sqlite", config.File)
	if err != nil {
		return nil, err
	}
	// sqlite only allows a single writer
	database.SetMaxOpenConns(1)
	if config.File != ":memory:" {
		_, err = database.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			database.Close()
			return nil, err
		}
	}
	return database, nil
}

type Store struct {
	qry      *db.Queries
	time     chrono.API
	lifetime time.Duration
}

// NewStore creates the schema if needed. Entries older than `lifetime` are
// treated as absent, a lifetime <= 0 keeps entries forever.
func NewStore(ctx context.Context, database *sql.DB, time chrono.API, lifetime time.Duration) (*Store, error) {
	assert.NotNil(database)
	assert.NotNil(time)

	_, err := database.ExecContext(ctx, db.Schema)
	if err != nil {
		return nil, fmt.Errorf("create subject cache schema: %w", err)
	}
	return &Store{
		qry:      db.New(database),
		time:     time,
		lifetime: lifetime,
	}, nil
}

// Get returns the cached subjects under key, ok is false on a miss or an
// expired entry.
func (s *Store) Get(ctx context.Context, key string) (subjects []papers.Subject, ok bool, err error) {
	row, err := s.qry.GetSubjectListing(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if row.Expiresat <= s.time.Now().Unix() {
		return nil, false, nil
	}

	err = json.Unmarshal([]byte(row.Subjects), &subjects)
	if err != nil {
		return nil, false, fmt.Errorf("decode cached subjects '%s': %w", key, err)
	}
	return subjects, true, nil
}

func (s *Store) Put(ctx context.Context, key string, subjects []papers.Subject) error {
	encoded, err := json.Marshal(subjects)
	if err != nil {
		return err
	}

	now := s.time.Now()
	expiresAt := int64(math.MaxInt64)
	if s.lifetime > 0 {
		expiresAt = now.Add(s.lifetime).Unix()
	}

	return s.qry.PutSubjectListing(ctx, db.PutSubjectListingParams{
		Key:       key,
		Subjects:  string(encoded),
		Createdat: now.Unix(),
		Expiresat: expiresAt,
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.qry.DeleteSubjectListing(ctx, key)
}

// Prune removes expired entries and returns how many were dropped.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	return s.qry.DeleteExpiredSubjectListings(ctx, s.time.Now().Unix())
}
