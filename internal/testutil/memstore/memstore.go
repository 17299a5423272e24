// Package memstore is an in-memory implementation of the repository
// interfaces for unit tests. Transactions snapshot the whole dataset on
// Begin and restore it on Rollback.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUniqueViolation mirrors the SQLSTATE 23505 error Postgres returns.
var ErrUniqueViolation = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

// ErrForeignKeyViolation mirrors SQLSTATE 23503.
var ErrForeignKeyViolation = &pgconn.PgError{Code: "23503", Message: "insert or update violates foreign key constraint"}

type tagKey struct{ pageID, characterID int64 }

type data struct {
	seq        int64
	users      map[int64]domain.User
	aliases    map[int64]domain.Alias
	games      map[int64]domain.Game
	books      map[int64]domain.Book
	pages      map[int64]domain.Page
	characters map[int64]domain.Character
	tags       map[tagKey]bool
	keys       map[int64]domain.AdminKey
	daily      map[string]domain.DailyChallenge
	outbox     []domain.OutboxDraft
	orphans    map[int64]domain.OrphanUpload
}

func newData() *data {
	return &data{
		users:      map[int64]domain.User{},
		aliases:    map[int64]domain.Alias{},
		games:      map[int64]domain.Game{},
		books:      map[int64]domain.Book{},
		pages:      map[int64]domain.Page{},
		characters: map[int64]domain.Character{},
		tags:       map[tagKey]bool{},
		keys:       map[int64]domain.AdminKey{},
		daily:      map[string]domain.DailyChallenge{},
		orphans:    map[int64]domain.OrphanUpload{},
	}
}

func (d *data) clone() *data {
	c := newData()
	c.seq = d.seq
	copyMap(c.users, d.users)
	copyMap(c.aliases, d.aliases)
	copyMap(c.games, d.games)
	copyMap(c.books, d.books)
	copyMap(c.pages, d.pages)
	copyMap(c.characters, d.characters)
	copyMap(c.tags, d.tags)
	copyMap(c.keys, d.keys)
	copyMap(c.daily, d.daily)
	copyMap(c.orphans, d.orphans)
	c.outbox = append([]domain.OutboxDraft(nil), d.outbox...)
	return c
}

func copyMap[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

// Store holds the dataset and satisfies repository.TxBeginner.
type Store struct {
	mu   sync.Mutex
	d    *data
	open map[*Tx]bool

	// PickHook, when set, replaces the eligible-page draw of the daily repository.
	PickHook func(seed float64, excluded []string) *domain.Page
	// BeginErr, when set, is returned by Begin.
	BeginErr error
}

// New returns an empty Store.
func New() *Store {
	return &Store{d: newData(), open: map[*Tx]bool{}}
}

func (s *Store) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("memstore: raw SQL not supported")
}

func (s *Store) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("memstore: raw SQL not supported")
}

func (s *Store) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return errRow{}
}

// Begin snapshots the dataset.
func (s *Store) Begin(context.Context) (pgx.Tx, error) {
	if s.BeginErr != nil {
		return nil, s.BeginErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Tx{store: s, snapshot: s.d.clone()}
	s.open[tx] = true
	return tx, nil
}

// PinDailyCommitted records a daily challenge as if another connection had
// committed it: the row survives rollbacks of transactions already open.
func (s *Store) PinDailyCommitted(dc domain.DailyChallenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dc.ID = s.d.nextID()
	s.d.daily[dateKey(dc.Date)] = dc
	for tx := range s.open {
		tx.snapshot.daily[dateKey(dc.Date)] = dc
	}
}

// Tx is a fake pgx.Tx. Methods not overridden panic through the nil embed.
type Tx struct {
	pgx.Tx
	store    *Store
	snapshot *data
	done     bool
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return t.store.Exec(ctx, sql, args...)
}

func (t *Tx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.store.Query(ctx, sql, args...)
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return t.store.QueryRow(ctx, sql, args...)
}

func (t *Tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	delete(t.store.open, t)
	t.store.mu.Unlock()
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	t.store.d = t.snapshot
	delete(t.store.open, t)
	t.store.mu.Unlock()
	return nil
}

type errRow struct{}

func (errRow) Scan(...interface{}) error { return errors.New("memstore: raw SQL not supported") }

var _ repository.TxBeginner = (*Store)(nil)

func (s *Store) with(fn func(d *data)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.d)
}

// --- inspection helpers ---

// Users returns every user ordered by id.
func (s *Store) Users() []domain.User {
	var out []domain.User
	s.with(func(d *data) { out = sortedValues(d.users, func(u domain.User) int64 { return u.ID }) })
	return out
}

// Aliases returns every alias ordered by id.
func (s *Store) Aliases() []domain.Alias {
	var out []domain.Alias
	s.with(func(d *data) { out = sortedValues(d.aliases, func(a domain.Alias) int64 { return a.ID }) })
	return out
}

// Games returns every game ordered by id.
func (s *Store) Games() []domain.Game {
	var out []domain.Game
	s.with(func(d *data) { out = sortedValues(d.games, func(g domain.Game) int64 { return g.ID }) })
	return out
}

// Books returns every book ordered by id.
func (s *Store) Books() []domain.Book {
	var out []domain.Book
	s.with(func(d *data) { out = sortedValues(d.books, func(b domain.Book) int64 { return b.ID }) })
	return out
}

// Pages returns every page ordered by id.
func (s *Store) Pages() []domain.Page {
	var out []domain.Page
	s.with(func(d *data) { out = sortedValues(d.pages, func(p domain.Page) int64 { return p.ID }) })
	return out
}

// Outbox returns the pending outbox events.
func (s *Store) Outbox() []domain.OutboxDraft {
	var out []domain.OutboxDraft
	s.with(func(d *data) { out = append(out, d.outbox...) })
	return out
}

// Orphans returns recorded orphan uploads ordered by id.
func (s *Store) Orphans() []domain.OrphanUpload {
	var out []domain.OrphanUpload
	s.with(func(d *data) { out = sortedValues(d.orphans, func(o domain.OrphanUpload) int64 { return o.ID }) })
	return out
}

// DailyCount returns the number of pinned daily challenges.
func (s *Store) DailyCount() int {
	n := 0
	s.with(func(d *data) { n = len(d.daily) })
	return n
}

func sortedValues[V any](m map[int64]V, id func(V) int64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func page[V any](items []V, limit, offset int) []V {
	if limit <= 0 {
		limit = 20
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func notFound(entity string, id int64) error {
	return domain.ErrNotFound(entity, fmt.Sprint(id))
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
