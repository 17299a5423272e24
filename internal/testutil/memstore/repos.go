package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/repository"
	"github.com/jackc/pgx/v5"
)

// UserRepo returns the user repository view of s.
func (s *Store) UserRepo() repository.UserRepository { return userRepo{s} }

// AliasRepo returns the alias repository view of s.
func (s *Store) AliasRepo() repository.AliasRepository { return aliasRepo{s} }

// GameRepo returns the game repository view of s.
func (s *Store) GameRepo() repository.GameRepository { return gameRepo{s} }

// BookRepo returns the book repository view of s.
func (s *Store) BookRepo() repository.BookRepository { return bookRepo{s} }

// PageRepo returns the page repository view of s.
func (s *Store) PageRepo() repository.PageRepository { return pageRepo{s} }

// CharacterRepo returns the character repository view of s.
func (s *Store) CharacterRepo() repository.CharacterRepository { return characterRepo{s} }

// AdminKeyRepo returns the admin key repository view of s.
func (s *Store) AdminKeyRepo() repository.AdminKeyRepository { return adminKeyRepo{s} }

// DailyRepo returns the daily challenge repository view of s.
func (s *Store) DailyRepo() repository.DailyChallengeRepository { return dailyRepo{s} }

// OutboxRepo returns the outbox repository view of s.
func (s *Store) OutboxRepo() repository.OutboxRepository { return outboxRepo{s} }

// OrphanRepo returns the orphan repository view of s.
func (s *Store) OrphanRepo() repository.OrphanRepository { return orphanRepo{s} }

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) FindByID(_ context.Context, _ repository.DBTX, id int64) (*domain.User, error) {
	var out *domain.User
	r.s.with(func(d *data) {
		if u, ok := d.users[id]; ok {
			out = &u
		}
	})
	return out, nil
}

func (r userRepo) FindByTrueName(_ context.Context, _ repository.DBTX, name string) (*domain.User, error) {
	var out *domain.User
	r.s.with(func(d *data) {
		for _, u := range d.users {
			if u.TrueName == name {
				u := u
				out = &u
			}
		}
	})
	return out, nil
}

func (r userRepo) Create(_ context.Context, _ repository.DBTX, user *domain.User) error {
	var err error
	r.s.with(func(d *data) {
		for _, u := range d.users {
			if u.TrueName == user.TrueName {
				err = ErrUniqueViolation
				return
			}
		}
		user.ID = d.nextID()
		d.users[user.ID] = *user
	})
	return err
}

func (r userRepo) Update(_ context.Context, _ repository.DBTX, user *domain.User) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.users[user.ID]; !ok {
			err = notFound("user", user.ID)
			return
		}
		d.users[user.ID] = *user
	})
	return err
}

func (r userRepo) Delete(_ context.Context, _ repository.DBTX, id int64) (bool, error) {
	var ok bool
	r.s.with(func(d *data) {
		if _, ok = d.users[id]; !ok {
			return
		}
		delete(d.users, id)
		for aid, a := range d.aliases {
			if a.UserID != nil && *a.UserID == id {
				a.UserID = nil
				d.aliases[aid] = a
			}
		}
	})
	return ok, nil
}

func (r userRepo) List(_ context.Context, _ repository.DBTX, limit, offset int) ([]domain.User, error) {
	users := r.s.Users()
	sort.SliceStable(users, func(i, j int) bool { return users[i].TrueName < users[j].TrueName })
	return page(users, limit, offset), nil
}

func (r userRepo) Count(context.Context, repository.DBTX) (int, error) {
	return len(r.s.Users()), nil
}

func (r userRepo) Search(_ context.Context, _ repository.DBTX, query string, limit int) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.s.Users() {
		if contains(u.TrueName, query) {
			out = append(out, u)
		}
	}
	return page(out, limit, 0), nil
}

func (r userRepo) ListByGame(_ context.Context, _ repository.DBTX, gameID int64) ([]repository.Participant, error) {
	var out []repository.Participant
	r.s.with(func(d *data) {
		seen := map[int64]bool{}
		for _, p := range sortedValues(d.pages, func(p domain.Page) int64 { return p.ID }) {
			if d.books[p.BookID].GameID != gameID || p.AliasID == nil || seen[*p.AliasID] {
				continue
			}
			a := d.aliases[*p.AliasID]
			if a.UserID == nil {
				continue
			}
			seen[a.ID] = true
			out = append(out, repository.Participant{User: d.users[*a.UserID], Alias: a})
		}
	})
	return out, nil
}

// --- aliases ---

type aliasRepo struct{ s *Store }

func (r aliasRepo) FindByID(_ context.Context, _ repository.DBTX, id int64) (*domain.Alias, error) {
	var out *domain.Alias
	r.s.with(func(d *data) {
		if a, ok := d.aliases[id]; ok {
			out = &a
		}
	})
	return out, nil
}

func (r aliasRepo) FindByNameAndUser(_ context.Context, _ repository.DBTX, name string, userID int64) (*domain.Alias, error) {
	for _, a := range r.s.Aliases() {
		if a.Name == name && a.UserID != nil && *a.UserID == userID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r aliasRepo) Create(_ context.Context, _ repository.DBTX, alias *domain.Alias) error {
	r.s.with(func(d *data) {
		alias.ID = d.nextID()
		d.aliases[alias.ID] = *alias
	})
	return nil
}

func (r aliasRepo) Update(_ context.Context, _ repository.DBTX, alias *domain.Alias) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.aliases[alias.ID]; !ok {
			err = notFound("alias", alias.ID)
			return
		}
		d.aliases[alias.ID] = *alias
	})
	return err
}

func (r aliasRepo) Delete(_ context.Context, _ repository.DBTX, id int64) (bool, error) {
	var ok bool
	r.s.with(func(d *data) {
		if _, ok = d.aliases[id]; ok {
			delete(d.aliases, id)
			for pid, p := range d.pages {
				if p.AliasID != nil && *p.AliasID == id {
					p.AliasID = nil
					d.pages[pid] = p
				}
			}
		}
	})
	return ok, nil
}

func (r aliasRepo) List(_ context.Context, _ repository.DBTX, limit, offset int) ([]domain.Alias, error) {
	return page(r.s.Aliases(), limit, offset), nil
}

func (r aliasRepo) Count(context.Context, repository.DBTX) (int, error) {
	return len(r.s.Aliases()), nil
}

func (r aliasRepo) ListByUser(_ context.Context, _ repository.DBTX, userID int64) ([]domain.Alias, error) {
	var out []domain.Alias
	for _, a := range r.s.Aliases() {
		if a.UserID != nil && *a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- games ---

type gameRepo struct{ s *Store }

func (r gameRepo) FindByID(_ context.Context, _ repository.DBTX, id int64) (*domain.Game, error) {
	var out *domain.Game
	r.s.with(func(d *data) {
		if g, ok := d.games[id]; ok {
			out = &g
		}
	})
	return out, nil
}

func (r gameRepo) Create(_ context.Context, _ repository.DBTX, game *domain.Game) error {
	r.s.with(func(d *data) {
		game.ID = d.nextID()
		d.games[game.ID] = *game
	})
	return nil
}

func (r gameRepo) Update(_ context.Context, _ repository.DBTX, game *domain.Game) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.games[game.ID]; !ok {
			err = notFound("game", game.ID)
			return
		}
		d.games[game.ID] = *game
	})
	return err
}

func (r gameRepo) Delete(_ context.Context, _ repository.DBTX, id int64) (bool, error) {
	var ok bool
	r.s.with(func(d *data) {
		if _, ok = d.games[id]; !ok {
			return
		}
		delete(d.games, id)
		for bid, b := range d.books {
			if b.GameID == id {
				d.deleteBook(bid)
			}
		}
	})
	return ok, nil
}

func (d *data) deleteBook(id int64) {
	delete(d.books, id)
	for pid, p := range d.pages {
		if p.BookID == id {
			d.deletePage(pid)
		}
	}
}

func (d *data) deletePage(id int64) {
	delete(d.pages, id)
	for k := range d.tags {
		if k.pageID == id {
			delete(d.tags, k)
		}
	}
	for k, dc := range d.daily {
		if dc.PageID == id {
			delete(d.daily, k)
		}
	}
}

func (r gameRepo) List(_ context.Context, _ repository.DBTX, limit, offset int) ([]domain.Game, error) {
	games := r.s.Games()
	sort.SliceStable(games, func(i, j int) bool {
		if games[i].Date.Equal(games[j].Date) {
			return games[i].ID > games[j].ID
		}
		return games[i].Date.After(games[j].Date)
	})
	return page(games, limit, offset), nil
}

func (r gameRepo) Count(context.Context, repository.DBTX) (int, error) {
	return len(r.s.Games()), nil
}

// --- books ---

type bookRepo struct{ s *Store }

func (r bookRepo) FindByID(_ context.Context, _ repository.DBTX, id int64) (*domain.Book, error) {
	var out *domain.Book
	r.s.with(func(d *data) {
		if b, ok := d.books[id]; ok {
			out = &b
		}
	})
	return out, nil
}

func (r bookRepo) Create(_ context.Context, _ repository.DBTX, book *domain.Book) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.games[book.GameID]; !ok {
			err = ErrForeignKeyViolation
			return
		}
		book.ID = d.nextID()
		d.books[book.ID] = *book
	})
	return err
}

func (r bookRepo) Update(_ context.Context, _ repository.DBTX, book *domain.Book) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.books[book.ID]; !ok {
			err = notFound("book", book.ID)
			return
		}
		d.books[book.ID] = *book
	})
	return err
}

func (r bookRepo) Delete(_ context.Context, _ repository.DBTX, id int64) (bool, error) {
	var ok bool
	r.s.with(func(d *data) {
		if _, ok = d.books[id]; ok {
			d.deleteBook(id)
		}
	})
	return ok, nil
}

func (r bookRepo) List(_ context.Context, _ repository.DBTX, limit, offset int) ([]domain.Book, error) {
	books := r.s.Books()
	sort.SliceStable(books, func(i, j int) bool { return books[i].ID > books[j].ID })
	return page(books, limit, offset), nil
}

func (r bookRepo) Count(context.Context, repository.DBTX) (int, error) {
	return len(r.s.Books()), nil
}

func (r bookRepo) ListByGame(_ context.Context, _ repository.DBTX, gameID int64) ([]domain.Book, error) {
	var out []domain.Book
	for _, b := range r.s.Books() {
		if b.GameID == gameID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r bookRepo) Recent(ctx context.Context, db repository.DBTX, limit int) ([]domain.Book, error) {
	return r.List(ctx, db, limit, 0)
}

func (r bookRepo) SearchByOpeningText(_ context.Context, _ repository.DBTX, query string, limit int) ([]domain.Book, error) {
	var out []domain.Book
	r.s.with(func(d *data) {
		for _, p := range d.pages {
			if p.Sequence == 1 && p.Type == domain.PageText && p.ContentText != nil && contains(*p.ContentText, query) {
				out = append(out, d.books[p.BookID])
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, 0), nil
}

// --- pages ---

type pageRepo struct{ s *Store }

func (r pageRepo) FindByID(_ context.Context, _ repository.DBTX, id int64) (*domain.Page, error) {
	var out *domain.Page
	r.s.with(func(d *data) {
		if p, ok := d.pages[id]; ok {
			out = &p
		}
	})
	return out, nil
}

func (r pageRepo) Create(_ context.Context, _ repository.DBTX, p *domain.Page) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.books[p.BookID]; !ok {
			err = ErrForeignKeyViolation
			return
		}
		for _, other := range d.pages {
			if other.BookID == p.BookID && other.Sequence == p.Sequence {
				err = ErrUniqueViolation
				return
			}
		}
		p.ID = d.nextID()
		d.pages[p.ID] = *p
	})
	return err
}

func (r pageRepo) Update(_ context.Context, _ repository.DBTX, p *domain.Page) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.pages[p.ID]; !ok {
			err = notFound("page", p.ID)
			return
		}
		d.pages[p.ID] = *p
	})
	return err
}

func (r pageRepo) Delete(_ context.Context, _ repository.DBTX, id int64) (bool, error) {
	var ok bool
	r.s.with(func(d *data) {
		if _, ok = d.pages[id]; ok {
			d.deletePage(id)
		}
	})
	return ok, nil
}

func (r pageRepo) List(_ context.Context, _ repository.DBTX, limit, offset int) ([]domain.Page, error) {
	return page(r.s.Pages(), limit, offset), nil
}

func (r pageRepo) Count(context.Context, repository.DBTX) (int, error) {
	return len(r.s.Pages()), nil
}

func (r pageRepo) ListByBook(_ context.Context, _ repository.DBTX, bookID int64) ([]domain.Page, error) {
	var out []domain.Page
	for _, p := range r.s.Pages() {
		if p.BookID == bookID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r pageRepo) ListImagesByUser(_ context.Context, _ repository.DBTX, userID int64) ([]domain.Page, error) {
	var out []domain.Page
	r.s.with(func(d *data) {
		for _, p := range sortedValues(d.pages, func(p domain.Page) int64 { return -p.ID }) {
			if p.Type != domain.PageImage || p.AliasID == nil {
				continue
			}
			if a := d.aliases[*p.AliasID]; a.UserID != nil && *a.UserID == userID {
				out = append(out, p)
			}
		}
	})
	return out, nil
}

func (r pageRepo) ListByCharacter(_ context.Context, _ repository.DBTX, characterID int64) ([]domain.Page, error) {
	var out []domain.Page
	r.s.with(func(d *data) {
		for _, p := range sortedValues(d.pages, func(p domain.Page) int64 { return -p.ID }) {
			if d.tags[tagKey{p.ID, characterID}] {
				out = append(out, p)
			}
		}
	})
	return out, nil
}

func (r pageRepo) ImageURLsByGame(_ context.Context, _ repository.DBTX, gameID int64) ([]string, error) {
	var out []string
	r.s.with(func(d *data) {
		for _, p := range sortedValues(d.pages, func(p domain.Page) int64 { return p.ID }) {
			if p.IsImage() && d.books[p.BookID].GameID == gameID {
				out = append(out, *p.ContentURL)
			}
		}
	})
	return out, nil
}

func (r pageRepo) ImageURLsByBook(_ context.Context, _ repository.DBTX, bookID int64) ([]string, error) {
	var out []string
	for _, p := range r.s.Pages() {
		if p.IsImage() && p.BookID == bookID {
			out = append(out, *p.ContentURL)
		}
	}
	return out, nil
}

func (r pageRepo) ExistsWithURL(_ context.Context, _ repository.DBTX, url string) (bool, error) {
	for _, p := range r.s.Pages() {
		if p.ContentURL != nil && *p.ContentURL == url {
			return true, nil
		}
	}
	return false, nil
}

// --- characters ---

type characterRepo struct{ s *Store }

func (r characterRepo) all() []domain.Character {
	var out []domain.Character
	r.s.with(func(d *data) { out = sortedValues(d.characters, func(c domain.Character) int64 { return c.ID }) })
	return out
}

func (r characterRepo) FindByID(_ context.Context, _ repository.DBTX, id int64) (*domain.Character, error) {
	var out *domain.Character
	r.s.with(func(d *data) {
		if c, ok := d.characters[id]; ok {
			out = &c
		}
	})
	return out, nil
}

func (r characterRepo) Create(_ context.Context, _ repository.DBTX, c *domain.Character) error {
	r.s.with(func(d *data) {
		c.ID = d.nextID()
		d.characters[c.ID] = *c
	})
	return nil
}

func (r characterRepo) Update(_ context.Context, _ repository.DBTX, c *domain.Character) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.characters[c.ID]; !ok {
			err = notFound("character", c.ID)
			return
		}
		d.characters[c.ID] = *c
	})
	return err
}

func (r characterRepo) Delete(_ context.Context, _ repository.DBTX, id int64) (bool, error) {
	var ok bool
	r.s.with(func(d *data) {
		if _, ok = d.characters[id]; ok {
			delete(d.characters, id)
			for k := range d.tags {
				if k.characterID == id {
					delete(d.tags, k)
				}
			}
		}
	})
	return ok, nil
}

func (r characterRepo) List(_ context.Context, _ repository.DBTX, limit, offset int) ([]domain.Character, error) {
	chars := r.all()
	sort.SliceStable(chars, func(i, j int) bool { return chars[i].Name < chars[j].Name })
	return page(chars, limit, offset), nil
}

func (r characterRepo) Count(context.Context, repository.DBTX) (int, error) {
	return len(r.all()), nil
}

func (r characterRepo) Search(_ context.Context, _ repository.DBTX, query string, limit int) ([]domain.Character, error) {
	var out []domain.Character
	for _, c := range r.all() {
		if contains(c.Name, query) {
			out = append(out, c)
		}
	}
	return page(out, limit, 0), nil
}

func (r characterRepo) ListByPage(_ context.Context, _ repository.DBTX, pageID int64) ([]domain.Character, error) {
	var out []domain.Character
	r.s.with(func(d *data) {
		for _, c := range sortedValues(d.characters, func(c domain.Character) int64 { return c.ID }) {
			if d.tags[tagKey{pageID, c.ID}] {
				out = append(out, c)
			}
		}
	})
	return out, nil
}

func (r characterRepo) Tag(_ context.Context, _ repository.DBTX, pageID, characterID int64) (bool, error) {
	var added bool
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.pages[pageID]; !ok {
			err = ErrForeignKeyViolation
			return
		}
		if _, ok := d.characters[characterID]; !ok {
			err = ErrForeignKeyViolation
			return
		}
		k := tagKey{pageID, characterID}
		added = !d.tags[k]
		d.tags[k] = true
	})
	return added, err
}

func (r characterRepo) Untag(_ context.Context, _ repository.DBTX, pageID, characterID int64) (bool, error) {
	var removed bool
	r.s.with(func(d *data) {
		k := tagKey{pageID, characterID}
		removed = d.tags[k]
		delete(d.tags, k)
	})
	return removed, nil
}

func (r characterRepo) BackfillImage(_ context.Context, _ repository.DBTX, characterID int64, url string) (bool, error) {
	var set bool
	r.s.with(func(d *data) {
		c, ok := d.characters[characterID]
		if !ok || c.ImageURL != nil {
			return
		}
		c.ImageURL = &url
		d.characters[characterID] = c
		set = true
	})
	return set, nil
}

// --- admin keys ---

type adminKeyRepo struct{ s *Store }

func (r adminKeyRepo) Create(_ context.Context, _ repository.DBTX, key *domain.AdminKey) error {
	r.s.with(func(d *data) {
		key.ID = d.nextID()
		key.CreatedAt = time.Now().UTC()
		d.keys[key.ID] = *key
	})
	return nil
}

func (r adminKeyRepo) List(context.Context, repository.DBTX) ([]domain.AdminKey, error) {
	var out []domain.AdminKey
	r.s.with(func(d *data) { out = sortedValues(d.keys, func(k domain.AdminKey) int64 { return k.ID }) })
	return out, nil
}

func (r adminKeyRepo) Delete(_ context.Context, _ repository.DBTX, id int64) (bool, error) {
	var ok bool
	r.s.with(func(d *data) {
		if _, ok = d.keys[id]; ok {
			delete(d.keys, id)
		}
	})
	return ok, nil
}

// --- daily challenges ---

type dailyRepo struct{ s *Store }

func (r dailyRepo) FindByDate(_ context.Context, _ repository.DBTX, date time.Time) (*domain.DailyChallenge, error) {
	var out *domain.DailyChallenge
	r.s.with(func(d *data) {
		if dc, ok := d.daily[dateKey(date)]; ok {
			out = &dc
		}
	})
	return out, nil
}

func (r dailyRepo) Insert(_ context.Context, _ repository.DBTX, dc *domain.DailyChallenge) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.daily[dateKey(dc.Date)]; ok {
			err = ErrUniqueViolation
			return
		}
		dc.ID = d.nextID()
		d.daily[dateKey(dc.Date)] = *dc
	})
	return err
}

// PickEligible returns PickHook's choice, or else the lowest-id eligible page.
func (r dailyRepo) PickEligible(_ context.Context, _ pgx.Tx, seed float64, excluded []string) (*domain.Page, error) {
	if r.s.PickHook != nil {
		return r.s.PickHook(seed, excluded), nil
	}
	var out *domain.Page
	r.s.with(func(d *data) {
		skip := map[string]bool{}
		for _, name := range excluded {
			skip[name] = true
		}
	pages:
		for _, p := range sortedValues(d.pages, func(p domain.Page) int64 { return p.ID }) {
			if !p.IsImage() || p.AliasID == nil || d.aliases[*p.AliasID].UserID == nil {
				continue
			}
			for k := range d.tags {
				if k.pageID == p.ID && skip[d.characters[k.characterID].Name] {
					continue pages
				}
			}
			out = &p
			return
		}
	})
	return out, nil
}

// --- outbox ---

type outboxRepo struct{ s *Store }

func (r outboxRepo) Insert(_ context.Context, _ repository.DBTX, draft domain.OutboxDraft) error {
	r.s.with(func(d *data) {
		draft.SeqID = d.nextID()
		d.outbox = append(d.outbox, draft)
	})
	return nil
}

func (r outboxRepo) FetchUnpublished(_ context.Context, _ repository.DBTX, limit int) ([]domain.OutboxDraft, error) {
	return page(r.s.Outbox(), limit, 0), nil
}

func (r outboxRepo) MarkPublished(_ context.Context, _ repository.DBTX, ids []int64) error {
	r.s.with(func(d *data) {
		done := map[int64]bool{}
		for _, id := range ids {
			done[id] = true
		}
		kept := d.outbox[:0]
		for _, e := range d.outbox {
			if !done[e.SeqID] {
				kept = append(kept, e)
			}
		}
		d.outbox = kept
	})
	return nil
}

// --- orphans ---

type orphanRepo struct{ s *Store }

func (r orphanRepo) Insert(_ context.Context, _ repository.DBTX, url, reason string) error {
	r.s.with(func(d *data) {
		for _, o := range d.orphans {
			if o.URL == url {
				return
			}
		}
		id := d.nextID()
		d.orphans[id] = domain.OrphanUpload{ID: id, URL: url, Reason: reason, CreatedAt: time.Now().UTC()}
	})
	return nil
}

func (r orphanRepo) List(_ context.Context, _ repository.DBTX, limit int) ([]domain.OrphanUpload, error) {
	return page(r.s.Orphans(), limit, 0), nil
}

func (r orphanRepo) Delete(_ context.Context, _ repository.DBTX, id int64) error {
	r.s.with(func(d *data) { delete(d.orphans, id) })
	return nil
}
