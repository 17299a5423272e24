package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/infra"
	"github.com/bpparchive/archive/internal/repository"
)

// RecordKind names one admin-editable table.
type RecordKind string

const (
	KindUsers      RecordKind = "users"
	KindAliases    RecordKind = "aliases"
	KindGames      RecordKind = "games"
	KindBooks      RecordKind = "books"
	KindPages      RecordKind = "pages"
	KindCharacters RecordKind = "characters"
)

// KindInfo publishes a kind's editable fields.
type KindInfo struct {
	Kind   RecordKind `json:"kind"`
	Fields []Field    `json:"fields"`
}

// RecordList is one page of records of a kind.
type RecordList struct {
	Kind    RecordKind  `json:"kind"`
	Items   interface{} `json:"items"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Total   int         `json:"total"`
}

// DeleteResult reports a record deletion and the bucket cleanup it triggered.
type DeleteResult struct {
	Kind          RecordKind `json:"kind"`
	ID            int64      `json:"id"`
	ImagesRemoved int        `json:"images_removed"`
	ImagesFailed  []string   `json:"images_failed,omitempty"`
}

// kindOps binds a kind to its repository.
type kindOps struct {
	info   KindInfo
	list   func(ctx context.Context, db repository.DBTX, limit, offset int) (interface{}, error)
	count  func(ctx context.Context, db repository.DBTX) (int, error)
	get    func(ctx context.Context, db repository.DBTX, id int64) (interface{}, error)
	create func(ctx context.Context, db repository.DBTX, fs *fieldSet) (interface{}, error)
	update func(ctx context.Context, db repository.DBTX, id int64, fs *fieldSet) (interface{}, error)
	delete func(ctx context.Context, db repository.DBTX, id int64) (bool, error)

	// images lists bucket objects that disappear with the record.
	images func(ctx context.Context, db repository.DBTX, id int64) ([]string, error)
	// deleted is the outbox event written on delete, if any.
	deleted domain.EventType
	agg     domain.AggregateType
}

// RecordService is the generic admin editor over a closed set of kinds.
type RecordService struct {
	pool    repository.TxBeginner
	repos   Repos
	cleaner *RemoteCleaner
	logger  *slog.Logger
	kinds   map[RecordKind]*kindOps
	order   []RecordKind
}

// NewRecordService creates a RecordService.
func NewRecordService(pool repository.TxBeginner, repos Repos, cleaner *RemoteCleaner, logger *slog.Logger) *RecordService {
	s := &RecordService{pool: pool, repos: repos, cleaner: cleaner, logger: logger}
	s.order = []RecordKind{KindUsers, KindAliases, KindGames, KindBooks, KindPages, KindCharacters}
	s.kinds = map[RecordKind]*kindOps{
		KindUsers:      s.userOps(),
		KindAliases:    s.aliasOps(),
		KindGames:      s.gameOps(),
		KindBooks:      s.bookOps(),
		KindPages:      s.pageOps(),
		KindCharacters: s.characterOps(),
	}
	return s
}

// Kinds returns every kind with its field descriptors.
func (s *RecordService) Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.kinds[k].info)
	}
	return out
}

func (s *RecordService) ops(kind RecordKind) (*kindOps, error) {
	ops, ok := s.kinds[kind]
	if !ok {
		return nil, domain.ErrNotFound("record kind", string(kind))
	}
	return ops, nil
}

// List returns one page of records. page is 1-based.
func (s *RecordService) List(ctx context.Context, kind RecordKind, page, perPage int) (*RecordList, error) {
	ops, err := s.ops(kind)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	items, err := ops.list(ctx, s.pool, perPage, (page-1)*perPage)
	if err != nil {
		return nil, domain.ErrInternal("list "+string(kind), err)
	}
	total, err := ops.count(ctx, s.pool)
	if err != nil {
		return nil, domain.ErrInternal("count "+string(kind), err)
	}
	return &RecordList{Kind: kind, Items: items, Page: page, PerPage: perPage, Total: total}, nil
}

// Get returns one record.
func (s *RecordService) Get(ctx context.Context, kind RecordKind, id int64) (interface{}, error) {
	ops, err := s.ops(kind)
	if err != nil {
		return nil, err
	}
	return wrapRecordErr(ops.get(ctx, s.pool, id))
}

// Create inserts a record from fields.
func (s *RecordService) Create(ctx context.Context, kind RecordKind, fields RecordFields) (interface{}, error) {
	ops, err := s.ops(kind)
	if err != nil {
		return nil, err
	}
	fs, err := newFieldSet(ops.info.Fields, fields, true)
	if err != nil {
		return nil, err
	}
	rec, err := wrapRecordErr(ops.create(ctx, s.pool, fs))
	if err == nil {
		s.logger.Info("record created", "kind", kind)
	}
	return rec, err
}

// Update applies a partial update. Images the record owned before the update
// and no page references afterwards are removed from the bucket after the
// commit.
func (s *RecordService) Update(ctx context.Context, kind RecordKind, id int64, fields RecordFields) (interface{}, error) {
	ops, err := s.ops(kind)
	if err != nil {
		return nil, err
	}
	fs, err := newFieldSet(ops.info.Fields, fields, false)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	var before []string
	if ops.images != nil {
		if before, err = ops.images(ctx, tx, id); err != nil {
			return nil, domain.ErrInternal("collect images", err)
		}
	}

	rec, err := wrapRecordErr(ops.update(ctx, tx, id, fs))
	if err != nil {
		return nil, err
	}

	stale, err := s.unreferenced(ctx, tx, before)
	if err != nil {
		return nil, domain.ErrInternal("check replaced images", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit update", err)
	}

	var failed []string
	if len(stale) > 0 {
		failed = s.cleaner.DeleteAll(ctx, stale)
	}
	s.logger.Info("record updated", "kind", kind, "id", id,
		"images_removed", len(stale)-len(failed), "images_failed", len(failed))
	return rec, nil
}

// unreferenced returns the urls no page points at any more.
func (s *RecordService) unreferenced(ctx context.Context, db repository.DBTX, urls []string) ([]string, error) {
	var out []string
	for _, url := range urls {
		used, err := s.repos.Pages.ExistsWithURL(ctx, db, url)
		if err != nil {
			return nil, err
		}
		if !used {
			out = append(out, url)
		}
	}
	return out, nil
}

// Delete removes a record. Images owned by deleted pages are removed from
// the bucket after the commit; failures there are logged and reported but
// do not undo the delete.
func (s *RecordService) Delete(ctx context.Context, kind RecordKind, id int64) (*DeleteResult, error) {
	ops, err := s.ops(kind)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	var urls []string
	if ops.images != nil {
		if urls, err = ops.images(ctx, tx, id); err != nil {
			return nil, domain.ErrInternal("collect images", err)
		}
	}

	found, err := ops.delete(ctx, tx, id)
	if err != nil {
		return nil, domain.ErrInternal("delete "+string(kind), err)
	}
	if !found {
		return nil, domain.ErrNotFound(string(kind), strconv.FormatInt(id, 10))
	}

	if ops.deleted != "" {
		draft, err := domain.NewOutboxDraft(ops.agg, strconv.FormatInt(id, 10), ops.deleted,
			map[string]interface{}{"id": id, "images": len(urls)})
		if err != nil {
			return nil, domain.ErrInternal("build outbox event", err)
		}
		if err := s.repos.Outbox.Insert(ctx, tx, draft); err != nil {
			return nil, domain.ErrInternal("insert outbox event", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit delete", err)
	}

	result := &DeleteResult{Kind: kind, ID: id}
	if len(urls) > 0 {
		result.ImagesFailed = s.cleaner.DeleteAll(ctx, urls)
		result.ImagesRemoved = len(urls) - len(result.ImagesFailed)
	}
	s.logger.Info("record deleted", "kind", kind, "id", id, "images_removed", result.ImagesRemoved)
	return result, nil
}

// wrapRecordErr maps storage constraint errors to client errors.
func wrapRecordErr(rec interface{}, err error) (interface{}, error) {
	if err == nil {
		return rec, nil
	}
	var appErr *domain.AppError
	switch {
	case errors.As(err, &appErr):
		return nil, appErr
	case infra.IsUniqueViolation(err):
		return nil, domain.ErrConflict("a record with the same unique value already exists")
	case infra.IsForeignKeyViolation(err):
		return nil, domain.ErrValidation("referenced record does not exist")
	case infra.IsCheckViolation(err):
		return nil, domain.ErrValidation("record violates a table constraint")
	default:
		return nil, domain.ErrInternal("write record", err)
	}
}

func notFoundID(entity string, id int64) error {
	return domain.ErrNotFound(entity, strconv.FormatInt(id, 10))
}

// --- per-kind bindings ---

func (s *RecordService) userOps() *kindOps {
	r := s.repos.Users
	apply := func(fs *fieldSet, u *domain.User) error {
		if err := firstErr(fs.str("true_name", &u.TrueName), fs.optStr("description", &u.Description)); err != nil {
			return err
		}
		return validation(domain.ValidateTrueName(u.TrueName))
	}
	return &kindOps{
		info: KindInfo{Kind: KindUsers, Fields: []Field{
			{Name: "true_name", Type: FieldString, Required: true},
			{Name: "description", Type: FieldText, Nullable: true},
		}},
		list: func(ctx context.Context, db repository.DBTX, limit, offset int) (interface{}, error) {
			items, err := r.List(ctx, db, limit, offset)
			return nonNil(items), err
		},
		count: r.Count,
		get: func(ctx context.Context, db repository.DBTX, id int64) (interface{}, error) {
			u, err := r.FindByID(ctx, db, id)
			if err == nil && u == nil {
				err = notFoundID("user", id)
			}
			return u, err
		},
		create: func(ctx context.Context, db repository.DBTX, fs *fieldSet) (interface{}, error) {
			u := &domain.User{}
			if err := apply(fs, u); err != nil {
				return nil, err
			}
			return u, r.Create(ctx, db, u)
		},
		update: func(ctx context.Context, db repository.DBTX, id int64, fs *fieldSet) (interface{}, error) {
			u, err := r.FindByID(ctx, db, id)
			if err != nil {
				return nil, err
			}
			if u == nil {
				return nil, notFoundID("user", id)
			}
			if err := apply(fs, u); err != nil {
				return nil, err
			}
			return u, r.Update(ctx, db, u)
		},
		delete: r.Delete,
	}
}

func (s *RecordService) aliasOps() *kindOps {
	r := s.repos.Aliases
	apply := func(fs *fieldSet, a *domain.Alias) error {
		if err := firstErr(fs.str("name", &a.Name), fs.optInt64("user_id", &a.UserID)); err != nil {
			return err
		}
		return validation(domain.ValidateAliasName(a.Name))
	}
	return &kindOps{
		info: KindInfo{Kind: KindAliases, Fields: []Field{
			{Name: "name", Type: FieldString, Required: true},
			{Name: "user_id", Type: FieldInt, Nullable: true},
		}},
		list: func(ctx context.Context, db repository.DBTX, limit, offset int) (interface{}, error) {
			items, err := r.List(ctx, db, limit, offset)
			return nonNil(items), err
		},
		count: r.Count,
		get: func(ctx context.Context, db repository.DBTX, id int64) (interface{}, error) {
			a, err := r.FindByID(ctx, db, id)
			if err == nil && a == nil {
				err = notFoundID("alias", id)
			}
			return a, err
		},
		create: func(ctx context.Context, db repository.DBTX, fs *fieldSet) (interface{}, error) {
			a := &domain.Alias{}
			if err := apply(fs, a); err != nil {
				return nil, err
			}
			return a, r.Create(ctx, db, a)
		},
		update: func(ctx context.Context, db repository.DBTX, id int64, fs *fieldSet) (interface{}, error) {
			a, err := r.FindByID(ctx, db, id)
			if err != nil {
				return nil, err
			}
			if a == nil {
				return nil, notFoundID("alias", id)
			}
			if err := apply(fs, a); err != nil {
				return nil, err
			}
			return a, r.Update(ctx, db, a)
		},
		delete: r.Delete,
	}
}

func (s *RecordService) gameOps() *kindOps {
	r := s.repos.Games
	apply := func(fs *fieldSet, g *domain.Game) error {
		if err := firstErr(
			fs.date("date", &g.Date),
			fs.optStr("title", &g.Title),
			fs.optStr("override_image_url", &g.OverrideImageURL),
		); err != nil {
			return err
		}
		return validation(firstErr(validateOptTitle(g.Title), validateOptURL(g.OverrideImageURL)))
	}
	return &kindOps{
		info: KindInfo{Kind: KindGames, Fields: []Field{
			{Name: "date", Type: FieldDate, Required: true},
			{Name: "title", Type: FieldString, Nullable: true},
			{Name: "override_image_url", Type: FieldURL, Nullable: true},
		}},
		list: func(ctx context.Context, db repository.DBTX, limit, offset int) (interface{}, error) {
			items, err := r.List(ctx, db, limit, offset)
			return nonNil(items), err
		},
		count: r.Count,
		get: func(ctx context.Context, db repository.DBTX, id int64) (interface{}, error) {
			g, err := r.FindByID(ctx, db, id)
			if err == nil && g == nil {
				err = notFoundID("game", id)
			}
			return g, err
		},
		create: func(ctx context.Context, db repository.DBTX, fs *fieldSet) (interface{}, error) {
			g := &domain.Game{}
			if err := apply(fs, g); err != nil {
				return nil, err
			}
			return g, r.Create(ctx, db, g)
		},
		update: func(ctx context.Context, db repository.DBTX, id int64, fs *fieldSet) (interface{}, error) {
			g, err := r.FindByID(ctx, db, id)
			if err != nil {
				return nil, err
			}
			if g == nil {
				return nil, notFoundID("game", id)
			}
			if err := apply(fs, g); err != nil {
				return nil, err
			}
			return g, r.Update(ctx, db, g)
		},
		delete:  r.Delete,
		images:  s.repos.Pages.ImageURLsByGame,
		deleted: domain.EventGameDeleted,
		agg:     domain.AggregateGame,
	}
}

func (s *RecordService) bookOps() *kindOps {
	r := s.repos.Books
	apply := func(fs *fieldSet, b *domain.Book) error {
		if err := firstErr(fs.num64("game_id", &b.GameID), fs.optStr("title", &b.Title)); err != nil {
			return err
		}
		return validation(validateOptTitle(b.Title))
	}
	return &kindOps{
		info: KindInfo{Kind: KindBooks, Fields: []Field{
			{Name: "game_id", Type: FieldInt, Required: true},
			{Name: "title", Type: FieldString, Nullable: true},
		}},
		list: func(ctx context.Context, db repository.DBTX, limit, offset int) (interface{}, error) {
			items, err := r.List(ctx, db, limit, offset)
			return nonNil(items), err
		},
		count: r.Count,
		get: func(ctx context.Context, db repository.DBTX, id int64) (interface{}, error) {
			b, err := r.FindByID(ctx, db, id)
			if err == nil && b == nil {
				err = notFoundID("book", id)
			}
			return b, err
		},
		create: func(ctx context.Context, db repository.DBTX, fs *fieldSet) (interface{}, error) {
			b := &domain.Book{}
			if err := apply(fs, b); err != nil {
				return nil, err
			}
			return b, r.Create(ctx, db, b)
		},
		update: func(ctx context.Context, db repository.DBTX, id int64, fs *fieldSet) (interface{}, error) {
			b, err := r.FindByID(ctx, db, id)
			if err != nil {
				return nil, err
			}
			if b == nil {
				return nil, notFoundID("book", id)
			}
			if err := apply(fs, b); err != nil {
				return nil, err
			}
			return b, r.Update(ctx, db, b)
		},
		delete: r.Delete,
		images: s.repos.Pages.ImageURLsByBook,
	}
}

func (s *RecordService) pageOps() *kindOps {
	r := s.repos.Pages
	apply := func(fs *fieldSet, p *domain.Page) error {
		typ := string(p.Type)
		if err := firstErr(
			fs.num64("book_id", &p.BookID),
			fs.optInt64("alias_id", &p.AliasID),
			fs.num("sequence", &p.Sequence),
			fs.str("type", &typ),
			fs.optStr("content_text", &p.ContentText),
			fs.optStr("content_url", &p.ContentURL),
		); err != nil {
			return err
		}
		p.Type = domain.PageType(typ)
		return validation(domain.ValidatePage(*p))
	}
	return &kindOps{
		info: KindInfo{Kind: KindPages, Fields: []Field{
			{Name: "book_id", Type: FieldInt, Required: true},
			{Name: "alias_id", Type: FieldInt, Nullable: true},
			{Name: "sequence", Type: FieldInt, Required: true},
			{Name: "type", Type: FieldEnum, Required: true, Enum: []string{string(domain.PageText), string(domain.PageImage)}},
			{Name: "content_text", Type: FieldText, Nullable: true},
			{Name: "content_url", Type: FieldURL, Nullable: true},
		}},
		list: func(ctx context.Context, db repository.DBTX, limit, offset int) (interface{}, error) {
			items, err := r.List(ctx, db, limit, offset)
			return nonNil(items), err
		},
		count: r.Count,
		get: func(ctx context.Context, db repository.DBTX, id int64) (interface{}, error) {
			p, err := r.FindByID(ctx, db, id)
			if err == nil && p == nil {
				err = notFoundID("page", id)
			}
			return p, err
		},
		create: func(ctx context.Context, db repository.DBTX, fs *fieldSet) (interface{}, error) {
			p := &domain.Page{}
			if err := apply(fs, p); err != nil {
				return nil, err
			}
			return p, r.Create(ctx, db, p)
		},
		update: func(ctx context.Context, db repository.DBTX, id int64, fs *fieldSet) (interface{}, error) {
			p, err := r.FindByID(ctx, db, id)
			if err != nil {
				return nil, err
			}
			if p == nil {
				return nil, notFoundID("page", id)
			}
			if err := apply(fs, p); err != nil {
				return nil, err
			}
			return p, r.Update(ctx, db, p)
		},
		delete: r.Delete,
		images: func(ctx context.Context, db repository.DBTX, id int64) ([]string, error) {
			p, err := r.FindByID(ctx, db, id)
			if err != nil || p == nil || !p.IsImage() {
				return nil, err
			}
			return []string{*p.ContentURL}, nil
		},
		deleted: domain.EventPageDeleted,
		agg:     domain.AggregatePage,
	}
}

func (s *RecordService) characterOps() *kindOps {
	r := s.repos.Characters
	apply := func(fs *fieldSet, c *domain.Character) error {
		if err := firstErr(
			fs.str("name", &c.Name),
			fs.optStr("description", &c.Description),
			fs.optStr("image_url", &c.ImageURL),
		); err != nil {
			return err
		}
		return validation(firstErr(domain.ValidateCharacterName(c.Name), validateOptURL(c.ImageURL)))
	}
	return &kindOps{
		info: KindInfo{Kind: KindCharacters, Fields: []Field{
			{Name: "name", Type: FieldString, Required: true},
			{Name: "description", Type: FieldText, Nullable: true},
			{Name: "image_url", Type: FieldURL, Nullable: true},
		}},
		list: func(ctx context.Context, db repository.DBTX, limit, offset int) (interface{}, error) {
			items, err := r.List(ctx, db, limit, offset)
			return nonNil(items), err
		},
		count: r.Count,
		get: func(ctx context.Context, db repository.DBTX, id int64) (interface{}, error) {
			c, err := r.FindByID(ctx, db, id)
			if err == nil && c == nil {
				err = notFoundID("character", id)
			}
			return c, err
		},
		create: func(ctx context.Context, db repository.DBTX, fs *fieldSet) (interface{}, error) {
			c := &domain.Character{}
			if err := apply(fs, c); err != nil {
				return nil, err
			}
			return c, r.Create(ctx, db, c)
		},
		update: func(ctx context.Context, db repository.DBTX, id int64, fs *fieldSet) (interface{}, error) {
			c, err := r.FindByID(ctx, db, id)
			if err != nil {
				return nil, err
			}
			if c == nil {
				return nil, notFoundID("character", id)
			}
			if err := apply(fs, c); err != nil {
				return nil, err
			}
			return c, r.Update(ctx, db, c)
		},
		delete: r.Delete,
	}
}
