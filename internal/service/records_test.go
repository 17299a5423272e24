package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(t *testing.T, raw string) RecordFields {
	t.Helper()
	var f RecordFields
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	return f
}

func newRecordService(store *memstore.Store, bucket ObjectStore) *RecordService {
	return NewRecordService(store, testRepos(store), testCleaner(bucket), testLogger())
}

func TestRecords_KindsAreClosed(t *testing.T) {
	svc := newRecordService(memstore.New(), newFakeBucket())

	var kinds []RecordKind
	for _, k := range svc.Kinds() {
		kinds = append(kinds, k.Kind)
		assert.NotEmpty(t, k.Fields)
	}
	assert.Equal(t, []RecordKind{KindUsers, KindAliases, KindGames, KindBooks, KindPages, KindCharacters}, kinds)

	_, err := svc.List(context.Background(), "admin_keys", 1, 20)
	requireAppError(t, err, "NOT_FOUND", 404)
}

func TestRecords_CreateAndUpdateCharacter(t *testing.T) {
	store := memstore.New()
	svc := newRecordService(store, newFakeBucket())
	ctx := context.Background()

	rec, err := svc.Create(ctx, KindCharacters, fields(t, `{"name":"Grumpy Cat","description":"Always frowning"}`))
	require.NoError(t, err)
	c := rec.(*domain.Character)
	assert.Equal(t, "Grumpy Cat", c.Name)
	assert.Nil(t, c.ImageURL)

	rec, err = svc.Update(ctx, KindCharacters, c.ID, fields(t, `{"image_url":"https://placehold.co/400x300?text=Cat","description":null}`))
	require.NoError(t, err)
	c = rec.(*domain.Character)
	assert.Equal(t, "Grumpy Cat", c.Name, "partial update keeps untouched fields")
	assert.Nil(t, c.Description)
	require.NotNil(t, c.ImageURL)

	got, err := svc.Get(ctx, KindCharacters, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestRecords_FieldValidation(t *testing.T) {
	store := memstore.New()
	seedArchive(t, store)
	svc := newRecordService(store, newFakeBucket())
	ctx := context.Background()

	tests := []struct {
		name string
		kind RecordKind
		body string
	}{
		{"unknown field", KindUsers, `{"true_name":"Carol","password":"x"}`},
		{"missing required", KindUsers, `{"description":"no name"}`},
		{"blank name", KindUsers, `{"true_name":"  "}`},
		{"wrong type", KindBooks, `{"game_id":"one"}`},
		{"bad date", KindGames, `{"date":"17/01/2026"}`},
		{"null required", KindAliases, `{"name":null}`},
		{"bad enum", KindPages, `{"book_id":1,"sequence":3,"type":"drawing","content_url":"https://x.test/a.png"}`},
		{"text page with url", KindPages, `{"book_id":1,"sequence":3,"type":"text","content_url":"https://x.test/a.png"}`},
		{"bad url", KindCharacters, `{"name":"Cat","image_url":"ftp://x.test/a.png"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.kind, fields(t, tt.body))
			requireAppError(t, err, "VALIDATION_ERROR", 400)
		})
	}
}

func TestRecords_ConstraintErrors(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	svc := newRecordService(store, newFakeBucket())
	ctx := context.Background()

	_, err := svc.Create(ctx, KindUsers, fields(t, `{"true_name":"Alice"}`))
	requireAppError(t, err, "CONFLICT", 409)

	_, err = svc.Create(ctx, KindBooks, fields(t, `{"game_id":9999}`))
	requireAppError(t, err, "VALIDATION_ERROR", 400)

	body := `{"book_id":` + jsonID(s.book.ID) + `,"sequence":1,"type":"text","content_text":"dup"}`
	_, err = svc.Create(ctx, KindPages, fields(t, body))
	requireAppError(t, err, "CONFLICT", 409)
}

func jsonID(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

func TestRecords_UpdateMissing(t *testing.T) {
	svc := newRecordService(memstore.New(), newFakeBucket())
	_, err := svc.Update(context.Background(), KindGames, 9999, fields(t, `{"title":"x"}`))
	requireAppError(t, err, "NOT_FOUND", 404)
	_, err = svc.Get(context.Background(), KindGames, 9999)
	requireAppError(t, err, "NOT_FOUND", 404)
}

func TestRecords_ListPaginates(t *testing.T) {
	store := memstore.New()
	seedArchive(t, store)
	svc := newRecordService(store, newFakeBucket())

	list, err := svc.List(context.Background(), KindPages, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Items, 1)
}

func TestRecords_DeleteGameCascadesAndCleansBucket(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	bucket := newFakeBucket()
	svc := newRecordService(store, bucket)

	res, err := svc.Delete(context.Background(), KindGames, s.game.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImagesRemoved)
	assert.Empty(t, res.ImagesFailed)
	assert.Equal(t, []string{*s.drawing.ContentURL}, bucket.deleted)

	assert.Empty(t, store.Games())
	assert.Empty(t, store.Books())
	assert.Empty(t, store.Pages())
	assert.Len(t, store.Users(), 2, "users outlive games")

	events := store.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventGameDeleted, events[0].EventType)
}

func TestRecords_DeleteSurvivesBucketFailure(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	bucket := newFakeBucket()
	bucket.deleteErr = errUploadFailed
	svc := newRecordService(store, bucket)

	res, err := svc.Delete(context.Background(), KindPages, s.drawing.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{*s.drawing.ContentURL}, res.ImagesFailed)
	assert.Zero(t, res.ImagesRemoved)
	assert.Len(t, store.Pages(), 1)
}

func TestRecords_DeleteCaptionTouchesNoObjects(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	bucket := newFakeBucket()
	svc := newRecordService(store, bucket)

	res, err := svc.Delete(context.Background(), KindPages, s.caption.ID)
	require.NoError(t, err)
	assert.Zero(t, res.ImagesRemoved)
	assert.Empty(t, bucket.deleted)

	_, err = svc.Delete(context.Background(), KindPages, s.caption.ID)
	requireAppError(t, err, "NOT_FOUND", 404)
}

func TestRecords_UpdatePageCleansReplacedImage(t *testing.T) {
	tests := []struct {
		name  string
		patch string
	}{
		{"new drawing", `{"content_url":"https://cdn.test/file/bpp/panels/redrawn.png"}`},
		{"drawing becomes caption", `{"type":"text","content_text":"now a caption","content_url":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			s := seedArchive(t, store)
			bucket := newFakeBucket()
			svc := newRecordService(store, bucket)

			_, err := svc.Update(context.Background(), KindPages, s.drawing.ID, fields(t, tt.patch))
			require.NoError(t, err)
			assert.Equal(t, []string{*s.drawing.ContentURL}, bucket.deleted)
		})
	}
}

func TestRecords_UpdatePageKeepsSharedOrUnchangedImage(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	bucket := newFakeBucket()
	svc := newRecordService(store, bucket)
	ctx := context.Background()

	_, err := svc.Update(ctx, KindPages, s.drawing.ID, fields(t, `{"sequence":3}`))
	require.NoError(t, err)
	assert.Empty(t, bucket.deleted, "same url after update")

	copyPage := domain.NewImagePage(s.book.ID, nil, 4, *s.drawing.ContentURL)
	require.NoError(t, testRepos(store).Pages.Create(ctx, store, &copyPage))
	_, err = svc.Update(ctx, KindPages, s.drawing.ID, fields(t, `{"content_url":"https://cdn.test/file/bpp/panels/other.png"}`))
	require.NoError(t, err)
	assert.Empty(t, bucket.deleted, "another page still shows the old drawing")

	_, err = svc.Update(ctx, KindPages, copyPage.ID, fields(t, `{"type":"text","content_url":null}`))
	requireAppError(t, err, "VALIDATION_ERROR", 400)
	assert.Empty(t, bucket.deleted, "failed update removes nothing")
}

func TestRecords_DeleteUserDetachesAliases(t *testing.T) {
	store := memstore.New()
	s := seedArchive(t, store)
	svc := newRecordService(store, newFakeBucket())

	_, err := svc.Delete(context.Background(), KindUsers, s.alice.ID)
	require.NoError(t, err)
	for _, a := range store.Aliases() {
		if a.Name == "Alice" {
			assert.Nil(t, a.UserID)
		}
	}
	assert.Len(t, store.Pages(), 2)
}
