package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogue/internal/core"
	_ "github.com/JonMunkholm/catalogue/internal/core/tables"
	"github.com/JonMunkholm/catalogue/internal/journal"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (r *recordingSink) Record(_ context.Context, e core.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

type catalogue struct {
	dir   string
	store *core.Store
	svc   *core.Service
	audit *recordingSink
}

// newCatalogue creates a data directory holding every catalogue table with
// its header row only, opened with a journal.
func newCatalogue(t *testing.T) *catalogue {
	t.Helper()

	dir := t.TempDir()
	for _, key := range core.EditionTables {
		def, _ := core.Get(key)
		header := ""
		for i, c := range def.Info.Columns {
			if i > 0 {
				header += ","
			}
			header += c
		}
		if err := os.WriteFile(filepath.Join(dir, def.Info.File), []byte(header+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	j, err := journal.Open(filepath.Join(t.TempDir(), "catalog.journal"))
	if err != nil {
		t.Fatal(err)
	}
	store, err := core.OpenStore(dir, core.WithJournal(j))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	sink := &recordingSink{}
	svc := core.NewService(store, core.ServiceConfig{KeyLength: 6, KeyAttempts: 3, Audit: sink})
	svc.SetClock(func() time.Time { return fixedNow })

	return &catalogue{dir: dir, store: store, svc: svc, audit: sink}
}

func (c *catalogue) rows(t *testing.T, table, key string) []core.Row {
	t.Helper()
	rows, err := core.FindRows(context.Background(), c.store, table, key, "")
	if err != nil {
		t.Fatalf("FindRows(%s) error = %v", table, err)
	}
	return rows
}

func (c *catalogue) one(t *testing.T, table, key string) core.Row {
	t.Helper()
	rows := c.rows(t, table, key)
	if len(rows) != 1 {
		t.Fatalf("%s rows for %s = %d, want 1: %v", table, key, len(rows), rows)
	}
	return rows[0]
}

func intp(n int) *int { return &n }

func printEdition(key string) *core.Edition {
	return &core.Edition{
		Key:              key,
		ShortTitle:       core.String("Elementa"),
		ShortTitleSource: core.String("USTC"),
		Notes:            core.String(""),
		Corpus:           []string{"Euclid"},
		Shelfmarks: []core.Shelfmark{
			{Volume: intp(1), Scan: core.String("http://x")},
		},
		Verified: true,
		Variant: &core.Print{
			Cities:     []string{"Paris"},
			Languages:  []string{"Latin"},
			Editors:    []string{"Anon"},
			Publishers: []string{},
			Title:      core.Paratext{Text: core.String("Elementorum"), English: core.String("Of the Elements")},
		},
		Elements: &core.Elements{Books: []int{1, 2, 3, 7}, AdditionalContent: []string{}},
	}
}

func manuscriptEdition(key string) *core.Edition {
	return &core.Edition{
		Key:              key,
		ShortTitle:       core.String("Codex"),
		ShortTitleSource: core.String("Library"),
		Notes:            core.String("fragment"),
		Corpus:           []string{"Euclid", "Optics"},
		Variant: &core.Manuscript{
			YearFrom: intp(1200),
			YearTo:   intp(1250),
			Class:    core.String("A"),
			Subclass: core.String("A1"),
		},
		Elements: &core.Elements{Books: []int{1, 2}},
	}
}

func TestUpsertEdition_FullPrintScenario(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	key, err := c.svc.UpsertEdition(ctx, printEdition(""), "alice")
	if err != nil {
		t.Fatalf("UpsertEdition() error = %v", err)
	}
	if len(key) != 6 {
		t.Fatalf("generated key = %q, want 6 characters", key)
	}

	item := c.one(t, core.TableItemsPrint, key)
	if item["city"] != "Paris" || item["language"] != "LATIN" || item["author_or_editor"] != "Anon" {
		t.Errorf("print item = %v", item)
	}

	meta := c.one(t, core.TableMetadataPrint, key)
	if meta["elements_books"] != "1-3, 7" {
		t.Errorf("elements_books = %q, want %q", meta["elements_books"], "1-3, 7")
	}

	sm := c.one(t, core.TableShelfmarks, key)
	if sm["volume"] != "1" || sm["scan"] != "http://x" {
		t.Errorf("shelfmark = %v", sm)
	}

	review := c.one(t, core.TableReviews, key)
	if review["researcher"] != "alice" {
		t.Errorf("researcher = %q, want alice", review["researcher"])
	}
	if review["timestamp"] != "2024-05-01T12:00:00.000Z" {
		t.Errorf("timestamp = %q", review["timestamp"])
	}

	if tr := c.one(t, core.TableTranscriptions, key); tr["title"] != "Elementorum" {
		t.Errorf("transcription = %v", tr)
	}
	if tl := c.one(t, core.TableTranslations, key); tl["field"] != "title" || tl["source"] != "USTC" {
		t.Errorf("translation = %v", tl)
	}
	if corpus := c.one(t, core.TableCorpuses, key); corpus["study"] != "Euclid" {
		t.Errorf("corpus = %v", corpus)
	}

	if len(c.rows(t, core.TableItemsManuscript, key)) != 0 {
		t.Error("manuscript item written for print edition")
	}

	if len(c.audit.entries) != 1 || c.audit.entries[0].Action != core.ActionEditionUpsert || c.audit.entries[0].EditionKey != key {
		t.Errorf("audit entries = %+v", c.audit.entries)
	}
}

func TestUpsertEdition_Manuscript(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	if _, err := c.svc.UpsertEdition(ctx, manuscriptEdition("M1"), "bob"); err != nil {
		t.Fatal(err)
	}

	item := c.one(t, core.TableItemsManuscript, "M1")
	if item["year_from"] != "1200" || item["year_to"] != "1250" || item["notes"] != "fragment" {
		t.Errorf("manuscript item = %v", item)
	}
	meta := c.one(t, core.TableMetadataManuscript, "M1")
	if meta["class"] != "A" || meta["subclass"] != "A1" || meta["elements_books"] != "1-2" {
		t.Errorf("manuscript metadata = %v", meta)
	}
	if c.one(t, core.TableCorpuses, "M1")["study"] != "Euclid, Optics" {
		t.Error("corpus not joined")
	}
	for _, table := range []string{core.TableItemsPrint, core.TableTranscriptions, core.TableTranslations, core.TableReviews} {
		if n := len(c.rows(t, table, "M1")); n != 0 {
			t.Errorf("%s has %d rows for manuscript", table, n)
		}
	}
}

func TestUpsertEdition_ResubmitMergesAndReplacesSets(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	first := printEdition("P1")
	first.Variant.(*core.Print).USTCID = core.String("12345")
	first.Shelfmarks = []core.Shelfmark{
		{Volume: intp(1), Shelfmark: core.String("A")},
		{Volume: intp(2), Shelfmark: core.String("B")},
	}
	if _, err := c.svc.UpsertEdition(ctx, first, "alice"); err != nil {
		t.Fatal(err)
	}

	second := printEdition("P1")
	second.Corpus = []string{"Optics"}
	second.Verified = false
	second.Shelfmarks = []core.Shelfmark{{Volume: intp(1), Shelfmark: core.String("A2")}}
	second.Variant.(*core.Print).Title.English = nil
	second.Variant.(*core.Print).Imprint.English = core.String("At Paris")
	if _, err := c.svc.UpsertEdition(ctx, second, "bob"); err != nil {
		t.Fatal(err)
	}

	if got := c.one(t, core.TableItemsPrint, "P1")["ustc_id"]; got != "12345" {
		t.Errorf("ustc_id = %q, want value from first submission kept", got)
	}

	sms := c.rows(t, core.TableShelfmarks, "P1")
	if len(sms) != 1 || sms[0]["shelf_mark"] != "A2" {
		t.Errorf("shelfmarks = %v, want only A2", sms)
	}

	tls := c.rows(t, core.TableTranslations, "P1")
	if len(tls) != 1 || tls[0]["field"] != "imprint" {
		t.Errorf("translations = %v, want only imprint", tls)
	}

	if got := c.one(t, core.TableCorpuses, "P1")["study"]; got != "Optics" {
		t.Errorf("study = %q, want Optics", got)
	}

	review := c.one(t, core.TableReviews, "P1")
	if review["researcher"] != "alice" {
		t.Errorf("review should be kept from first submission: %v", review)
	}
}

func TestUpsertEdition_NoTranslationsKeepsPriorRows(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	if _, err := c.svc.UpsertEdition(ctx, printEdition("P1"), "alice"); err != nil {
		t.Fatal(err)
	}

	again := printEdition("P1")
	again.Variant.(*core.Print).Title.English = nil
	again.Shelfmarks = nil
	if _, err := c.svc.UpsertEdition(ctx, again, "alice"); err != nil {
		t.Fatal(err)
	}

	if n := len(c.rows(t, core.TableTranslations, "P1")); n != 1 {
		t.Errorf("translations = %d, want prior row kept when none submitted", n)
	}
	if n := len(c.rows(t, core.TableShelfmarks, "P1")); n != 1 {
		t.Errorf("shelfmarks = %d, want prior row kept when none submitted", n)
	}
}

func TestUpsertEdition_NonElementsLeavesMetadata(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	if _, err := c.svc.UpsertEdition(ctx, printEdition("P1"), "alice"); err != nil {
		t.Fatal(err)
	}
	plain := printEdition("P1")
	plain.Elements = nil
	if _, err := c.svc.UpsertEdition(ctx, plain, "alice"); err != nil {
		t.Fatal(err)
	}

	if got := c.one(t, core.TableMetadataPrint, "P1")["elements_books"]; got != "1-3, 7" {
		t.Errorf("elements_books = %q, want untouched", got)
	}
}

func TestUpsertEdition_VariantSwitchClearsPreviousVariant(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	if _, err := c.svc.UpsertEdition(ctx, printEdition("X1"), "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.svc.UpsertEdition(ctx, manuscriptEdition("X1"), "alice"); err != nil {
		t.Fatal(err)
	}

	for _, table := range []string{core.TableItemsPrint, core.TableMetadataPrint, core.TableTranscriptions, core.TableTranslations} {
		if n := len(c.rows(t, table, "X1")); n != 0 {
			t.Errorf("%s still has %d rows after switch to manuscript", table, n)
		}
	}
	c.one(t, core.TableItemsManuscript, "X1")
	c.one(t, core.TableReviews, "X1")
}

func TestUpsertEdition_GeneratedKeyAvoidsExisting(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	if _, err := c.svc.UpsertEdition(ctx, manuscriptEdition("TAKEN1"), "alice"); err != nil {
		t.Fatal(err)
	}

	keys := []string{"TAKEN1", "FRESH1"}
	c.svc.SetKeyGenerator(func(int) (string, error) {
		k := keys[0]
		keys = keys[1:]
		return k, nil
	})

	key, err := c.svc.UpsertEdition(ctx, printEdition(""), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if key != "FRESH1" {
		t.Errorf("key = %q, want FRESH1", key)
	}
}

func TestUpsertEdition_KeyExhausted(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	if _, err := c.svc.UpsertEdition(ctx, manuscriptEdition("SAME01"), "alice"); err != nil {
		t.Fatal(err)
	}
	c.svc.SetKeyGenerator(func(int) (string, error) { return "SAME01", nil })

	_, err := c.svc.UpsertEdition(ctx, printEdition(""), "alice")
	if !errors.Is(err, core.ErrKeyExhausted) {
		t.Fatalf("error = %v, want ErrKeyExhausted", err)
	}
}

func TestUpsertEdition_MissingTableWritesNothing(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)
	os.Remove(filepath.Join(c.dir, "reviews.csv"))

	_, err := c.svc.UpsertEdition(ctx, printEdition("P1"), "alice")
	if !errors.Is(err, core.ErrTableNotFound) {
		t.Fatalf("error = %v, want ErrTableNotFound", err)
	}
	if n := len(c.rows(t, core.TableItemsPrint, "P1")); n != 0 {
		t.Errorf("print item written despite failed upsert")
	}
	if len(c.audit.entries) != 0 {
		t.Errorf("failed upsert audited: %+v", c.audit.entries)
	}
}

func TestUpsertEdition_InvalidEdition(t *testing.T) {
	c := newCatalogue(t)

	_, err := c.svc.UpsertEdition(context.Background(), &core.Edition{Key: "A"}, "alice")
	if !errors.Is(err, core.ErrMalformedInput) {
		t.Fatalf("error = %v, want ErrMalformedInput", err)
	}
}

func TestDeleteEdition_CascadesAllTables(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	// Seed a row in every table, including both variants' tables.
	if _, err := c.svc.UpsertEdition(ctx, printEdition("A"), "alice"); err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{core.TableItemsManuscript, core.TableMetadataManuscript} {
		if err := core.UpsertRow(ctx, c.store, table, "A", "", core.Fields{"notes": core.String("stale")}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.svc.UpsertEdition(ctx, printEdition("B"), "alice"); err != nil {
		t.Fatal(err)
	}

	removed, err := c.svc.DeleteEdition(ctx, "A", "alice")
	if err != nil {
		t.Fatalf("DeleteEdition() error = %v", err)
	}
	if removed != 9 {
		t.Errorf("removed = %d, want 9", removed)
	}

	for _, table := range core.EditionTables {
		if n := len(c.rows(t, table, "A")); n != 0 {
			t.Errorf("%s still has %d rows for A", table, n)
		}
	}
	c.one(t, core.TableItemsPrint, "B")
}

func TestDeleteEdition_MissingKeyWritesNothing(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	path := filepath.Join(c.dir, "items_print.csv")
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	removed, err := c.svc.DeleteEdition(ctx, "nope", "alice")
	if err != nil {
		t.Fatalf("DeleteEdition() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}

	after, _ := os.Stat(path)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("items_print.csv rewritten by no-op delete")
	}
}

func TestLoadEdition_RoundTripPrint(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	if _, err := c.svc.UpsertEdition(ctx, printEdition("P1"), "alice"); err != nil {
		t.Fatal(err)
	}

	e, err := c.svc.LoadEdition(ctx, "P1")
	if err != nil {
		t.Fatalf("LoadEdition() error = %v", err)
	}

	p, ok := e.Variant.(*core.Print)
	if !ok {
		t.Fatalf("variant = %T", e.Variant)
	}
	if !reflect.DeepEqual(p.Languages, []string{"LATIN"}) || !reflect.DeepEqual(p.Cities, []string{"Paris"}) {
		t.Errorf("print = %+v", p)
	}
	if *p.Title.English != "Of the Elements" {
		t.Errorf("title EN = %q", *p.Title.English)
	}
	if e.Elements == nil || !reflect.DeepEqual(e.Elements.Books, []int{1, 2, 3, 7}) {
		t.Errorf("elements = %+v", e.Elements)
	}
	if !e.Verified || *e.ShortTitle != "Elementa" {
		t.Errorf("edition = %+v", e)
	}
	if len(e.Shelfmarks) != 1 || *e.Shelfmarks[0].Scan != "http://x" {
		t.Errorf("shelfmarks = %+v", e.Shelfmarks)
	}
}

func TestLoadEdition_RoundTripManuscript(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	if _, err := c.svc.UpsertEdition(ctx, manuscriptEdition("M1"), "alice"); err != nil {
		t.Fatal(err)
	}

	e, err := c.svc.LoadEdition(ctx, "M1")
	if err != nil {
		t.Fatal(err)
	}
	m, ok := e.Variant.(*core.Manuscript)
	if !ok {
		t.Fatalf("variant = %T", e.Variant)
	}
	if *m.YearFrom != 1200 || *m.Class != "A" || *m.Subclass != "A1" {
		t.Errorf("manuscript = %+v", m)
	}
	if e.Verified {
		t.Error("Verified should be false")
	}
	if !reflect.DeepEqual(e.Corpus, []string{"Euclid", "Optics"}) {
		t.Errorf("corpus = %v", e.Corpus)
	}
}

func TestLoadEdition_NotFound(t *testing.T) {
	c := newCatalogue(t)

	_, err := c.svc.LoadEdition(context.Background(), "nope")
	if !errors.Is(err, core.ErrEditionNotFound) {
		t.Fatalf("error = %v, want ErrEditionNotFound", err)
	}
}

func TestUpdateNotes(t *testing.T) {
	ctx := context.Background()
	c := newCatalogue(t)

	if _, err := c.svc.UpsertEdition(ctx, printEdition("P1"), "alice"); err != nil {
		t.Fatal(err)
	}
	if err := c.svc.UpdateNotes(ctx, "P1", "needs checking", "bob"); err != nil {
		t.Fatalf("UpdateNotes() error = %v", err)
	}

	item := c.one(t, core.TableItemsPrint, "P1")
	if item["notes"] != "needs checking" || item["city"] != "Paris" {
		t.Errorf("print item = %v", item)
	}
}

func TestUpdateNotes_UnknownKey(t *testing.T) {
	c := newCatalogue(t)

	err := c.svc.UpdateNotes(context.Background(), "nope", "x", "bob")
	if !errors.Is(err, core.ErrEditionNotFound) {
		t.Fatalf("error = %v, want ErrEditionNotFound", err)
	}
}

func TestListTablesByGroup(t *testing.T) {
	c := newCatalogue(t)

	groups := c.svc.ListTablesByGroup()
	if len(groups[core.GroupPrint]) != 4 || len(groups[core.GroupShared]) != 3 {
		t.Errorf("groups = %v", groups)
	}
}
