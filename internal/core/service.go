package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/catalogue/internal/logging"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	KeyLength   int       // Length of generated edition keys
	KeyAttempts int       // Generated keys tried before ErrKeyExhausted
	Audit       AuditSink // nil logs audit entries via slog
	Observer    Observer  // nil disables metrics
}

// Service orchestrates edition reads and writes over a Store.
type Service struct {
	store    *Store
	audit    AuditSink
	observer Observer

	keyLength   int
	keyAttempts int
	newKey      func(n int) (string, error)
	now         func() time.Time
}

// NewService creates a new Service instance.
func NewService(store *Store, cfg ServiceConfig) *Service {
	s := &Service{
		store:       store,
		audit:       cfg.Audit,
		observer:    cfg.Observer,
		keyLength:   cfg.KeyLength,
		keyAttempts: cfg.KeyAttempts,
		newKey:      RandomKey,
		now:         time.Now,
	}
	if s.audit == nil {
		s.audit = LogAuditSink{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.keyLength <= 0 {
		s.keyLength = 6
	}
	if s.keyAttempts <= 0 {
		s.keyAttempts = 10
	}
	return s
}

// Store returns the underlying table store.
func (s *Service) Store() *Store { return s.store }

// ListTables returns information about all registered tables.
func (s *Service) ListTables() []TableInfo {
	defs := All()
	infos := make([]TableInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// ListTablesByGroup returns tables organized by group.
func (s *Service) ListTablesByGroup() map[string][]TableInfo {
	result := make(map[string][]TableInfo)
	for _, group := range Groups() {
		for _, def := range ByGroup(group) {
			result[group] = append(result[group], def.Info)
		}
	}
	return result
}

// UpsertEdition decomposes e across the catalogue tables in one transaction
// and returns the edition's key, generating one when e.Key is empty.
//
// Row-level merge applies to item, metadata, transcription and review rows;
// shelfmarks and translations are replaced as sets; the corpus row is
// rewritten. If e switches variant, the rows of the previous variant are
// removed in the same transaction.
func (s *Service) UpsertEdition(ctx context.Context, e *Edition, user string) (string, error) {
	if e == nil {
		return "", fmt.Errorf("%w: nil edition", ErrMalformedInput)
	}
	if err := e.Validate(); err != nil {
		return "", err
	}

	start := time.Now()
	log := logging.WithFields(ctx,
		"key", e.Key,
		"user", user,
		"is_manuscript", e.IsManuscript(),
		"is_elements", e.IsElements(),
		"verified", e.Verified,
	)
	log.Info("edition upsert started")

	key := e.Key
	var touched []string
	err := s.store.Update(ctx, func(tx *Tx) error {
		log = log.With("tx_id", tx.ID())
		if key == "" {
			k, err := s.freshKey(ctx, tx)
			if err != nil {
				return err
			}
			key = k
			log = log.With("generated_key", key)
		}

		ed := *e
		ed.Key = key
		if err := s.writeEdition(ctx, tx, &ed, user); err != nil {
			return err
		}
		touched = tx.Staged()
		return nil
	})
	if err != nil {
		log.Error("edition upsert failed", "error", err, "duration", time.Since(start))
		return "", fmt.Errorf("upsert edition: %w", err)
	}

	s.observer.EditionUpserted(e.VariantName())
	s.LogAudit(ctx, AuditLogParams{
		Action:     ActionEditionUpsert,
		EditionKey: key,
		User:       user,
		Tables:     touched,
		Detail:     e.VariantName(),
	})
	log.Info("edition upsert completed", "tables", len(touched), "duration", time.Since(start))
	return key, nil
}

func (s *Service) writeEdition(ctx context.Context, t Tables, e *Edition, user string) error {
	switch v := e.Variant.(type) {
	case *Manuscript:
		if err := s.clearVariant(ctx, t, e.Key, VariantPrint); err != nil {
			return err
		}
		if err := UpsertRow(ctx, t, TableItemsManuscript, e.Key, DefaultKeyField, manuscriptItemFields(e, v)); err != nil {
			return err
		}
		if e.Elements != nil {
			if err := UpsertRow(ctx, t, TableMetadataManuscript, e.Key, DefaultKeyField, manuscriptMetadataFields(v, e.Elements)); err != nil {
				return err
			}
		}

	case *Print:
		if err := s.clearVariant(ctx, t, e.Key, VariantManuscript); err != nil {
			return err
		}
		if err := UpsertRow(ctx, t, TableItemsPrint, e.Key, DefaultKeyField, printItemFields(e, v)); err != nil {
			return err
		}
		if e.Elements != nil {
			if err := UpsertRow(ctx, t, TableMetadataPrint, e.Key, DefaultKeyField, printMetadataFields(e.Elements)); err != nil {
				return err
			}
		}
		if err := UpsertRow(ctx, t, TableTranscriptions, e.Key, DefaultKeyField, transcriptionFields(v)); err != nil {
			return err
		}
	}

	if err := BatchUpsertRows(ctx, t, TableShelfmarks, shelfmarkRows(e.Key, e.Shelfmarks), DefaultKeyField); err != nil {
		return err
	}

	if p, ok := e.Variant.(*Print); ok {
		if err := BatchUpsertRows(ctx, t, TableTranslations, translationRows(e, p), DefaultKeyField); err != nil {
			return err
		}
	}

	if err := UpsertRow(ctx, t, TableCorpuses, e.Key, DefaultKeyField, corpusFields(e.Corpus)); err != nil {
		return err
	}

	if e.Verified {
		if err := UpsertRow(ctx, t, TableReviews, e.Key, DefaultKeyField, reviewFields(user, s.now())); err != nil {
			return err
		}
	}
	return nil
}

// variantTables lists the tables owned exclusively by each variant.
var variantTables = map[string][]string{
	VariantManuscript: {TableItemsManuscript, TableMetadataManuscript},
	VariantPrint:      {TableItemsPrint, TableMetadataPrint, TableTranscriptions, TableTranslations},
}

// clearVariant removes key's rows from the tables of variant, if it has any.
func (s *Service) clearVariant(ctx context.Context, t Tables, key, variant string) error {
	tables := variantTables[variant]

	rows, err := FindRows(ctx, t, tables[0], key, DefaultKeyField)
	if err != nil || len(rows) == 0 {
		return err
	}

	logging.WithFields(ctx, "key", key, "from", variant).
		Warn("edition changed variant, removing previous variant rows")
	for _, table := range tables {
		if _, err := DeleteRow(ctx, t, table, key, DefaultKeyField); err != nil {
			return err
		}
	}
	return nil
}

// freshKey generates a key with no row in either item table.
func (s *Service) freshKey(ctx context.Context, t Tables) (string, error) {
	for i := 0; i < s.keyAttempts; i++ {
		key, err := s.newKey(s.keyLength)
		if err != nil {
			return "", err
		}
		used, err := s.keyInUse(ctx, t, key)
		if err != nil {
			return "", err
		}
		if !used {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrKeyExhausted, s.keyAttempts)
}

func (s *Service) keyInUse(ctx context.Context, t Tables, key string) (bool, error) {
	for _, table := range []string{TableItemsManuscript, TableItemsPrint} {
		rows, err := FindRows(ctx, t, table, key, DefaultKeyField)
		if err != nil {
			return false, err
		}
		if len(rows) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// DeleteEdition removes every row for key from all catalogue tables in one
// transaction and returns the number of rows removed. Deleting a key that has
// no rows succeeds and writes nothing.
func (s *Service) DeleteEdition(ctx context.Context, key, user string) (int, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: empty key", ErrMalformedInput)
	}

	start := time.Now()
	log := logging.WithFields(ctx, "key", key, "user", user)
	log.Info("edition delete started")

	removed := 0
	var touched []string
	err := s.store.Update(ctx, func(tx *Tx) error {
		for _, table := range EditionTables {
			n, err := DeleteRow(ctx, tx, table, key, DefaultKeyField)
			if err != nil {
				return err
			}
			removed += n
		}
		touched = tx.Staged()
		return nil
	})
	if err != nil {
		log.Error("edition delete failed", "error", err, "duration", time.Since(start))
		return 0, fmt.Errorf("delete edition: %w", err)
	}

	s.observer.EditionDeleted()
	s.LogAudit(ctx, AuditLogParams{
		Action:     ActionEditionDelete,
		EditionKey: key,
		User:       user,
		Tables:     touched,
		Detail:     fmt.Sprintf("%d rows", removed),
	})
	log.Info("edition delete completed", "rows", removed, "duration", time.Since(start))
	return removed, nil
}

// LoadEdition joins the catalogue tables back into the edition stored under
// key. Returns ErrEditionNotFound when neither item table has the key.
func (s *Service) LoadEdition(ctx context.Context, key string) (*Edition, error) {
	var er editionRows
	err := s.store.View(ctx, func(tx *Tx) error {
		first := func(table string) (*Row, error) {
			rows, err := FindRows(ctx, tx, table, key, DefaultKeyField)
			if err != nil || len(rows) == 0 {
				return nil, err
			}
			return &rows[0], nil
		}

		var err error
		if er.manuscriptItem, err = first(TableItemsManuscript); err != nil {
			return err
		}
		if er.printItem, err = first(TableItemsPrint); err != nil {
			return err
		}
		if er.manuscriptItem == nil && er.printItem == nil {
			return nil
		}
		if er.manuscriptMeta, err = first(TableMetadataManuscript); err != nil {
			return err
		}
		if er.printMeta, err = first(TableMetadataPrint); err != nil {
			return err
		}
		if er.transcription, err = first(TableTranscriptions); err != nil {
			return err
		}
		if er.corpus, err = first(TableCorpuses); err != nil {
			return err
		}
		if er.translations, err = FindRows(ctx, tx, TableTranslations, key, DefaultKeyField); err != nil {
			return err
		}
		if er.shelfmarks, err = FindRows(ctx, tx, TableShelfmarks, key, DefaultKeyField); err != nil {
			return err
		}
		reviews, err := FindRows(ctx, tx, TableReviews, key, DefaultKeyField)
		if err != nil {
			return err
		}
		er.reviewed = len(reviews) > 0
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load edition %s: %w", key, err)
	}
	return er.edition(key)
}

// UpdateNotes sets the notes of the print item stored under key.
func (s *Service) UpdateNotes(ctx context.Context, key, note, user string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrMalformedInput)
	}

	err := s.store.Update(ctx, func(tx *Tx) error {
		rows, err := FindRows(ctx, tx, TableItemsPrint, key, DefaultKeyField)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("%w: item with key %s", ErrEditionNotFound, key)
		}
		return UpsertRow(ctx, tx, TableItemsPrint, key, DefaultKeyField, Fields{"notes": &note})
	})
	if err != nil {
		return fmt.Errorf("update notes: %w", err)
	}

	s.LogAudit(ctx, AuditLogParams{
		Action:     ActionNotesUpdate,
		EditionKey: key,
		User:       user,
		Tables:     []string{TableItemsPrint},
	})
	logging.WithFields(ctx, "key", key, "user", user).Info("notes updated")
	return nil
}
