package core

import "context"

// DefaultKeyField is the join column present in every catalogue table.
const DefaultKeyField = "key"

// Row is one table record: column name to cell text. Columns absent from
// the map are written as empty cells.
type Row map[string]string

// Clone returns an independent copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsBlank reports whether every cell in r is empty.
func (r Row) IsBlank() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// Fields is a partial row used by UpsertRow. A nil value means the field was
// not supplied and must not overwrite what is already stored.
type Fields map[string]*string

// String returns a pointer to s, for building Fields literals.
func String(s string) *string { return &s }

// Tables is the load/save contract shared by the Store and by Tx, so the row
// primitives run unchanged inside or outside a transaction.
type Tables interface {
	// Load returns every non-blank row of the table in file order.
	Load(ctx context.Context, table string) ([]Row, error)
	// Save replaces the whole table with rows.
	Save(ctx context.Context, table string, rows []Row) error
}

// Catalogue table keys.
const (
	TableItemsManuscript    = "items_manuscript"
	TableItemsPrint         = "items_print"
	TableMetadataManuscript = "metadata_elements_manuscripts"
	TableMetadataPrint      = "metadata_elements_print"
	TableTranscriptions     = "paratext_transcriptions"
	TableTranslations       = "translations"
	TableShelfmarks         = "shelfmarks"
	TableCorpuses           = "corpuses"
	TableReviews            = "reviews"
)

// EditionTables lists every table an edition can have rows in, in the order
// a cascading delete visits them.
var EditionTables = []string{
	TableItemsManuscript,
	TableItemsPrint,
	TableMetadataManuscript,
	TableMetadataPrint,
	TableReviews,
	TableShelfmarks,
	TableTranscriptions,
	TableTranslations,
	TableCorpuses,
}

// Table groups.
const (
	GroupManuscript = "Manuscript"
	GroupPrint      = "Print"
	GroupShared     = "Shared"
)

// TableInfo contains display and storage information about a table.
type TableInfo struct {
	Key     string   `json:"key"`     // Unique identifier: "items_print"
	Group   string   `json:"group"`   // "Manuscript", "Print" or "Shared"
	Label   string   `json:"label"`   // Display name: "Print Items"
	File    string   `json:"file"`    // File name inside the data directory
	Columns []string `json:"columns"` // Header columns in write order
}

// TableDefinition contains everything the store needs to read and write a table.
type TableDefinition struct {
	Info TableInfo

	// KeyField is the join column. Defaults to DefaultKeyField.
	KeyField string
}

// Key returns the join column for the table.
func (d TableDefinition) Key() string {
	if d.KeyField == "" {
		return DefaultKeyField
	}
	return d.KeyField
}
