package tables

import "github.com/JonMunkholm/catalogue/internal/core"

func init() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   core.TableItemsPrint,
			Group: core.GroupPrint,
			Label: "Print Items",
			File:  "items_print.csv",
			Columns: []string{
				"key", "short_title", "short_title_source", "year", "city", "language",
				"author_or_editor", "publisher", "format", "volumes", "ustc_id", "notes",
			},
		},
	})

	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:     core.TableMetadataPrint,
			Group:   core.GroupPrint,
			Label:   "Print Elements Metadata",
			File:    "metadata_elements_print.csv",
			Columns: []string{"key", "elements_books", "additional_content", "wardhaugh_classification"},
		},
	})

	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:     core.TableTranscriptions,
			Group:   core.GroupPrint,
			Label:   "Paratext Transcriptions",
			File:    "paratext_transcriptions.csv",
			Columns: []string{"key", "title", "imprint", "colophon", "frontispiece"},
		},
	})

	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:     core.TableTranslations,
			Group:   core.GroupPrint,
			Label:   "Paratext Translations",
			File:    "translations.csv",
			Columns: []string{"key", "field", "en", "source"},
		},
	})
}
