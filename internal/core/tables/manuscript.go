package tables

import "github.com/JonMunkholm/catalogue/internal/core"

func init() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:     core.TableItemsManuscript,
			Group:   core.GroupManuscript,
			Label:   "Manuscript Items",
			File:    "items_manuscript.csv",
			Columns: []string{"key", "short_title", "short_title_source", "year_from", "year_to", "notes"},
		},
	})

	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:     core.TableMetadataManuscript,
			Group:   core.GroupManuscript,
			Label:   "Manuscript Elements Metadata",
			File:    "metadata_elements_manuscripts.csv",
			Columns: []string{"key", "class", "subclass", "elements_books"},
		},
	})
}
