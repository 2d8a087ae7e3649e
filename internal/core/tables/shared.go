package tables

import "github.com/JonMunkholm/catalogue/internal/core"

func init() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   core.TableShelfmarks,
			Group: core.GroupShared,
			Label: "Shelfmarks",
			File:  "shelfmarks.csv",
			Columns: []string{
				"key", "volume", "scan", "title_page_img", "frontispiece_img",
				"annotations", "shelf_mark", "copyright",
			},
		},
	})

	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:     core.TableCorpuses,
			Group:   core.GroupShared,
			Label:   "Study Corpuses",
			File:    "corpuses.csv",
			Columns: []string{"key", "study"},
		},
	})

	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:     core.TableReviews,
			Group:   core.GroupShared,
			Label:   "Reviews",
			File:    "reviews.csv",
			Columns: []string{"key", "researcher", "timestamp"},
		},
	})
}
