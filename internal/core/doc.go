// Package core provides the business logic of the edition catalogue.
//
// The catalogue is a directory of flat CSV tables. An edition is never stored
// as one row: it is decomposed across up to nine tables that share its key,
// and recomposed from them when read. This package holds that decomposition,
// the row primitives it is built on and the transactional table store
// underneath. It is independent of any transport and is used by the web
// handlers and by tests without modification.
//
// # Architecture
//
//   - Table Registry: each table is registered at init time with its file
//     name and column order (see package tables).
//   - Store: loads and saves whole tables, and groups writes into
//     transactions via [Store.Update] and [Store.View].
//   - Row primitives: [UpsertRow], [BatchUpsertRows], [DeleteRow] and
//     [FindRows] work against any [Tables], inside or outside a transaction.
//   - Service: the edition orchestrator ([Service.UpsertEdition],
//     [Service.DeleteEdition], [Service.LoadEdition], [Service.UpdateNotes]).
//   - Audit: every successful mutation is recorded through an [AuditSink].
//
// # Table Registry
//
//	core.Register(core.TableDefinition{
//	    Info: core.TableInfo{
//	        Key:     core.TableCorpuses,
//	        Group:   core.GroupShared,
//	        Label:   "Corpuses",
//	        File:    "corpuses.csv",
//	        Columns: []string{"key", "study"},
//	    },
//	})
//
// # Transactions
//
// A transaction stages whole tables in memory. On commit every staged table
// is encoded, the set of files is appended to the write-ahead journal (when
// one is configured), and each file is replaced atomically. If the process
// dies between the journal append and the last rename, [OpenStore] replays
// the pending entry before serving anything. A transaction whose function
// returns an error writes nothing.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - TBL001-TBL002: Table errors (missing file, unknown table)
//   - EDN001-EDN002: Edition errors (not found, key generation)
//   - VAL001-VAL002: Validation errors (malformed edition, bad request body)
//   - FILE001-FILE003: Upload errors (size, missing field, busy)
package core
