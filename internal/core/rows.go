package core

import (
	"context"
	"fmt"
)

// UpsertRow merges fields into the first row of table whose keyField equals
// key, or appends a new row seeded with {keyField: key} when none matches.
//
// Only non-nil values are written: a nil entry in fields never clears what is
// stored. fields[keyField] is ignored so a row cannot be re-keyed. The table
// is saved in full afterwards.
func UpsertRow(ctx context.Context, t Tables, table, key, keyField string, fields Fields) error {
	if keyField == "" {
		keyField = DefaultKeyField
	}
	if key == "" {
		return fmt.Errorf("%w: empty %s for %s", ErrMalformedInput, keyField, table)
	}

	rows, err := t.Load(ctx, table)
	if err != nil {
		return err
	}

	var target Row
	for _, row := range rows {
		if row[keyField] == key {
			target = row
			break
		}
	}
	if target == nil {
		target = Row{keyField: key}
		rows = append(rows, target)
	}

	for name, v := range fields {
		if v == nil || name == keyField {
			continue
		}
		target[name] = *v
	}

	return t.Save(ctx, table, rows)
}

// BatchUpsertRows removes every row whose keyField value appears among rows,
// then appends rows unchanged. Rows with an empty key are appended but do not
// delete anything. An empty rows is a no-op and does not touch the table.
func BatchUpsertRows(ctx context.Context, t Tables, table string, rows []Row, keyField string) error {
	if len(rows) == 0 {
		return nil
	}
	if keyField == "" {
		keyField = DefaultKeyField
	}

	replace := make(map[string]bool, len(rows))
	for _, r := range rows {
		if k := r[keyField]; k != "" {
			replace[k] = true
		}
	}

	existing, err := t.Load(ctx, table)
	if err != nil {
		return err
	}

	kept := make([]Row, 0, len(existing)+len(rows))
	for _, r := range existing {
		if !replace[r[keyField]] {
			kept = append(kept, r)
		}
	}
	for _, r := range rows {
		kept = append(kept, r.Clone())
	}

	return t.Save(ctx, table, kept)
}

// DeleteRow removes all rows of table whose keyField equals key and returns
// how many were removed. The table is saved only when something was removed.
// A key with no rows is not an error.
func DeleteRow(ctx context.Context, t Tables, table, key, keyField string) (int, error) {
	if keyField == "" {
		keyField = DefaultKeyField
	}

	rows, err := t.Load(ctx, table)
	if err != nil {
		return 0, err
	}

	kept := rows[:0]
	for _, r := range rows {
		if r[keyField] != key {
			kept = append(kept, r)
		}
	}

	removed := len(rows) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, t.Save(ctx, table, kept)
}

// FindRows returns the rows of table whose keyField equals key.
func FindRows(ctx context.Context, t Tables, table, key, keyField string) ([]Row, error) {
	if keyField == "" {
		keyField = DefaultKeyField
	}

	rows, err := t.Load(ctx, table)
	if err != nil {
		return nil, err
	}

	var out []Row
	for _, r := range rows {
		if r[keyField] == key {
			out = append(out, r)
		}
	}
	return out, nil
}
