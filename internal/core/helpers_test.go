package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// Test-only tables. Names differ from the catalogue tables, which core_test
// registers through the tables package in the same test binary.
const (
	testPeople = "test_people"
	testPets   = "test_pets"
)

var registerTestTables sync.Once

func setupTestStore(t *testing.T, opts ...StoreOption) (*Store, string) {
	t.Helper()

	registerTestTables.Do(func() {
		Register(TableDefinition{Info: TableInfo{
			Key: testPeople, Group: "Test", Label: "People", File: "people.csv",
			Columns: []string{"key", "x", "y"},
		}})
		Register(TableDefinition{Info: TableInfo{
			Key: testPets, Group: "Test", Label: "Pets", File: "pets.csv",
			Columns: []string{"key", "name"},
		}})
	})

	dir := t.TempDir()
	writeTestFile(t, dir, "people.csv", "key,x,y\n")
	writeTestFile(t, dir, "pets.csv", "key,name\n")

	s, err := OpenStore(dir, opts...)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func readTestFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

// memTables is an in-memory Tables that counts saves per table.
type memTables struct {
	data  map[string][]Row
	saves map[string]int
}

func newMemTables(data map[string][]Row) *memTables {
	if data == nil {
		data = make(map[string][]Row)
	}
	return &memTables{data: data, saves: make(map[string]int)}
}

func (m *memTables) Load(_ context.Context, table string) ([]Row, error) {
	rows, ok := m.data[table]
	if !ok {
		return nil, ErrTableNotFound
	}
	return cloneRows(rows), nil
}

func (m *memTables) Save(_ context.Context, table string, rows []Row) error {
	m.data[table] = cloneRows(rows)
	m.saves[table]++
	return nil
}

func rowsWithKey(rows []Row, key string) []Row {
	var out []Row
	for _, r := range rows {
		if r[DefaultKeyField] == key {
			out = append(out, r)
		}
	}
	return out
}
