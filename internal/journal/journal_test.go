package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.journal")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return j, path
}

func TestJournal_AppendPendingComplete(t *testing.T) {
	j, _ := openTemp(t)
	defer j.Close()

	first, err := j.Append(Entry{TxID: "tx-1", Created: time.Now(), Files: []File{{Path: "a.csv", Data: []byte("key\nA\n")}}})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	second, err := j.Append(Entry{TxID: "tx-2", Files: []File{{Path: "b.csv", Data: []byte("key\n")}}})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if second <= first {
		t.Errorf("sequence not increasing: %d then %d", first, second)
	}

	pending, err := j.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Pending() returned %d entries, want 2", len(pending))
	}
	if pending[0].TxID != "tx-1" || pending[1].TxID != "tx-2" {
		t.Errorf("Pending() order = %q, %q", pending[0].TxID, pending[1].TxID)
	}
	if string(pending[0].Files[0].Data) != "key\nA\n" {
		t.Errorf("file data = %q", pending[0].Files[0].Data)
	}

	if err := j.Complete(first); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	pending, _ = j.Pending()
	if len(pending) != 1 || pending[0].Seq != second {
		t.Errorf("after Complete, pending = %+v", pending)
	}
}

func TestJournal_SurvivesReopen(t *testing.T) {
	j, path := openTemp(t)
	if _, err := j.Append(Entry{TxID: "tx-1", Files: []File{{Path: "x.csv"}}}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer j2.Close()

	pending, err := j2.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].TxID != "tx-1" {
		t.Errorf("pending after reopen = %+v", pending)
	}
}

func TestJournal_UseAfterClose(t *testing.T) {
	j, _ := openTemp(t)
	j.Close()

	if _, err := j.Append(Entry{}); err != ErrClosed {
		t.Errorf("Append after Close = %v, want ErrClosed", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}
