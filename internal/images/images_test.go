package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogue/internal/core"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		key, kind, upload string
		want              string
		wantErr           bool
	}{
		{"ABC123", "titlepage", "scan.JPG", "ABC123_titlepage.jpg", false},
		{"ABC123", "frontispiece", "scan.final.Png", "ABC123_frontispiece.png", false},
		{"ABC123", "titlepage", "scan", "ABC123_titlepage.png", false},
		{"ABC123", "titlepage", "", "ABC123_titlepage.png", false},
		{"", "titlepage", "a.png", "", true},
		{"ABC123", "", "a.png", "", true},
		{"../etc", "titlepage", "a.png", "", true},
		{"ABC123", "a/b", "a.png", "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s_%s", tt.key, tt.kind, tt.upload), func(t *testing.T) {
			got, err := Filename(tt.key, tt.kind, tt.upload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Filename() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilename_MissingFieldMapsToUserMessage(t *testing.T) {
	_, err := Filename("", "titlepage", "a.png")
	if code := core.MapError(err).Code; code != "FILE002" {
		t.Errorf("code = %s, want FILE002", code)
	}
	_, err = Filename("..", "titlepage", "a.png")
	if !errors.Is(err, core.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}

func TestFSStore_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tps")
	s := NewFS(dir, "/tps/")

	got, err := s.Put(context.Background(), "K_titlepage.png", strings.NewReader("first"), "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got.Filename != "K_titlepage.png" || got.Path != "/tps/K_titlepage.png" {
		t.Errorf("Put() = %+v", got)
	}

	if _, err := s.Put(context.Background(), "K_titlepage.png", strings.NewReader("second"), ""); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "K_titlepage.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want overwrite", data)
	}
}

func TestFSStore_RejectsNestedName(t *testing.T) {
	s := NewFS(t.TempDir(), "/tps/")
	if _, err := s.Put(context.Background(), "../x.png", strings.NewReader("x"), ""); err == nil {
		t.Fatal("expected error for name outside directory")
	}
}

// fakeS3 serves PutObject for path-style requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := parts[len(parts)-1]

	body, _ := io.ReadAll(req.Body)
	if dec, ok := decodeChunked(body); ok {
		body = dec
	}

	f.mu.Lock()
	f.objects[key] = body
	f.types[key] = req.Header.Get("Content-Type")
	f.mu.Unlock()

	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {`"etag"`}}}, nil
}

// decodeChunked unwraps a single-chunk aws-chunked payload.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 || parts[2] != "0" {
		return nil, false
	}
	size, err := strconv.ParseInt(strings.SplitN(parts[0], ";", 2)[0], 16, 64)
	if err != nil || int64(len(parts[1])) != size {
		return nil, false
	}
	return []byte(parts[1]), true
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "scans",
		Endpoint:        "https://mock.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		t.Fatalf("NewS3() error = %v", err)
	}
	if s.Driver() != DriverS3 {
		t.Errorf("Driver() = %q", s.Driver())
	}

	got, err := s.Put(context.Background(), "K_frontispiece.jpg", strings.NewReader("JPEGDATA"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got.Path != "https://mock.s3.local/scans/K_frontispiece.jpg" {
		t.Errorf("Path = %q", got.Path)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if string(fake.objects["K_frontispiece.jpg"]) != "JPEGDATA" {
		t.Errorf("stored = %q", fake.objects["K_frontispiece.jpg"])
	}
	if fake.types["K_frontispiece.jpg"] != "image/jpeg" {
		t.Errorf("content type = %q", fake.types["K_frontispiece.jpg"])
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestLimiter_BlocksWhenFull(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if got := l.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}
	if err := l.Acquire(ctx); !errors.Is(err, ErrTooManyUploads) {
		t.Errorf("second Acquire = %v, want ErrTooManyUploads", err)
	}

	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Errorf("Acquire after Release = %v", err)
	}
	l.Release()
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(1, 5*time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after cancel")
	}
}

func TestLimiter_ConcurrentNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	l := NewLimiter(capacity, time.Second)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		peak int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer l.Release()

			mu.Lock()
			peak = max(peak, l.Active())
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
		}()
	}
	wg.Wait()

	if peak > capacity {
		t.Errorf("peak = %d, capacity %d", peak, capacity)
	}
	if l.Active() != 0 {
		t.Errorf("Active() = %d after all released", l.Active())
	}
}

func TestLimiter_WaitForDrain(t *testing.T) {
	l := NewLimiter(2, time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- l.WaitForDrain(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitForDrain returned with an active upload")
	case <-time.After(60 * time.Millisecond):
	}

	l.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForDrain = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not return after release")
	}
}

func TestLimiter_Defaults(t *testing.T) {
	if got := NewLimiter(0, 0).Capacity(); got != DefaultMaxConcurrent {
		t.Errorf("Capacity() = %d, want %d", got, DefaultMaxConcurrent)
	}
}
