package kvstore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "cart.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	mem, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:): %v", err)
	}
	t.Cleanup(func() { mem.Close() })

	rd := NewRedis(miniredis.RunT(t).Addr(), discardLogger())
	t.Cleanup(func() { rd.Close() })

	return map[string]Store{
		"memory":        NewMemory(),
		"sqlite":        sq,
		"sqlite-memory": mem,
		"redis":         rd,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "@GoMarketPlace:cart"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
			}

			if err := s.Set(ctx, "@GoMarketPlace:cart", `[{"id":"A"}]`); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, "@GoMarketPlace:cart")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got != `[{"id":"A"}]` {
				t.Errorf("Get = %q, want %q", got, `[{"id":"A"}]`)
			}

			if err := s.Set(ctx, "@GoMarketPlace:cart", `[]`); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, err = s.Get(ctx, "@GoMarketPlace:cart")
			if err != nil {
				t.Fatalf("Get after overwrite: %v", err)
			}
			if got != `[]` {
				t.Errorf("Get after overwrite = %q, want %q", got, `[]`)
			}

			if _, err := s.Get(ctx, "other"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get other key: err = %v, want ErrNotFound", err)
			}

			if !s.Ping(ctx) {
				t.Error("Ping = false, want true")
			}
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cart.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v1" {
		t.Errorf("Get = %q, want %q", got, "v1")
	}
}

func TestRedisStoresPlainValues(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	r := NewRedis(mr.Addr(), discardLogger())
	defer r.Close()

	if err := r.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := r.Set(ctx, "@GoMarketPlace:cart", `[{"id":"A"}]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := mr.Get("@GoMarketPlace:cart")
	if err != nil {
		t.Fatalf("server GET: %v", err)
	}
	if got != `[{"id":"A"}]` {
		t.Errorf("server value = %q, want %q", got, `[{"id":"A"}]`)
	}
	if ttl := mr.TTL("@GoMarketPlace:cart"); ttl != 0 {
		t.Errorf("TTL = %v, want no expiry", ttl)
	}

	mr.SetError("ERR injected failure")
	_, err = r.Get(ctx, "@GoMarketPlace:cart")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get with failing server: err = %v, want a non-NotFound error", err)
	}
}

func TestRedisInitializeHonoursCancellation(t *testing.T) {
	r := NewRedis("127.0.0.1:1", discardLogger())
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Initialize(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Initialize: err = %v, want context.Canceled", err)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{5, 16 * time.Second},
		{6, redisMaxBackoff},
		{redisConnectAttempts, redisMaxBackoff},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
