package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func validConfig(endpoint string) *config.StorageConfig {
	return &config.StorageConfig{
		Enabled:        true,
		Bucket:         "ledger-reports",
		Region:         "eu-west-1",
		Endpoint:       endpoint,
		AccessKeyID:    "test-key",
		SecretKey:      "test-secret",
		ForcePathStyle: true,
		Prefix:         "/reports/",
	}
}

func TestNewS3ReportStore_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.StorageConfig)
		errMsg string
	}{
		{name: "missing bucket", mutate: func(c *config.StorageConfig) { c.Bucket = "" }, errMsg: "bucket is required"},
		{name: "missing access key", mutate: func(c *config.StorageConfig) { c.AccessKeyID = "" }, errMsg: "access key is required"},
		{name: "missing secret", mutate: func(c *config.StorageConfig) { c.SecretKey = "" }, errMsg: "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig("http://localhost:9000")
			tt.mutate(cfg)
			_, err := NewS3ReportStore(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("nil config", func(t *testing.T) {
		_, err := NewS3ReportStore(nil)
		assert.ErrorContains(t, err, "configuration is required")
	})

	t.Run("endpoint without scheme and no region", func(t *testing.T) {
		cfg := validConfig("minio.internal:9000")
		cfg.Region = ""
		store, err := NewS3ReportStore(cfg)
		require.NoError(t, err)
		assert.Equal(t, "ledger-reports", store.Bucket())
		assert.Equal(t, "reports", store.prefix)
	})
}

func TestS3ReportStore_ObjectKey(t *testing.T) {
	store, err := NewS3ReportStore(validConfig("http://localhost:9000"))
	require.NoError(t, err)

	key, err := store.objectKey("/trial-balance/2024-03-31/a.json")
	require.NoError(t, err)
	assert.Equal(t, "reports/trial-balance/2024-03-31/a.json", key)

	_, err = store.objectKey("")
	assert.ErrorContains(t, err, "storage key is required")

	store.prefix = ""
	key, err = store.objectKey("a.json")
	require.NoError(t, err)
	assert.Equal(t, "a.json", key)
}

func TestS3ReportStore_URL(t *testing.T) {
	store, err := NewS3ReportStore(validConfig("http://localhost:9000"))
	require.NoError(t, err)
	ctx := context.Background()

	link, err := store.URL(ctx, "trial-balance/2024-03-31/a.json", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "http://localhost:9000/ledger-reports/reports/trial-balance/2024-03-31/a.json?"), link)
	assert.Contains(t, link, "X-Amz-Expires=600")
	assert.Contains(t, link, "X-Amz-Signature=")

	link, err = store.URL(ctx, "a.json", 0)
	require.NoError(t, err)
	assert.Contains(t, link, "X-Amz-Expires=900")

	_, err = store.URL(ctx, "", time.Minute)
	assert.Error(t, err)
}

// fakeS3 answers path style object requests for one bucket
type fakeS3 struct {
	mu       sync.Mutex
	puts     []*http.Request
	objects  map[string]string
	failures int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.puts = append(f.puts, r)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3ReportStore_PutAndGet(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"/ledger-reports/reports/trial-balance/2024-03-31/a.json": `{"rows":[]}`,
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := NewS3ReportStore(validConfig(srv.URL), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("put sends the object under the prefix", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "trial-balance/2024-03-31/b.json", "application/json", []byte(`{"rows":[1]}`)))
		fake.mu.Lock()
		defer fake.mu.Unlock()
		require.Len(t, fake.puts, 1)
		assert.Equal(t, "/ledger-reports/reports/trial-balance/2024-03-31/b.json", fake.puts[0].URL.Path)
		assert.Equal(t, "application/json", fake.puts[0].Header.Get("Content-Type"))
	})

	t.Run("get reads the object back", func(t *testing.T) {
		body, err := store.Get(ctx, "trial-balance/2024-03-31/a.json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"rows":[]}`, string(body))
	})

	t.Run("missing object is not found", func(t *testing.T) {
		_, err := store.Get(ctx, "trial-balance/1999-01-01/none.json")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("bucket exists", func(t *testing.T) {
		assert.NoError(t, store.EnsureBucket(ctx))
	})

	t.Run("denied put is an infrastructure error", func(t *testing.T) {
		fake.mu.Lock()
		fake.failures = 1
		fake.mu.Unlock()
		err := store.Put(ctx, "x.json", "application/json", []byte("{}"))
		require.Error(t, err)
		var infra *shared.InfrastructureError
		assert.ErrorAs(t, err, &infra)
	})
}
