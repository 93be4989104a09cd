package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/envira/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/install.sh", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("#!/bin/sh\necho ok\n"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPDownloader_Download(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	dest := filepath.Join(t.TempDir(), "cache", "install.sh")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dest, []byte("partial garbage from an earlier run"), 0o644))

	d := NewHTTPDownloader(DefaultConfig())
	n, err := d.Download(context.Background(), srv.URL+"/install.sh", dest)

	require.NoError(t, err)
	assert.Equal(t, int64(18), n)
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho ok\n", string(content))
	assert.NoFileExists(t, dest+".part")
}

func TestHTTPDownloader_Errors(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	d := NewHTTPDownloader(DefaultConfig())

	tests := []struct {
		name   string
		path   string
		target error
	}{
		{name: "not found", path: "/missing", target: ports.ErrResourceNotFound},
		{name: "empty body", path: "/empty", target: ports.ErrEmptyResource},
		{name: "server error", path: "/broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dest := filepath.Join(t.TempDir(), "out")

			_, err := d.Download(context.Background(), srv.URL+tt.path, dest)

			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.NoFileExists(t, dest)
			assert.NoFileExists(t, dest+".part")
		})
	}
}

func TestHTTPDownloader_ContextCancelled(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPDownloader(DefaultConfig()).Download(ctx, srv.URL+"/install.sh", filepath.Join(t.TempDir(), "x"))

	assert.ErrorIs(t, err, context.Canceled)
}
