package unlocker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDownload streams a response body to disk and follows redirects.
func TestDownload(t *testing.T) {
	t.Parallel()

	payload := []byte("disk image payload")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved" {
			http.Redirect(w, r, "/image.dmg", http.StatusFound)
			return
		}

		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "image.dmg")
	tools := newSystemToolset()

	err := tools.Download(context.Background(), server.URL+"/moved", dest)
	require.NoError(t, err)

	contents, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, contents)
}

// TestDownloadBadStatus treats a non-OK response as a failed transfer
// and leaves no file behind.
func TestDownloadBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "image.dmg")
	tools := newSystemToolset()

	err := tools.Download(context.Background(), server.URL+"/image.dmg", dest)
	require.ErrorIs(t, err, errBadHTTPStatus)
	require.NoFileExists(t, dest)
}
