package upgrade

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "github.com/chazuruo/simtray/internal/errors"
	"github.com/chazuruo/simtray/internal/testutil"
)

func testRelease(url string) *Release {
	return &Release{
		ID:      "101",
		TagName: "v2",
		Assets: []Asset{
			{Name: "notes.txt", BrowserDownloadURL: url + "/notes"},
			{Name: "wowsimmop-windows.exe.zip", BrowserDownloadURL: url + "/asset"},
		},
	}
}

func newTestDownloader() *Downloader {
	d := NewDownloader()
	d.SetRetryInterval(time.Millisecond)
	return d
}

func TestFetchAndExtract_Success(t *testing.T) {
	archive := testutil.ZipArchive(t, map[string]string{
		"wowsimmop-windows.exe": "new binary",
		"data/db.bin":           "payload",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/asset", r.URL.Path)
		w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	destDir := filepath.Join(t.TempDir(), "binary")
	require.NoError(t, os.MkdirAll(destDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "stale.txt"), []byte("old"), 0644))

	var progress []int
	err := newTestDownloader().FetchAndExtract(context.Background(), testRelease(srv.URL),
		NameContains("wowsimmop-windows.exe.zip"), destDir, func(p int) { progress = append(progress, p) })
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(destDir, "wowsimmop-windows.exe"))
	require.NoError(t, err)
	assert.Equal(t, "new binary", string(data))

	data, err = os.ReadFile(filepath.Join(destDir, "data", "db.bin"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = os.Stat(filepath.Join(destDir, "stale.txt"))
	assert.True(t, os.IsNotExist(err), "install directory is replaced wholesale")

	require.NotEmpty(t, progress)
	assert.Equal(t, 0, progress[0])
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}

func TestFetchAndExtract_NoContentLength(t *testing.T) {
	archive := testutil.ZipArchive(t, map[string]string{"sim": "x"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before writing forces chunked encoding.
		w.(http.Flusher).Flush()
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	called := false
	destDir := t.TempDir()
	err := newTestDownloader().FetchAndExtract(context.Background(), testRelease(srv.URL),
		NameContains(".exe.zip"), destDir, func(int) { called = true })
	require.NoError(t, err)
	assert.False(t, called, "progress is only reported for known lengths")
}

func TestFetchAndExtract_AssetNotFound(t *testing.T) {
	destDir := t.TempDir()
	marker := filepath.Join(destDir, "keep")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0644))

	err := newTestDownloader().FetchAndExtract(context.Background(), testRelease("http://unused"),
		NameContains("macos"), destDir, nil)
	require.Error(t, err)
	assert.True(t, simerrors.IsAssetNotFound(err))

	_, statErr := os.Stat(marker)
	assert.NoError(t, statErr, "install directory untouched")
}

func TestFetchAndExtract_PermanentHTTPError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	err := newTestDownloader().FetchAndExtract(context.Background(), testRelease(srv.URL),
		NameContains(".exe.zip"), destDir, nil)
	require.Error(t, err)
	assert.True(t, simerrors.IsDownloadFailed(err))
	assert.Equal(t, int32(1), hits.Load(), "4xx responses are not retried")
}

func TestFetchAndExtract_RetriesTransientFailure(t *testing.T) {
	archive := testutil.ZipArchive(t, map[string]string{"sim": "ok"})

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	err := newTestDownloader().FetchAndExtract(context.Background(), testRelease(srv.URL),
		NameContains(".exe.zip"), destDir, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	data, err := os.ReadFile(filepath.Join(destDir, "sim"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestFetchAndExtract_RetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := newTestDownloader()
	d.SetMaxRetries(2)
	err := d.FetchAndExtract(context.Background(), testRelease(srv.URL), NameContains(".exe.zip"), t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, simerrors.IsDownloadFailed(err))
	assert.Equal(t, int32(3), hits.Load(), "one attempt plus two retries")
}

func TestFetchAndExtract_CorruptArchiveKeepsInstall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("PK\x03\x04 this is not really a zip"))
	}))
	defer srv.Close()

	destDir := t.TempDir()
	existing := filepath.Join(destDir, "wowsimmop-windows.exe")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0755))

	err := newTestDownloader().FetchAndExtract(context.Background(), testRelease(srv.URL),
		NameContains(".exe.zip"), destDir, nil)
	require.Error(t, err)
	assert.True(t, simerrors.IsExtractFailed(err))

	data, readErr := os.ReadFile(existing)
	require.NoError(t, readErr, "verification fails before the directory is deleted")
	assert.Equal(t, "old", string(data))
}

func TestFetchAndExtract_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := newTestDownloader().FetchAndExtract(ctx, testRelease(srv.URL), NameContains(".exe.zip"), t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || simerrors.IsDownloadFailed(err))
}

func TestDownload_TruncatesOnRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// Promise more than we send so the first attempt fails midway.
			w.Header().Set("Content-Length", "100")
			_, _ = w.Write([]byte("partial"))
			return
		}
		_, _ = w.Write([]byte("complete"))
	}))
	defer srv.Close()

	out, err := os.CreateTemp(t.TempDir(), "dl-*")
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, newTestDownloader().Download(context.Background(), srv.URL, out, nil))

	data, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "complete", string(data))
}

func TestFetchAndExtract_PartialTransferKeepsInstall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte("PK\x03\x04 first bytes only"))
	}))
	defer srv.Close()

	destDir := t.TempDir()
	existing := filepath.Join(destDir, "wowsimmop-windows.exe")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0755))

	d := newTestDownloader()
	d.SetMaxRetries(0)
	err := d.FetchAndExtract(context.Background(), testRelease(srv.URL), NameContains(".exe.zip"), destDir, nil)
	require.Error(t, err)
	assert.True(t, simerrors.IsDownloadFailed(err))

	data, readErr := os.ReadFile(existing)
	require.NoError(t, readErr)
	assert.Equal(t, "old", string(data))
}
