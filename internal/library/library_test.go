package library_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/italolelis/jellyfin_downloader/internal/downloader"
	"github.com/italolelis/jellyfin_downloader/internal/jellyfin"
	"github.com/italolelis/jellyfin_downloader/internal/library"
	"github.com/italolelis/jellyfin_downloader/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is an in-memory media server counting the requests per endpoint.
type fakeServer struct {
	t *testing.T

	authStatus int
	authBody   string
	itemsCode  int
	items      []media.Item
	streams    map[string]string
	// dropped streams send a partial body and close the connection
	dropped map[string]bool

	mu   sync.Mutex
	hits map[string]int
}

func newFakeServer(t *testing.T) *fakeServer {
	return &fakeServer{
		t:          t,
		authStatus: http.StatusOK,
		authBody:   `{"AccessToken":"tok","User":{"Id":"user-1"}}`,
		itemsCode:  http.StatusOK,
		streams:    map[string]string{},
		dropped:    map[string]bool{},
		hits:       map[string]int{},
	}
}

func (f *fakeServer) hit(endpoint string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits[endpoint]++
}

func (f *fakeServer) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.hits[endpoint]
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/Users/AuthenticateByName":
		f.hit("auth")
		w.WriteHeader(f.authStatus)
		io.WriteString(w, f.authBody)
	case r.URL.Path == "/Items":
		f.hit("items")
		assert.Contains(f.t, r.Header.Get("Authorization"), `Token="tok"`)

		if f.itemsCode != http.StatusOK {
			w.WriteHeader(f.itemsCode)

			return
		}

		json.NewEncoder(w).Encode(map[string]any{"Items": f.items, "TotalRecordCount": len(f.items)})
	case strings.HasPrefix(r.URL.Path, "/Videos/"):
		f.hit("stream")

		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/Videos/"), "/stream.mp4")
		body := f.streams[id]

		if f.dropped[id] {
			w.Header().Set("Content-Length", fmt.Sprint(len(body)*10))
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, body)
			w.(http.Flusher).Flush()

			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				conn.Close()
			}

			return
		}

		io.WriteString(w, body)
	default:
		http.NotFound(w, r)
	}
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, content string) error {
	n.messages = append(n.messages, content)

	return nil
}

func newOrchestrator(t *testing.T, f *fakeServer, dir string, opts ...downloader.Option) (*library.Orchestrator, *recordingNotifier) {
	t.Helper()

	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)

	client := jellyfin.NewClient(ts.URL, jellyfin.Identity{Client: "test", Device: "cli", DeviceID: "dev", Version: "1.0.0"})
	dl := downloader.NewDownloader(dir, client, opts...)
	n := &recordingNotifier{}

	return library.NewOrchestrator(client, dl, media.Credentials{Username: "jelly", Password: "fin"}, library.WithNotifier(n)), n
}

func video(id, name string) media.Item {
	return media.Item{ID: id, Name: name, Path: "/media/" + id + ".mkv", Type: "Movie", MediaType: "Video"}
}

func TestRun_DownloadsOnlyVideos(t *testing.T) {
	f := newFakeServer(t)
	f.items = []media.Item{
		{ID: "f1", Name: "Movies", Type: "Folder", MediaType: "Video"},
		{ID: "a1", Name: "Song", Type: "Audio", MediaType: "Audio"},
		video("v1", "Heat"),
	}
	f.streams["v1"] = "heat content"

	dir := t.TempDir()
	o, n := newOrchestrator(t, f, dir)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.count("stream"))
	assert.Equal(t, 1, report.Items)
	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, int64(len("heat content")), report.Bytes)
	assert.NoError(t, report.Err)
	assert.NoError(t, report.ItemErrors())

	got, err := os.ReadFile(filepath.Join(dir, "Heat.mkv"))
	require.NoError(t, err)
	assert.Equal(t, "heat content", string(got))

	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "1/1 items succeeded")
}

func TestRun_AuthenticationRejected(t *testing.T) {
	f := newFakeServer(t)
	f.authStatus = http.StatusUnauthorized
	f.authBody = "Invalid username or password"
	f.items = []media.Item{video("v1", "Heat")}

	o, n := newOrchestrator(t, f, t.TempDir())

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, media.FailureAuth, report.Failure())
	assert.Zero(t, f.count("items"))
	assert.Zero(t, f.count("stream"))

	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "sync aborted (auth_failed)")
}

func TestRun_AuthenticationMissingToken(t *testing.T) {
	f := newFakeServer(t)
	f.authBody = `{"User":{"Id":"user-1"}}`

	o, _ := newOrchestrator(t, f, t.TempDir())

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, media.FailureAuth, report.Failure())
	assert.Equal(t, 1, f.count("auth"))
	assert.Zero(t, f.count("items"))
}

func TestRun_CatalogFailure(t *testing.T) {
	f := newFakeServer(t)
	f.itemsCode = http.StatusInternalServerError

	o, _ := newOrchestrator(t, f, t.TempDir())

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, media.FailureTransport, report.Failure())
	assert.Zero(t, report.Items)
	assert.Zero(t, f.count("stream"))
}

func TestRun_EmptyCatalog(t *testing.T) {
	f := newFakeServer(t)

	o, n := newOrchestrator(t, f, t.TempDir())

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.NoError(t, report.Err)
	assert.Zero(t, report.Items)
	assert.Empty(t, report.Results)
	assert.Equal(t, []string{"sync finished: nothing to do"}, n.messages)
}

func TestRun_FailedItemDoesNotStopLaterItems(t *testing.T) {
	f := newFakeServer(t)
	f.items = []media.Item{video("v1", "Heat"), video("v2", "Alien"), video("v3", "Ronin")}
	f.streams = map[string]string{"v1": "heat", "v2": strings.Repeat("a", 4096), "v3": "ronin"}
	f.dropped["v2"] = true

	dir := t.TempDir()
	o, _ := newOrchestrator(t, f, dir)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, f.count("stream"))
	assert.Equal(t, 2, report.Downloaded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Succeeded())

	require.Len(t, report.Results, 3)
	assert.Equal(t, "v2", report.Results[1].Item.ID)
	assert.Equal(t, media.FailureTransport, report.Results[1].Failure())
	assert.ErrorContains(t, report.ItemErrors(), "Alien.mkv")

	got, err := os.ReadFile(filepath.Join(dir, "Ronin.mkv"))
	require.NoError(t, err)
	assert.Equal(t, "ronin", string(got))
}

func TestRun_SkipsExistingAndDryRun(t *testing.T) {
	f := newFakeServer(t)
	f.items = []media.Item{video("v1", "Heat"), video("v2", "Alien")}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Heat.mkv"), []byte("already here"), 0o644))

	o, n := newOrchestrator(t, f, dir, downloader.WithDryRun(true))

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, f.count("stream"))
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.DryRun)
	assert.Equal(t, 2, report.Succeeded())
	assert.Zero(t, report.Bytes)

	_, err = os.Stat(filepath.Join(dir, "Alien.mkv"))
	assert.True(t, os.IsNotExist(err))

	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "1 dry run")
}

func TestRun_CreatesDownloadDir(t *testing.T) {
	f := newFakeServer(t)
	f.items = []media.Item{video("v1", "Heat")}
	f.streams["v1"] = "heat"

	dir := filepath.Join(t.TempDir(), "nested", "videos")
	o, _ := newOrchestrator(t, f, dir)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Downloaded)
	assert.FileExists(t, filepath.Join(dir, "Heat.mkv"))
}

func TestRun_DownloadDirError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	f := newFakeServer(t)
	o, n := newOrchestrator(t, f, filepath.Join(file, "videos"))

	report, err := o.Run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.Zero(t, f.count("auth"))
	assert.Empty(t, n.messages)
}

func TestRun_CancelledContextStopsLoop(t *testing.T) {
	f := newFakeServer(t)
	f.items = []media.Item{video("v1", "Heat"), video("v2", "Alien")}

	o, _ := newOrchestrator(t, f, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.Run(ctx)
	require.NoError(t, err)

	// Authentication itself fails on a cancelled context.
	assert.Error(t, report.Err)
	assert.Zero(t, f.count("stream"))
}
