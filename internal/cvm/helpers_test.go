package cvm

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/fundsync/internal/fetcher"
	"github.com/sells-group/fundsync/internal/model"
)

const (
	fundA = "11111111000111"
	fundB = "22222222000122"
	fundX = "99999999000199"
)

func latin1(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.ISO8859_1.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

// zipBytes builds an in-memory archive with members in the given order.
func zipBytes(t *testing.T, members ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range members {
		fw, err := w.Create(m[0])
		require.NoError(t, err)
		_, err = fw.Write(latin1(t, m[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// fileServer serves fixed bodies by path and 404 for anything else,
// recording every requested path in order.
type fileServer struct {
	*httptest.Server
	mu        sync.Mutex
	files     map[string][]byte
	requested []string
}

func newFileServer(t *testing.T, files map[string][]byte) *fileServer {
	t.Helper()
	fs := &fileServer{files: files}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.requested = append(fs.requested, r.URL.Path)
		body, ok := fs.files[r.URL.Path]
		fs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fileServer) paths() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.requested...)
}

func newTestPipeline(t *testing.T, baseURL string, funds ...string) *Pipeline {
	t.Helper()
	var fs []model.Fund
	for _, id := range funds {
		fs = append(fs, model.Fund{CNPJ: id, Nome: "Fundo " + id[:2], CategoriaCVM: "Multimercado", Gestora: "Gestora " + id[:2]})
	}
	return &Pipeline{
		Fetcher:       fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second}),
		Sources:       Sources{BaseURL: baseURL},
		Workdir:       t.TempDir(),
		Funds:         fs,
		Months:        1,
		FallbackSkips: DefaultFallbackSkips,
		Now:           func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) },
	}
}

func ids(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
