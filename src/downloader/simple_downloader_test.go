package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewyi/autoria-crawler/src/entity"
	"github.com/andrewyi/autoria-crawler/src/enum"
	"github.com/andrewyi/autoria-crawler/src/util"
)

type recorder struct {
	mu        sync.Mutex
	responses map[string]entity.PageInfo
	errors    map[string]error
	tasks     map[string]*entity.Task
}

func newRecorder() *recorder {
	return &recorder{
		responses: make(map[string]entity.PageInfo),
		errors:    make(map[string]error),
		tasks:     make(map[string]*entity.Task),
	}
}

func (r *recorder) OnResponse(task *entity.Task, page entity.PageInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[task.URL] = page
	r.tasks[task.URL] = task
}

func (r *recorder) OnError(task *entity.Task, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[task.URL] = err
	r.tasks[task.URL] = task
}

func newTestServer(t *testing.T) (*httptest.Server, *int32, *int32) {
	var flakyHits, brokenHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	})
	mux.HandleFunc("/phone", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accept":"` + r.Header.Get("Accept") + `"}`))
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&flakyHits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&brokenHits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &flakyHits, &brokenHits
}

func newTestDownloader(t *testing.T, srv *httptest.Server, rec *recorder) *SimpleDownloader {
	domain, err := util.GetDomain(srv.URL)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()

	d, err := NewSimpleDownloader(context.Background(), Options{
		AllowedDomains:              []string{domain},
		ConcurrentRequests:          4,
		ConcurrentRequestsPerDomain: 2,
		Timeout:                     5 * time.Second,
		Retry:                       2,
		RetryDelay:                  time.Millisecond,
	}, logger)
	require.NoError(t, err)
	d.Handle(rec)
	return d
}

func TestDownloadDeliversTask(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := newRecorder()
	d := newTestDownloader(t, srv, rec)

	task := &entity.Task{Kind: enum.TaskKindPosting, State: enum.FlowStatePostingRequested, URL: srv.URL + "/ok"}
	require.NoError(t, d.Download(task))
	d.Wait()

	require.Contains(t, rec.responses, task.URL)
	assert.Same(t, task, rec.tasks[task.URL])
	assert.Equal(t, http.StatusOK, rec.responses[task.URL].StatusCode)
	assert.Equal(t, "<html><body>ok</body></html>", string(rec.responses[task.URL].Content))
}

func TestDownloadPhoneAcceptsJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := newRecorder()
	d := newTestDownloader(t, srv, rec)

	task := &entity.Task{Kind: enum.TaskKindPhone, URL: srv.URL + "/phone"}
	require.NoError(t, d.Download(task))
	d.Wait()

	require.Contains(t, rec.responses, task.URL)
	assert.JSONEq(t, `{"accept":"application/json"}`, string(rec.responses[task.URL].Content))
}

func TestDownloadRetriesTransientErrors(t *testing.T) {
	srv, flakyHits, brokenHits := newTestServer(t)
	rec := newRecorder()
	d := newTestDownloader(t, srv, rec)

	flaky := &entity.Task{Kind: enum.TaskKindPosting, URL: srv.URL + "/flaky"}
	broken := &entity.Task{Kind: enum.TaskKindPosting, URL: srv.URL + "/broken"}
	require.NoError(t, d.Download(flaky))
	require.NoError(t, d.Download(broken))
	d.Wait()

	assert.Equal(t, "recovered", string(rec.responses[flaky.URL].Content))
	assert.EqualValues(t, 2, atomic.LoadInt32(flakyHits))

	require.Contains(t, rec.errors, broken.URL)
	assert.ErrorIs(t, rec.errors[broken.URL], ErrHTTPStatus)
	// first attempt plus two retries
	assert.EqualValues(t, 3, atomic.LoadInt32(brokenHits))
}

func TestDownloadClientErrorIsNotRetried(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := newRecorder()
	d := newTestDownloader(t, srv, rec)

	task := &entity.Task{Kind: enum.TaskKindPosting, URL: srv.URL + "/missing"}
	require.NoError(t, d.Download(task))
	d.Wait()

	require.Contains(t, rec.errors, task.URL)
	assert.ErrorIs(t, rec.errors[task.URL], ErrHTTPStatus)
	assert.Contains(t, rec.errors[task.URL].Error(), "404")
}

func TestDownloadDuplicate(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := newRecorder()
	d := newTestDownloader(t, srv, rec)

	require.NoError(t, d.Download(&entity.Task{Kind: enum.TaskKindPosting, URL: srv.URL + "/ok"}))
	err := d.Download(&entity.Task{Kind: enum.TaskKindPosting, URL: srv.URL + "/ok"})
	d.Wait()
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestNewSimpleDownloaderRejectsZeroConcurrency(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewSimpleDownloader(context.Background(), Options{ConcurrentRequests: 0, ConcurrentRequestsPerDomain: 1}, logger)
	assert.Error(t, err)
}
