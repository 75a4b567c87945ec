package checker

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeHost queues tasks in memory and never blocks.
type fakeHost struct {
	mu       sync.Mutex
	idle     bool
	stopAt   int64 // bytesWritten reports false once this many bytes were seen, 0 disables
	queue    []*FetchTask
	finished []*FetchTask
	failed   []*FetchTask
	errs     []error
	written  int64
}

func (h *fakeHost) requestTask(slot int) *FetchTask {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return nil
	}
	task := h.queue[0]
	h.queue = h.queue[1:]
	return task
}

func (h *fakeHost) releaseTask(slot int) {}

func (h *fakeHost) bytesWritten(task *FetchTask, n int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.written += n
	return h.stopAt == 0 || h.written < h.stopAt
}

func (h *fakeHost) taskFinished(task *FetchTask) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, task)
}

func (h *fakeHost) taskFailed(task *FetchTask, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, task)
	h.errs = append(h.errs, err)
}

func (h *fakeHost) HasIdleWorker() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.idle
}

func (h *fakeHost) AddTask(task *FetchTask) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append(h.queue, task)
}

func testData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	return data
}

func serveBytes(contentType string, data []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
	})
}

func newTestWorker(host taskHost) *worker {
	return &worker{
		id:             0,
		host:           host,
		client:         testClient(),
		readTimeout:    2 * time.Second,
		splitThreshold: 4096,
		maxFailures:    3,
	}
}

func targetFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.tmp")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWorkerSplitsAndCoversFile(t *testing.T) {
	data := testData(256 * 1024)
	srv := httptest.NewServer(serveBytes("application/octet-stream", data))
	defer srv.Close()

	target := targetFile(t)
	host := &fakeHost{idle: true}
	host.queue = Partition(srv.URL, target, "", int64(len(data)), 1, 1024)
	w := newTestWorker(host)
	w.run()

	if len(host.failed) != 0 {
		t.Fatalf("unexpected failures: %v", host.errs)
	}
	if len(host.finished) < 2 {
		t.Errorf("finished %d tasks, expected the task to be split", len(host.finished))
	}
	if host.written != int64(len(data)) {
		t.Errorf("reported %d bytes, want %d", host.written, len(data))
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("target differs from source (%d vs %d bytes)", len(got), len(data))
	}
}

func TestWorkerNoSplitWithoutIdleWorker(t *testing.T) {
	data := testData(64 * 1024)
	srv := httptest.NewServer(serveBytes("application/octet-stream", data))
	defer srv.Close()

	host := &fakeHost{idle: false}
	host.queue = Partition(srv.URL, targetFile(t), "", int64(len(data)), 1, 1024)
	newTestWorker(host).run()
	if len(host.finished) != 1 {
		t.Errorf("finished %d tasks, want 1", len(host.finished))
	}
}

func TestWorkerUnboundedTask(t *testing.T) {
	data := testData(10000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			t.Errorf("unbounded task sent Range %q", r.Header.Get("Range"))
		}
		w.(http.Flusher).Flush() // forces chunked encoding, no length
		w.Write(data)
	}))
	defer srv.Close()

	target := targetFile(t)
	host := &fakeHost{idle: true}
	host.queue = Partition(srv.URL, target, "", -1, 4, 1024)
	newTestWorker(host).run()
	if len(host.finished) != 1 {
		t.Fatalf("finished %d tasks, want 1", len(host.finished))
	}
	got, _ := os.ReadFile(target)
	if !bytes.Equal(got, data) {
		t.Errorf("target differs from source")
	}
}

func TestWorkerServerIgnoresRange(t *testing.T) {
	data := testData(300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	target := targetFile(t)
	host := &fakeHost{}
	host.queue = []*FetchTask{{URL: srv.URL, TargetPath: target, DeclaredSize: 300, RangeStart: 100, RangeCursor: 100, RangeEnd: 199}}
	newTestWorker(host).run()
	if len(host.finished) != 1 {
		t.Fatalf("finished %d tasks, want 1 (failed %v)", len(host.finished), host.errs)
	}
	got, _ := os.ReadFile(target)
	if len(got) != 200 || !bytes.Equal(got[100:200], data[100:200]) {
		t.Errorf("bytes 100-199 not written at their offset (file is %d bytes)", len(got))
	}
	if host.written != 100 {
		t.Errorf("reported %d bytes, want 100", host.written)
	}
}

func TestWorkerNotFoundIsTerminal(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusGone} {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(code)
		}))

		host := &fakeHost{}
		host.queue = []*FetchTask{{URL: srv.URL, TargetPath: targetFile(t), RangeEnd: 99, DeclaredSize: 100}}
		newTestWorker(host).run()
		srv.Close()

		if hits.Load() != 1 {
			t.Errorf("%d: server hit %d times, want 1", code, hits.Load())
		}
		if len(host.failed) != 1 || !errors.Is(host.errs[0], ErrNotFound) {
			t.Errorf("%d: failed=%d errs=%v", code, len(host.failed), host.errs)
		}
	}
}

func TestWorkerRetryBound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host := &fakeHost{}
	host.queue = []*FetchTask{{URL: srv.URL, TargetPath: targetFile(t), RangeEnd: 99, DeclaredSize: 100}}
	newTestWorker(host).run()

	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}
	if len(host.failed) != 1 {
		t.Fatalf("failed %d times, want 1", len(host.failed))
	}
	if host.failed[0].FailureCount != 3 {
		t.Errorf("FailureCount = %d, want 3", host.failed[0].FailureCount)
	}
	var statusErr *StatusError
	if !errors.As(host.errs[0], &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Errorf("err = %v, want status 500", host.errs[0])
	}
}

func TestWorkerResumesFromCursor(t *testing.T) {
	data := testData(50000)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// first attempt promises the full range but cuts off early
			w.Header().Set("Content-Length", "50000")
			w.Write(data[:20000])
			return
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
	}))
	defer srv.Close()

	target := targetFile(t)
	host := &fakeHost{}
	host.queue = []*FetchTask{{URL: srv.URL, TargetPath: target, DeclaredSize: 50000, RangeEnd: 49999}}
	newTestWorker(host).run()

	if len(host.finished) != 1 || len(host.failed) != 0 {
		t.Fatalf("finished=%d failed=%d errs=%v", len(host.finished), len(host.failed), host.errs)
	}
	if host.finished[0].FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1", host.finished[0].FailureCount)
	}
	got, _ := os.ReadFile(target)
	if !bytes.Equal(got, data) {
		t.Errorf("resumed file differs from source")
	}
	if host.written != 50000 {
		t.Errorf("reported %d bytes, want 50000", host.written)
	}
}

func TestWorkerAbandonsTask(t *testing.T) {
	data := testData(200000)
	srv := httptest.NewServer(serveBytes("application/octet-stream", data))
	defer srv.Close()

	host := &fakeHost{stopAt: 1}
	host.queue = []*FetchTask{{URL: srv.URL, TargetPath: targetFile(t), DeclaredSize: 200000, RangeEnd: 199999}}
	newTestWorker(host).run()
	if len(host.finished) != 0 || len(host.failed) != 0 {
		t.Errorf("abandoned task reported finished=%d failed=%d", len(host.finished), len(host.failed))
	}
}

func TestWorkerReadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	host := &fakeHost{}
	w := newTestWorker(host)
	w.readTimeout = 100 * time.Millisecond
	w.maxFailures = 1
	host.queue = []*FetchTask{{URL: srv.URL, TargetPath: targetFile(t), DeclaredSize: 100, RangeEnd: 99}}
	start := time.Now()
	w.run()
	if len(host.failed) != 1 {
		t.Fatalf("failed %d, want 1", len(host.failed))
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("read timeout did not abort the stalled body")
	}
}
