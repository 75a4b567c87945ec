package checker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkcheck/internal/extract"
	"github.com/tanq16/linkcheck/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Manager downloads the root page, checks every link on it with a fixed pool
// of workers and keeps the per-link state.
type Manager struct {
	rootURL    string
	baseURL    string
	maxWorkers int
	cfg        utils.Config
	runID      string
	runDir     string
	client     utils.HTTPDoer
	resolver   *Resolver
	logger     zerolog.Logger

	ctx    context.Context // cancelled by Stop; bounds metadata probes only
	cancel context.CancelFunc

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []*FetchTask
	slots      []*FetchTask // task held by each worker, nil when idle
	chunks     map[string]map[*FetchTask]struct{}
	records    map[string]*LinkRecord
	order      []string // discovered links in extraction order
	targets    map[string]string
	started    bool
	running    bool
	finished   bool
	startTime  time.Time
	elapsed    time.Duration
	downloaded int64

	// held for writing across a terminal transition and its events, for
	// reading while a LinkDownloading event is delivered
	transitionMu sync.RWMutex
	listeners    listenerSet
	workers      errgroup.Group
	probes       sync.WaitGroup
}

// NewManager prepares a run for rootURL. A worker count outside
// [MinThreads, MaxThreads] is ignored with a warning and the configured
// count is used instead.
func NewManager(rootURL string, maxWorkers int, cfg utils.Config) *Manager {
	root := extract.NormalizeURL(rootURL)
	runID := uuid.NewString()
	logger := log.With().Str("op", "checker/manager").Str("run", runID).Logger()
	if maxWorkers < utils.MinThreads || maxWorkers > utils.MaxThreads {
		logger.Warn().Int("workers", maxWorkers).Int("using", cfg.MaxThreads).Msgf("worker count should be between %d and %d", utils.MinThreads, utils.MaxThreads)
		maxWorkers = min(max(cfg.MaxThreads, utils.MinThreads), utils.MaxThreads)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		rootURL:    root,
		baseURL:    extract.BaseURL(root),
		maxWorkers: maxWorkers,
		cfg:        cfg,
		runID:      runID,
		runDir:     filepath.Join(cfg.TempDir, utils.TempDirPrefix+runID),
		client:     utils.NewHTTPClient(cfg.HTTPClientConfig()),
		resolver:   NewResolver(utils.NewHTTPClient(cfg.ProbeClientConfig()), cfg.ProbeMaxRetries),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		slots:      make([]*FetchTask, maxWorkers),
		chunks:     make(map[string]map[*FetchTask]struct{}),
		records:    make(map[string]*LinkRecord),
		targets:    make(map[string]string),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Manager) RootURL() string {
	return m.rootURL
}

func (m *Manager) RunID() string {
	return m.runID
}

func (m *Manager) MaxWorkers() int {
	return m.maxWorkers
}

// TempDir is the directory holding this run's downloads.
func (m *Manager) TempDir() string {
	return m.runDir
}

// Listeners may be changed at any time, including from inside a callback.
func (m *Manager) AddListener(l Listener) {
	m.listeners.add(l)
}

func (m *Manager) RemoveListener(l Listener) {
	m.listeners.remove(l)
}

func (m *Manager) ClearListeners() {
	m.listeners.clear()
}

// Start probes the root URL, queues its download and launches the workers.
// It may be called once; failures after this point surface as events.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.running = true
	m.startTime = time.Now()
	m.elapsed = 0
	m.records[m.rootURL] = newRecord(m.rootURL)
	m.mu.Unlock()

	if err := os.MkdirAll(m.runDir, 0755); err != nil {
		m.Stop()
		return fmt.Errorf("error creating temp directory: %w", err)
	}
	m.logger.Info().Str("url", m.rootURL).Int("workers", m.maxWorkers).Msg("starting link check")

	meta := m.resolver.Resolve(m.ctx, m.rootURL)
	m.mu.Lock()
	root := m.records[m.rootURL]
	root.StatusCode = meta.StatusCode
	root.ContentType = meta.ContentType
	root.DeclaredSize = meta.ContentLength
	m.mu.Unlock()
	if !isSuccess(meta.StatusCode) {
		m.logger.Warn().Str("url", m.rootURL).Int("status", meta.StatusCode).Msg("input URL is broken")
		m.rootBroken()
		return nil
	}
	if err := m.schedule(m.rootURL, meta); err != nil {
		m.logger.Error().Err(err).Msg("cannot schedule input URL")
		m.rootBroken()
		return nil
	}

	for i := 0; i < m.maxWorkers; i++ {
		w := &worker{
			id:             i,
			host:           m,
			client:         m.client,
			readTimeout:    m.cfg.ReadTimeout,
			splitThreshold: m.cfg.SplitThreshold,
			maxFailures:    m.cfg.MaxFailures,
		}
		m.workers.Go(func() error {
			w.run()
			return nil
		})
	}
	return nil
}

// Stop ends the run. Workers finish their current read, then exit. Safe to
// call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.running {
		m.running = false
		m.elapsed = time.Since(m.startTime)
		m.cond.Broadcast()
		m.logger.Debug().Dur("elapsed", m.elapsed).Msg("stopped")
	}
	m.mu.Unlock()
	m.cancel()
}

// Wait blocks until every worker and pending probe has returned.
func (m *Manager) Wait() {
	m.workers.Wait()
	m.probes.Wait()
}

// Cleanup removes the run's downloaded files. Call it after Wait.
func (m *Manager) Cleanup() error {
	if err := os.RemoveAll(m.runDir); err != nil {
		return fmt.Errorf("error removing temp directory: %w", err)
	}
	return nil
}

// AddTask queues a task and wakes one waiting worker. Tasks for links that
// are no longer pending are dropped.
func (m *Manager) AddTask(task *FetchTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addTaskLocked(task)
	m.cond.Signal()
}

func (m *Manager) addTaskLocked(task *FetchTask) bool {
	rec, ok := m.records[task.URL]
	if !ok || rec.State != Pending {
		return false
	}
	set, ok := m.chunks[task.URL]
	if !ok {
		set = make(map[*FetchTask]struct{})
		m.chunks[task.URL] = set
	}
	set[task] = struct{}{}
	m.queue = append(m.queue, task)
	return true
}

func (m *Manager) HasIdleWorker() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.slots {
		if t == nil {
			return true
		}
	}
	return false
}

// requestTask blocks until a task is available or the run stops, in which
// case it returns nil.
func (m *Manager) requestTask(slot int) *FetchTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = nil
	for {
		for m.running && len(m.queue) == 0 {
			m.cond.Wait()
		}
		if !m.running {
			return nil
		}
		task := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		rec, ok := m.records[task.URL]
		if !ok || rec.State != Pending {
			continue
		}
		if rec.StartedAt.IsZero() {
			rec.StartedAt = time.Now()
		}
		m.slots[slot] = task
		return task
	}
}

func (m *Manager) releaseTask(slot int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = nil
}

// bytesWritten records progress and reports whether the worker should keep
// going with this task.
func (m *Manager) bytesWritten(task *FetchTask, n int64) bool {
	m.transitionMu.RLock()
	defer m.transitionMu.RUnlock()
	m.mu.Lock()
	rec, ok := m.records[task.URL]
	if !m.running || !ok || rec.State != Pending {
		m.mu.Unlock()
		return false
	}
	m.downloaded += n
	rec.BytesDownloaded += n
	if rec.DeclaredSize >= 0 && rec.BytesDownloaded > rec.DeclaredSize {
		rec.BytesDownloaded = rec.DeclaredSize
	}
	rec.Elapsed = time.Since(rec.StartedAt)
	snapshot := *rec
	isRoot := task.URL == m.rootURL
	m.mu.Unlock()
	if !isRoot {
		m.listeners.emit(func(l Listener) { l.LinkDownloading(snapshot) })
	}
	return true
}

func (m *Manager) taskFinished(task *FetchTask) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	set := m.chunks[task.URL]
	delete(set, task)
	if len(set) > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.chunks, task.URL)
	m.mu.Unlock()

	if task.URL == m.rootURL {
		m.rootFinished()
		return
	}
	m.settle(task.URL, Done, 0)
}

func (m *Manager) taskFailed(task *FetchTask, err error) {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return
	}
	if task.URL == m.rootURL {
		m.logger.Warn().Str("url", task.URL).Err(err).Msg("input URL download failed")
		m.rootBroken()
		return
	}
	status := 0
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		status = statusErr.Code
	}
	m.settle(task.URL, Failed, status)
}

// settle moves a pending link to its terminal state, notifies listeners and
// ends the run once no link is pending.
func (m *Manager) settle(url string, state State, status int) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	rec, ok := m.records[url]
	if !m.running || !ok || rec.State != Pending {
		m.mu.Unlock()
		return
	}
	rec.State = state
	if status != 0 {
		rec.StatusCode = status
	}
	if state == Done && rec.DeclaredSize >= 0 {
		rec.BytesDownloaded = rec.DeclaredSize
	}
	if !rec.StartedAt.IsZero() {
		rec.Elapsed = time.Since(rec.StartedAt)
	}
	delete(m.chunks, url)
	snapshot := *rec
	allChecked := false
	if !m.finished && m.pendingLocked() == 0 {
		m.finished = true
		allChecked = true
	}
	m.mu.Unlock()

	if state == Done {
		m.logger.Info().Str("url", url).Msg("link checked OK")
		m.listeners.emit(func(l Listener) { l.LinkCheckPassed(snapshot) })
	} else {
		m.logger.Info().Str("url", url).Int("status", snapshot.StatusCode).Msg("link is broken")
		m.listeners.emit(func(l Listener) { l.LinkCheckFailed(snapshot) })
	}
	if allChecked {
		m.logger.Info().Msg("all links are checked")
		m.listeners.emit(func(l Listener) { l.AllLinksChecked() })
		m.Stop()
	}
}

// pendingLocked counts discovered links that have not settled.
func (m *Manager) pendingLocked() int {
	n := 0
	for _, url := range m.order {
		if m.records[url].State == Pending {
			n++
		}
	}
	return n
}

func (m *Manager) rootBroken() {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	m.finished = true
	m.records[m.rootURL].State = Failed
	m.mu.Unlock()
	m.listeners.emit(func(l Listener) { l.InputURLBroken() })
	m.Stop()
}

func (m *Manager) rootFinished() {
	m.mu.Lock()
	root := m.records[m.rootURL]
	root.State = Done
	if root.DeclaredSize >= 0 {
		root.BytesDownloaded = root.DeclaredSize
	}
	root.Elapsed = time.Since(root.StartedAt)
	contentType := root.ContentType
	target := m.targets[m.rootURL]
	m.mu.Unlock()

	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		m.logger.Info().Str("content_type", contentType).Msg("input URL is not an HTML page, nothing to check")
		m.finishRun()
		return
	}
	m.logger.Info().Msg("input URL is downloaded, checking the links inside")
	data, err := os.ReadFile(target)
	if err != nil {
		m.logger.Error().Err(err).Msg("cannot load downloaded page")
		m.rootBroken()
		return
	}
	links := extract.Links(data, contentType, m.baseURL)

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	var fresh []string
	for _, link := range links {
		if _, ok := m.records[link]; ok {
			continue
		}
		m.records[link] = newRecord(link)
		m.order = append(m.order, link)
		fresh = append(fresh, link)
	}
	if len(fresh) == 0 {
		m.finished = true
	}
	m.mu.Unlock()

	if len(fresh) == 0 {
		m.logger.Info().Msg("no link found")
		m.listeners.emit(func(l Listener) { l.NoLinkFound() })
		m.Stop()
		return
	}
	for _, link := range fresh {
		m.probes.Add(1)
		m.resolver.ResolveAsync(m.ctx, link, func(meta Metadata) {
			defer m.probes.Done()
			m.linkResolved(link, meta)
		})
	}
}

// finishRun ends a run that had nothing to check.
func (m *Manager) finishRun() {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	m.finished = true
	m.mu.Unlock()
	m.listeners.emit(func(l Listener) { l.AllLinksChecked() })
	m.Stop()
}

func (m *Manager) linkResolved(link string, meta Metadata) {
	m.mu.Lock()
	rec := m.records[link]
	if !m.running || rec.State != Pending {
		m.mu.Unlock()
		return
	}
	rec.StatusCode = meta.StatusCode
	rec.ContentType = meta.ContentType
	rec.DeclaredSize = meta.ContentLength
	m.mu.Unlock()

	if !isSuccess(meta.StatusCode) {
		m.settle(link, Failed, 0)
		return
	}
	if err := m.schedule(link, meta); err != nil {
		m.logger.Error().Str("url", link).Err(err).Msg("cannot schedule link")
		m.settle(link, Failed, 0)
		return
	}
	m.logger.Debug().Str("url", link).Int64("size", meta.ContentLength).Msg("check link")
}

// schedule creates the target file for url and queues its partitioned tasks.
func (m *Manager) schedule(url string, meta Metadata) error {
	target := filepath.Join(m.runDir, uuid.NewString()+".tmp")
	file, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("error creating target file: %w", err)
	}
	file.Close()
	tasks := Partition(url, target, meta.ContentType, meta.ContentLength, m.maxWorkers, m.cfg.MinBlockSize)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.targets[url] = target
	for _, task := range tasks {
		m.addTaskLocked(task)
	}
	m.cond.Broadcast()
	return nil
}

// TotalLinks counts the links discovered on the root page.
func (m *Manager) TotalLinks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

func (m *Manager) WorkingLinks() int {
	return m.countState(Done)
}

func (m *Manager) BrokenLinks() int {
	return m.countState(Failed)
}

func (m *Manager) countState(state State) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, url := range m.order {
		if m.records[url].State == state {
			n++
		}
	}
	return n
}

// CheckingLinks counts distinct URLs currently held by workers.
func (m *Manager) CheckingLinks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := make(map[string]struct{})
	for _, t := range m.slots {
		if t != nil {
			urls[t.URL] = struct{}{}
		}
	}
	return len(urls)
}

// Elapsed is the run time so far, frozen once the run stops.
func (m *Manager) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return time.Since(m.startTime)
	}
	return m.elapsed
}

// DownloadedBytes includes the root page.
func (m *Manager) DownloadedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloaded
}

// Records returns the discovered links in extraction order.
func (m *Manager) Records() []LinkRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LinkRecord, 0, len(m.order))
	for _, url := range m.order {
		out = append(out, *m.records[url])
	}
	return out
}

func (m *Manager) Record(url string) (LinkRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[url]
	if !ok {
		return LinkRecord{}, false
	}
	return *rec, true
}

// Root returns the record of the input URL.
func (m *Manager) Root() LinkRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[m.rootURL]; ok {
		return *rec
	}
	return *newRecord(m.rootURL)
}
