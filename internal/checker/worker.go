package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkcheck/internal/utils"
)

// taskHost is the part of the manager a worker talks to.
type taskHost interface {
	requestTask(slot int) *FetchTask
	releaseTask(slot int)
	bytesWritten(task *FetchTask, n int64) bool
	taskFinished(task *FetchTask)
	taskFailed(task *FetchTask, err error)
	HasIdleWorker() bool
	AddTask(task *FetchTask)
}

type worker struct {
	id             int
	host           taskHost
	client         utils.HTTPDoer
	readTimeout    time.Duration
	splitThreshold int64
	maxFailures    int
}

func (w *worker) run() {
	for {
		task := w.host.requestTask(w.id)
		if task == nil {
			return
		}
		w.process(task)
		w.host.releaseTask(w.id)
	}
}

func (w *worker) process(task *FetchTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", "checker/worker").Int("worker", w.id).Str("task", task.String()).Interface("panic", r).Msg("worker recovered from panic")
			w.retry(task, fmt.Errorf("panic: %v", r))
		}
	}()
	err := w.fetch(task)
	switch {
	case err == nil:
		log.Debug().Str("op", "checker/worker").Int("worker", w.id).Str("task", task.String()).Msg("task finished")
		w.host.taskFinished(task)
	case errors.Is(err, errAbandoned):
		log.Debug().Str("op", "checker/worker").Int("worker", w.id).Str("task", task.String()).Msg("task abandoned")
	case errors.Is(err, ErrNotFound):
		log.Warn().Str("op", "checker/worker").Int("worker", w.id).Str("url", task.URL).Err(err).Msg("link not found")
		w.host.taskFailed(task, err)
	default:
		w.retry(task, err)
	}
}

// retry puts the task back on the queue with its cursor intact until it has
// failed maxFailures times.
func (w *worker) retry(task *FetchTask, err error) {
	task.FailureCount++
	if task.FailureCount < w.maxFailures {
		log.Warn().Str("op", "checker/worker").Int("worker", w.id).Str("task", task.String()).Int("failures", task.FailureCount).Err(err).Msg("fetch failed, retrying")
		w.host.AddTask(task)
		return
	}
	log.Warn().Str("op", "checker/worker").Int("worker", w.id).Str("url", task.URL).Int("failures", task.FailureCount).Err(err).Msg("fetch failed permanently")
	w.host.taskFailed(task, err)
}

func (w *worker) fetch(task *FetchTask) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if task.Bounded() {
		req.Header.Set("Range", task.rangeHeader())
	}
	// the timer aborts a connection that stays silent for readTimeout
	timer := time.AfterFunc(w.readTimeout, cancel)
	defer timer.Stop()

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatusCode(resp.StatusCode); err != nil {
		return err
	}
	// a server that ignores Range sends the whole body from byte 0
	if resp.StatusCode != http.StatusPartialContent && task.RangeCursor > 0 {
		timer.Reset(w.readTimeout)
		if _, err := io.CopyN(io.Discard, resp.Body, task.RangeCursor); err != nil {
			return fmt.Errorf("error skipping to offset %d: %w", task.RangeCursor, err)
		}
	}

	file, err := os.OpenFile(task.TargetPath, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening target file: %w", err)
	}
	defer file.Close()

	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		if task.Bounded() && task.RangeCursor > task.RangeEnd {
			return nil
		}
		timer.Reset(w.readTimeout)
		n, readErr := resp.Body.Read(buffer)
		timer.Stop()
		if n > 0 {
			if task.Bounded() {
				n = int(min(int64(n), task.Remaining()))
			}
			if _, err := file.WriteAt(buffer[:n], task.RangeCursor); err != nil {
				return fmt.Errorf("error writing target file: %w", err)
			}
			task.RangeCursor += int64(n)
			if !w.host.bytesWritten(task, int64(n)) {
				return errAbandoned
			}
			if task.Bounded() && task.RangeEnd-task.RangeCursor > w.splitThreshold && w.host.HasIdleWorker() {
				if split := task.Split(w.splitThreshold); split != nil {
					log.Debug().Str("op", "checker/worker").Int("worker", w.id).Str("task", task.String()).Str("split", split.String()).Msg("task split")
					w.host.AddTask(split)
				}
			}
		}
		if readErr == io.EOF {
			if task.Bounded() && task.RangeCursor <= task.RangeEnd {
				return io.ErrUnexpectedEOF
			}
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
