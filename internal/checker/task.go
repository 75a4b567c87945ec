package checker

import "fmt"

// FetchTask downloads the inclusive byte range [RangeStart, RangeEnd] of URL
// into TargetPath at the same offsets. RangeEnd -1 means read to the end of
// the body; such a task is never split.
type FetchTask struct {
	URL          string
	TargetPath   string
	ContentType  string
	DeclaredSize int64
	RangeStart   int64
	RangeCursor  int64 // next byte to write
	RangeEnd     int64
	FailureCount int
}

func (t *FetchTask) Bounded() bool {
	return t.RangeEnd >= 0
}

// Remaining is the number of bytes left in a bounded task.
func (t *FetchTask) Remaining() int64 {
	if !t.Bounded() {
		return -1
	}
	return t.RangeEnd - t.RangeCursor + 1
}

func (t *FetchTask) rangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", t.RangeCursor, t.RangeEnd)
}

func (t *FetchTask) String() string {
	if !t.Bounded() {
		return fmt.Sprintf("%s [%d-]", t.URL, t.RangeCursor)
	}
	return fmt.Sprintf("%s [%d-%d]", t.URL, t.RangeCursor, t.RangeEnd)
}

// Partition cuts [0, size) into consecutive inclusive ranges of at least
// minBlock bytes, aiming for one range per thread. An unknown or empty size
// yields one unbounded task.
func Partition(url, target, contentType string, size int64, maxThreads int, minBlock int64) []*FetchTask {
	if size <= 0 {
		return []*FetchTask{{
			URL:          url,
			TargetPath:   target,
			ContentType:  contentType,
			DeclaredSize: size,
			RangeEnd:     -1,
		}}
	}
	if maxThreads < 1 {
		maxThreads = 1
	}
	blockSize := (size + int64(maxThreads) - 1) / int64(maxThreads)
	if blockSize < minBlock {
		blockSize = minBlock
	}
	var tasks []*FetchTask
	for start := int64(0); start < size; {
		end := min(start+blockSize, size-1)
		tasks = append(tasks, &FetchTask{
			URL:          url,
			TargetPath:   target,
			ContentType:  contentType,
			DeclaredSize: size,
			RangeStart:   start,
			RangeCursor:  start,
			RangeEnd:     end,
		})
		start = end + 1
	}
	return tasks
}

// Split hands the upper half of the unwritten range to a new task when more
// than threshold bytes remain. The receiver keeps [cursor, mid].
func (t *FetchTask) Split(threshold int64) *FetchTask {
	if !t.Bounded() || t.RangeEnd-t.RangeCursor <= threshold {
		return nil
	}
	mid := (t.RangeCursor + t.RangeEnd) / 2
	split := &FetchTask{
		URL:          t.URL,
		TargetPath:   t.TargetPath,
		ContentType:  t.ContentType,
		DeclaredSize: t.DeclaredSize,
		RangeStart:   mid + 1,
		RangeCursor:  mid + 1,
		RangeEnd:     t.RangeEnd,
	}
	t.RangeEnd = mid
	return split
}
