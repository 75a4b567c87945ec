package checker

import "time"

type State int

const (
	Pending State = iota
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "pending"
}

// LinkRecord is the per-URL view handed to listeners and queries. Values are
// snapshots; the manager owns the live copy.
type LinkRecord struct {
	URL             string
	ContentType     string
	DeclaredSize    int64 // -1 when the server did not report a length
	StatusCode      int
	BytesDownloaded int64
	StartedAt       time.Time
	Elapsed         time.Duration
	State           State
}

func newRecord(url string) *LinkRecord {
	return &LinkRecord{URL: url, DeclaredSize: -1, State: Pending}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
