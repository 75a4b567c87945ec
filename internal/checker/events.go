package checker

import "sync"

// Listener receives run notifications on the goroutine that detected them.
// Implementations must be comparable (pointer receivers) so they can be
// removed again.
type Listener interface {
	InputURLBroken()
	NoLinkFound()
	LinkDownloading(rec LinkRecord)
	LinkCheckPassed(rec LinkRecord)
	LinkCheckFailed(rec LinkRecord)
	AllLinksChecked()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnInputURLBroken  func()
	OnNoLinkFound     func()
	OnLinkDownloading func(LinkRecord)
	OnLinkCheckPassed func(LinkRecord)
	OnLinkCheckFailed func(LinkRecord)
	OnAllLinksChecked func()
}

func (f *ListenerFuncs) InputURLBroken() {
	if f.OnInputURLBroken != nil {
		f.OnInputURLBroken()
	}
}

func (f *ListenerFuncs) NoLinkFound() {
	if f.OnNoLinkFound != nil {
		f.OnNoLinkFound()
	}
}

func (f *ListenerFuncs) LinkDownloading(rec LinkRecord) {
	if f.OnLinkDownloading != nil {
		f.OnLinkDownloading(rec)
	}
}

func (f *ListenerFuncs) LinkCheckPassed(rec LinkRecord) {
	if f.OnLinkCheckPassed != nil {
		f.OnLinkCheckPassed(rec)
	}
}

func (f *ListenerFuncs) LinkCheckFailed(rec LinkRecord) {
	if f.OnLinkCheckFailed != nil {
		f.OnLinkCheckFailed(rec)
	}
}

func (f *ListenerFuncs) AllLinksChecked() {
	if f.OnAllLinksChecked != nil {
		f.OnAllLinksChecked()
	}
}

type listenerSet struct {
	mu   sync.RWMutex
	list []Listener
}

func (s *listenerSet) add(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, l)
}

func (s *listenerSet) remove(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.list {
		if existing == l {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

func (s *listenerSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
}

// emit calls fn for a snapshot of the listeners, outside the lock, so a
// listener may add or remove listeners while being notified.
func (s *listenerSet) emit(fn func(Listener)) {
	s.mu.RLock()
	snapshot := s.list
	s.mu.RUnlock()
	for _, l := range snapshot {
		fn(l)
	}
}
