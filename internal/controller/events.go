package controller

import "sync"

// Event types.
const (
	EventState  = "state"
	EventRedraw = "redraw"
	EventError  = "error"
)

// Event notifies subscribers of a state change or a new plot revision.
type Event struct {
	Type     string `json:"type"`
	State    State  `json:"state"`
	CycleID  string `json:"cycle_id,omitempty"`
	Revision uint64 `json:"revision"`
	Error    string `json:"error,omitempty"`
}

type subscribers struct {
	mu     sync.Mutex
	nextID int
	chans  map[int]chan Event
}

func newSubscribers() *subscribers {
	return &subscribers{chans: make(map[int]chan Event)}
}

func (s *subscribers) add() (int, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ch := make(chan Event, 1)
	s.chans[s.nextID] = ch
	return s.nextID, ch
}

func (s *subscribers) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.chans[id]; ok {
		delete(s.chans, id)
		close(ch)
	}
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chans)
}

// publish never blocks: a full channel has its stale event replaced.
func (s *subscribers) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.chans {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
