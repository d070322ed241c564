package authstore

import "sync"

// Subscribe returns a channel that receives the current state immediately
// and every state change after it, plus a function that ends the
// subscription. The channel holds one pending state: a reader that falls
// behind skips intermediate states and sees the latest one. The channel is
// closed by the cancel function or by Close.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}

	return ch, cancel
}

// offer delivers st without blocking, replacing an unread state.
// Only the store sends on subscriber channels, always under s.mu.
func offer(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}
	ch <- st
}
