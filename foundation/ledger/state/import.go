package state

import (
	"fmt"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
)

// WriteLog writes raw log bytes received from a replica at pos. When final
// is set the data is terminated, the log is reparsed and every view is
// rebuilt. No operation commits between the chunks of one import.
func (s *State) WriteLog(pos uint64, data []byte, final bool) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := pos + uint64(len(data))

	if err := s.store.Grow(end + store.HeaderSize); err != nil {
		return Stats{}, fmt.Errorf("growing log: %w", err)
	}

	if err := s.store.WriteAt(pos, data); err != nil {
		return Stats{}, err
	}

	if !final {
		return Stats{}, nil
	}

	if err := s.store.WriteAt(end, make([]byte, store.HeaderSize)); err != nil {
		return Stats{}, fmt.Errorf("terminating log: %w", err)
	}

	if err := s.store.Refresh(); err != nil {
		return Stats{}, fmt.Errorf("reparsing log: %w", err)
	}

	return s.rebuildLocked()
}
