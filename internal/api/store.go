package api

import (
	"slices"
	"sync"

	"github.com/samcharles93/loom/internal/inference"
)

// DefaultRetain bounds how many finished generations are kept for lookup.
const DefaultRetain = 256

type generationRecord struct {
	session  *inference.Session
	response GenerateResponse
	done     bool
}

// GenerationStore tracks running generations so they can be cancelled, and
// keeps the most recent finished ones for lookup. The oldest finished record
// is dropped once more than retain are held.
type GenerationStore struct {
	mu       sync.Mutex
	records  map[string]*generationRecord
	finished []string
	retain   int
}

func NewGenerationStore(retain int) *GenerationStore {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &GenerationStore{
		records: make(map[string]*generationRecord),
		retain:  retain,
	}
}

// Start registers a running session under its id.
func (s *GenerationStore) Start(sess *inference.Session, resp GenerateResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sess.ID()] = &generationRecord{session: sess, response: resp}
}

// Finish records the final response and releases the session.
func (s *GenerationStore) Finish(resp GenerateResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[resp.ID]
	if !ok {
		rec = &generationRecord{}
		s.records[resp.ID] = rec
	}
	rec.session = nil
	rec.response = resp
	if !rec.done {
		rec.done = true
		s.finished = append(s.finished, resp.ID)
	}
	for len(s.finished) > s.retain {
		delete(s.records, s.finished[0])
		s.finished = s.finished[1:]
	}
}

func (s *GenerationStore) Get(id string) (GenerateResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return GenerateResponse{}, false
	}
	return rec.response, true
}

// Cancel asks a running generation to stop. The session observes the
// request at its next step; the returned snapshot reports it as cancelled.
// Finished generations are returned unchanged.
func (s *GenerationStore) Cancel(id string) (GenerateResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return GenerateResponse{}, false
	}
	resp := rec.response
	if !rec.done && rec.session != nil {
		rec.session.Cancel()
		resp.Status = statusCancelled
		resp.StopReason = string(inference.StopCancelled)
	}
	return resp, true
}

func (s *GenerationStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if !rec.done {
		return ErrStillRunning
	}
	delete(s.records, id)
	if i := slices.Index(s.finished, id); i >= 0 {
		s.finished = slices.Delete(s.finished, i, i+1)
	}
	return nil
}

// Running reports how many generations have not finished.
func (s *GenerationStore) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if !rec.done {
			n++
		}
	}
	return n
}
