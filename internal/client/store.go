// Package client holds the single in-memory projection of the ledger that
// presentation layers render from. Every mutation re-fetches the affected
// collections instead of patching derived state locally, so the projection
// never drifts from the source of truth.
package client

import (
	"sync"
	"time"

	"github.com/lmoretti/punchcard/internal/bundle"
	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/tracker"
)

// State is an immutable snapshot, swapped wholesale on every refresh.
type State struct {
	Tasks     []models.Task
	Entries   []models.TimeEntryDetail
	Running   *models.TimeEntryDetail
	Artifacts []models.Artifact
}

type Store struct {
	svc     *tracker.Service
	bundles *bundle.Service

	mu     sync.RWMutex
	state  State
	filter models.EntryFilter

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int

	done      chan struct{}
	closeOnce sync.Once
}

// NewStore builds the store and starts the one-second re-notify tick. The
// tick performs no I/O; it only lets subscribers re-render elapsed time
// while an entry is running. Call Close to stop it.
func NewStore(svc *tracker.Service, bundles *bundle.Service) *Store {
	s := &Store{
		svc:     svc,
		bundles: bundles,
		subs:    make(map[int]func(State)),
		done:    make(chan struct{}),
	}
	go s.tick()
	return s
}

func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Subscribe registers fn and returns its unsubscribe func. Subscribers run
// synchronously after each state replacement.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetEntryFilter narrows the entries collection and re-fetches it.
func (s *Store) SetEntryFilter(filter models.EntryFilter) error {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
	return s.refresh(true, true, false)
}

// Refresh re-fetches everything.
func (s *Store) Refresh() error {
	return s.refresh(true, true, true)
}

func (s *Store) refresh(tasks, entries, artifacts bool) error {
	s.mu.Lock()
	next := s.state
	filter := s.filter
	s.mu.Unlock()

	if tasks {
		list, err := s.svc.ListTasks(false)
		if err != nil {
			return err
		}
		next.Tasks = list
	}
	if entries {
		list, err := s.svc.ListEntries(filter)
		if err != nil {
			return err
		}
		next.Entries = list

		running, err := s.svc.RunningEntry()
		if err != nil {
			return err
		}
		next.Running = running
	}
	if artifacts {
		list, err := s.svc.ListArtifacts(nil)
		if err != nil {
			return err
		}
		next.Artifacts = list
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.notify(next)
	return nil
}

func (s *Store) notify(state State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (s *Store) tick() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.RLock()
			running := s.state.Running
			state := s.state
			s.mu.RUnlock()
			if running != nil {
				s.notify(state)
			}
		}
	}
}

// ListTasks is a read-through for views that need archived tasks, which
// the projection deliberately leaves out.
func (s *Store) ListTasks(includeArchived bool) ([]models.Task, error) {
	return s.svc.ListTasks(includeArchived)
}

// --- mutations; each one re-fetches the collections it touched ---

func (s *Store) StartEntry(taskID, memo *string) (*models.TimeEntry, error) {
	entry, err := s.svc.StartEntry(taskID, memo)
	if err != nil {
		return nil, err
	}
	return entry, s.refresh(false, true, false)
}

func (s *Store) StopEntry(id string, memo *string) (*models.TimeEntry, error) {
	entry, err := s.svc.StopEntry(id, memo)
	if err != nil {
		return nil, err
	}
	return entry, s.refresh(false, true, false)
}

func (s *Store) UpdateEntry(id string, patch models.UpdateEntry) (*models.TimeEntry, error) {
	entry, err := s.svc.UpdateEntry(id, patch)
	if err != nil {
		return nil, err
	}
	return entry, s.refresh(false, true, false)
}

func (s *Store) DeleteEntry(id string) error {
	if err := s.svc.DeleteEntry(id); err != nil {
		return err
	}
	return s.refresh(false, true, false)
}

func (s *Store) CreateTask(input models.CreateTask) (*models.Task, error) {
	task, err := s.svc.CreateTask(input)
	if err != nil {
		return nil, err
	}
	return task, s.refresh(true, false, false)
}

func (s *Store) UpdateTask(id string, patch models.UpdateTask) (*models.Task, error) {
	task, err := s.svc.UpdateTask(id, patch)
	if err != nil {
		return nil, err
	}
	// Entries embed their task, so both collections are stale.
	return task, s.refresh(true, true, false)
}

func (s *Store) ArchiveTask(id string, archived bool) error {
	if err := s.svc.ArchiveTask(id, archived); err != nil {
		return err
	}
	return s.refresh(true, false, false)
}

func (s *Store) DeleteFolder(id string) error {
	if err := s.svc.DeleteFolder(id); err != nil {
		return err
	}
	return s.refresh(true, false, false)
}

func (s *Store) CreateArtifact(input models.CreateArtifact, entryID *string) (*models.Artifact, error) {
	artifact, err := s.svc.CreateArtifact(input, entryID)
	if err != nil {
		return nil, err
	}
	return artifact, s.refresh(false, entryID != nil, true)
}

func (s *Store) LinkArtifact(entryID, artifactID string) error {
	if err := s.svc.LinkArtifact(entryID, artifactID); err != nil {
		return err
	}
	return s.refresh(false, true, false)
}

func (s *Store) UnlinkArtifact(entryID, artifactID string) error {
	if err := s.svc.UnlinkArtifact(entryID, artifactID); err != nil {
		return err
	}
	return s.refresh(false, true, false)
}

func (s *Store) DeleteArtifact(id string) error {
	if err := s.svc.DeleteArtifact(id); err != nil {
		return err
	}
	return s.refresh(false, true, true)
}

// ImportBundle applies a bundle and reloads the whole projection: after an
// import the ledger may have changed arbitrarily, so incremental patching
// is not worth trusting.
func (s *Store) ImportBundle(b *models.Bundle, merge bool) (*models.ImportResult, error) {
	result, err := s.bundles.Import(b, merge)
	if err != nil {
		return nil, err
	}
	return result, s.Refresh()
}
