// Package session holds the mutable state of one recording session: the
// capture and playback telemetry, the queued transcription jobs, and the
// form entry describing the conversation being recorded.
package session

import (
	"sync"

	"github.com/snarg/parley/internal/capture"
	"github.com/snarg/parley/internal/playback"
	"github.com/snarg/parley/internal/queue"
)

// Entry describes the conversation currently being recorded.
type Entry struct {
	StudentName      string `json:"student_name"`
	ConversationType string `json:"conversation_type"`
	Date             string `json:"date"`
}

// Snapshot is a point-in-time copy of the whole session.
type Snapshot struct {
	Version   uint64                 `json:"version"`
	Entry     Entry                  `json:"entry"`
	Recording capture.RecordingState `json:"recording"`
	Playback  playback.PlaybackState `json:"playback"`
	Jobs      []queue.Job            `json:"jobs"`
}

// State is the session's single source of truth. Engines and the queue
// push whole-substate replacements into it; readers take snapshots.
type State struct {
	mu        sync.Mutex
	entry     Entry
	recording capture.RecordingState
	playback  playback.PlaybackState
	jobs      []queue.Job
	version   uint64
	onChange  func(Snapshot)
}

// New creates an empty session state. onChange, if non-nil, is invoked
// after every mutation with the resulting snapshot. It runs under the
// state lock and must not call back into State.
func New(onChange func(Snapshot)) *State {
	return &State{onChange: onChange}
}

// SetEntry replaces the conversation entry.
func (s *State) SetEntry(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = e
	s.bumpLocked()
}

// SetRecording replaces the capture telemetry.
func (s *State) SetRecording(rs capture.RecordingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = rs
	s.bumpLocked()
}

// SetPlayback replaces the playback telemetry.
func (s *State) SetPlayback(ps playback.PlaybackState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback = ps
	s.bumpLocked()
}

// SetJobs replaces the job list.
func (s *State) SetJobs(jobs []queue.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = jobs
	s.bumpLocked()
}

// Entry returns the current conversation entry.
func (s *State) Entry() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry
}

// Snapshot returns a copy of the whole session.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ResetSession returns the session to its post-startup shape: entry and
// both telemetry substates are zeroed. Queued jobs survive the reset so
// background transcriptions keep their visibility.
func (s *State) ResetSession() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = Entry{}
	s.recording = capture.RecordingState{}
	s.playback = playback.PlaybackState{}
	s.bumpLocked()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	jobs := make([]queue.Job, len(s.jobs))
	copy(jobs, s.jobs)
	return Snapshot{
		Version:   s.version,
		Entry:     s.entry,
		Recording: s.recording,
		Playback:  s.playback,
		Jobs:      jobs,
	}
}

func (s *State) bumpLocked() {
	s.version++
	if s.onChange != nil {
		s.onChange(s.snapshotLocked())
	}
}
