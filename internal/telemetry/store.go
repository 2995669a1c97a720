package telemetry

import (
	"sync"
	"time"
)

// Store holds the session's activity counters and timers. All mutation goes
// through named methods; none of them can fail. The store is advisory only,
// so mutators take a single lock and do plain field updates.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	runCount       int
	errorCount     int
	successfulRuns int
	keyPresses     int
	clicks         int
	mouseMoves     int
	modifications  int

	completedQuestions int

	sessionStart time.Time
	lastActivity time.Time
	focusStart   time.Time
	focused      bool

	codingTimeMs      int64
	focusTimeMs       int64
	focusStreakSec    int
	maxFocusStreakSec int

	scoreHistory    []int
	lastScore       *ScoreResult
	lastScoreCode   string
	lastScoreOutput string
}

// NewStore creates a store with the session clock started at now().
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock creates a store using the given clock. Tests inject a
// virtual clock here.
func NewStoreWithClock(now func() time.Time) *Store {
	s := &Store{now: now}
	t := now()
	s.sessionStart = t
	s.lastActivity = t
	s.focusStart = t
	s.focused = true
	return s
}

func (s *Store) touch() {
	s.lastActivity = s.now()
}

// RecordKeyPress registers one keystroke.
func (s *Store) RecordKeyPress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyPresses++
	s.touch()
}

// RecordClick registers one pointer click.
func (s *Store) RecordClick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks++
	s.touch()
}

// RecordMouseMove registers one pointer movement event.
func (s *Store) RecordMouseMove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mouseMoves++
	s.touch()
}

// RecordModification registers one code edit.
func (s *Store) RecordModification() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modifications++
	s.touch()
}

// RecordRun registers one execution attempt and its outcome.
func (s *Store) RecordRun(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCount++
	if success {
		s.successfulRuns++
	} else {
		s.errorCount++
	}
	s.touch()
}

// RecordFocusGained marks the window as focused and restarts the focus timer.
func (s *Store) RecordFocusGained() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused = true
	s.focusStart = s.now()
}

// RecordFocusLost marks the window as blurred. The focus streak resets here;
// accumulated coding time is kept (the two counters are independent).
func (s *Store) RecordFocusLost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused = false
	s.focusStreakSec = 0
}

// RecordCompleted advances the completed-question count.
func (s *Store) RecordCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completedQuestions++
}

// AppendScore pushes one overall score onto the session history.
func (s *Store) AppendScore(overall int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreHistory = append(s.scoreHistory, overall)
}

// SetLastScore stores the most recent structured score together with the code
// and output it was produced from.
func (s *Store) SetLastScore(score *ScoreResult, code, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastScore = score
	s.lastScoreCode = code
	s.lastScoreOutput = output
}

// Tick is the 1-second periodic transition. While focused the streak and
// focus time advance; coding time advances only when the last input activity
// falls inside ActivityWindow.
func (s *Store) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.focused {
		return
	}
	s.focusStreakSec++
	if s.focusStreakSec > s.maxFocusStreakSec {
		s.maxFocusStreakSec = s.focusStreakSec
	}
	s.focusTimeMs += 1000
	if s.now().Sub(s.lastActivity) <= ActivityWindow {
		s.codingTimeMs += 1000
	}
}

// Reset returns the store to its initial state with a fresh session start.
// Test/debug use only. Fields are cleared individually so the held mutex is
// never overwritten.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runCount = 0
	s.errorCount = 0
	s.successfulRuns = 0
	s.keyPresses = 0
	s.clicks = 0
	s.mouseMoves = 0
	s.modifications = 0
	s.completedQuestions = 0

	t := s.now()
	s.sessionStart = t
	s.lastActivity = t
	s.focusStart = t
	s.focused = true

	s.codingTimeMs = 0
	s.focusTimeMs = 0
	s.focusStreakSec = 0
	s.maxFocusStreakSec = 0

	s.scoreHistory = nil
	s.lastScore = nil
	s.lastScoreCode = ""
	s.lastScoreOutput = ""
}

// Snapshot returns an immutable copy of the current state. All counters are
// clamped non-negative.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		RunCount:           clampNonNeg(s.runCount),
		ErrorCount:         clampNonNeg(s.errorCount),
		SuccessfulRuns:     clampNonNeg(s.successfulRuns),
		Modifications:      clampNonNeg(s.modifications),
		KeyPresses:         clampNonNeg(s.keyPresses),
		Clicks:             clampNonNeg(s.clicks),
		MouseMoves:         clampNonNeg(s.mouseMoves),
		CompletedQuestions: clampNonNeg(s.completedQuestions),
		SessionStart:       s.sessionStart,
		LastActivity:       s.lastActivity,
		FocusStart:         s.focusStart,
		CodingTimeMs:       int64(clampNonNeg(int(s.codingTimeMs))),
		FocusTimeMs:        int64(clampNonNeg(int(s.focusTimeMs))),
		FocusStreakSec:     clampNonNeg(s.focusStreakSec),
		MaxFocusStreakSec:  clampNonNeg(s.maxFocusStreakSec),
		LastScoreCode:      s.lastScoreCode,
		LastScoreOutput:    s.lastScoreOutput,
	}

	if s.runCount > 0 {
		snap.SuccessRate = int(float64(s.successfulRuns)/float64(s.runCount)*100 + 0.5)
	}
	if len(s.scoreHistory) > 0 {
		snap.ScoreHistory = append([]int(nil), s.scoreHistory...)
	}
	if s.lastScore != nil {
		scoreCopy := *s.lastScore
		snap.LastScore = &scoreCopy
	}
	return snap
}

func clampNonNeg(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
