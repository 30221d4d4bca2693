package models

import "fmt"

// NibbleOutcome is the terminal or in-progress value of one status-word task.
type NibbleOutcome uint8

const (
	// NibbleNotStarted indicates the task has never been attempted.
	NibbleNotStarted NibbleOutcome = 0
	// MaxRetry is the retry ceiling; a nibble value in [1, MaxRetry-1] counts
	// failed attempts, MaxRetry itself means Succeeded.
	MaxRetry NibbleOutcome = 7
	// NibbleSucceeded marks the task complete.
	NibbleSucceeded NibbleOutcome = MaxRetry
	// NibbleIgnored marks the task skipped for policy reasons; counts as terminal.
	NibbleIgnored NibbleOutcome = 8
)

// IsTerminal reports whether this nibble value will not be revisited by the
// pipeline on a future tick.
func (n NibbleOutcome) IsTerminal() bool {
	return n == NibbleSucceeded || n == NibbleIgnored
}

// IsFailed reports whether this nibble represents an exhausted or in-progress
// failure count (1..MaxRetry-1).
func (n NibbleOutcome) IsFailed() bool {
	return n > NibbleNotStarted && n < NibbleSucceeded
}

// VideoTaskCount is the number of nibbles packed into a video status word.
const VideoTaskCount = 5

// PageTaskCount is the number of nibbles packed into a page status word.
const PageTaskCount = 5

// Video-level task indexes.
const (
	VideoTaskPoster = iota
	VideoTaskNFO
	VideoTaskUploaderAsset // avatar for plain videos, tvshow.nfo for bangumi
	VideoTaskUploaderMeta
	VideoTaskPages
)

// Page-level task indexes.
const (
	PageTaskThumbnail = iota
	PageTaskPayload
	PageTaskNFO
	PageTaskDanmaku
	PageTaskSubtitles
)

// StatusWord packs five 4-bit nibbles into a uint32, one per sub-task. Nibble i
// occupies bits [4i, 4i+4). Nibble values are NibbleOutcome in the range
// 0..8, which fits a 4-bit nibble (0..15); a uint32 has eight 4-bit lanes
// and five of them are used.
type StatusWord uint32

const nibbleBits = 4
const nibbleMask = 0xF

// Get returns the outcome stored in nibble i (0-indexed).
func (w StatusWord) Get(i int) NibbleOutcome {
	return NibbleOutcome((uint32(w) >> (i * nibbleBits)) & nibbleMask)
}

// Set returns a new StatusWord with nibble i replaced by v. It does not
// mutate the receiver; callers persist the returned value.
func (w StatusWord) Set(i int, v NibbleOutcome) StatusWord {
	shift := uint(i * nibbleBits)
	cleared := uint32(w) &^ (uint32(nibbleMask) << shift)
	return StatusWord(cleared | (uint32(v&nibbleMask) << shift))
}

// Advance computes the next nibble value for task i given an outcome and
// returns the updated word. succeeded sets NibbleSucceeded, ignored sets
// NibbleIgnored, and a plain failure increments the retry counter, capping
// just below NibbleSucceeded so it never collides with a real success.
func (w StatusWord) Advance(i int, outcome TaskOutcome) StatusWord {
	switch outcome {
	case OutcomeSucceeded:
		return w.Set(i, NibbleSucceeded)
	case OutcomeIgnored:
		return w.Set(i, NibbleIgnored)
	case OutcomeRiskControl:
		return w
	case OutcomeFailed:
		cur := w.Get(i)
		next := cur + 1
		if next >= NibbleSucceeded {
			next = NibbleSucceeded - 1
		}
		return w.Set(i, next)
	case OutcomeFailedTerminal:
		return w.Set(i, NibbleSucceeded-1)
	default:
		return w
	}
}

// IsTerminal reports whether every nibble in the word is Succeeded or Ignored.
func (w StatusWord) IsTerminal(taskCount int) bool {
	for i := range taskCount {
		if !w.Get(i).IsTerminal() {
			return false
		}
	}
	return true
}

// ResetStatusWord returns the zero status word (all nibbles NotStarted).
func ResetStatusWord() StatusWord {
	return StatusWord(0)
}

// TerminalStatusWord returns the status word value with the first taskCount
// nibbles all set to NibbleSucceeded, useful as a query sentinel for "fully done".
func TerminalStatusWord(taskCount int) StatusWord {
	var w StatusWord
	for i := range taskCount {
		w = w.Set(i, NibbleSucceeded)
	}
	return w
}

// ResetNibble returns a copy of w with nibble i reset to NotStarted.
func (w StatusWord) ResetNibble(i int) StatusWord {
	return w.Set(i, NibbleNotStarted)
}

// ResetMask resets every nibble whose bit is set in mask (bit i ⇒ nibble i).
func (w StatusWord) ResetMask(mask uint32) StatusWord {
	for i := 0; i < 8; i++ {
		if mask&(1<<uint(i)) != 0 {
			w = w.ResetNibble(i)
		}
	}
	return w
}

// String renders the word as a compact list of nibble values for logging.
func (w StatusWord) String() string {
	return fmt.Sprintf("%08x", uint32(w))
}

// TaskOutcome is the result the pipeline reports for one sub-task attempt.
type TaskOutcome int

const (
	// OutcomeSucceeded marks the task's output as present and valid.
	OutcomeSucceeded TaskOutcome = iota
	// OutcomeFailed marks a retryable failure (Network, RemuxFailed, FilesystemPermission, Malformed).
	OutcomeFailed
	// OutcomeIgnored marks the task as policy-skipped (still terminal).
	OutcomeIgnored
	// OutcomeRiskControl marks the task abandoned for this tick without advancing its counter.
	OutcomeRiskControl
	// OutcomeFailedTerminal marks a non-retryable failure (NotFound, Forbidden):
	// the nibble is driven straight to the retry ceiling in one step instead of
	// incrementing, so a 404/403 reads as failed rather than masquerading as
	// the policy-skip Ignored carries.
	OutcomeFailedTerminal
)
