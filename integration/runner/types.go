package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/courtvoice/courtvoice/pkg/court"
)

// TestSuite defines a complete integration test scenario.
// Can either be a regular test with Steps, or a sequence that references
// other case files.
type TestSuite struct {
	Name  string      `json:"name"`
	Seed  SeedSession `json:"seed,omitempty"`
	Steps []TestStep  `json:"steps,omitempty"`
	Cases []string    `json:"cases,omitempty"`
}

// SeedSession is the initial court posted to the sessions endpoint.
type SeedSession struct {
	PlayerID   int64              `json:"playerId"`
	Date       string             `json:"date,omitempty"`
	Characters []*court.Character `json:"characters"`
}

// IsSequence returns true if this suite sequences other cases.
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// Approval resolution modes for a step. Empty defaults to approve.
const (
	ResolveApprove = "approve"
	ResolveDecline = "decline"
)

// TestStep enqueues one turn for a character and checks the session
// state afterward. Pending approvals raised by the turn are resolved
// per the Approvals mode while the step waits.
type TestStep struct {
	Name              string       `json:"name,omitempty"`
	SourceCharacterID int64        `json:"source_character_id"`
	Approvals         string       `json:"approvals,omitempty"`
	Expectations      Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes. All
// checks are eventual: the step polls until they hold or the timeout
// elapses. Character map keys are character IDs as strings; opinion
// keys are "holder:subject" ID pairs.
type Expectations struct {
	Gold           map[string]int      `json:"gold,omitempty"`
	HasTraits      map[string][]string `json:"has_traits,omitempty"`
	NotTraits      map[string][]string `json:"not_traits,omitempty"`
	Opinions       map[string]int      `json:"opinions,omitempty"`
	OpinionsAbove  map[string]int      `json:"opinions_above,omitempty"`
	MemoryContains map[string][]string `json:"memory_contains,omitempty"`

	// ApprovalsSeen pins how many pending entries the step had to
	// resolve. Use it to prove a destructive action actually went
	// through review rather than auto-running.
	ApprovalsSeen *int `json:"approvals_seen,omitempty"`
}

// TestResult contains the outcome of running a test step.
type TestResult struct {
	StepName          string
	Success           bool
	Error             error
	Duration          time.Duration
	RequestID         string
	ApprovalsResolved int
}

// TestJob represents a test suite to be executed.
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite.
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	Session  uuid.UUID
}
