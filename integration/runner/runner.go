package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courtvoice/courtvoice/pkg/court"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running API and worker
// pair. The API base URL serves sessions and turn enqueueing; the
// worker base URL serves the approvals endpoints.
type Runner struct {
	APIBaseURL        string
	WorkerBaseURL     string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner.
func NewRunner(apiBaseURL, workerBaseURL string) *Runner {
	return &Runner{
		APIBaseURL:        strings.TrimSuffix(apiBaseURL, "/"),
		WorkerBaseURL:     strings.TrimSuffix(workerBaseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
		Logger:            func(format string, args ...interface{}) {},
	}
}

// LoadTestSuite loads a test suite from a JSON file.
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it is
// a sequence of other case files.
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		subJobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, caseFile), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// RunSuite seeds a session, runs every step, and deletes the session.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	game, err := CreateSession(ctx, r.Client, r.APIBaseURL, suite.Seed)
	if err != nil {
		result.Error = fmt.Errorf("failed to seed session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Session = game.SessionID
	defer func() {
		if err := DeleteSession(context.Background(), r.Client, r.APIBaseURL, game.SessionID); err != nil {
			r.Logger("    cleanup: failed to delete session %s: %v", game.SessionID, err)
		}
	}()

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, game.SessionID, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] FAIL %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] OK %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep enqueues one turn and polls until the step's expectations
// hold or the timeout elapses. Pending approvals that appear while
// polling are resolved with the step's approval mode.
func (r *Runner) runStep(ctx context.Context, sessionID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	mode := step.Approvals
	if mode == "" {
		mode = ResolveApprove
	}
	if mode != ResolveApprove && mode != ResolveDecline {
		result.Error = fmt.Errorf("invalid approvals mode %q", step.Approvals)
		result.Duration = time.Since(start)
		return result
	}

	requestID, err := EnqueueTurn(ctx, r.Client, r.APIBaseURL, sessionID, step.SourceCharacterID)
	if err != nil {
		result.Error = fmt.Errorf("failed to enqueue turn: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	result.RequestID = requestID

	deadline := time.Now().Add(r.Timeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var lastErr error
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			result.Error = ctx.Err()
			result.Duration = time.Since(start)
			return result
		case <-ticker.C:
		}

		pending, err := ListApprovals(ctx, r.Client, r.WorkerBaseURL)
		if err != nil {
			lastErr = err
			continue
		}
		for _, p := range pending {
			if err := ResolveApproval(ctx, r.Client, r.WorkerBaseURL, p.ID, mode); err != nil {
				lastErr = err
				continue
			}
			r.Logger("      %sd %s (%s -> %s)", mode, p.ActionID, p.SourceName, p.TargetName)
			result.ApprovalsResolved++
		}

		game, err := GetSession(ctx, r.Client, r.APIBaseURL, sessionID)
		if err != nil {
			lastErr = err
			continue
		}

		lastErr = checkExpectations(step.Expectations, game, result.ApprovalsResolved)
		if lastErr == nil {
			result.Success = true
			result.Duration = time.Since(start)
			return result
		}
	}

	result.Error = fmt.Errorf("timeout after %v waiting for expectations: %w", r.Timeout, lastErr)
	result.Duration = time.Since(start)
	return result
}

// checkExpectations validates the expectations against the current
// session state. Returns nil when every check holds.
func checkExpectations(exp Expectations, game *court.GameData, approvalsResolved int) error {
	for key, want := range exp.Gold {
		c, err := expectCharacter(game, key)
		if err != nil {
			return err
		}
		if c.Gold != want {
			return fmt.Errorf("expected character %s gold %d, got %d", key, want, c.Gold)
		}
	}

	for key, traits := range exp.HasTraits {
		c, err := expectCharacter(game, key)
		if err != nil {
			return err
		}
		for _, trait := range traits {
			if !c.HasTrait(trait) {
				return fmt.Errorf("expected character %s to have trait %q, traits: %v", key, trait, c.Traits)
			}
		}
	}

	for key, traits := range exp.NotTraits {
		c, err := expectCharacter(game, key)
		if err != nil {
			return err
		}
		for _, trait := range traits {
			if c.HasTrait(trait) {
				return fmt.Errorf("expected character %s to NOT have trait %q", key, trait)
			}
		}
	}

	for key, want := range exp.Opinions {
		holderKey, subjectKey, ok := strings.Cut(key, ":")
		if !ok {
			return fmt.Errorf("invalid opinion key %q, want \"holder:subject\"", key)
		}
		holder, err := expectCharacter(game, holderKey)
		if err != nil {
			return err
		}
		subjectID, err := strconv.ParseInt(subjectKey, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid opinion subject id %q: %w", subjectKey, err)
		}
		if got := holder.OpinionOf(subjectID); got != want {
			return fmt.Errorf("expected character %s opinion of %d to be %d, got %d", holderKey, subjectID, want, got)
		}
	}

	for key, floor := range exp.OpinionsAbove {
		holderKey, subjectKey, ok := strings.Cut(key, ":")
		if !ok {
			return fmt.Errorf("invalid opinion key %q, want \"holder:subject\"", key)
		}
		holder, err := expectCharacter(game, holderKey)
		if err != nil {
			return err
		}
		subjectID, err := strconv.ParseInt(subjectKey, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid opinion subject id %q: %w", subjectKey, err)
		}
		if got := holder.OpinionOf(subjectID); got <= floor {
			return fmt.Errorf("expected character %s opinion of %d above %d, got %d", holderKey, subjectID, floor, got)
		}
	}

	for key, fragments := range exp.MemoryContains {
		c, err := expectCharacter(game, key)
		if err != nil {
			return err
		}
		for _, fragment := range fragments {
			if !memoryContains(c, fragment) {
				return fmt.Errorf("expected character %s memories to mention %q, memories: %v", key, fragment, c.Memories)
			}
		}
	}

	if exp.ApprovalsSeen != nil && approvalsResolved != *exp.ApprovalsSeen {
		return fmt.Errorf("expected %d approvals to be resolved, resolved %d", *exp.ApprovalsSeen, approvalsResolved)
	}

	return nil
}

func expectCharacter(game *court.GameData, key string) (*court.Character, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid character id %q: %w", key, err)
	}
	c := game.Character(id)
	if c == nil {
		return nil, fmt.Errorf("character %d not in session", id)
	}
	return c, nil
}

func memoryContains(c *court.Character, fragment string) bool {
	lower := strings.ToLower(fragment)
	for _, m := range c.Memories {
		if strings.Contains(strings.ToLower(m), lower) {
			return true
		}
	}
	return false
}
