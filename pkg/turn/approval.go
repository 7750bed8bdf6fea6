package turn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/court"
)

// Pending entry statuses. The only transitions are pending->approved
// (terminal) and pending->removed on decline.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

var (
	ErrApprovalNotFound = errors.New("pending approval not found")
)

// PendingApproval is one invocation awaiting a human decision.
type PendingApproval struct {
	ID                string         `json:"id"`
	ActionID          string         `json:"actionId"`
	Title             string         `json:"title"`
	SourceCharacterID int64          `json:"sourceCharacterId"`
	SourceName        string         `json:"sourceName"`
	TargetCharacterID *int64         `json:"targetCharacterId,omitempty"`
	TargetName        string         `json:"targetName,omitempty"`
	Args              map[string]any `json:"args,omitempty"`
	Destructive       bool           `json:"destructive"`
	PreviewFeedback   string         `json:"previewFeedback,omitempty"`
	PreviewSentiment  string         `json:"previewSentiment,omitempty"`
	Status            string         `json:"status"`
	CreatedAt         time.Time      `json:"createdAt"`

	// Execution context captured at classification time.
	invocation action.Invocation
	game       *court.GameData
	source     *court.Character
}

func (p *PendingApproval) applyPreview(res *action.ExecutionResult) {
	if res == nil {
		return
	}
	if res.Feedback != nil {
		p.PreviewFeedback = res.Feedback.Message
		p.PreviewSentiment = res.Feedback.Sentiment
	} else if res.Error != "" {
		p.PreviewFeedback = res.Error
		p.PreviewSentiment = action.SentimentNegative
	}
}

func (p *PendingApproval) clone() *PendingApproval {
	cp := *p
	return &cp
}

// Approvals is the human-in-the-loop gate. Entries are keyed by an opaque
// id; approving is atomic and first-click-wins, with the real execution
// kicked off in the background after the entry has already left the
// pending set.
type Approvals struct {
	mu       sync.Mutex
	orch     *Orchestrator
	log      *slog.Logger
	pending  map[string]*PendingApproval
	results  map[string]*action.ExecutionResult
	resolved map[string]string // id -> terminal status ("approved"/"declined")
	inflight int
	changed  chan struct{}

	// OnResolved, when set, observes every terminal decision after the
	// background execution (if any) completes.
	OnResolved func(entry *PendingApproval, result *action.ExecutionResult)
}

func NewApprovals(orch *Orchestrator, log *slog.Logger) *Approvals {
	return &Approvals{
		orch:     orch,
		log:      log,
		pending:  make(map[string]*PendingApproval),
		results:  make(map[string]*action.ExecutionResult),
		resolved: make(map[string]string),
		changed:  make(chan struct{}),
	}
}

// Add registers turn results that need approval.
func (a *Approvals) Add(entries ...*PendingApproval) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range entries {
		a.pending[p.ID] = p
	}
	if len(entries) > 0 {
		a.broadcastLocked()
	}
}

// List returns a snapshot of pending entries.
func (a *Approvals) List() []*PendingApproval {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*PendingApproval, 0, len(a.pending))
	for _, p := range a.pending {
		out = append(out, p.clone())
	}
	return out
}

// PendingCount returns the number of unresolved entries.
func (a *Approvals) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Preview re-runs the dry-run execution for an entry and refreshes its
// stored preview feedback.
func (a *Approvals) Preview(id string) (*action.ExecutionResult, error) {
	a.mu.Lock()
	p, ok := a.pending[id]
	a.mu.Unlock()
	if !ok {
		return nil, ErrApprovalNotFound
	}

	res := a.orch.PreviewInvocation(p.game, p.source, p.invocation)

	a.mu.Lock()
	if current, still := a.pending[id]; still {
		current.applyPreview(res)
	}
	a.mu.Unlock()
	return res, nil
}

// Approve flips an entry to approved and removes it from the pending set
// atomically, then runs the real execution in the background. A second
// call for the same id is a no-op, so rapid double-clicks cause exactly
// one execution.
func (a *Approvals) Approve(id string) error {
	a.mu.Lock()
	p, ok := a.pending[id]
	if !ok {
		status := a.resolved[id]
		a.mu.Unlock()
		if status != "" {
			return nil // already resolved; idempotent
		}
		return ErrApprovalNotFound
	}
	p.Status = StatusApproved
	delete(a.pending, id)
	a.resolved[id] = StatusApproved
	a.inflight++
	a.broadcastLocked()
	a.mu.Unlock()

	go a.execute(p)
	return nil
}

func (a *Approvals) execute(p *PendingApproval) {
	res, err := a.orch.RunInvocation(p.game, p.source, p.invocation)
	if err != nil {
		a.log.Error("Approved action failed to execute", "id", p.ID, "action", p.ActionID, "error", err)
		res = &action.ExecutionResult{
			ActionID: p.ActionID,
			Success:  false,
			Error:    err.Error(),
		}
	}

	a.mu.Lock()
	a.results[p.ID] = res
	a.inflight--
	a.broadcastLocked()
	a.mu.Unlock()

	if a.OnResolved != nil {
		a.OnResolved(p, res)
	}
}

// Decline removes an entry without executing it.
func (a *Approvals) Decline(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.pending[id]
	if !ok {
		if a.resolved[id] != "" {
			return nil
		}
		return ErrApprovalNotFound
	}
	delete(a.pending, id)
	a.resolved[id] = "declined"
	a.broadcastLocked()

	if a.OnResolved != nil {
		go a.OnResolved(p, nil)
	}
	return nil
}

// Result returns the reconciled execution result for an approved entry
// once the background execution has completed.
func (a *Approvals) Result(id string) (*action.ExecutionResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	res, ok := a.results[id]
	return res, ok
}

// Wait blocks until the pending set is empty and every approved
// execution has finished, or the context is done. The turn queue uses
// this to pause while approvals are outstanding.
func (a *Approvals) Wait(ctx context.Context) error {
	for {
		a.mu.Lock()
		if len(a.pending) == 0 && a.inflight == 0 {
			a.mu.Unlock()
			return nil
		}
		ch := a.changed
		a.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// broadcastLocked wakes all Wait callers. Caller holds a.mu.
func (a *Approvals) broadcastLocked() {
	close(a.changed)
	a.changed = make(chan struct{})
}
