package turn

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvoice/courtvoice/pkg/action"
)

// pendingWar evaluates a turn that queues exactly one declare_war entry.
func pendingWar(t *testing.T, f *fixture) *PendingApproval {
	t.Helper()
	f.llm.response = `{"actions": [{"actionId": "declare_war", "targetCharacterId": 5, "args": {}}]}`
	result, err := f.orch.EvaluateForCharacter(context.Background(), f.game, 1)
	require.NoError(t, err)
	require.Len(t, result.NeedsApproval, 1)
	return result.NeedsApproval[0]
}

func TestApprovalsApproveExecutes(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())

	p := pendingWar(t, f)
	approvals.Add(p)
	assert.Equal(t, 1, approvals.PendingCount())

	require.NoError(t, approvals.Approve(p.ID))
	assert.Equal(t, 0, approvals.PendingCount())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, approvals.Wait(ctx))

	res, ok := approvals.Result(p.ID)
	require.True(t, ok)
	assert.True(t, res.Success)
	assert.Equal(t, "declare_war", res.ActionID)

	// The approved execution mutated the real aggregate and hit the run file.
	assert.Equal(t, -100, f.game.Character(5).OpinionOf(1))
	assert.Contains(t, f.runFileContents(t), "declare_war")
}

func TestApprovalsApproveIdempotent(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())

	p := pendingWar(t, f)
	approvals.Add(p)

	require.NoError(t, approvals.Approve(p.ID))
	require.NoError(t, approvals.Approve(p.ID), "second approve of a resolved id is a no-op")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, approvals.Wait(ctx))

	// Exactly one execution: the opinion hit is applied once and the run
	// file holds a single effect block.
	assert.Equal(t, -100, f.game.Character(5).OpinionOf(1))
	contents := f.runFileContents(t)
	assert.Equal(t, 1, strings.Count(contents, "declare_war"))
}

func TestApprovalsDecline(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())

	p := pendingWar(t, f)
	approvals.Add(p)

	require.NoError(t, approvals.Decline(p.ID))
	assert.Equal(t, 0, approvals.PendingCount())

	// Declining never executes.
	assert.Equal(t, 0, f.game.Character(5).OpinionOf(1))
	assert.Empty(t, f.runFileContents(t))

	// Declining again is a no-op, not an error.
	require.NoError(t, approvals.Decline(p.ID))

	_, ok := approvals.Result(p.ID)
	assert.False(t, ok)
}

func TestApprovalsUnknownID(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())

	assert.ErrorIs(t, approvals.Approve("nope"), ErrApprovalNotFound)
	assert.ErrorIs(t, approvals.Decline("nope"), ErrApprovalNotFound)
	_, err := approvals.Preview("nope")
	assert.ErrorIs(t, err, ErrApprovalNotFound)
}

func TestApprovalsPreview(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())

	p := pendingWar(t, f)
	approvals.Add(p)

	res, err := approvals.Preview(p.ID)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "war declared", res.Feedback.Message)

	// Previewing leaves the entry pending and the world untouched.
	assert.Equal(t, 1, approvals.PendingCount())
	assert.Equal(t, 0, f.game.Character(5).OpinionOf(1))
	assert.Empty(t, f.runFileContents(t))
}

func TestApprovalsList(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())

	assert.Empty(t, approvals.List())

	p := pendingWar(t, f)
	approvals.Add(p)

	list := approvals.List()
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	// List returns copies; mutating one must not touch the stored entry.
	list[0].Title = "tampered"
	assert.Equal(t, "Declare War", approvals.List()[0].Title)
}

func TestApprovalsWaitReturnsImmediatelyWhenEmpty(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, approvals.Wait(ctx))
}

func TestApprovalsWaitBlocksUntilResolved(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())

	p := pendingWar(t, f)
	approvals.Add(p)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- approvals.Wait(ctx)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned while an entry was still pending")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, approvals.Decline(p.ID))
	require.NoError(t, <-done)
}

func TestApprovalsWaitContextCancel(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())
	approvals.Add(pendingWar(t, f))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, approvals.Wait(ctx), context.DeadlineExceeded)
}

func TestApprovalsOnResolved(t *testing.T) {
	f := newFixture(t, PolicyNonDestructive)
	approvals := NewApprovals(f.orch, testLogger())

	resolved := make(chan string, 2)
	approvals.OnResolved = func(entry *PendingApproval, _ *action.ExecutionResult) {
		resolved <- entry.ID
	}

	p := pendingWar(t, f)
	approvals.Add(p)
	require.NoError(t, approvals.Approve(p.ID))

	select {
	case id := <-resolved:
		assert.Equal(t, p.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("OnResolved was never invoked")
	}
}
