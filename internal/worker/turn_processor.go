package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/courtvoice/courtvoice/internal/services"
	"github.com/courtvoice/courtvoice/pkg/queue"
	"github.com/courtvoice/courtvoice/pkg/turn"
)

// TurnProcessor resolves one turn request end to end: load the session,
// run the selection pipeline, hold for outstanding approvals, persist the
// mutated court.
type TurnProcessor struct {
	storage   services.Storage
	orch      *turn.Orchestrator
	approvals *turn.Approvals
	log       *slog.Logger
}

func NewTurnProcessor(storage services.Storage, orch *turn.Orchestrator, approvals *turn.Approvals, log *slog.Logger) *TurnProcessor {
	return &TurnProcessor{
		storage:   storage,
		orch:      orch,
		approvals: approvals,
		log:       log,
	}
}

// ProcessTurn evaluates a single character's turn. The call blocks until
// every pending approval raised by this turn is approved or declined, so
// the queue stays strictly sequential.
func (p *TurnProcessor) ProcessTurn(ctx context.Context, req *queue.Request) error {
	game, err := p.storage.LoadGameData(ctx, req.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load game data: %w", err)
	}
	if game == nil {
		return fmt.Errorf("session %s not found", req.SessionID)
	}

	result, err := p.orch.EvaluateForCharacter(ctx, game, req.SourceCharacterID)
	if err != nil {
		return fmt.Errorf("turn evaluation failed: %w", err)
	}

	for _, res := range result.AutoApproved {
		p.log.Info("Action auto-approved",
			"request_id", req.RequestID,
			"action", res.ActionID,
			"success", res.Success,
		)
	}

	if len(result.NeedsApproval) > 0 {
		p.approvals.Add(result.NeedsApproval...)
		p.log.Info("Waiting for approvals",
			"request_id", req.RequestID,
			"pending", len(result.NeedsApproval),
		)
		if err := p.approvals.Wait(ctx); err != nil {
			return fmt.Errorf("interrupted while waiting for approvals: %w", err)
		}
	}

	if err := p.storage.SaveGameData(ctx, req.SessionID, game); err != nil {
		return fmt.Errorf("failed to save game data: %w", err)
	}
	return nil
}
