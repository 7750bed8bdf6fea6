// Package turn drives one NPC's action selection: gather candidate
// actions, ask the LLM to pick, validate the reply, then execute or queue
// for approval.
package turn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/action/heal"
	"github.com/courtvoice/courtvoice/pkg/action/sandbox"
	"github.com/courtvoice/courtvoice/pkg/action/schema"
	"github.com/courtvoice/courtvoice/pkg/chat"
	"github.com/courtvoice/courtvoice/pkg/court"
	"github.com/courtvoice/courtvoice/pkg/effect"
)

// CompletionService is the slice of the LLM provider the orchestrator
// needs: a single non-streaming structured completion.
type CompletionService interface {
	ChatCompletion(ctx context.Context, messages []chat.Message, format *chat.ResponseFormat) (string, error)
	ModelName() string
}

// ApprovalPolicy decides which invocations run without a human gate.
type ApprovalPolicy string

const (
	// PolicyNone: every invocation requires approval.
	PolicyNone ApprovalPolicy = "none"
	// PolicyNonDestructive: destructive invocations require approval,
	// the rest auto-run.
	PolicyNonDestructive ApprovalPolicy = "non_destructive"
	// PolicyAll: everything auto-runs.
	PolicyAll ApprovalPolicy = "all"
)

func ParsePolicy(s string) (ApprovalPolicy, error) {
	switch ApprovalPolicy(s) {
	case PolicyNone, PolicyNonDestructive, PolicyAll:
		return ApprovalPolicy(s), nil
	}
	return "", fmt.Errorf("invalid approval policy %q", s)
}

// requiresApproval applies the policy to one invocation.
func (p ApprovalPolicy) requiresApproval(destructive bool) bool {
	switch p {
	case PolicyAll:
		return false
	case PolicyNonDestructive:
		return destructive
	default:
		return true
	}
}

// Config holds the per-instance orchestrator settings.
type Config struct {
	Policy   ApprovalPolicy
	Shape    schema.Shape
	Language string
}

// Orchestrator runs the per-turn selection pipeline. A single instance
// serves sequential turns; it holds no per-turn state.
type Orchestrator struct {
	registry *action.Registry
	llm      CompletionService
	writer   *effect.Writer
	cfg      Config
	log      *slog.Logger
}

func NewOrchestrator(registry *action.Registry, llm CompletionService, writer *effect.Writer, cfg Config, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		llm:      llm,
		writer:   writer,
		cfg:      cfg,
		log:      log,
	}
}

// Result is the outcome of one turn evaluation.
type Result struct {
	AutoApproved  []action.ExecutionResult `json:"autoApproved"`
	NeedsApproval []*PendingApproval       `json:"needsApproval"`
}

func emptyResult() *Result {
	return &Result{
		AutoApproved:  []action.ExecutionResult{},
		NeedsApproval: []*PendingApproval{},
	}
}

// EvaluateForCharacter runs the full pipeline for one source character.
// Cancellation at any phase boundary resolves to empty results, never an
// error. Transport failures propagate; malformed LLM output degrades to
// an empty result.
func (o *Orchestrator) EvaluateForCharacter(ctx context.Context, game *court.GameData, sourceID int64) (*Result, error) {
	source := game.Character(sourceID)
	if source == nil {
		return nil, fmt.Errorf("source character %d not found in game data", sourceID)
	}

	// gathering
	available := o.gather(game, source)
	if ctx.Err() != nil || len(available) == 0 {
		return emptyResult(), nil
	}

	// requesting
	built, err := schema.Build(available, schema.Resolve(o.cfg.Shape, o.llm.ModelName()))
	if err != nil {
		return nil, fmt.Errorf("failed to build action schema: %w", err)
	}
	if ctx.Err() != nil {
		return emptyResult(), nil
	}
	messages := buildMessages(game, source, available)
	raw, err := o.llm.ChatCompletion(ctx, messages, chat.NewSchemaFormat("select_actions", built.Schema))
	if err != nil {
		if ctx.Err() != nil {
			return emptyResult(), nil
		}
		return nil, fmt.Errorf("action selection request failed: %w", err)
	}
	if ctx.Err() != nil {
		return emptyResult(), nil
	}

	// parsing
	healed := heal.Heal(raw)
	if healed == nil {
		o.log.Debug("Unhealable action response, skipping turn", "source", sourceID)
		return emptyResult(), nil
	}
	if ctx.Err() != nil {
		return emptyResult(), nil
	}
	invocations, err := built.Validate(healed)
	if err != nil {
		// Malformed structured output is expected occasionally; drop it
		// rather than surfacing a user-facing error.
		o.log.Debug("Action response failed validation, skipping turn", "source", sourceID, "error", err)
		return emptyResult(), nil
	}

	// classifying
	result := emptyResult()
	for _, inv := range invocations {
		if ctx.Err() != nil {
			return emptyResult(), nil
		}
		if err := o.classify(result, game, source, inv); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// gather collects the actions whose capability check passes for this
// source character, resolving dynamic descriptions and argument lists. A
// throwing check excludes the action for this turn only.
func (o *Orchestrator) gather(game *court.GameData, source *court.Character) []schema.Available {
	checkCtx := &sandbox.Context{
		GameData: game,
		Source:   source,
		Language: o.cfg.Language,
		Log:      o.log,
	}

	var available []schema.Available
	for _, def := range o.registry.GetAllActions(false) {
		ok, targets, err := sandbox.Check(def, checkCtx)
		if err != nil {
			o.log.Warn("Action check failed, excluding for this turn", "action", def.Signature, "error", err)
			continue
		}
		if !ok {
			continue
		}
		desc, err := sandbox.ResolveDescription(def, checkCtx)
		if err != nil {
			o.log.Warn("Failed to resolve action description", "action", def.Signature, "error", err)
			continue
		}
		args, err := sandbox.ResolveArgs(def, checkCtx)
		if err != nil {
			o.log.Warn("Failed to resolve action args", "action", def.Signature, "error", err)
			continue
		}
		available = append(available, schema.Available{
			Signature:      def.Signature,
			Title:          def.Title,
			Description:    desc,
			Args:           args,
			RequiresTarget: len(targets) > 0,
			TargetIDs:      targets,
			Destructive:    o.registry.EffectiveDestructive(def.Signature),
		})
	}
	return available
}

// classify routes one validated invocation: auto-run, silent promotion,
// or pending approval.
func (o *Orchestrator) classify(result *Result, game *court.GameData, source *court.Character, inv action.Invocation) error {
	destructive := o.registry.EffectiveDestructive(inv.ActionID)

	if !o.cfg.Policy.requiresApproval(destructive) {
		res, err := o.RunInvocation(game, source, inv)
		if err != nil {
			return err
		}
		result.AutoApproved = append(result.AutoApproved, *res)
		return nil
	}

	// Dry-run preview. Actions that produce no feedback have nothing to
	// show the user and are promoted straight to execution.
	preview := o.PreviewInvocation(game, source, inv)
	if preview.Success && preview.Feedback == nil {
		res, err := o.RunInvocation(game, source, inv)
		if err != nil {
			return err
		}
		result.AutoApproved = append(result.AutoApproved, *res)
		return nil
	}

	pending := o.newPendingApproval(game, source, inv, destructive, preview)
	result.NeedsApproval = append(result.NeedsApproval, pending)
	return nil
}

func (o *Orchestrator) newPendingApproval(game *court.GameData, source *court.Character, inv action.Invocation, destructive bool, preview *action.ExecutionResult) *PendingApproval {
	def, _ := o.registry.Get(inv.ActionID)
	title := inv.ActionID
	if def != nil && def.Title != "" {
		title = def.Title
	}
	p := &PendingApproval{
		ID:                uuid.New().String(),
		ActionID:          inv.ActionID,
		Title:             title,
		SourceCharacterID: source.ID,
		SourceName:        source.Name,
		TargetCharacterID: inv.TargetCharacterID,
		Args:              inv.Args,
		Destructive:       destructive,
		Status:            StatusPending,
		CreatedAt:         time.Now(),
		invocation:        inv,
		game:              game,
		source:            source,
	}
	if inv.TargetCharacterID != nil {
		if target := game.Character(*inv.TargetCharacterID); target != nil {
			p.TargetName = target.Name
		}
	}
	p.applyPreview(preview)
	return p
}

// RunInvocation executes an invocation for real: the script mutates the
// shared aggregate and emitted effects are composed and appended to the
// run file. Script failures come back inside the result; only contract
// violations (unknown action, effect scoping bugs) return an error.
func (o *Orchestrator) RunInvocation(game *court.GameData, source *court.Character, inv action.Invocation) (*action.ExecutionResult, error) {
	def, ok := o.registry.Get(inv.ActionID)
	if !ok {
		return nil, fmt.Errorf("unknown action %q", inv.ActionID)
	}

	var target *court.Character
	if inv.TargetCharacterID != nil {
		target = game.Character(*inv.TargetCharacterID)
	}

	var emitted []string
	execCtx := &sandbox.Context{
		GameData: game,
		Source:   source,
		Target:   target,
		Args:     inv.Args,
		Language: o.cfg.Language,
		Emit:     func(body string) { emitted = append(emitted, body) },
		Log:      o.log,
	}

	res := sandbox.Execute(def, execCtx)
	if !res.Success {
		o.log.Warn("Action execution failed", "action", inv.ActionID, "error", res.Error)
		return res, nil
	}

	for _, body := range emitted {
		text, err := effect.Compose(game, source.ID, inv.TargetCharacterID, body)
		if err != nil {
			return nil, fmt.Errorf("failed to compose effect for %q: %w", inv.ActionID, err)
		}
		if err := o.writer.Append(text); err != nil {
			return nil, fmt.Errorf("failed to write effect for %q: %w", inv.ActionID, err)
		}
	}
	return res, nil
}

// PreviewInvocation executes an invocation against a deep copy of the
// aggregate with effect emission suppressed, so previews never persist
// state or reach the run file.
func (o *Orchestrator) PreviewInvocation(game *court.GameData, source *court.Character, inv action.Invocation) *action.ExecutionResult {
	def, ok := o.registry.Get(inv.ActionID)
	if !ok {
		return &action.ExecutionResult{
			ActionID: inv.ActionID,
			Success:  false,
			Error:    fmt.Sprintf("unknown action %q", inv.ActionID),
		}
	}

	clone := game.Clone()
	var target *court.Character
	if inv.TargetCharacterID != nil {
		target = clone.Character(*inv.TargetCharacterID)
	}

	return sandbox.Execute(def, &sandbox.Context{
		GameData: clone,
		Source:   clone.Character(source.ID),
		Target:   target,
		Args:     inv.Args,
		Language: o.cfg.Language,
		DryRun:   true,
		Log:      o.log,
	})
}
