package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/altos-data/chmig/common/condition"
	"github.com/altos-data/chmig/common/logger"
	"github.com/altos-data/chmig/common/models"
)

// HistoryStore records apply-attempt lifecycle transitions.
type HistoryStore interface {
	LogStart(ctx context.Context, change *models.Change) (int64, error)
	MarkStatus(ctx context.Context, identity models.Identity, status models.AttemptStatus, errorMessage string) error
}

// Renderer turns a script reference plus variables into final executable text.
type Renderer interface {
	Render(scriptPath string, variables map[string]any) (string, error)
}

// Engine executes or previews rendered text against the target database.
type Engine interface {
	Apply(ctx context.Context, statement string) error
	Preview(ctx context.Context, statement string) error
}

// Report summarizes one run.
type Report struct {
	RunID   string
	Applied []models.Identity
	Skipped []models.Identity

	// Failed names the change whose attempt aborted the run, nil when the
	// run completed.
	Failed *models.Identity
}

// Executor drives sequential application of resolved changes, recording each
// attempt's Pending -> Success/Failed lifecycle and aborting the run on the
// first failure.
type Executor struct {
	history   HistoryStore
	renderer  Renderer
	engine    Engine
	variables map[string]any
	log       *logger.Logger
}

// New creates an executor over the given collaborators.
func New(history HistoryStore, renderer Renderer, engine Engine, variables map[string]any, log *logger.Logger) *Executor {
	return &Executor{
		history:   history,
		renderer:  renderer,
		engine:    engine,
		variables: variables,
		log:       log,
	}
}

// Run applies the resolved changes in order. Each change gets a pending
// record before any side effect, then exactly one terminal transition. Any
// render or engine failure marks the change failed and aborts the remainder
// of the run; previously applied changes stay committed.
func (e *Executor) Run(ctx context.Context, resolved []*models.Change) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := e.log.WithRunID(report.RunID)

	for _, change := range resolved {
		identity := change.Identity()

		// Includes never reach the executor; guard anyway.
		if change.Kind != models.KindSQL {
			continue
		}

		skip, err := e.conditionSkips(change)
		if err != nil {
			return report, err
		}
		if skip {
			log.WithChange(identity).Info("condition not met, skipping change")
			report.Skipped = append(report.Skipped, identity)
			continue
		}

		if _, err := e.history.LogStart(ctx, change); err != nil {
			return report, err
		}

		statement, err := e.renderer.Render(change.ScriptPath, e.variables)
		if err != nil {
			return report, e.fail(ctx, report, change, err)
		}

		if err := e.engine.Apply(ctx, statement); err != nil {
			return report, e.fail(ctx, report, change, err)
		}

		if err := e.history.MarkStatus(ctx, identity, models.StatusSuccess, ""); err != nil {
			return report, err
		}

		log.WithChange(identity).Info("applied change", "description", change.Description)
		report.Applied = append(report.Applied, identity)
	}

	return report, nil
}

// DryRun walks the resolved changes through the same render pipeline but
// previews instead of applying and writes no history records.
func (e *Executor) DryRun(ctx context.Context, resolved []*models.Change) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := e.log.WithRunID(report.RunID)

	for _, change := range resolved {
		identity := change.Identity()

		if change.Kind != models.KindSQL {
			continue
		}

		skip, err := e.conditionSkips(change)
		if err != nil {
			return report, err
		}
		if skip {
			report.Skipped = append(report.Skipped, identity)
			continue
		}

		statement, err := e.renderer.Render(change.ScriptPath, e.variables)
		if err != nil {
			return report, err
		}

		if err := e.engine.Preview(ctx, statement); err != nil {
			return report, err
		}

		log.WithChange(identity).Info("would apply change", "script", change.ScriptPath, "description", change.Description)
		report.Applied = append(report.Applied, identity)
	}

	return report, nil
}

// fail records the terminal failed transition and wraps the causing error.
func (e *Executor) fail(ctx context.Context, report *Report, change *models.Change, cause error) error {
	identity := change.Identity()
	report.Failed = &identity

	if err := e.history.MarkStatus(ctx, identity, models.StatusFailed, cause.Error()); err != nil {
		e.log.Error("failed to record failure", "change_id", identity.ChangeID, "changelog", identity.ChangelogPath, "error", err)
	}

	return fmt.Errorf("failed to apply change %s: %w", identity, cause)
}

func (e *Executor) conditionSkips(change *models.Change) (bool, error) {
	if change.Condition == "" {
		return false, nil
	}

	// The loader compiles conditions at load time; only changes constructed
	// by hand arrive without one.
	cond := change.CompiledCondition
	if cond == nil {
		var err error
		cond, err = condition.Compile(change.Condition)
		if err != nil {
			return false, fmt.Errorf("invalid condition on change %s: %w", change.Identity(), err)
		}
	}

	ok, err := cond.Eval(e.variables)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition on change %s: %w", change.Identity(), err)
	}
	return !ok, nil
}
