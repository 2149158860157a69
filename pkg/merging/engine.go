// Package merging consolidates two catalog records of the same kind into one.
// Each kind has a declarative plan; the engine runs it inside a single
// transaction and schedules downstream work only after commit.
package merging

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/scope"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ScopeCollector snapshots the downstream aggregates referencing the entities.
type ScopeCollector interface {
	Snapshot(ctx context.Context, kind models.EntityKind, ids ...string) (scope.Scope, error)
}

// Scheduler enqueues follow-up work for a committed merge.
type Scheduler interface {
	ReindexTarget(ctx context.Context, ref models.EntityRef) error
	Schedule(ctx context.Context, sc scope.Scope) error
}

// AuditStore records committed merges.
type AuditStore interface {
	Create(ctx context.Context, audit *models.MergeAudit) (*models.MergeAudit, error)
}

// AfterMergeHook is notified once a merge has committed. A failing hook is
// logged and never affects the merge result.
type AfterMergeHook interface {
	Name() string
	AfterMerge(ctx context.Context, outcome *Outcome) error
}

// Dependencies are the collaborators an Engine drives.
type Dependencies struct {
	Relations RelationStore
	Entities  EntityStore
	Collector ScopeCollector
	Scheduler Scheduler
	Audits    AuditStore
	Hooks     []AfterMergeHook
}

// Engine executes merge plans.
type Engine struct {
	db     database.DB
	plans  Plans
	deps   Dependencies
	logger ectologger.Logger
}

// NewEngine creates a new merge engine
func NewEngine(db database.DB, plans Plans, deps Dependencies, logger ectologger.Logger) *Engine {
	return &Engine{
		db:     db,
		plans:  plans,
		deps:   deps,
		logger: logger,
	}
}

// Merge folds source into target. It never returns an error or panics; every
// failure is reported through Result.Error and leaves the store untouched.
func (e *Engine) Merge(ctx context.Context, kind models.EntityKind, sourceID, targetID string) Result {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.Merge")
	defer span.End()

	start := time.Now()
	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":      kind,
		"source_id": sourceID,
		"target_id": targetID,
	})

	plan, err := e.precheck(kind, sourceID, targetID)
	if err != nil {
		return e.fail(ctx, log, kind, start, err)
	}

	outcome, err := e.execute(ctx, plan, sourceID, targetID)
	if err != nil {
		return e.fail(ctx, log, kind, start, err)
	}

	metrics.RecordMerge(kind.String(), "ok", time.Since(start).Seconds())
	metrics.RecordMergeStats(kind.String(), outcome.Stats)
	log.WithFields(map[string]any{
		"stats":          outcome.Stats,
		"configurations": len(outcome.Scope.ConfigurationIDs),
		"audit_id":       outcome.AuditID,
	}).Info("Merged entities")

	e.afterCommit(ctx, outcome)

	survivor := outcome.Target
	return Result{OK: true, Survivor: &survivor, Stats: outcome.Stats}
}

func (e *Engine) precheck(kind models.EntityKind, sourceID, targetID string) (*Plan, error) {
	if sourceID == "" || targetID == "" {
		return nil, newError(ErrorCodeNotFound, "source and target ids are required")
	}
	if sourceID == targetID {
		return nil, newError(ErrorCodeSelfMerge, "cannot merge %s %s into itself", kind, sourceID)
	}
	plan, ok := e.plans.Get(kind)
	if !ok {
		return nil, newError(ErrorCodeUnknown, "no merge plan for kind %q", kind)
	}
	return plan, nil
}

func (e *Engine) fail(ctx context.Context, log ectologger.Logger, kind models.EntityKind, start time.Time, err error) Result {
	result := failed(err)
	tracing.RecordError(ctx, err)
	metrics.RecordMerge(kind.String(), string(result.Error.Code), time.Since(start).Seconds())

	if result.Error.Code == ErrorCodeUnknown {
		log.WithError(err).Error("Merge failed")
	} else {
		log.WithError(err).WithField("code", result.Error.Code).Warn("Merge rejected")
	}
	return result
}

// execute runs every database step of the merge in one transaction.
func (e *Engine) execute(ctx context.Context, plan *Plan, sourceID, targetID string) (outcome *Outcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.execute")
	defer span.End()

	txCtx, tx, err := database.GetTx(ctx, e.logger, e.db, nil)
	if err != nil {
		return nil, err
	}
	if !tx.IsOwner() {
		return nil, newError(ErrorCodeUnknown, "merge must run in its own transaction")
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = newError(ErrorCodeUnknown, "merge aborted: %v", rec)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				e.logger.WithContext(ctx).WithError(rbErr).Error("Failed to roll back merge")
			}
		}
	}()

	if err := e.deps.Entities.Lock(txCtx, plan.Table, sourceID, targetID); err != nil {
		return nil, err
	}

	affected, err := e.deps.Collector.Snapshot(txCtx, plan.Kind, sourceID, targetID)
	if err != nil {
		return nil, err
	}

	r := &run{
		plan:      plan,
		source:    sourceID,
		target:    targetID,
		relations: e.deps.Relations,
		entities:  e.deps.Entities,
		pending:   map[string]any{},
	}

	stats := make(map[string]int, len(plan.Steps))
	for _, step := range plan.Steps {
		if step.Strategy == StrategyCascade {
			continue
		}
		if err := e.applyStep(txCtx, r, step, stats); err != nil {
			return nil, err
		}
	}

	if err := e.deps.Entities.Update(txCtx, plan.Table, targetID, r.pending); err != nil {
		return nil, err
	}

	for _, step := range plan.Steps {
		if step.Strategy != StrategyCascade {
			continue
		}
		if err := e.applyStep(txCtx, r, step, stats); err != nil {
			return nil, err
		}
	}

	if err := e.deps.Entities.Delete(txCtx, plan.Table, sourceID); err != nil {
		return nil, err
	}

	audit := &models.MergeAudit{
		EntityKind: plan.Kind,
		SourceID:   sourceID,
		TargetID:   targetID,
		Stats:      database.NewJSONB(stats),
		MergedBy:   mergedBy(ctx),
	}
	if audit, err = e.deps.Audits.Create(txCtx, audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return &Outcome{
		Kind:     plan.Kind,
		Source:   models.EntityRef{Kind: plan.Kind, ID: sourceID},
		Target:   models.EntityRef{Kind: plan.Kind, ID: targetID},
		Stats:    stats,
		Scope:    affected,
		AuditID:  audit.ID,
		MergedBy: audit.MergedBy,
		MergedAt: audit.CreatedAt,
	}, nil
}

func (e *Engine) applyStep(ctx context.Context, r *run, step Step, stats map[string]int) error {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.applyStep")
	defer span.End()
	tracing.SetAttributes(ctx, map[string]string{"relation": step.Relation, "strategy": string(step.Strategy)})

	n, err := r.apply(ctx, step)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"relation": step.Relation,
			"strategy": step.Strategy,
		}).Debug("Merge step failed")
		return err
	}
	stats[step.Relation] += int(n)
	return nil
}

func mergedBy(ctx context.Context) *string {
	if userID := appctx.GetUserID(ctx); userID != "" {
		return &userID
	}
	return nil
}

// afterCommit fires the downstream side effects. The merge is already
// durable, so failures are only logged and counted for operators to retry.
// They run detached from the caller's cancellation so a client that hangs up
// after the commit does not lose the follow-up jobs.
func (e *Engine) afterCommit(ctx context.Context, outcome *Outcome) {
	ctx, span := tracing.StartSpan(context.WithoutCancel(ctx), "merging.Engine.afterCommit")
	defer span.End()

	e.sideEffect(ctx, "reindex", outcome, func() error {
		return e.deps.Scheduler.ReindexTarget(ctx, outcome.Target)
	})
	e.sideEffect(ctx, "recalculate", outcome, func() error {
		return e.deps.Scheduler.Schedule(ctx, outcome.Scope)
	})
	for _, hook := range e.deps.Hooks {
		e.sideEffect(ctx, hook.Name(), outcome, func() error {
			return hook.AfterMerge(ctx, outcome)
		})
	}
}

func (e *Engine) sideEffect(ctx context.Context, action string, outcome *Outcome, fn func() error) {
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = newError(ErrorCodeUnknown, "%s panicked: %v", action, rec)
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}

	metrics.RecordPostCommitFailure(action)
	e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"action":    action,
		"kind":      outcome.Kind,
		"source_id": outcome.Source.ID,
		"target_id": outcome.Target.ID,
		"audit_id":  outcome.AuditID,
	}).Error("Post-commit side effect failed, merge stays committed")
}
