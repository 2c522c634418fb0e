// Package orchestrator is the composition root that wires every other
// package into one autonomous run: it fetches eligible tasks, validates them
// against the safety rails, dispatches them to handlers through a bounded
// worker pool, and folds each outcome back into the backlog, the session
// record, and the history ledger.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agentscaffold/scaffold/internal/backlog"
	"github.com/agentscaffold/scaffold/internal/config"
	"github.com/agentscaffold/scaffold/internal/contextassembler"
	"github.com/agentscaffold/scaffold/internal/escalation"
	"github.com/agentscaffold/scaffold/internal/events"
	"github.com/agentscaffold/scaffold/internal/fetcher"
	"github.com/agentscaffold/scaffold/internal/handler"
	"github.com/agentscaffold/scaffold/internal/history"
	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/resilience"
	"github.com/agentscaffold/scaffold/internal/resultprocessor"
	"github.com/agentscaffold/scaffold/internal/router"
	"github.com/agentscaffold/scaffold/internal/safety"
	"github.com/agentscaffold/scaffold/internal/session"
	"github.com/agentscaffold/scaffold/internal/vcs"
	"github.com/agentscaffold/scaffold/internal/worktree"
)

// Orchestrator owns every long-lived dependency a session needs and runs the
// acquire/dispatch/process loop described by the orchestrator design.
type Orchestrator struct {
	Config      *config.SessionConfig
	Backlog     backlog.Adapter
	Fetcher     *fetcher.Fetcher
	Router      *router.Router
	Handlers    *handler.Registry
	Breakers    *resilience.Registry
	Rails       *safety.Rails
	Monitor     *safety.Monitor
	Worktrees   *worktree.Manager
	Sessions    *session.Store
	Processor   *resultprocessor.Processor
	Escalations *escalation.Board
	Events      *events.EventBus
	History     *history.Store
	ProcMgr     *handler.ProcessManager
	Logger      *slog.Logger
}

// New wires every component from cfg: backlog, worktrees, history, safety
// rails/monitor, the handler registry (each route wrapped with its own
// circuit breaker), and the escalation board. The returned Orchestrator owns
// the process-manager and history-database handles it opens and is
// responsible for closing them (see Close).
func New(ctx context.Context, cfg *config.SessionConfig, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backlogAdapter, err := backlog.NewFileAdapter(cfg.BacklogDir)
	if err != nil {
		return nil, fmt.Errorf("opening backlog: %w", err)
	}

	sessionStore, err := session.NewStore(cfg.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	historyStore, err := history.Open(ctx, cfg.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening history ledger: %w", err)
	}

	vcsAdapter := vcs.NewGitGHAdapter()

	worktreeMgr, err := worktree.NewManager(worktree.ManagerConfig{
		RepoPath:      cfg.RepoPath,
		BaseBranch:    cfg.BaseBranch,
		WorktreeRoot:  cfg.WorktreeRoot,
		MaxConcurrent: cfg.MaxConcurrent,
		Creator:       "scaffold",
	}, vcsAdapter)
	if err != nil {
		historyStore.Close()
		return nil, fmt.Errorf("opening worktree manager: %w", err)
	}

	eventBus := events.NewEventBus()
	board := escalation.NewBoard(0)
	procMgr := handler.NewProcessManager()
	breakers := resilience.NewRegistry(resilience.DefaultBreakerSettings(), logger)

	assembler := contextassembler.New(vcsAdapter)
	claudeHandler := handler.NewClaudeCodeHandler("", vcsAdapter, procMgr)
	manualHandler := &handler.ManualHandler{OnEscalate: board.OnEscalate(time.Now)}

	handlers := handler.NewRegistry(map[string]handler.Handler{
		router.RouteClaudeCode: resilience.Wrap(router.RouteClaudeCode, &assembledHandler{inner: claudeHandler, assembler: assembler}, breakers),
		router.RouteManual:     resilience.Wrap(router.RouteManual, manualHandler, breakers),
	})

	rails := safety.NewRails(safety.RailsConfig{RepoRoot: cfg.RepoPath, MaxRetries: 3}, backlogAdapter)

	return &Orchestrator{
		Config:      cfg,
		Backlog:     backlogAdapter,
		Fetcher:     fetcher.New(backlogAdapter, 0).WithLogger(logger),
		Router:      router.New(),
		Handlers:    handlers,
		Breakers:    breakers,
		Rails:       rails,
		Monitor:     safety.NewMonitor(safety.MonitorConfig{MaxCostUSD: cfg.MaxCostUSD, MaxTimeHours: cfg.MaxTimeHours}, time.Now()),
		Worktrees:   worktreeMgr,
		Sessions:    sessionStore,
		Processor:   &resultprocessor.Processor{Backlog: backlogAdapter, Worktrees: worktreeMgr, VCS: vcsAdapter, History: historyStore, BaseBranch: cfg.BaseBranch},
		Escalations: board,
		Events:      eventBus,
		History:     historyStore,
		ProcMgr:     procMgr,
		Logger:      logger,
	}, nil
}

// Close releases the resources New opened: the history database and the
// event bus's subscriber channels.
func (o *Orchestrator) Close() error {
	o.Events.Close()
	if o.History != nil {
		return o.History.Close()
	}
	return nil
}

// KillAll force-kills every subprocess this orchestrator has started. It is
// the escape hatch for a second interrupt signal; a first interrupt should
// instead cancel the context passed to Run and let in-flight tasks finish
// their current phase.
func (o *Orchestrator) KillAll() {
	o.ProcMgr.KillAll()
}

// acquiredTask is one task that has cleared SafetyRails and been assigned a
// worktree, ready for concurrent dispatch within the current wave.
type acquiredTask struct {
	task  model.TaskSpec
	wt    *worktree.Info
	route string
}

// Run executes the acquire/dispatch/process loop until max_tasks is reached,
// a SafetyMonitor limit is breached, no further eligible task can be
// acquired, or ctx is canceled. resumeSessionID, if non-empty, resumes a
// previously persisted session instead of starting a new one.
func (o *Orchestrator) Run(ctx context.Context, resumeSessionID string) (*SessionSummary, error) {
	start := time.Now()

	if err := o.Worktrees.Reconcile(); err != nil {
		o.Logger.Warn("worktree reconcile failed", "error", err)
	}

	state, err := o.loadOrCreateSession(resumeSessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	o.Rails.SeedRetries(state.Retries)
	o.Processor.SessionID = state.SessionID

	// Resuming a session re-anchors the wall-clock and cost budgets to the
	// original start rather than the moment of resumption: a session that
	// crashed three hours into a four-hour budget gets one hour back, not
	// a fresh four.
	o.Monitor = safety.NewMonitor(safety.MonitorConfig{
		MaxCostUSD:   o.Config.MaxCostUSD,
		MaxTimeHours: o.Config.MaxTimeHours,
	}, state.StartTime)
	if state.TotalCostUSD > 0 {
		o.Monitor.RecordSuccess(state.TotalCostUSD)
	}

	var mu sync.Mutex
	abortReason := ""

	for {
		state.Retries = o.Rails.Retries()

		if len(state.TasksCompleted)+len(state.TasksFailed) >= state.MaxTasks {
			break
		}
		if ctx.Err() != nil {
			abortReason = "interrupted"
			break
		}

		if allowed, reason := o.Monitor.CheckLimits(time.Now()); !allowed {
			abortReason = reason
			o.Events.Publish(events.TopicSession, events.SessionLimitBreachEvent{Reason: reason, Timestamp: time.Now()})
			break
		}

		waveSize := o.Config.MaxConcurrent
		if waveSize <= 0 {
			waveSize = 1
		}
		if remaining := state.MaxTasks - len(state.TasksCompleted) - len(state.TasksFailed); remaining < waveSize {
			waveSize = remaining
		}

		wave, rejectReason, err := o.acquireWave(ctx, state, waveSize)
		if err != nil {
			abortReason = fmt.Sprintf("fetch error: %v", err)
			o.Logger.Error("acquiring wave", "error", err)
			break
		}
		if len(wave) == 0 {
			abortReason = rejectReason
			break
		}

		mu.Lock()
		state.Retries = o.Rails.Retries()
		if err := o.Sessions.Save(state); err != nil {
			o.Logger.Error("saving session", "error", err)
		}
		mu.Unlock()

		g := new(errgroup.Group)
		g.SetLimit(waveSize)
		for _, at := range wave {
			at := at
			g.Go(func() error {
				o.runTask(ctx, state, &mu, at)
				return nil
			})
		}
		_ = g.Wait()

		mu.Lock()
		state.Retries = o.Rails.Retries()
		saveErr := o.Sessions.Save(state)
		mu.Unlock()
		if saveErr != nil {
			o.Logger.Error("saving session", "error", saveErr)
		}
	}

	state.AbortReason = abortReason
	mu.Lock()
	state.Retries = o.Rails.Retries()
	if err := o.Sessions.Save(state); err != nil {
		o.Logger.Error("saving final session state", "error", err)
	}
	mu.Unlock()

	return o.summarize(state, start, abortReason), nil
}

func (o *Orchestrator) loadOrCreateSession(resumeSessionID string) (*model.SessionState, error) {
	if resumeSessionID != "" {
		return o.Sessions.Load(resumeSessionID)
	}
	state := model.NewSessionState(uuid.New().String(), o.Config.MaxTasks, o.Config.MaxCostUSD, o.Config.MaxTimeHours)
	return state, nil
}

// acquireWave selects up to limit tasks that pass SafetyRails.Validate and
// fit the session's remaining cost budget, creating a worktree and marking
// each in-progress as it is acquired. It returns the reason the wave came up
// short of limit (if any), which becomes the session's abort reason when no
// task could be acquired at all.
func (o *Orchestrator) acquireWave(ctx context.Context, state *model.SessionState, limit int) ([]acquiredTask, string, error) {
	if limit <= 0 {
		return nil, "", nil
	}

	candidates, err := o.Fetcher.FetchEligible(ctx, limit*4, o.Config.Labels)
	if err != nil {
		return nil, "", err
	}
	if len(candidates) == 0 {
		return nil, "no eligible tasks available", nil
	}

	budget := o.Monitor.RemainingBudget(time.Now())
	var acquired []acquiredTask
	var lastReason string

	for _, task := range candidates {
		if len(acquired) >= limit {
			break
		}
		if _, inProgress := state.TasksInProgress[task.TaskID]; inProgress {
			continue
		}

		ok, reason, err := o.Rails.Validate(ctx, task.TaskID)
		if err != nil {
			o.Logger.Error("validating task", "task_id", task.TaskID, "error", err)
			continue
		}
		if !ok {
			lastReason = reason
			o.Events.Publish(events.TopicTask, events.TaskRejectedEvent{ID: task.TaskID, Reason: reason, Timestamp: time.Now()})
			continue
		}

		estimate := safety.EstimateCost(task)
		if estimate.EstimatedCostUSD > budget.CostUSD {
			lastReason = fmt.Sprintf("estimated cost $%.2f exceeds remaining budget $%.2f", estimate.EstimatedCostUSD, budget.CostUSD)
			continue
		}

		route := o.Router.Route(task)
		if _, ok := o.Handlers.Resolve(route); !ok {
			route = router.RouteClaudeCode
		}

		wt, err := o.acquireWorktree(task.TaskID)
		if err != nil {
			o.Logger.Warn("creating worktree", "task_id", task.TaskID, "error", err)
			continue
		}

		state.MarkInProgress(task.TaskID, wt.Path)
		if !o.Config.DryRun {
			if err := o.Backlog.UpdateStatus(ctx, task.TaskID, model.StatusInProgress); err != nil {
				o.Logger.Warn("updating backlog status", "task_id", task.TaskID, "error", err)
			}
		}
		budget.CostUSD -= estimate.EstimatedCostUSD

		now := time.Now()
		o.Events.Publish(events.TopicTask, events.TaskAcquiredEvent{ID: task.TaskID, Route: route, Timestamp: now})
		if wt.Path != "" {
			o.Events.Publish(events.TopicTask, events.WorktreeCreatedEvent{ID: task.TaskID, WorktreePath: wt.Path, Branch: wt.Branch, Timestamp: now})
		}

		acquired = append(acquired, acquiredTask{task: task, wt: wt, route: route})
	}

	return acquired, lastReason, nil
}

// acquireWorktree creates a real worktree, unless the session is in dry-run
// mode, in which case it fabricates an Info carrying no filesystem path so
// downstream code never shells out against it.
func (o *Orchestrator) acquireWorktree(taskID string) (*worktree.Info, error) {
	if o.Config.DryRun {
		return &worktree.Info{TaskID: taskID, Branch: fmt.Sprintf("autonomous/%s", taskID)}, nil
	}
	return o.Worktrees.Create(taskID)
}

// runTask executes one acquired task's handler and folds the outcome back
// into shared session state. mu guards every read/write of state (the
// SafetyRails/SafetyMonitor counters carry their own locks); it is released for the duration of the
// handler call and any VCS/worktree subprocess, so one slow task never stalls
// the rest of the wave.
func (o *Orchestrator) runTask(ctx context.Context, state *model.SessionState, mu *sync.Mutex, at acquiredTask) {
	h, ok := o.Handlers.Resolve(at.route)
	if !ok {
		h, _ = o.Handlers.Resolve(router.RouteClaudeCode)
	}

	timeout := time.Duration(o.Config.PerTaskTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = time.Hour
	}

	o.Events.Publish(events.TopicTask, events.HandlerStartedEvent{ID: at.task.TaskID, Route: at.route, Timestamp: time.Now()})
	taskStart := time.Now()

	if o.Config.DryRun {
		result := model.ExecutionResult{Success: true, Output: "dry run: handler execution and VCS writes skipped"}
		o.Events.Publish(events.TopicTask, events.HandlerCompletedEvent{ID: at.task.TaskID, Success: true, Timestamp: time.Now()})
		mu.Lock()
		state.MarkCompleted(at.task.TaskID, &result)
		mu.Unlock()
		return
	}

	result, err := h.Execute(ctx, at.task, at.wt.Path, timeout)
	if err != nil {
		result = model.ExecutionResult{Success: false, ExitCode: -1, Error: err.Error()}
	}

	o.Events.Publish(events.TopicTask, events.HandlerCompletedEvent{
		ID: at.task.TaskID, Success: result.Success, DurationSec: result.DurationSec, CostUSD: result.CostUSD, Timestamp: time.Now(),
	})

	outcome := o.Processor.Process(ctx, at.task, at.wt, result, at.route, taskStart)
	o.Events.Publish(events.TopicTask, events.ResultProcessedEvent{ID: at.task.TaskID, Status: resultStatus(outcome), PRURL: outcome.PRURL, Timestamp: time.Now()})

	switch {
	case outcome.Success:
		o.Rails.RecordSuccess(at.task.TaskID)
		o.Monitor.RecordSuccess(result.CostUSD)
		mu.Lock()
		state.MarkCompleted(at.task.TaskID, &result)
		mu.Unlock()

	case outcome.Blocked:
		mu.Lock()
		state.MarkSkipped(at.task.TaskID)
		mu.Unlock()
		if err := o.Worktrees.Cleanup(at.task.TaskID, true, false); err != nil {
			o.Logger.Warn("cleaning up blocked task's worktree", "task_id", at.task.TaskID, "error", err)
		}

	default:
		o.Rails.RecordFailure(at.task.TaskID, outcome.Error)
		o.Monitor.RecordFailure()
		mu.Lock()
		state.MarkFailed(at.task.TaskID)
		mu.Unlock()
		if err := o.Worktrees.Cleanup(at.task.TaskID, true, true); err != nil {
			o.Logger.Warn("cleaning up failed task's worktree", "task_id", at.task.TaskID, "error", err)
		}
	}
}

func resultStatus(o resultprocessor.Outcome) string {
	switch {
	case o.Success:
		return "pr_opened"
	case o.Blocked:
		return "blocked"
	default:
		return "retry_scheduled"
	}
}

// assembledHandler adapts a ClaudeCodeHandler plus a contextassembler into a
// plain handler.Handler, so the context-assembly step sits in front of every
// claude_code invocation without widening the Handler interface.
type assembledHandler struct {
	inner     *handler.ClaudeCodeHandler
	assembler *contextassembler.Assembler
}

func (h *assembledHandler) Execute(ctx context.Context, task model.TaskSpec, worktreePath string, timeout time.Duration) (model.ExecutionResult, error) {
	prompt := h.assembler.Assemble(ctx, task, worktreePath)
	return h.inner.ExecuteWithContext(ctx, task, worktreePath, timeout, prompt)
}
