// Package engine implements the agent execution engine: the Coordinator
// state machine and the managers/mediators it owns. Stage workers run
// concurrently with one another and with the coordinator, communicating only
// via asynchronous events; the coordinator itself processes exactly one event
// at a time on its own goroutine, matching the single-threaded-cooperative
// model describes.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/flowforge/agentcore/agenterrors"
	"github.com/flowforge/agentcore/agentlog"
	"github.com/flowforge/agentcore/dag"
	"github.com/flowforge/agentcore/memory"
	"github.com/flowforge/agentcore/runtimeconfig"
	"github.com/flowforge/agentcore/spec"
)

// StepCompleteFunc is the signature a caller registers via
// WithStepCallback to observe per-stage completions without implementing
// the full AgentCallbacks contract, grounded on gomind's
// orchestration.StepCompleteCallback: useful for an "async task + progress
// reporter" pattern layered over Execute/Start.
type StepCompleteFunc func(stageName string, result StageResult)

type stepCallbackKey struct{}

// WithStepCallback attaches cb to ctx so the coordinator invokes it once
// per completed stage, in addition to (not instead of) the
// stage_finish/progress AgentCallbacks. The context passed to Start must
// carry this for the callback to fire.
func WithStepCallback(ctx context.Context, cb StepCompleteFunc) context.Context {
	return context.WithValue(ctx, stepCallbackKey{}, cb)
}

func stepCallbackFrom(ctx context.Context) StepCompleteFunc {
	cb, _ := ctx.Value(stepCallbackKey{}).(StepCompleteFunc)
	return cb
}

// Phase is the coordinator's externally-visible state (get_results' phase
// enum).
type Phase string

const (
	PhasePlanningExecution      Phase = "planning_execution"
	PhaseWaitingForStageResults Phase = "waiting_for_stage_results"
	PhaseIdle                   Phase = "idle"
	PhaseCompleted              Phase = "completed"
)

// internal state-machine phases, a superset of the externally reported
// Phase: execute_nodes is folded into planning_execution for callers.
type internalPhase string

const (
	stWaitingForPlan        internalPhase = "waiting_for_plan"
	stExecuteNodes          internalPhase = "execute_nodes"
	stAwaitingStageResults  internalPhase = "awaiting_stage_results"
	stCompleted             internalPhase = "completed"
	stIdle                  internalPhase = "idle"
	stTerminated            internalPhase = "terminated"
)

func (p internalPhase) external() Phase {
	switch p {
	case stWaitingForPlan, stExecuteNodes:
		return PhasePlanningExecution
	case stAwaitingStageResults:
		return PhaseWaitingForStageResults
	case stIdle:
		return PhaseIdle
	default:
		return PhaseCompleted
	}
}

// event is the coordinator's internal event-queue element. Exactly one
// field is meaningful per event.
type event struct {
	kind         eventKind
	stageResult  StageResult
	message      spec.Message
	replyErr     chan error
	replyResults chan resultsReply
	nodeName     string
	replyNode    chan nodeReply
}

type eventKind int

const (
	evPlan eventKind = iota
	evExecute
	evStageResponse
	evMessage
	evGetResults
	evGetNodeResult
	evStop
)

type resultsReply struct {
	phase   Phase
	results map[string]interface{}
	stillProcessing bool
}

type nodeReply struct {
	result interface{}
	found  bool
}

// Coordinator is the per-agent state machine orchestrating the DAG,
// stage workers, and every manager/mediator.
type Coordinator struct {
	as       *spec.AgentSpec
	d        *dag.DAG
	workers  map[string]*StageWorker
	memoryMgr *memory.Manager
	opts     runtimeconfig.Options
	logger   agentlog.Logger

	results  *ResultManager
	batch    *BatchManager
	progress *ProgressTracker
	states   *StateManager
	errs     *ErrorHandler

	mu                sync.Mutex
	phase             internalPhase
	agentState        interface{}
	input             interface{}
	terminationReason interface{}
	pendingNodes      []string
	preparedTasks     []NodeTask

	events chan event
	stop   chan struct{}
	wg     sync.WaitGroup
}

// Deps bundles the external collaborators a Coordinator needs beyond the
// spec itself.
type Deps struct {
	Workers       map[string]*StageWorker
	Callbacks     AgentCallbacks
	MemoryMgr     *memory.Manager
	Opts          runtimeconfig.Options
	Logger        agentlog.Logger
	ErrorBackoff  func() backoff.BackOff // optional; defaults to cenkalti/backoff/v5's exponential backoff
}

// NewCoordinator validates as, builds and validates its DAG, and wires
// every manager/mediator. It does not start the event loop; call Start
// for that.
func NewCoordinator(as *spec.AgentSpec, initialState interface{}, input interface{}, deps Deps) (*Coordinator, error) {
	if err := spec.Validate(as); err != nil {
		return nil, fmt.Errorf("coordinator: invalid spec: %w", err)
	}

	inputs := make([]dag.StageInput, 0, len(as.Stages))
	for _, st := range as.Stages {
		inputs = append(inputs, dag.StageInput{Name: st.Name, Dependencies: st.DependsOn})
	}
	g := dag.Build(inputs)
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("coordinator: invalid dag: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = agentlog.NoOpLogger{}
	}

	states := NewStateManager(deps.Callbacks, logger)

	c := &Coordinator{
		as:         as,
		d:          g,
		workers:    deps.Workers,
		memoryMgr:  deps.MemoryMgr,
		opts:       deps.Opts,
		logger:     logger,
		results:    NewResultManager(),
		batch:      NewBatchManager(logger),
		progress:   NewProgressTracker(len(as.Stages)),
		states:     states,
		errs:       NewErrorHandler(states, deps.ErrorBackoff),
		phase:      stWaitingForPlan,
		agentState: initialState,
		input:      input,
		events:     make(chan event, 64),
		stop:       make(chan struct{}),
	}
	return c, nil
}

// Start runs the init callback and enters the event loop. It returns
// once init has completed; the loop itself runs on its own goroutine
// until Stop.
func (c *Coordinator) Start(ctx context.Context) error {
	result, err := c.states.Init(ctx, c.d, c.agentState)
	if err != nil {
		return fmt.Errorf("coordinator: init callback failed: %w", err)
	}
	c.agentState = result.Adopt(c.agentState)

	c.wg.Add(1)
	go c.loop(ctx)
	c.enqueue(event{kind: evPlan})
	return nil
}

// Stop terminates the event loop and tears down the coordinator's owned
// resources. Safe to call more than once; only the first call performs
// teardown: it emits a final telemetry notification carrying the
// termination reason and completed count, then terminates the memory
// manager transitively (stage workers hold no resources of their own to
// release beyond their in-memory history).
func (c *Coordinator) Stop() {
	select {
	case <-c.stop:
		c.wg.Wait()
		return
	default:
		close(c.stop)
	}
	c.wg.Wait()
	c.teardown()
}

func (c *Coordinator) teardown() {
	c.mu.Lock()
	reason := c.terminationReason
	phase := c.phase
	c.mu.Unlock()
	if reason == nil {
		reason = string(phase.external())
	}

	c.logger.Info("coordinator terminated", map[string]interface{}{
		"reason":          reason,
		"completed_count": c.results.CompletedCount(),
	})

	if c.memoryMgr != nil {
		if err := c.memoryMgr.TerminateAll(context.Background()); err != nil {
			c.logger.Error("memory manager teardown failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (c *Coordinator) enqueue(e event) {
	select {
	case c.events <- e:
	case <-c.stop:
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case e := <-c.events:
			c.handle(ctx, e)
			c.mu.Lock()
			terminal := c.phase == stTerminated
			c.mu.Unlock()
			if terminal {
				return
			}
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, e event) {
	switch e.kind {
	case evPlan:
		c.handlePlan(ctx)
	case evExecute:
		c.handleExecute(ctx)
	case evStageResponse:
		c.handleStageResponse(ctx, e.stageResult)
	case evMessage:
		e.replyErr <- c.handleMessage(ctx, e.message)
	case evGetResults:
		e.replyResults <- c.snapshotResults()
	case evGetNodeResult:
		e.replyNode <- c.snapshotNode(e.nodeName)
	case evStop:
		c.mu.Lock()
		c.phase = stTerminated
		c.mu.Unlock()
	}
}

// handlePlan implements waiting_for_plan : compute the ready set from completed
// results, run it through the plan callback, and either fall through to
// completion, detect no_nodes_ready, or materialize the next batch and move to
// execute_nodes.
func (c *Coordinator) handlePlan(ctx context.Context) {
	allNames := c.d.Names()
	completed := make(map[string]bool, len(allNames))
	for _, n := range allNames {
		if _, ok := c.results.Get(n); ok {
			completed[n] = true
		}
	}

	if len(completed) == len(allNames) {
		c.finishRun(ctx)
		return
	}

	ready := c.d.FindReadyNodes(completed)
	if len(ready) == 0 {
		c.errorPath(ctx, &ExecutionError{Cause: agenterrors.ErrNoNodesReady})
		return
	}

	planResult, err := c.states.Plan(ctx, ready, c.agentState)
	if err != nil {
		c.errorPath(ctx, &ExecutionError{Cause: err})
		return
	}
	c.mu.Lock()
	c.agentState = planResult.Adopt(c.agentState)
	c.mu.Unlock()

	effective := ready
	if planResult.Status == StatusOK && planResult.PlannedNodes != nil {
		effective = c.guardPlannedNodes(ready, planResult.PlannedNodes)
	}

	tasks := make([]NodeTask, 0, len(effective))
	for _, name := range effective {
		st, ok := c.stageByName(name)
		if !ok {
			continue
		}
		tasks = append(tasks, NodeTask{Name: name, Stage: st, Ctx: c.baseNodeCtx()})
	}

	c.mu.Lock()
	c.pendingNodes = effective
	c.phase = stExecuteNodes
	c.mu.Unlock()
	c.preparedTasks = tasks
	c.enqueue(event{kind: evExecute})
}

// guardPlannedNodes validates that a plan callback's filtered node list is
// a subset of the coordinator-computed ready set, downgrading to ready
// (with a logged warning) if the callback invents stage names that were
// never ready — mirrors gomind's hallucination guard on an LLM routing
// plan, applied here to the simpler plan-filtering callback contract.
func (c *Coordinator) guardPlannedNodes(ready, planned []string) []string {
	readySet := make(map[string]bool, len(ready))
	for _, n := range ready {
		readySet[n] = true
	}
	for _, n := range planned {
		if !readySet[n] {
			c.logger.Warn("plan callback returned a node outside the ready set; falling back to the computed ready set", map[string]interface{}{
				"hallucinated_node": n,
			})
			return ready
		}
	}
	return planned
}

func (c *Coordinator) stageByName(name string) (spec.Stage, bool) {
	for _, st := range c.as.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return spec.Stage{}, false
}

// baseNodeCtx builds the per-node context overlay for execute_nodes:
// dependency results plus global input and the agent spec, alongside
// whatever BatchManager.Prepare adds ("current_agent_state").
func (c *Coordinator) baseNodeCtx() map[string]interface{} {
	return map[string]interface{}{
		"dependency_results": c.results.All(),
		"global_input":       c.input,
		"agent_spec":         c.as,
		"memory_manager":     c.memoryMgr,
	}
}

// handleExecute implements execute_nodes: invoke batch_start, prepare the
// batch, and dispatch every node's worker concurrently. Results arrive
// back as evStageResponse events from worker goroutines.
func (c *Coordinator) handleExecute(ctx context.Context) {
	c.mu.Lock()
	nodes := c.pendingNodes
	state := c.agentState
	c.mu.Unlock()

	cbResult, err := c.states.BatchStart(ctx, nodes, state)
	if err != nil {
		c.errorPath(ctx, &ExecutionError{Cause: err})
		return
	}
	c.mu.Lock()
	c.agentState = cbResult.Adopt(c.agentState)
	c.mu.Unlock()

	c.batch.Prepare(c.preparedTasks, c.agentState)
	c.preparedTasks = nil

	c.mu.Lock()
	c.phase = stAwaitingStageResults
	c.mu.Unlock()

	workers := c.dispatchableWorkers()
	go c.batch.Dispatch(ctx, workers, func(res StageResult) {
		c.enqueue(event{kind: evStageResponse, stageResult: res})
	})
}

func (c *Coordinator) dispatchableWorkers() map[string]dispatchable {
	out := make(map[string]dispatchable, len(c.workers))
	for name, w := range c.workers {
		out[name] = w
	}
	return out
}

// handleStageResponse implements awaiting_stage_results: mediate
// stage_finish, update progress, and either remain awaiting the rest of
// the batch or commit it and return to waiting_for_plan.
func (c *Coordinator) handleStageResponse(ctx context.Context, sr StageResult) {
	if cb := stepCallbackFrom(ctx); cb != nil {
		cb(sr.Name, sr)
	}

	cbResult, cbErr := c.states.StageFinish(ctx, sr.Name, sr, c.agentState)
	if cbErr == nil {
		c.mu.Lock()
		c.agentState = cbResult.Adopt(c.agentState)
		c.mu.Unlock()
	}

	if sr.Err != nil {
		c.errorPath(ctx, &ExecutionError{Stage: sr.Name, Cause: sr.Err})
		return
	}
	if sr.AgentState != nil {
		c.mu.Lock()
		c.agentState = sr.AgentState
		c.mu.Unlock()
	}

	complete := c.batch.OnCompletion(sr.Name, sr.Result)

	stats := c.batch.Stats()
	c.progress.Update(c.results.CompletedCount() + stats.Completed)
	if progResult, err := c.states.Progress(ctx, c.progress.Info(), c.agentState); err == nil {
		c.mu.Lock()
		c.agentState = progResult.Adopt(c.agentState)
		c.mu.Unlock()
	}

	if !complete {
		return
	}

	batchResults := c.batch.Temp()
	c.results.CommitBatch(batchResults)

	allNames := c.d.Names()
	var pending []string
	for _, n := range allNames {
		if _, ok := c.results.Get(n); !ok {
			pending = append(pending, n)
		}
	}

	bcResult, err := c.states.BatchComplete(ctx, batchResults, pending, c.agentState)
	if err == nil {
		c.mu.Lock()
		c.agentState = bcResult.Adopt(c.agentState)
		c.mu.Unlock()
	}

	c.batch.Clear()
	c.mu.Lock()
	c.phase = stWaitingForPlan
	c.mu.Unlock()
	c.enqueue(event{kind: evPlan})
}

// errorPath centralizes every transition into ErrorHandler.Handle,
// translating its Decision into the corresponding state-machine move.
func (c *Coordinator) errorPath(ctx context.Context, errClass *ExecutionError) {
	decision := c.errs.Handle(ctx, errClass, c.agentState)
	if decision.State != nil {
		c.mu.Lock()
		c.agentState = decision.State
		c.mu.Unlock()
	}

	switch decision.Action {
	case ActionRetry:
		pending := c.batch.PendingTasks()
		if len(pending) == 0 {
			c.mu.Lock()
			c.phase = stWaitingForPlan
			c.mu.Unlock()
			c.enqueue(event{kind: evPlan})
			return
		}
		if err := c.errs.WaitBeforeRetry(ctx, 0); err != nil {
			c.mu.Lock()
			c.terminationReason = fmt.Sprintf("retry_backoff_failed: %v", err)
			c.finalizePhase()
			c.mu.Unlock()
			return
		}
		names := make([]string, 0, len(pending))
		workers := c.dispatchableWorkers()
		for _, t := range pending {
			names = append(names, t.Name)
		}
		go c.batch.DispatchNodes(ctx, names, workers, func(res StageResult) {
			c.enqueue(event{kind: evStageResponse, stageResult: res})
		})
	case ActionRestart:
		c.batch.Clear()
		c.mu.Lock()
		c.phase = stWaitingForPlan
		c.mu.Unlock()
		c.enqueue(event{kind: evPlan})
	default:
		c.mu.Lock()
		c.terminationReason = decision.Reason
		c.finalizePhase()
		c.mu.Unlock()
	}
}

// finishRun invokes the complete callback and moves to the terminal
// external phase: idle for stateful agents (which may still receive
// inbound messages), completed for stateless ones.
func (c *Coordinator) finishRun(ctx context.Context) {
	results := c.results.All()
	cbResult, err := c.states.Complete(ctx, results, c.agentState)
	if err == nil {
		c.mu.Lock()
		c.agentState = cbResult.Adopt(c.agentState)
		c.mu.Unlock()
	}
	c.mu.Lock()
	c.finalizePhase()
	c.mu.Unlock()
}

// finalizePhase sets phase to idle or completed depending on the
// agent's agent_state kind. Callers must hold c.mu.
func (c *Coordinator) finalizePhase() {
	if c.as.AgentConfig.AgentState == spec.StateStateful {
		c.phase = stIdle
	} else {
		c.phase = stCompleted
	}
}

// handleMessage implements the idle state's inbound-message handling
// (idle, §6 send_message): only a stateful agent sitting idle accepts a new
// message; it is forwarded to the entrypoint stage's worker, the prior run's
// results are archived, and the coordinator re-enters waiting_for_plan.
func (c *Coordinator) handleMessage(ctx context.Context, message spec.Message) error {
	if c.as.AgentConfig.AgentState != spec.StateStateful {
		return agenterrors.ErrNotStateful
	}
	if len(message.Parts) == 0 {
		return agenterrors.ErrInvalidMessageFormat
	}

	c.mu.Lock()
	phase := c.phase
	c.mu.Unlock()
	if phase != stIdle {
		return agenterrors.ErrStillProcessing
	}

	entry, ok := c.as.EntrypointStage()
	if !ok {
		return fmt.Errorf("coordinator: agent spec has no stages")
	}
	if worker, ok := c.workers[entry.Name]; ok {
		worker.UpdateMessages(message, false)
	}

	c.results.ArchiveCurrent()
	c.progress.Reset(len(c.d.Names()))
	c.batch.Clear()
	c.mu.Lock()
	c.phase = stWaitingForPlan
	c.mu.Unlock()
	c.enqueue(event{kind: evPlan})
	return nil
}

func (c *Coordinator) snapshotResults() resultsReply {
	c.mu.Lock()
	phase := c.phase
	c.mu.Unlock()
	return resultsReply{
		phase:           phase.external(),
		results:         c.results.All(),
		stillProcessing: phase == stAwaitingStageResults,
	}
}

func (c *Coordinator) snapshotNode(name string) nodeReply {
	v, ok := c.results.Get(name)
	return nodeReply{result: v, found: ok}
}
