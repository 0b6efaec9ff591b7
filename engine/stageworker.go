package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/flowforge/agentcore/agenterrors"
	"github.com/flowforge/agentcore/agentlog"
	"github.com/flowforge/agentcore/llm"
	"github.com/flowforge/agentcore/spec"
	"github.com/flowforge/agentcore/tool"
)

// StageWorker runs the LLM-tool interaction loop for one stage. It keeps
// no explicit idle/executing state and never terminates itself; the same
// worker serves every execute command for its node.
type StageWorker struct {
	name      string
	client    llm.Client
	tools     map[string]tool.Tool
	states    *StateManager
	logger    agentlog.Logger
	maxRounds int

	mu      sync.Mutex
	history []spec.Message
}

// NewStageWorker builds a StageWorker bound to one stage name, its
// LLMClient, and the tools it may invoke (keyed by name). maxRounds
// bounds the tool loop; fixes this at five for the reference runtime.
func NewStageWorker(name string, client llm.Client, tools map[string]tool.Tool, states *StateManager, logger agentlog.Logger, maxRounds int) *StageWorker {
	if logger == nil {
		logger = agentlog.NoOpLogger{}
	}
	if states == nil {
		states = NewStateManager(nil, logger)
	}
	if maxRounds <= 0 {
		maxRounds = 5
	}
	return &StageWorker{name: name, client: client, tools: tools, states: states, logger: logger, maxRounds: maxRounds}
}

// UpdateMessages appends to (or, if reset is true, replaces) the
// worker's private history — used for stateful agents receiving ad-hoc
// user messages while idle.
func (w *StageWorker) UpdateMessages(message spec.Message, reset bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if reset {
		w.history = []spec.Message{message}
		return
	}
	w.history = append(w.history, message)
}

// History returns a copy of the worker's current conversation history.
func (w *StageWorker) History() []spec.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]spec.Message, len(w.history))
	copy(out, w.history)
	return out
}

func toolDeclarations(tools []spec.ToolRef, registry map[string]tool.Tool) []tool.Declaration {
	out := make([]tool.Declaration, 0, len(tools))
	for _, t := range tools {
		if impl, ok := registry[t.Name]; ok {
			out = append(out, impl.Info())
		}
	}
	return out
}

// Execute receives the execute command: builds the outbound message
// list from prior history plus the stage's prompt messages (appended as
// given; no template substitution is done), and runs
// the LLM-tool loop. It returns the stage's final StageResult (either a
// completed message or an error) along with the worker's resulting
// agent-state snapshot, which the caller (BatchManager/Coordinator)
// adopts.
func (w *StageWorker) Execute(ctx context.Context, name string, st spec.Stage, taskCtx map[string]interface{}) StageResult {
	agentState := taskCtx["current_agent_state"]

	if cbResult, cbErr := w.states.StageStart(ctx, name, agentState); cbErr != nil {
		w.logger.Warn("stage_start callback failed", map[string]interface{}{"stage": name, "error": cbErr.Error()})
	} else {
		agentState = cbResult.Adopt(agentState)
	}

	if st.LLM == nil {
		return StageResult{Name: name, Result: nil, AgentState: agentState}
	}

	w.mu.Lock()
	messages := append([]spec.Message{}, w.history...)
	messages = append(messages, st.LLM.PromptMessages...)
	w.mu.Unlock()

	declarations := toolDeclarations(st.LLM.Tools, w.tools)

	for round := 0; round < w.maxRounds; round++ {
		resp, err := w.client.Completion(ctx, st.LLM.Model, messages, declarations, st.LLM.Params)
		if err != nil {
			return StageResult{Name: name, Err: agenterrors.New("stageworker.completion", agenterrors.KindExternal, name, err), AgentState: agentState}
		}

		fc, isCall := resp.FunctionCall()
		if !isCall {
			messages = append(messages, resp.Message)
			w.mu.Lock()
			w.history = messages
			w.mu.Unlock()
			return StageResult{Name: name, Result: resp.Message, AgentState: agentState}
		}

		messages = append(messages, resp.Message)

		impl, known := w.tools[fc.Name]
		if !known {
			messages = append(messages, undeclaredToolMessage(fc))
			continue
		}

		cbResult, cbErr := w.states.ToolCall(ctx, fc.Name, fc.Args, agentState)
		if cbErr != nil {
			w.logger.Warn("tool_call callback failed", map[string]interface{}{"stage": name, "tool": fc.Name, "error": cbErr.Error()})
		} else {
			agentState = cbResult.Adopt(agentState)
		}

		resultPart := w.runTool(ctx, impl, fc)

		outcome := ToolOutcome{Value: resultPart.Result}
		if resultPart.Error != "" {
			outcome.Err = resultPart.Error
		}
		cbResult, cbErr = w.states.ToolResult(ctx, fc.Name, outcome, agentState)
		if cbErr != nil {
			w.logger.Warn("tool_result callback failed", map[string]interface{}{"stage": name, "tool": fc.Name, "error": cbErr.Error()})
		} else {
			agentState = cbResult.Adopt(agentState)
		}

		messages = append(messages, spec.Message{Role: "user", Parts: []spec.MessagePart{resultPart}})
	}

	w.mu.Lock()
	w.history = messages
	w.mu.Unlock()
	return StageResult{Name: name, Err: agenterrors.ErrMaxToolIterations, AgentState: agentState}
}

func undeclaredToolMessage(fc spec.FunctionCallPart) spec.Message {
	return spec.Message{Role: "user", Parts: []spec.MessagePart{
		FunctionResultOf(fc, nil, fmt.Sprintf("tool %q is not declared for this stage", fc.Name)),
	}}
}

// runTool executes a declared tool, converting any error (whether a
// *tool.Error or a plain error) into a FunctionResultPart so the
// failure is fed back to the LLM as a recoverable message rather than
// aborting the stage.
func (w *StageWorker) runTool(ctx context.Context, impl tool.Tool, fc spec.FunctionCallPart) spec.FunctionResultPart {
	out, err := impl.Run(ctx, fc.Args)
	if err != nil {
		return FunctionResultOf(fc, nil, err.Error())
	}
	return FunctionResultOf(fc, out, "")
}

// FunctionResultOf builds the FunctionResultPart that answers a given
// FunctionCallPart, carrying either a result value or an error string.
func FunctionResultOf(fc spec.FunctionCallPart, result json.RawMessage, errMsg string) spec.FunctionResultPart {
	return spec.FunctionResultPart{ID: fc.ID, Name: fc.Name, Result: result, Error: errMsg}
}

var _ dispatchable = (*StageWorker)(nil)
