package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/agentstart/agentstart-sub001/pkg/runtypes"
)

// StopPredicate decides, after each completed step, whether the loop
// should terminate. It is evaluated with the step count already
// incremented and the finish reason of the step just completed.
type StopPredicate func(step int, lastFinish FinishReason) bool

// StepCountIs returns the default stop predicate (§4.5): terminate
// once n steps have run.
func StepCountIs(n int) StopPredicate {
	return func(step int, _ FinishReason) bool { return step >= n }
}

// ToolConcurrency selects how a single step's tool calls are dispatched.
type ToolConcurrency int

const (
	// ToolSequential runs tool calls one at a time, in the order the
	// model emitted them. This is the spec's default (§9 Open Questions)
	// because it guarantees deterministic splicing without additional
	// bookkeeping.
	ToolSequential ToolConcurrency = 1
	// ToolParallel runs a step's tool calls concurrently; results are
	// still spliced back in the model's original emission order.
	ToolParallel ToolConcurrency = 2
)

// LoopConfig configures one AgenticLoop.
type LoopConfig struct {
	Provider     LLMProvider
	ProviderName string
	Model        string
	Tools        map[string]Tool
	StopWhen     StopPredicate
	Concurrency  ToolConcurrency
}

// AgenticLoop is the tool-loop scheduler (§4.5): calls the model,
// inspects finish reasons, dispatches tool calls, splices results back
// into the conversation, and terminates on the stop predicate.
type AgenticLoop struct {
	cfg LoopConfig
}

// NewAgenticLoop constructs a loop, filling in the default stop
// predicate and sequential tool dispatch when the caller leaves them
// zero-valued.
func NewAgenticLoop(cfg LoopConfig) *AgenticLoop {
	if cfg.StopWhen == nil {
		cfg.StopWhen = StepCountIs(100)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = ToolSequential
	}
	return &AgenticLoop{cfg: cfg}
}

// LoopResult is what Run hands back once the loop has terminated for
// any reason.
type LoopResult struct {
	Parts        []runtypes.Part
	FinishReason FinishReason
	Cancelled    bool
	NeedsApproval string
	Err          error
}

// Run executes the tool loop synchronously in the calling goroutine —
// the scheduling model is one logical task per thread (§5) — emitting
// every frame to emit as it is produced. history is the already
// provider-message-shaped conversation prefix (system prompt excluded;
// pass it via system).
func (l *AgenticLoop) Run(ctx context.Context, rc *RuntimeContext, system string, history []CompletionMessage, emit func(runtypes.StreamEvent)) LoopResult {
	messages := append([]CompletionMessage(nil), history...)
	var parts []runtypes.Part
	step := 0

	for {
		select {
		case <-ctx.Done():
			return LoopResult{Parts: parts, Cancelled: true, Err: ctx.Err()}
		default:
		}

		modelCtx := ctx
		var modelSpanEnd func()
		if rc != nil && rc.Tracer != nil {
			var span trace.Span
			modelCtx, span = rc.Tracer.TraceModelCall(ctx, l.cfg.ProviderName, l.cfg.Model)
			modelSpanEnd = span.End
		}

		deltas, err := l.cfg.Provider.Stream(modelCtx, CompletionRequest{
			Model:    l.cfg.Model,
			System:   system,
			Messages: messages,
			Tools:    l.toolSpecs(),
		})
		if modelSpanEnd != nil {
			modelSpanEnd()
		}
		if err != nil {
			emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: err.Error()})
			return LoopResult{Parts: parts, Err: err}
		}

		var textBuf, reasoningBuf strings.Builder
		var stepToolCalls []ToolCall
		finish := FinishStop
		var stepErr error

		flushText := func() {
			if textBuf.Len() > 0 {
				parts = append(parts, runtypes.Part{Type: runtypes.PartText, Text: textBuf.String()})
				textBuf.Reset()
			}
		}
		flushReasoning := func() {
			if reasoningBuf.Len() > 0 {
				parts = append(parts, runtypes.Part{Type: runtypes.PartReasoning, Text: reasoningBuf.String()})
				reasoningBuf.Reset()
			}
		}

	drain:
		for {
			select {
			case <-ctx.Done():
				return LoopResult{Parts: parts, Cancelled: true, Err: ctx.Err()}
			case delta, ok := <-deltas:
				if !ok {
					break drain
				}
				if delta.Err != nil {
					stepErr = delta.Err
					break drain
				}
				if delta.TextDelta != "" {
					flushReasoning()
					textBuf.WriteString(delta.TextDelta)
					emit(runtypes.StreamEvent{Type: runtypes.EventTextDelta, Delta: delta.TextDelta})
				}
				if delta.ReasoningDelta != "" {
					flushText()
					reasoningBuf.WriteString(delta.ReasoningDelta)
					emit(runtypes.StreamEvent{Type: runtypes.EventReasoningDelta, Delta: delta.ReasoningDelta})
				}
				if len(delta.ToolCalls) > 0 {
					flushText()
					flushReasoning()
					stepToolCalls = append(stepToolCalls, delta.ToolCalls...)
					for _, call := range delta.ToolCalls {
						parts = append(parts, runtypes.Part{
							Type:       runtypes.PartToolCall,
							ToolCallID: call.ID,
							ToolName:   call.Name,
							ToolInput:  call.Input,
						})
						emit(runtypes.StreamEvent{Type: runtypes.EventToolCall, ToolCallID: call.ID, ToolName: call.Name, ToolInput: call.Input})
					}
				}
				if delta.FinishReason != "" {
					finish = delta.FinishReason
				}
			}
		}

		if stepErr != nil {
			flushText()
			flushReasoning()
			emit(runtypes.StreamEvent{Type: runtypes.EventError, Message: stepErr.Error()})
			l.recordIteration(rc, FinishError)
			return LoopResult{Parts: parts, FinishReason: FinishError, Err: stepErr}
		}
		flushText()
		flushReasoning()

		if len(stepToolCalls) == 0 || finish != FinishToolCalls {
			emit(runtypes.StreamEvent{Type: runtypes.EventMessageFinish})
			l.recordIteration(rc, finish)
			return LoopResult{Parts: parts, FinishReason: finish}
		}

		results, needsApproval, err := l.dispatchTools(ctx, rc, stepToolCalls, emit)
		if needsApproval != "" {
			return LoopResult{Parts: parts, FinishReason: finish, NeedsApproval: needsApproval}
		}
		if err != nil {
			return LoopResult{Parts: parts, FinishReason: FinishError, Err: err, Cancelled: ctx.Err() != nil}
		}

		assistantToolCalls := make([]ToolCall, len(stepToolCalls))
		copy(assistantToolCalls, stepToolCalls)
		messages = append(messages, CompletionMessage{Role: runtypes.RoleAssistant, ToolCalls: assistantToolCalls})
		for _, r := range results {
			parts = append(parts, runtypes.Part{
				Type:       runtypes.PartToolResult,
				ToolCallID: r.ToolCallID,
				ToolOutput: r.Output,
				IsError:    r.IsError,
			})
			messages = append(messages, CompletionMessage{Role: runtypes.RoleTool, ToolResult: &ToolCallResult{
				ToolCallID: r.ToolCallID,
				Output:     r.Output,
				IsError:    r.IsError,
			}})
			emit(runtypes.StreamEvent{Type: runtypes.EventToolResult, ToolCallID: r.ToolCallID, ToolOutput: r.Output, IsError: r.IsError})
		}

		step++
		l.recordIteration(rc, finish)
		if l.cfg.StopWhen(step, finish) {
			emit(runtypes.StreamEvent{Type: runtypes.EventMessageFinish})
			return LoopResult{Parts: parts, FinishReason: finish}
		}
	}
}

// recordIteration records one completed loop step against the finish
// reason it ended with (§6 domain metrics).
func (l *AgenticLoop) recordIteration(rc *RuntimeContext, finish FinishReason) {
	if rc != nil && rc.Metrics != nil {
		rc.Metrics.RecordLoopIteration(string(finish))
	}
}

func (l *AgenticLoop) toolSpecs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(l.cfg.Tools))
	for _, t := range l.cfg.Tools {
		specs = append(specs, ToolSpec{Name: t.Name(), Description: t.Description(), InputSchema: t.InputSchema()})
	}
	return specs
}

// dispatchTools executes every call in calls and returns results in the
// exact order calls were emitted, regardless of dispatch concurrency
// (§4.5: "results MUST be spliced back ... in the exact order the
// model emitted them").
func (l *AgenticLoop) dispatchTools(ctx context.Context, rc *RuntimeContext, calls []ToolCall, emit func(runtypes.StreamEvent)) ([]ToolCallResult, string, error) {
	results := make([]ToolCallResult, len(calls))

	run := func(i int) (string, error) {
		call := calls[i]
		tool, ok := l.cfg.Tools[call.Name]
		if !ok || tool == nil {
			return call.Name, nil
		}

		toolCtx := ctx
		var span trace.Span
		if rc != nil && rc.Tracer != nil {
			toolCtx, span = rc.Tracer.TraceToolExecution(ctx, call.Name)
		}
		start := time.Now()

		ch := tool.Execute(toolCtx, rc, call.Input)
		var last ToolEvent
		for ev := range ch {
			if !ev.Terminal() && rc != nil && rc.Writer != nil && ev.Prompt != "" {
				rc.Writer.WriteProgress(call.ID, ev.Prompt)
			}
			last = ev
		}
		output := tool.ToModelOutput(last)
		isErr := last.Status == StatusError
		if output == nil {
			output, _ = json.Marshal(map[string]any{"status": last.Status})
		}
		results[i] = ToolCallResult{ToolCallID: call.ID, Output: output, IsError: isErr}

		if rc != nil && rc.Metrics != nil {
			outcome := "ok"
			if isErr {
				outcome = "error"
			}
			rc.Metrics.RecordToolExecution(call.Name, outcome, time.Since(start).Seconds())
		}
		if span != nil {
			if isErr && rc != nil && rc.Tracer != nil {
				rc.Tracer.RecordError(span, fmt.Errorf("tool %s: %s", call.Name, last.Status))
			}
			span.End()
		}
		return "", nil
	}

	if l.cfg.Concurrency == ToolParallel {
		var wg sync.WaitGroup
		var mu sync.Mutex
		var needsApproval string
		for i := range calls {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				na, _ := run(i)
				if na != "" {
					mu.Lock()
					needsApproval = na
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		if needsApproval != "" {
			return nil, needsApproval, nil
		}
		return results, "", nil
	}

	for i := range calls {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		default:
		}
		if na, err := run(i); na != "" || err != nil {
			return nil, na, err
		}
	}
	return results, "", nil
}
