package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/metrics"
)

const (
	DefaultMaxToolRounds = 1

	roundLimitNotice = "Tool call limit reached for this question. Answer now using the information already retrieved."

	baseSystemPrompt = `You are an assistant for questions about course materials, with two tools:
- search_course_content: searches lesson text, optionally narrowed to a course and a lesson number.
- get_course_outline: returns a course's title, link, instructor and numbered lesson list.

Use get_course_outline for questions about a course's structure or lesson list, and search_course_content for questions about what a course teaches.
Answer general knowledge questions directly, without tools.
If a tool finds nothing, say so plainly.
Do not mention the tools or the search in your answer; give the answer itself, brief and accurate. Include examples when they help.`
)

type OrchestratorOptions struct {
	// MaxToolRounds bounds how many capability calls one query may execute.
	MaxToolRounds int
	// Timeout applies to every model request; capabilities carry their own timeouts.
	Timeout time.Duration
	Debug   bool
}

// Answer is the result of one protocol run. Sources are de-duplicated, in call order.
type Answer struct {
	Text    string
	Sources []Source
}

type runState int

const (
	stateAwaitingModel runState = iota
	stateExecuting
	stateDone
)

// Orchestrator drives the exchange between the model and the capabilities for one query:
// request, optionally execute one capability and feed its result back, until an answer.
type Orchestrator struct {
	model LanguageModel
	tools *ToolRegistry
	opts  OrchestratorOptions
}

func NewOrchestrator(model LanguageModel, tools *ToolRegistry, opts OrchestratorOptions) *Orchestrator {
	if opts.MaxToolRounds < 0 {
		opts.MaxToolRounds = 0
	}
	return &Orchestrator{model: model, tools: tools, opts: opts}
}

// run is the request-scoped state of one query.
type run struct {
	state       runState
	messages    []Message
	rounds      int
	limitNotice bool
	pending     *CapabilityCall
	answer      string
	sources     []Source
	seen        map[string]bool
}

func (r *run) addSources(sources []Source) {
	for _, s := range sources {
		if r.seen[s.Text] {
			continue
		}
		r.seen[s.Text] = true
		r.sources = append(r.sources, s)
	}
}

// Run answers query given the prior turns of the session. Only model failures are returned,
// always wrapping ErrGenerationFailed; capability failures are fed back to the model as text.
func (o *Orchestrator) Run(ctx context.Context, query string, history []Turn) (*Answer, error) {
	r := &run{
		state:    stateAwaitingModel,
		messages: []Message{{Role: RoleUser, Text: query}},
		seen:     make(map[string]bool),
	}

	for r.state != stateDone {
		switch r.state {
		case stateAwaitingModel:
			if err := o.awaitModel(ctx, r, history); err != nil {
				return nil, err
			}
		case stateExecuting:
			o.execute(ctx, r)
		}
	}
	return &Answer{Text: r.answer, Sources: r.sources}, nil
}

func (o *Orchestrator) awaitModel(ctx context.Context, r *run, history []Turn) error {
	allow := r.rounds < o.opts.MaxToolRounds
	req := ModelRequest{
		System:               baseSystemPrompt,
		History:              history,
		Messages:             r.messages,
		Capabilities:         o.tools.Definitions(),
		AllowCapabilityCalls: allow,
	}
	if o.opts.MaxToolRounds == 0 {
		req.Capabilities = nil
	}

	reply, err := o.generate(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if o.opts.Debug {
		log.Printf("Model reply (round %d, tools allowed %t): %s", r.rounds, allow, reply.Kind)
	}

	switch reply.Kind {
	case ReplyAnswer:
		if strings.TrimSpace(reply.Text) == "" {
			return fmt.Errorf("%w: model returned an empty answer", ErrGenerationFailed)
		}
		r.answer = reply.Text
		r.state = stateDone
		return nil
	case ReplyCapabilityCall:
		if reply.Call == nil || reply.Call.Name == "" {
			return fmt.Errorf("%w: capability call without a name", ErrGenerationFailed)
		}
		r.messages = append(r.messages, Message{Role: RoleAssistant, Text: reply.Text, Call: reply.Call})
		if allow {
			r.pending = reply.Call
			r.state = stateExecuting
			return nil
		}
		// Over the cap: refuse once, then give up.
		metrics.CapabilityCallsTotal.WithLabelValues(reply.Call.Name, "refused").Inc()
		if r.limitNotice {
			return fmt.Errorf("%w: model kept requesting %q after the tool round limit", ErrGenerationFailed, reply.Call.Name)
		}
		log.Printf("Refusing capability call %q: tool round limit (%d) reached", reply.Call.Name, o.opts.MaxToolRounds)
		r.limitNotice = true
		r.messages = append(r.messages, Message{
			Role:   RoleCapability,
			Result: &CapabilityResult{CallID: reply.Call.ID, Name: reply.Call.Name, Content: roundLimitNotice},
		})
		return nil
	default:
		return fmt.Errorf("%w: unexpected reply kind %d", ErrGenerationFailed, reply.Kind)
	}
}

func (o *Orchestrator) execute(ctx context.Context, r *run) {
	call := r.pending
	r.pending = nil
	r.rounds++

	if o.opts.Debug {
		log.Printf("Executing capability %q with args %v", call.Name, sortedArgNames(call.Args))
	}
	content := ""
	out, err := o.tools.Execute(ctx, call.Name, call.Args)
	switch {
	case err != nil:
		log.Printf("Capability %q failed: %v", call.Name, err)
		metrics.CapabilityCallsTotal.WithLabelValues(call.Name, capabilityOutcome(err)).Inc()
		content = err.Error()
	default:
		metrics.CapabilityCallsTotal.WithLabelValues(call.Name, "ok").Inc()
		content = out.Content
		r.addSources(out.Sources)
	}

	r.messages = append(r.messages, Message{
		Role:   RoleCapability,
		Result: &CapabilityResult{CallID: call.ID, Name: call.Name, Content: content},
	})
	r.state = stateAwaitingModel
}

func (o *Orchestrator) generate(ctx context.Context, req ModelRequest) (ModelReply, error) {
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := o.model.Generate(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	metrics.ModelRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return reply, err
}

func capabilityOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNoCourseFound):
		return "no_course"
	case errors.Is(err, ErrInvalidFilter):
		return "invalid_filter"
	case errors.Is(err, ErrUnknownCapability):
		return "unknown"
	default:
		return "error"
	}
}
