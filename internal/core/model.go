package core

import "context"

type ReplyKind int

const (
	ReplyAnswer ReplyKind = iota
	ReplyCapabilityCall
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyAnswer:
		return "answer"
	case ReplyCapabilityCall:
		return "capability_call"
	default:
		return "unknown"
	}
}

type CapabilityCall struct {
	ID   string // provider call id, may be empty
	Name string
	Args map[string]any
}

type CapabilityResult struct {
	CallID  string
	Name    string
	Content string
}

// ModelReply is either a final answer (Text) or a request to run one capability (Call).
type ModelReply struct {
	Kind ReplyKind
	Text string
	Call *CapabilityCall
}

// Message is one entry of the in-flight exchange that follows the stored history: the user
// query, a capability call the model made, or the result fed back for it.
type Message struct {
	Role   Role
	Text   string
	Call   *CapabilityCall
	Result *CapabilityResult
}

type ModelRequest struct {
	System   string
	History  []Turn
	Messages []Message
	// Capabilities stay declared for the whole exchange; AllowCapabilityCalls decides whether
	// the model may call them on this request.
	Capabilities         []ToolDefinition
	AllowCapabilityCalls bool
}

// LanguageModel is the text generator behind the orchestrator.
type LanguageModel interface {
	Generate(ctx context.Context, req ModelRequest) (ModelReply, error)
}
