// Package agent implements the Agent/Engine external interface from spec.md
// section 6: full_round_stream semantics over a provider-agnostic
// model.Client, driving a tool registry until the model produces a final
// assistant message with no further tool calls. Grounded on the teacher's
// runtime/agent/stream and runtime/toolregistry/executor packages, and on
// the Python original's Kani.full_round_stream (transport/http/streaming.py).
package agent

import (
	"context"

	"github.com/veupathdb/strategy-delegate/delegate/agent/model"
)

// RoundMessage is one message in a full_round_stream sequence, matching
// spec.md section 6 exactly: assistant messages carry Content and optional
// ToolCalls; function messages carry ToolCallID and Content (the tool
// result serialized as JSON).
type RoundMessage = model.Message

// SubAgentEngine is spec.md section 6's "Agent / Engine" external interface.
type SubAgentEngine interface {
	// FullRoundStream sends prompt to the agent and returns a channel of
	// messages representing one full round: the model is driven through as
	// many tool-call/tool-result exchanges as it requests, terminating when
	// it produces a final assistant message with no tool calls. The channel
	// is closed when the round ends; a send error aborts the round and
	// surfaces as an error from the channel's final receive via errCh.
	FullRoundStream(ctx context.Context, prompt string) (<-chan RoundMessage, <-chan error)
}
