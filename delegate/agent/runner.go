package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veupathdb/strategy-delegate/delegate/agent/model"
	"github.com/veupathdb/strategy-delegate/delegate/toolregistry"
)

// maxRoundTurns bounds a single full_round_stream call's tool-call/response
// cycles, guarding against a model that never stops calling tools. The
// Python original has no explicit cap (Kani's own internal loop limit
// applies instead); this implementation makes the bound explicit.
const maxRoundTurns = 25

// Runner is a generic, provider-agnostic SubAgentEngine: it drives a
// model.Client through a tool-calling loop against a toolregistry.Registry
// until the model stops requesting tools, mirroring full_round_stream's
// observable shape without being tied to any one provider SDK.
type Runner struct {
	Client   model.Client
	Registry *toolregistry.Registry
	System   string
	Tools    []model.ToolDecl
}

// NewRunner constructs a Runner. tools declares the tool set visible to the
// model for this round (catalog + strategy-mutation tools, per spec.md
// section 6); it is typically derived from registry.Names() plus each
// tool's schema.
func NewRunner(client model.Client, registry *toolregistry.Registry, system string, tools []model.ToolDecl) *Runner {
	return &Runner{Client: client, Registry: registry, System: system, Tools: tools}
}

// FullRoundStream implements SubAgentEngine.
func (r *Runner) FullRoundStream(ctx context.Context, prompt string) (<-chan RoundMessage, <-chan error) {
	out := make(chan RoundMessage)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		history := []model.Message{{Role: model.RoleUser, Content: prompt}}

		for turn := 0; turn < maxRoundTurns; turn++ {
			resp, err := r.Client.Complete(ctx, model.Request{System: r.System, Messages: history, Tools: r.Tools})
			if err != nil {
				errCh <- fmt.Errorf("agent round: %w", err)
				return
			}

			assistantMsg := resp.Message
			select {
			case out <- assistantMsg:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			history = append(history, assistantMsg)

			if len(assistantMsg.ToolCalls) == 0 {
				return
			}

			for _, call := range assistantMsg.ToolCalls {
				callID := call.ID
				if callID == "" {
					callID = uuid.NewString()
				}
				result, err := r.Registry.Call(ctx, call.Name, []byte(call.Arguments))
				var content string
				if err != nil {
					content = fmt.Sprintf(`{"ok":false,"code":"INTERNAL_ERROR","message":%q}`, err.Error())
				} else {
					content = resultToJSON(result)
				}
				funcMsg := model.Message{Role: model.RoleFunction, ToolCallID: callID, Content: content}
				select {
				case out <- funcMsg:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
				history = append(history, funcMsg)
			}
		}
	}()

	return out, errCh
}

func resultToJSON(r toolregistry.Result) string {
	enc, err := marshalResult(r)
	if err != nil {
		return `{"ok":false,"code":"INTERNAL_ERROR","message":"failed to encode tool result"}`
	}
	return string(enc)
}
