// Package bedrock provides a model.Client backed by the AWS Bedrock Converse
// API, grounded on the teacher's features/model/bedrock.Client: split
// system vs. conversational messages, encode tool schemas into Bedrock's
// ToolConfiguration, translate Converse responses (text + tool_use blocks)
// back into the provider-agnostic model shapes.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/veupathdb/strategy-delegate/delegate/agent/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client used by
// the adapter, matching *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	MaxTokens    int32
	Temperature  float32
}

// Client implements model.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	model   string
	maxTok  int32
	temp    float32
}

// New builds a Bedrock-backed model client.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &Client{runtime: opts.Runtime, model: opts.DefaultModel, maxTok: maxTok, temp: opts.Temperature}, nil
}

func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	if len(req.Messages) == 0 {
		return model.Response{}, errors.New("bedrock: messages are required")
	}

	msgs := make([]brtypes.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleUser:
			msgs = append(msgs, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		case model.RoleAssistant:
			msgs = append(msgs, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		case model.RoleFunction:
			msgs = append(msgs, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolResult{
					Value: brtypes.ToolResultBlock{
						ToolUseId: aws.String(m.ToolCallID),
						Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: m.Content}},
					},
				}},
			})
		}
	}

	var toolConfig *brtypes.ToolConfiguration
	if len(req.Tools) > 0 {
		specs := make([]brtypes.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			specs = append(specs, &brtypes.ToolMemberToolSpec{
				Value: brtypes.ToolSpec{
					Name:        aws.String(t.Name),
					Description: aws.String(t.Description),
					InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(t.Schema)},
				},
			})
		}
		toolConfig = &brtypes.ToolConfiguration{Tools: specs}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.model),
		Messages: msgs,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTok),
			Temperature: aws.Float32(c.temp),
		},
		ToolConfig: toolConfig,
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.System}}
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException" {
			return model.Response{}, model.ErrRateLimited{}
		}
		return model.Response{}, err
	}
	return translateOutput(out)
}

func translateOutput(out *bedrockruntime.ConverseOutput) (model.Response, error) {
	member, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return model.Response{}, errors.New("bedrock: unexpected converse output shape")
	}

	var text strings.Builder
	var calls []model.ToolCall
	for _, block := range member.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			var args map[string]any
			_ = b.Value.Input.UnmarshalSmithyDocument(&args)
			argsJSON, _ := jsonMarshal(args)
			calls = append(calls, model.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: string(argsJSON),
			})
		}
	}
	return model.Response{Message: model.Message{
		Role:      model.RoleAssistant,
		Content:   text.String(),
		ToolCalls: calls,
	}}, nil
}

func jsonMarshal(v any) ([]byte, error) { return json.Marshal(v) }
