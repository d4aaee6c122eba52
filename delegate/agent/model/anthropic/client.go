// Package anthropic provides a model.Client backed by the Anthropic Messages
// API, grounded on the teacher's features/model/anthropic.Client.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/veupathdb/strategy-delegate/delegate/agent/model"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, matching sdk.MessageService's New method.
type MessagesClient interface {
	New(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error)
}

// Options configures the Anthropic adapter.
type Options struct {
	DefaultModel string
	MaxTokens    int64
	Temperature  float64
}

// Client implements model.Client via the Anthropic Messages API.
type Client struct {
	msg  MessagesClient
	opts Options
}

// New builds an Anthropic-backed model client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: message client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Client{msg: msg, opts: opts}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(client.Messages, Options{DefaultModel: defaultModel})
}

func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	if len(req.Messages) == 0 {
		return model.Response{}, errors.New("anthropic: messages are required")
	}

	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleUser:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case model.RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		case model.RoleFunction:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}

	tools := make([]sdk.ToolUnionParam, 0, len(req.Tools))
	for _, t := range req.Tools {
		u := sdk.ToolUnionParamOfTool(toInputSchema(t.Schema), t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		tools = append(tools, u)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.opts.DefaultModel),
		MaxTokens: c.opts.MaxTokens,
		Messages:  msgs,
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.msg.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
			return model.Response{}, model.ErrRateLimited{}
		}
		return model.Response{}, err
	}

	return translateResponse(resp), nil
}

func toInputSchema(schema map[string]any) sdk.ToolInputSchemaParam {
	if len(schema) == 0 {
		return sdk.ToolInputSchemaParam{}
	}
	return sdk.ToolInputSchemaParam{ExtraFields: schema}
}

func translateResponse(resp *sdk.Message) model.Response {
	var text strings.Builder
	var calls []model.ToolCall
	for _, block := range resp.Content {
		switch b := block.AsUnion().(type) {
		case sdk.TextBlock:
			text.WriteString(b.Text)
		case sdk.ToolUseBlock:
			args, _ := json.Marshal(b.Input)
			calls = append(calls, model.ToolCall{ID: b.ID, Name: b.Name, Arguments: string(args)})
		}
	}
	return model.Response{Message: model.Message{
		Role:      model.RoleAssistant,
		Content:   text.String(),
		ToolCalls: calls,
	}}
}
