package advisor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
)

// Default advisor orders. Lower runs first.
const (
	OrderMemory          = 0
	OrderExpansion       = 1
	OrderLogBeforeSearch = 2
	OrderRetrieval       = 3
	OrderLogAfterSearch  = 4
)

// Request is the model call being assembled by the advisors.
type Request struct {
	// Messages is the prompt: system message, history, and the user message last.
	Messages []ai.ChatMessage

	// UserText is the user's question as typed. Advisors never modify it.
	UserText string

	// Options are the sampling options for the model call.
	Options ai.GenerationOptions

	// Context carries values between advisors.
	Context *RequestContext
}

// Response is the result of the model call.
type Response struct {
	Text    string
	Context *RequestContext
}

// Advisor intercepts a model call. Before may change the request; After only observes.
type Advisor interface {
	Name() string
	Order() int
	Before(ctx context.Context, req *Request) error
	After(ctx context.Context, resp *Response) error
}

// ModelCall performs the model call once all Before hooks have run.
type ModelCall func(ctx context.Context, req *Request) (string, error)

// Chain runs advisors around a single model call.
type Chain struct {
	advisors []Advisor
}

// NewChain orders advisors by Order. Advisors with equal order keep their given order.
func NewChain(advisors ...Advisor) *Chain {
	sorted := slices.Clone(advisors)
	slices.SortStableFunc(sorted, func(a, b Advisor) int {
		return a.Order() - b.Order()
	})
	return &Chain{advisors: sorted}
}

// Advisors returns the advisors in execution order.
func (c *Chain) Advisors() []Advisor {
	return slices.Clone(c.advisors)
}

// Call runs every Before hook in order, calls the model once, then runs every
// After hook in the same order. A Before error aborts the call before the model
// is invoked. After hooks cannot change the returned text.
func (c *Chain) Call(ctx context.Context, req *Request, call ModelCall) (*Response, error) {
	if call == nil {
		return nil, errors.New("model call cannot be nil")
	}
	if req.Context == nil {
		req.Context = NewRequestContext()
	}

	for _, a := range c.advisors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := a.Before(ctx, req); err != nil {
			return nil, fmt.Errorf("advisor %s: %w", a.Name(), err)
		}
	}

	text, err := call(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, a := range c.advisors {
		resp := &Response{Text: text, Context: req.Context}
		if err := a.After(ctx, resp); err != nil {
			return nil, fmt.Errorf("advisor %s: %w", a.Name(), err)
		}
	}
	return &Response{Text: text, Context: req.Context}, nil
}

// replaceUserMessage swaps the trailing user message for content, or appends one.
func replaceUserMessage(req *Request, content string) {
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == core.RoleUser {
		req.Messages[n-1].Content = content
		return
	}
	req.Messages = append(req.Messages, ai.UserMessage(content))
}
