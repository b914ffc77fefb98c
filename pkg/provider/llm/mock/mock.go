// Package mock provides test doubles for the llm package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/hearken-ai/hearken/pkg/provider/llm"
)

// CompleteCall records a single invocation of Provider.Complete or
// Provider.StreamCompletion.
type CompleteCall struct {
	// Req is the request passed to the call.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider. Responses are consumed
// from Replies in order; once exhausted, the last reply repeats.
type Provider struct {
	mu sync.Mutex

	// Replies are the assistant responses returned in order.
	Replies []string

	// Err, if non-nil, is returned by Complete and StreamCompletion.
	Err error

	// Caps is returned by Capabilities.
	Caps llm.ModelCapabilities

	// Calls records every request in order.
	Calls []CompleteCall

	next int
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) nextReply() string {
	if len(p.Replies) == 0 {
		return ""
	}
	reply := p.Replies[min(p.next, len(p.Replies)-1)]
	p.next++
	return reply
}

// Complete records the call and returns the next scripted reply.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, CompleteCall{Req: req})
	if p.Err != nil {
		return nil, p.Err
	}
	return &llm.CompletionResponse{Content: p.nextReply()}, nil
}

// StreamCompletion records the call and emits the next scripted reply as a
// single chunk followed by a "stop" chunk.
func (p *Provider) StreamCompletion(_ context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, CompleteCall{Req: req})
	if p.Err != nil {
		p.mu.Unlock()
		return nil, p.Err
	}
	reply := p.nextReply()
	p.mu.Unlock()

	ch := make(chan llm.Chunk, 2)
	ch <- llm.Chunk{Text: reply}
	ch <- llm.Chunk{FinishReason: "stop"}
	close(ch)
	return ch, nil
}

// Capabilities returns Caps.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.Caps
}

// CallCount returns how many completion calls were made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
