package history

import (
	"context"
	"errors"
	"sync"

	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []provider.Request
	fn    func(req provider.Request) (provider.Completion, error)
}

func (f *fakeGateway) Complete(ctx context.Context, req provider.Request) (provider.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return provider.Completion{}, err
	}
	return f.fn(req)
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGateway) callsWithSchema(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Schema != nil && c.Schema.Name == name {
			n++
		}
	}
	return n
}

func lastUserMessage(req provider.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

func dataCompletion(desc, cat string, topics any) provider.Completion {
	return provider.Completion{Data: map[string]any{
		"description": desc,
		"category":    cat,
		"topics":      topics,
	}}
}

func timeoutFailure() error {
	return &provider.Failure{Kind: provider.FailureTimeout, Err: context.DeadlineExceeded}
}

func transportFailure() error {
	return &provider.Failure{Kind: provider.FailureTransport, StatusCode: 502, Err: errors.New("bad gateway")}
}
