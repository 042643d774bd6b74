package oracle

import (
	"context"
	"sync"
)

// Fake is a Model that returns canned replies.
type Fake struct {
	mu    sync.Mutex
	Reply string
	Err   error
	// Block, when set, is waited on before replying. Generate gives up with
	// ctx.Err() if ctx ends first.
	Block chan struct{}
	calls [][]Part
}

// Generate records the call and returns the canned reply.
func (f *Fake) Generate(ctx context.Context, parts []Part) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, parts)
	block := f.Block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reply, f.Err
}

// Calls returns how many requests were made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// LastParts returns the parts of the most recent request.
func (f *Fake) LastParts() []Part {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// SetReply changes the canned reply.
func (f *Fake) SetReply(reply string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reply = reply
}
