package testutil

import (
	"context"
	"fmt"
	"sync"
)

// Response is the canned result of one remote command.
type Response struct {
	Output string
	Err    error
}

// FakeRunner is an in-memory remote.Runner. Commands are answered from
// Responses; unknown commands fail.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []string
	closed    bool
}

// NewFakeRunner creates a runner answering the given commands.
func NewFakeRunner(responses map[string]Response) *FakeRunner {
	if responses == nil {
		responses = make(map[string]Response)
	}
	return &FakeRunner{responses: responses}
}

// Set replaces the response for command.
func (f *FakeRunner) Set(command string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[command] = resp
}

// Run implements remote.Runner.
func (f *FakeRunner) Run(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	resp, ok := f.responses[command]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("unexpected command %q", command)
	}
	return resp.Output, resp.Err
}

// Close implements remote.Runner.
func (f *FakeRunner) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Calls returns the commands run so far, in order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times command was run.
func (f *FakeRunner) CallCount(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == command {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (f *FakeRunner) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
