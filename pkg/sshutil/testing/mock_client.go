package testing

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"

	"github.com/gea-smc/gea/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error

	// Hang blocks until the context is done, then returns its error.
	Hang bool
}

// Call records one command received by the mock.
type Call struct {
	Command string
	Stdin   []byte
}

type patternResponse struct {
	re   *regexp.Regexp
	resp CommandResponse
}

// MockClient simulates a remote connection for testing.
// Commands are matched against registered patterns in registration order;
// unmatched commands succeed with no output.
type MockClient struct {
	mu        sync.Mutex
	host      string
	address   string
	closed    bool
	closes    int
	responses []patternResponse
	calls     []Call
}

var _ sshutil.SSHClient = (*MockClient)(nil)

// NewMockClient creates a new mock client.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:    host,
		address: host + ":22",
	}
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern is a regular expression matched anywhere in the command.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, patternResponse{re: regexp.MustCompile(pattern), resp: resp})
}

// Exec runs a command against the registered responses.
func (m *MockClient) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return m.ExecInput(ctx, cmd, nil)
}

// ExecInput records stdin and runs a command against the registered responses.
func (m *MockClient) ExecInput(ctx context.Context, cmd string, stdin io.Reader) (stdout, stderr []byte, exitCode int, err error) {
	var input []byte
	if stdin != nil {
		input, _ = io.ReadAll(stdin)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, -1, errors.New("connection closed")
	}
	m.calls = append(m.calls, Call{Command: cmd, Stdin: input})
	resp, ok := m.match(cmd)
	m.mu.Unlock()

	if !ok {
		return nil, nil, 0, nil
	}
	if resp.Hang {
		<-ctx.Done()
		return nil, nil, -1, ctx.Err()
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

func (m *MockClient) match(cmd string) (CommandResponse, bool) {
	for _, pr := range m.responses {
		if pr.re.MatchString(cmd) {
			return pr.resp, true
		}
	}
	return CommandResponse{}, false
}

// Calls returns every command received so far.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many commands were received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closes++
	return nil
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CloseCount returns how many times Close was called.
func (m *MockClient) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}
