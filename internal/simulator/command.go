// Package simulator invokes the external detection simulator and waits for
// it to produce a complete detection log.
package simulator

import (
	"context"
	"os/exec"
)

// CommandExecutor defines an interface for executing a simulator process.
// This abstraction enables unit testing without spawning real processes.
type CommandExecutor interface {
	// Run starts the process, waits for it to exit and returns the combined
	// output (stdout+stderr).
	Run() ([]byte, error)

	// SetDir sets the working directory of the process.
	SetDir(dir string)
}

// CommandBuilder builds simulator processes bound to a context. Cancelling
// the context kills the process.
type CommandBuilder interface {
	BuildCommand(ctx context.Context, name string, args ...string) CommandExecutor
}

// RealCommandExecutor wraps exec.Cmd to implement CommandExecutor.
type RealCommandExecutor struct {
	cmd *exec.Cmd
}

// Run executes the command and returns combined output.
func (r *RealCommandExecutor) Run() ([]byte, error) {
	return r.cmd.CombinedOutput()
}

// SetDir sets the working directory.
func (r *RealCommandExecutor) SetDir(dir string) {
	r.cmd.Dir = dir
}

// RealCommandBuilder implements CommandBuilder using exec.CommandContext.
type RealCommandBuilder struct{}

// NewRealCommandBuilder creates a new RealCommandBuilder.
func NewRealCommandBuilder() *RealCommandBuilder {
	return &RealCommandBuilder{}
}

// BuildCommand creates a CommandExecutor for the given command and arguments.
func (b *RealCommandBuilder) BuildCommand(ctx context.Context, name string, args ...string) CommandExecutor {
	return &RealCommandExecutor{cmd: exec.CommandContext(ctx, name, args...)}
}

// MockCommandExecutor implements CommandExecutor for testing.
type MockCommandExecutor struct {
	// Output is the output to return from Run.
	Output []byte
	// Err is the error to return from Run.
	Err error
	// Dir holds the working directory that was set.
	Dir string
	// RunCalled indicates whether Run was called.
	RunCalled bool
	// OnRun, if set, is invoked from Run before returning, e.g. to write the
	// detection log the way a real simulator would.
	OnRun func() error
}

// Run returns the configured output and error.
func (m *MockCommandExecutor) Run() ([]byte, error) {
	m.RunCalled = true
	if m.OnRun != nil {
		if err := m.OnRun(); err != nil {
			return m.Output, err
		}
	}
	return m.Output, m.Err
}

// SetDir records the working directory.
func (m *MockCommandExecutor) SetDir(dir string) {
	m.Dir = dir
}

// MockCommandBuilder implements CommandBuilder for testing.
type MockCommandBuilder struct {
	// Commands records all commands that were built.
	Commands []MockBuiltCommand
	// NextExecutor is the next executor to return. If nil, creates a default MockCommandExecutor.
	NextExecutor *MockCommandExecutor
}

// MockBuiltCommand records details of a built command.
type MockBuiltCommand struct {
	Name string
	Args []string
}

// NewMockCommandBuilder creates a new MockCommandBuilder.
func NewMockCommandBuilder() *MockCommandBuilder {
	return &MockCommandBuilder{}
}

// BuildCommand creates a MockCommandExecutor and records the command details.
func (b *MockCommandBuilder) BuildCommand(_ context.Context, name string, args ...string) CommandExecutor {
	b.Commands = append(b.Commands, MockBuiltCommand{Name: name, Args: args})
	if b.NextExecutor != nil {
		executor := b.NextExecutor
		b.NextExecutor = nil
		return executor
	}
	return &MockCommandExecutor{}
}

// LastCommand returns the most recently built command, or nil if none.
func (b *MockCommandBuilder) LastCommand() *MockBuiltCommand {
	if len(b.Commands) == 0 {
		return nil
	}
	return &b.Commands[len(b.Commands)-1]
}
