package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// StdioClient implements Bridge by running the backend as a child process
// (normally `askkit serve --transport stdio`) and speaking line-delimited
// JSON-RPC over its stdin and stdout.
type StdioClient struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	rpc    *rpcConn
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewStdioClient starts the backend process and connects to it
func NewStdioClient(name string, args []string, logger *slog.Logger) (*StdioClient, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	cmd := exec.Command(name, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start backend process: %w", err)
	}

	client := newStdioClient(stdin, stdout, logger)
	client.cmd = cmd
	client.stderr = stderr

	// Start goroutine to log stderr
	go client.logStderr()

	logger.Info("started bridge stdio client", "command", name, "args", args)
	return client, nil
}

// newStdioClient speaks the protocol over an already connected pipe pair
func newStdioClient(stdin io.WriteCloser, stdout io.ReadCloser, logger *slog.Logger) *StdioClient {
	c := &StdioClient{
		stdin:  stdin,
		stdout: stdout,
		logger: logger,
		done:   make(chan struct{}),
	}
	c.rpc = newRPCConn(c.write, logger)
	go c.readLoop()
	return c
}

func (c *StdioClient) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	_, err := c.stdin.Write(append(b, '\n'))
	return err
}

func (c *StdioClient) readLoop() {
	defer close(c.done)
	scanner := bufio.NewScanner(c.stdout)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	for scanner.Scan() {
		c.rpc.handle(scanner.Bytes())
	}
	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("EOF from backend")
	}
	c.rpc.shutdown(err)
}

// Invoke runs a backend command
func (c *StdioClient) Invoke(ctx context.Context, cmd string, args any) (json.RawMessage, error) {
	return c.rpc.invoke(ctx, cmd, args)
}

// Listen subscribes to events written by the backend
func (c *StdioClient) Listen(event string, h Handler) func() {
	return c.rpc.events.Listen(event, h)
}

// Close stops the backend process
func (c *StdioClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	// Close pipes
	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.stdout != nil {
		c.stdout.Close()
	}
	if c.stderr != nil {
		c.stderr.Close()
	}
	c.mu.Unlock()

	// Kill process
	if c.cmd != nil && c.cmd.Process != nil {
		if err := c.cmd.Process.Kill(); err != nil {
			c.logger.Warn("failed to kill backend process", "error", err)
		}
		c.cmd.Wait() // Clean up zombie process
	}

	<-c.done
	c.rpc.shutdown(errClosed)
	c.logger.Info("closed bridge stdio client")
	return nil
}

// logStderr logs stderr output from the backend process
func (c *StdioClient) logStderr() {
	scanner := bufio.NewScanner(c.stderr)
	for scanner.Scan() {
		c.logger.Warn("backend stderr", "message", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		c.logger.Debug("stopped reading backend stderr", "error", err)
	}
}
