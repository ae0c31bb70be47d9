package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// Exec runs a command inside a running container and returns its
// stdout. When stdin is non-nil its contents are piped to the command
// (this is how a snapshot restore feeds a dump to psql).
func (m *Manager) Exec(ctx context.Context, containerName string, cmd []string, stdin io.Reader) ([]byte, error) {
	execCfg := types.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  stdin != nil,
	}

	created, err := m.cli.ContainerExecCreate(ctx, containerName, execCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exec in %s: %w", containerName, err)
	}

	attach, err := m.cli.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach exec in %s: %w", containerName, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if err := pumpExec(attach.Conn, attach.CloseWrite, attach.Reader, stdin, &stdout, &stderr); err != nil {
		return nil, fmt.Errorf("exec in %s: %w", containerName, err)
	}

	inspect, err := m.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return nil, fmt.Errorf("command %v in %s exited with code %d: %s",
			cmd, containerName, inspect.ExitCode, stderr.String())
	}

	return stdout.Bytes(), nil
}

// pumpExec moves stdin into the exec connection while draining its
// multiplexed output. The two directions must run concurrently: a
// command like psql emits output as it consumes input, so a writer
// that waits for its copy to finish before reading fills the output
// buffers and deadlocks against the command.
func pumpExec(conn io.Writer, closeWrite func() error, reader io.Reader, stdin io.Reader, stdout, stderr io.Writer) error {
	writeErr := make(chan error, 1)
	if stdin != nil {
		go func() {
			if _, err := io.Copy(conn, stdin); err != nil {
				writeErr <- fmt.Errorf("failed to write exec stdin: %w", err)
				return
			}
			if err := closeWrite(); err != nil {
				writeErr <- fmt.Errorf("failed to close exec stdin: %w", err)
				return
			}
			writeErr <- nil
		}()
	} else {
		writeErr <- nil
	}

	// The attached stream multiplexes stdout and stderr; stdcopy
	// demuxes it back into two.
	if _, err := stdcopy.StdCopy(stdout, stderr, reader); err != nil {
		return fmt.Errorf("failed to read exec output: %w", err)
	}
	return <-writeErr
}

// StreamLogs copies a container's log stream to the terminal until the
// context is cancelled (or the container exits when follow is off).
func (m *Manager) StreamLogs(ctx context.Context, containerName string, follow bool) error {
	reader, err := m.cli.ContainerLogs(ctx, containerName, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Timestamps: false,
	})
	if err != nil {
		return fmt.Errorf("failed to get logs for %s: %w", containerName, err)
	}
	defer reader.Close()

	_, err = stdcopy.StdCopy(os.Stdout, os.Stderr, reader)
	if err != nil && err != io.EOF {
		return fmt.Errorf("error streaming logs for %s: %w", containerName, err)
	}
	return nil
}
