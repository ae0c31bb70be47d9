package docker

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPumpExecEchoingCommand drives the pump against a command that
// writes a line of output per chunk of input it consumes, the way psql
// answers each statement of a restore. io.Pipe is unbuffered, so the
// fake command blocks on its output until the pump drains it; a pump
// that finishes writing stdin before it starts reading output can
// never complete here.
func TestPumpExecEchoingCommand(t *testing.T) {
	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()

	go func() {
		framed := stdcopy.NewStdWriter(outWriter, stdcopy.Stdout)
		buf := make([]byte, 32*1024)
		for {
			n, err := inReader.Read(buf)
			if n > 0 {
				framed.Write(buf[:n])
			}
			if err != nil {
				break
			}
		}
		outWriter.Close()
	}()

	// A dump comfortably larger than any pipe or socket buffer.
	dump := bytes.Repeat([]byte("INSERT INTO emissions VALUES (1);\n"), 40_000)

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- pumpExec(inWriter, func() error { return inWriter.Close() }, outReader, bytes.NewReader(dump), &stdout, &stderr)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("pump deadlocked against the echoing command")
	}

	assert.Equal(t, len(dump), stdout.Len())
	assert.Zero(t, stderr.Len())
}

func TestPumpExecNoStdin(t *testing.T) {
	var framed bytes.Buffer
	stdcopy.NewStdWriter(&framed, stdcopy.Stdout).Write([]byte("-- dump --\n"))
	stdcopy.NewStdWriter(&framed, stdcopy.Stderr).Write([]byte("warning\n"))

	var stdout, stderr bytes.Buffer
	err := pumpExec(nil, nil, &framed, nil, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "-- dump --\n", stdout.String())
	assert.Equal(t, "warning\n", stderr.String())
}
