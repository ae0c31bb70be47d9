package docker

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigscience-workshop/carbonstack/internal/config"
)

func TestContainerName(t *testing.T) {
	assert.Equal(t, "codecarbon-postgres", ContainerName("codecarbon", "postgres", config.Service{}))
	assert.Equal(t, "postgres_codecarbon", ContainerName("codecarbon", "postgres", config.Service{ContainerName: "postgres_codecarbon"}))
}

func TestReadyHostPort(t *testing.T) {
	svc := config.Service{Ports: []string{"8008:8000"}}
	assert.Equal(t, "8008", readyHostPort(svc))

	svc = config.Service{Ports: []string{"5480:5432", "8008:8000"}, ReadyPort: "8000"}
	assert.Equal(t, "8008", readyHostPort(svc))

	assert.Empty(t, readyHostPort(config.Service{}))
}

func TestProbeHost(t *testing.T) {
	assert.Equal(t, "127.0.0.1", probeHost("unix:///var/run/docker.sock"))
	assert.Equal(t, "127.0.0.1", probeHost("npipe:////./pipe/docker_engine"))
	assert.Equal(t, "build-box.internal", probeHost("tcp://build-box.internal:2376"))
	assert.Equal(t, "10.0.0.7", probeHost("tcp://10.0.0.7:2375"))
}

func TestHealthConfig(t *testing.T) {
	hc, err := healthConfig(&config.Healthcheck{
		Test:     []string{"CMD-SHELL", "pg_isready"},
		Interval: "5s",
		Timeout:  "3s",
		Retries:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, hc.Interval)
	assert.Equal(t, 3*time.Second, hc.Timeout)
	assert.Equal(t, 5, hc.Retries)

	_, err = healthConfig(&config.Healthcheck{Interval: "soon"})
	assert.ErrorContains(t, err, "invalid healthcheck interval")
}

func TestTarDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print()\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "__pycache__"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "__pycache__", "main.pyc"), []byte{0}, 0o644))

	reader, err := tarDirectory(dir)
	require.NoError(t, err)

	names := map[string]bool{}
	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names[hdr.Name] = true
	}

	assert.True(t, names["Dockerfile"])
	assert.True(t, names["main.py"])
	assert.False(t, names["__pycache__"], "tool caches stay out of the build context")
	assert.False(t, names["__pycache__/main.pyc"])
}

func TestTarDirectoryKeepsSymlinkTargets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("fastapi\n"), 0o644))
	require.NoError(t, os.Symlink("requirements.txt", filepath.Join(dir, "requirements-dev.txt")))

	reader, err := tarDirectory(dir)
	require.NoError(t, err)

	links := map[string]*tar.Header{}
	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		links[hdr.Name] = hdr
	}

	require.Contains(t, links, "requirements-dev.txt")
	assert.Equal(t, byte(tar.TypeSymlink), links["requirements-dev.txt"].Typeflag)
	assert.Equal(t, "requirements.txt", links["requirements-dev.txt"].Linkname)
}

func TestTarDirectoryRequiresDockerfile(t *testing.T) {
	_, err := tarDirectory(t.TempDir())
	assert.ErrorContains(t, err, "no Dockerfile")
}
