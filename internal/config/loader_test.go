package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stackYAML = `name: codecarbon
version: "1"
services:
  postgres:
    image: postgres:13
    ports:
      - "5480:5432"
    environment:
      - POSTGRES_USER=${DATABASE_USER:-codecarbon-user}
    volumes:
      - postgres_codecarbon_data:/var/lib/postgresql/data
    networks:
      - codecarbon_net
    restart: unless-stopped
  carbonserver:
    build: ./carbonserver
    ports:
      - "8008:8000"
    environment:
      - DATABASE_URL=postgresql://${DATABASE_USER:-codecarbon-user}:x@postgres/db
    networks:
      - codecarbon_net
    depends_on:
      - postgres
networks:
  codecarbon_net:
    driver: bridge
volumes:
  postgres_codecarbon_data: {}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "carbonstack.yaml", stackYAML)

	stack, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "codecarbon", stack.Name)
	assert.Len(t, stack.Services, 2)
	assert.Equal(t, "postgres:13", stack.Services["postgres"].Image)
	assert.Equal(t, []string{"postgres"}, stack.Services["carbonserver"].DependsOn)
	assert.Equal(t, "bridge", stack.Networks["codecarbon_net"].Driver)
	assert.Contains(t, stack.Volumes, "postgres_codecarbon_data")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.ErrorContains(t, err, "carbonstack init")
}

func TestLoadMissingName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "carbonstack.yaml", "services: {}\n")

	_, err := Load(path, "")
	assert.ErrorContains(t, err, "no project name")
}

func TestLoadEnvFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	stackPath := writeFile(t, dir, "carbonstack.yaml", stackYAML)
	envPath := writeFile(t, dir, ".env", "DATABASE_USER=from-dotenv\nDATABASE_NAME=carbon\n")

	// Host environment beats the .env file; the .env file beats the
	// in-file default.
	t.Setenv("DATABASE_USER", "from-host")
	t.Setenv("DATABASE_NAME", "") // register cleanup, then clear so .env wins
	os.Unsetenv("DATABASE_NAME")

	stack, err := Load(stackPath, envPath)
	require.NoError(t, err)

	resolved, err := stack.Resolve(OSLookup)
	require.NoError(t, err)

	user, _ := EnvValue(resolved.Services["postgres"].Environment, "POSTGRES_USER")
	assert.Equal(t, "from-host", user)
	assert.Equal(t, "carbon", os.Getenv("DATABASE_NAME"))
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	dir := t.TempDir()
	stackPath := writeFile(t, dir, "carbonstack.yaml", stackYAML)

	_, err := Load(stackPath, filepath.Join(dir, "no-such.env"))
	assert.NoError(t, err)
}
