package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
)

// BuildImage tars the build context directory and streams it to the
// daemon. The daemon only speaks tar here, so we assemble the archive
// ourselves, skipping VCS metadata and tool caches that would bloat it.
func (m *Manager) BuildImage(ctx context.Context, contextDir, tag string) error {
	fmt.Printf("Building image %s from %s...\n", tag, contextDir)

	buildCtx, err := tarDirectory(contextDir)
	if err != nil {
		return fmt.Errorf("failed to tar build context %s: %w", contextDir, err)
	}

	resp, err := m.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", tag, err)
	}
	defer resp.Body.Close()

	// Same deal as pulling: the body streams JSON progress and must be
	// drained for the build to complete.
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return fmt.Errorf("error reading build output: %w", err)
	}
	return nil
}

// skipped names anywhere in the context tree.
var buildContextSkip = map[string]bool{
	".git":         true,
	".mypy_cache":  true,
	"__pycache__":  true,
	"node_modules": true,
}

func tarDirectory(dir string) (io.Reader, error) {
	if _, err := os.Stat(filepath.Join(dir, "Dockerfile")); err != nil {
		return nil, fmt.Errorf("build context %s has no Dockerfile", dir)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if buildContextSkip[info.Name()] {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
