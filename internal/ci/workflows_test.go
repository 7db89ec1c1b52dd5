package ci_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestGitHubWorkflowsExist(t *testing.T) {
	projectRoot := filepath.Clean(filepath.Join("..", ".."))
	checks := []struct {
		relativePath string
		requiredSnip []byte
	}{
		{
			relativePath: filepath.Join(".github", "workflows", "go-tests.yml"),
			requiredSnip: []byte("go test ./..."),
		},
		{
			relativePath: filepath.Join(".github", "workflows", "release.yml"),
			requiredSnip: []byte("docker build"),
		},
		{
			relativePath: "Dockerfile",
			requiredSnip: []byte("cmd/server"),
		},
	}

	for _, check := range checks {
		fullPath := filepath.Join(projectRoot, check.relativePath)
		data, readErr := os.ReadFile(fullPath)
		if readErr != nil {
			t.Fatalf("read %q: %v", check.relativePath, readErr)
		}
		if !bytes.Contains(data, check.requiredSnip) {
			t.Fatalf("%q missing required snippet %q", check.relativePath, string(check.requiredSnip))
		}
	}
}
