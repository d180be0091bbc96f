package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pastpapers-backend/internal/papers"
)

// Sandbox confines every path it hands out to a single root directory.
type Sandbox struct {
	root string
}

func NewSandbox(root string) (Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Sandbox{}, fmt.Errorf("resolve download root: %w", err)
	}
	err = os.MkdirAll(abs, 0755)
	if err != nil {
		return Sandbox{}, fmt.Errorf("create download root: %w", err)
	}
	return Sandbox{root: abs}, nil
}

func (s Sandbox) Root() string {
	return s.root
}

func checkPart(part string) string {
	switch {
	case strings.TrimSpace(part) == "":
		return "is empty"
	case part == "." || part == "..":
		return "is a traversal segment"
	case filepath.IsAbs(part) || strings.HasPrefix(part, "/") || strings.HasPrefix(part, `\`):
		return "is an absolute path"
	case strings.ContainsAny(part, `/\`):
		return "contains a path separator"
	case strings.ContainsRune(part, 0):
		return "contains a null byte"
	}
	return ""
}

// Resolve joins path segments under the root. Each segment must be a plain
// name, and the result must lie strictly inside the root.
func (s Sandbox) Resolve(parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", &papers.PathViolationError{Requested: "", Reason: "names no file"}
	}

	requested := strings.Join(parts, "/")
	for _, part := range parts {
		if reason := checkPart(part); reason != "" {
			return "", &papers.PathViolationError{
				Requested: requested,
				Reason:    fmt.Sprintf("segment '%s' %s", part, reason),
			}
		}
	}

	joined := filepath.Join(append([]string{s.root}, parts...)...)
	rel, err := filepath.Rel(s.root, joined)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &papers.PathViolationError{Requested: requested, Reason: "escapes the download root"}
	}
	return joined, nil
}
