// Package sandbox provides filesystem path confinement for the read/write/
// edit/glob/grep tools, plus the reference Bash tool. Per SPEC_FULL.md's
// Open Question 3, sandboxing is deliberately NOT applied to the bash tool
// itself — only the filesystem tools confine paths to a root directory.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chitti-ai/chitti/internal/tools"
)

type SecurityError struct{ Message string }

func (e *SecurityError) Error() string { return e.Message }

type TodoItem struct {
	Content string `json:"content" desc:"the todo item's text"`
	Status  string `json:"status" enum:"pending,in_progress,completed"`
}

// Sandbox confines filesystem tool access to RootDir, unchanged in approach
// from the teacher's sdk/tools/sandbox/sandbox.go.
type Sandbox struct {
	RootDir    string
	WorkingDir string

	mu    sync.Mutex
	Todos []TodoItem
}

func New(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)
	return &Sandbox{RootDir: abs, WorkingDir: abs}, nil
}

func (s *Sandbox) Resolve(path string) (string, error) {
	if path == "" {
		return "", &SecurityError{Message: "empty path"}
	}
	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(s.WorkingDir, path))
	}
	abs, err := filepath.Abs(abs)
	if err != nil {
		return "", err
	}
	root := s.RootDir
	if abs == root {
		return abs, nil
	}
	sep := string(os.PathSeparator)
	if !strings.HasPrefix(abs, root+sep) {
		return "", &SecurityError{Message: fmt.Sprintf("path escapes sandbox: %q -> %q", path, abs)}
	}
	return abs, nil
}

var Key = tools.Dep[*Sandbox]("sandbox")

func (s *Sandbox) snapshotTodos() []TodoItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TodoItem(nil), s.Todos...)
}

func (s *Sandbox) replaceTodos(items []TodoItem) {
	s.mu.Lock()
	s.Todos = append([]TodoItem(nil), items...)
	s.mu.Unlock()
}

// Tools returns the reference toolset bound to the sandbox dependency.
func Tools() []tools.Tool {
	return []tools.Tool{
		bashTool(),
		readTool(),
		writeTool(),
		editTool(),
		globTool(),
		grepTool(),
		todoReadTool(),
		todoWriteTool(),
		doneTool(),
	}
}
