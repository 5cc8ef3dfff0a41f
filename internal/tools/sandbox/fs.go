package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/chitti-ai/chitti/internal/tools"
)

type readArgs struct {
	FilePath string `json:"file_path" desc:"path to the file to read, relative to the sandbox root"`
}

func readTool() tools.Tool {
	return tools.Func[readArgs]("read", "Read contents of a file", func(ctx context.Context, a readArgs, deps *tools.Container) (any, error) {
		s, err := tools.Get(deps, ctx, Key)
		if err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		p, err := s.Resolve(a.FilePath)
		if err != nil {
			return nil, &tools.BadArgsError{Reason: err.Error()}
		}
		st, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &tools.BadArgsError{Reason: "file not found: " + a.FilePath}
			}
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		if st.IsDir() {
			return nil, &tools.BadArgsError{Reason: "path is a directory: " + a.FilePath}
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		lines := splitLines(string(b))
		out := make([]string, 0, len(lines))
		for i, line := range lines {
			out = append(out, fmt.Sprintf("%4d  %s", i+1, line))
		}
		return strings.Join(out, "\n"), nil
	})
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	parts := strings.Split(s, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

type writeArgs struct {
	FilePath string `json:"file_path" desc:"path to the file to write, relative to the sandbox root"`
	Content  string `json:"content" desc:"full file content to write"`
}

func writeTool() tools.Tool {
	return tools.Func[writeArgs]("write", "Write content to a file, creating parent directories as needed", func(ctx context.Context, a writeArgs, deps *tools.Container) (any, error) {
		s, err := tools.Get(deps, ctx, Key)
		if err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		p, err := s.Resolve(a.FilePath)
		if err != nil {
			return nil, &tools.BadArgsError{Reason: err.Error()}
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		if err := os.WriteFile(p, []byte(a.Content), 0o644); err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		return fmt.Sprintf("Wrote %d bytes to %s", len(a.Content), a.FilePath), nil
	})
}

type editArgs struct {
	FilePath  string `json:"file_path" desc:"path to the file to edit, relative to the sandbox root"`
	OldString string `json:"old_string" desc:"exact text to replace; must match uniquely or every occurrence is replaced"`
	NewString string `json:"new_string" desc:"replacement text"`
}

func editTool() tools.Tool {
	return tools.Func[editArgs]("edit", "Replace text in a file", func(ctx context.Context, a editArgs, deps *tools.Container) (any, error) {
		s, err := tools.Get(deps, ctx, Key)
		if err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		p, err := s.Resolve(a.FilePath)
		if err != nil {
			return nil, &tools.BadArgsError{Reason: err.Error()}
		}
		b, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &tools.BadArgsError{Reason: "file not found: " + a.FilePath}
			}
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		content := string(b)
		if !strings.Contains(content, a.OldString) {
			return nil, &tools.BadArgsError{Reason: "string not found in " + a.FilePath}
		}
		count := strings.Count(content, a.OldString)
		newContent := strings.ReplaceAll(content, a.OldString, a.NewString)
		if err := os.WriteFile(p, []byte(newContent), 0o644); err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		return fmt.Sprintf("Replaced %d occurrence(s) in %s", count, a.FilePath), nil
	})
}

type globArgs struct {
	Pattern string `json:"pattern" desc:"glob pattern to match, e.g. **/*.go"`
	Path    string `json:"path,omitempty" desc:"directory to search under; defaults to the sandbox working directory"`
}

// globTool uses doublestar for `**`-capable matching, upgrading the
// teacher's plain filepath.Glob (sdk/tools/sandbox/sandbox.go), which
// cannot express a recursive wildcard.
func globTool() tools.Tool {
	return tools.Func[globArgs]("glob", "Find files matching a glob pattern (supports **)", func(ctx context.Context, a globArgs, deps *tools.Container) (any, error) {
		s, err := tools.Get(deps, ctx, Key)
		if err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		base := s.WorkingDir
		if strings.TrimSpace(a.Path) != "" {
			p, err := s.Resolve(a.Path)
			if err != nil {
				return nil, &tools.BadArgsError{Reason: err.Error()}
			}
			base = p
		}
		fsys := os.DirFS(base)
		matches, err := doublestar.Glob(fsys, a.Pattern)
		if err != nil {
			return nil, &tools.BadArgsError{Reason: err.Error()}
		}
		files := []string{}
		for _, m := range matches {
			full := filepath.Join(base, m)
			st, err := os.Stat(full)
			if err != nil || st.IsDir() {
				continue
			}
			rel, _ := filepath.Rel(s.RootDir, full)
			files = append(files, filepath.ToSlash(rel))
			if len(files) >= 50 {
				break
			}
		}
		if len(files) == 0 {
			return "No files match pattern: " + a.Pattern, nil
		}
		return fmt.Sprintf("Found %d file(s):\n%s", len(files), strings.Join(files, "\n")), nil
	})
}

type grepArgs struct {
	Pattern string `json:"pattern" desc:"regular expression to search for"`
	Path    string `json:"path,omitempty" desc:"directory to search under; defaults to the sandbox working directory"`
}

func grepTool() tools.Tool {
	return tools.Func[grepArgs]("grep", "Search file contents with regex", func(ctx context.Context, a grepArgs, deps *tools.Container) (any, error) {
		s, err := tools.Get(deps, ctx, Key)
		if err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		base := s.WorkingDir
		if strings.TrimSpace(a.Path) != "" {
			p, err := s.Resolve(a.Path)
			if err != nil {
				return nil, &tools.BadArgsError{Reason: err.Error()}
			}
			base = p
		}
		re, err := regexp.Compile(a.Pattern)
		if err != nil {
			return nil, &tools.BadArgsError{Reason: "invalid regex: " + err.Error()}
		}
		results := []string{}
		_ = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			f, err := os.Open(path)
			if err != nil {
				return nil
			}
			defer f.Close()
			buf := make([]byte, 8000)
			n, _ := f.Read(buf)
			if bytes.IndexByte(buf[:n], 0) >= 0 {
				return nil
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return nil
			}
			scanner := bufio.NewScanner(f)
			lineNo := 0
			for scanner.Scan() {
				lineNo++
				line := scanner.Text()
				if re.MatchString(line) {
					rel, _ := filepath.Rel(s.RootDir, path)
					results = append(results, fmt.Sprintf("%s:%d: %s", filepath.ToSlash(rel), lineNo, truncate(line, 100)))
					if len(results) >= 50 {
						return errors.New("_stop")
					}
				}
			}
			return nil
		})
		if len(results) == 0 {
			return "No matches for: " + a.Pattern, nil
		}
		return strings.Join(results, "\n"), nil
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

type todoWriteArgs struct {
	Todos []TodoItem `json:"todos" desc:"the full replacement todo list"`
}

func todoReadTool() tools.Tool {
	return tools.Func[struct{}]("todo_read", "Read current todo list", func(ctx context.Context, _ struct{}, deps *tools.Container) (any, error) {
		s, err := tools.Get(deps, ctx, Key)
		if err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		items := s.snapshotTodos()
		if len(items) == 0 {
			return "Todo list is empty", nil
		}
		lines := []string{}
		for i, t := range items {
			status := map[string]string{"pending": "[ ]", "in_progress": "[>]", "completed": "[x]"}[t.Status]
			if status == "" {
				status = "[ ]"
			}
			lines = append(lines, fmt.Sprintf("%d. %s %s", i+1, status, t.Content))
		}
		return strings.Join(lines, "\n"), nil
	})
}

func todoWriteTool() tools.Tool {
	return tools.Func[todoWriteArgs]("todo_write", "Update the todo list", func(ctx context.Context, a todoWriteArgs, deps *tools.Container) (any, error) {
		s, err := tools.Get(deps, ctx, Key)
		if err != nil {
			return nil, &tools.InternalError{Reason: err.Error()}
		}
		s.replaceTodos(a.Todos)
		stats := map[string]int{"pending": 0, "in_progress": 0, "completed": 0}
		for _, t := range a.Todos {
			stats[t.Status]++
		}
		return fmt.Sprintf("Updated todos: %d pending, %d in progress, %d completed", stats["pending"], stats["in_progress"], stats["completed"]), nil
	})
}

type doneArgs struct {
	Message string `json:"message" desc:"a short summary of what was accomplished"`
}

// doneTool lets the model end its own turn explicitly instead of relying on
// finish_reason=STOP; Registry.Dispatch and Conductor.runTurn special-case
// the TaskCompleteError it returns (see tools/errors.go) as a turn-ending
// signal rather than an ordinary tool error.
func doneTool() tools.Tool {
	return tools.Func[doneArgs]("done", "Signal that the task is complete", func(ctx context.Context, a doneArgs, _ *tools.Container) (any, error) {
		return nil, tools.TaskComplete(a.Message)
	})
}
