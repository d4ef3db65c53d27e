// Package prompt loads system and user prompt text from files kept under a
// prompt root directory.
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxBytes caps a prompt file.
const MaxBytes = 64 << 10

// DefaultSystem is used when no system prompt file is configured.
const DefaultSystem = `You will be asked a question by the user.
If answering the question requires data you were not trained on, you must use one of the search tools to get recent information about the topic.
If you can answer the question without needing to get more information, please do so.
Only call a tool when needed.`

// PathError is a machine-readable error for rejected prompt paths.
type PathError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e PathError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Loader reads prompt files relative to Root.
type Loader struct {
	Root string // absolute, symlinks resolved
}

// NewLoader resolves root (cwd when empty) to an absolute, symlink-free path.
func NewLoader(root string) (*Loader, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs(root): %w", err)
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return &Loader{Root: abs}, nil
}

// Resolve returns the absolute path of relPath inside the root. Absolute
// inputs, parent traversal, symlink escapes and reads under .git/ or .router/
// are rejected with a PathError.
func (l *Loader) Resolve(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", PathError{Code: "ERR_PATH_OUTSIDE_ROOT", Message: "absolute paths are not allowed"}
	}
	candidate := filepath.Join(l.Root, filepath.Clean(relPath))

	// Resolve the whole candidate, or its parent when the leaf is missing.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else if parent, err := filepath.EvalSymlinks(filepath.Dir(candidate)); err == nil {
		candidate = filepath.Join(parent, filepath.Base(candidate))
	}

	rel, err := filepath.Rel(l.Root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", PathError{Code: "ERR_PATH_OUTSIDE_ROOT", Message: "requested path resolves outside the prompt root"}
	}

	relClean := filepath.ToSlash(rel)
	for _, denied := range []string{".git", ".router"} {
		if relClean == denied || strings.HasPrefix(relClean, denied+"/") {
			return "", PathError{Code: "ERR_DENIED_READ", Message: "reads under .git/ or .router/ are not allowed"}
		}
	}
	return candidate, nil
}

// Load reads a prompt file and trims surrounding whitespace.
func (l *Loader) Load(relPath string) (string, error) {
	abs, err := l.Resolve(relPath)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", PathError{Code: "ERR_NOT_A_FILE", Message: "path is a directory"}
	}
	if fi.Size() > MaxBytes {
		return "", PathError{Code: "ERR_TOO_LARGE", Message: fmt.Sprintf("prompt file exceeds %d bytes", MaxBytes)}
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", PathError{Code: "ERR_EMPTY", Message: "prompt file is empty"}
	}
	return text, nil
}

// System returns the system prompt from relPath, or DefaultSystem when
// relPath is empty.
func (l *Loader) System(relPath string) (string, error) {
	if relPath == "" {
		return DefaultSystem, nil
	}
	return l.Load(relPath)
}
