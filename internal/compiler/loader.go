package compiler

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/roach88/caseconf/internal/ir"
)

// RuleFilePattern matches every rule file below a directory.
const RuleFilePattern = "**/*.{cue,hcl}"

// Loader reads rule files from a filesystem.
type Loader struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewLoader creates a Loader over fs. A nil logger uses slog.Default().
func NewLoader(fs afero.Fs, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fs: fs, logger: logger}
}

// Discover returns every rule file below dir, sorted.
func (l *Loader) Discover(dir string) ([]string, error) {
	fsys := afero.NewIOFS(afero.NewBasePathFs(l.fs, dir))
	matches, err := doublestar.Glob(fsys, RuleFilePattern)
	if err != nil {
		return nil, fmt.Errorf("discover rule files in %s: %w", dir, err)
	}
	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	sort.Strings(files)
	return files, nil
}

// Load compiles path into a validated RuleSet. A directory loads every rule
// file below it, merged in path order. Validation problems are aggregated
// into one error.
func (l *Loader) Load(path string) (*ir.RuleSet, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = l.Discover(path); err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("load rules: no .cue or .hcl files in %s", path)
		}
	}

	merged := &ir.RuleSet{}
	for _, f := range files {
		rs, err := l.LoadFile(f)
		if err != nil {
			return nil, err
		}
		if merged.Name == "" {
			merged.Name = rs.Name
		}
		merged.Variables = append(merged.Variables, rs.Variables...)
		merged.Assertions = append(merged.Assertions, rs.Assertions...)
		merged.Derivations = append(merged.Derivations, rs.Derivations...)
	}
	if merged.Name == "" {
		merged.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if errs := Validate(merged); len(errs) > 0 {
		var result *multierror.Error
		for _, e := range errs {
			result = multierror.Append(result, e)
		}
		return nil, result
	}

	l.logger.Debug("rules loaded",
		"path", path,
		"files", len(files),
		"variables", len(merged.Variables),
		"assertions", len(merged.Assertions),
		"derivations", len(merged.Derivations))
	return merged, nil
}

// LoadFile compiles one rule file without validating it. The format is
// chosen by extension.
func (l *Loader) LoadFile(path string) (*ir.RuleSet, error) {
	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return CompileCUEBytes(path, src)
	case ".hcl":
		return CompileHCL(path, src)
	default:
		return nil, fmt.Errorf("%s: unsupported rule file extension (want .cue or .hcl)", path)
	}
}
