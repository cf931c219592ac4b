package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/logging"
)

// Conventional layout markers probed relative to the workspace root.
var (
	testDirNames = []string{"tests", "test", "__tests__"}

	ciConfigPaths = []string{
		".github/workflows",
		".gitlab-ci.yml",
		".circleci",
		".travis.yml",
		"Jenkinsfile",
		"azure-pipelines.yml",
	}

	// First match wins.
	testFrameworkMarkers = []struct {
		file      string
		framework string
	}{
		{"pytest.ini", "pytest"},
		{"pyproject.toml", "pytest"},
		{"go.mod", "go test"},
		{"Cargo.toml", "cargo test"},
		{"package.json", "npm test"},
		{"pom.xml", "maven"},
	}

	sourceExtensions = map[string]bool{
		".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true,
		".tsx": true, ".java": true, ".kt": true, ".rb": true, ".rs": true,
		".c": true, ".h": true, ".cc": true, ".cpp": true, ".hpp": true,
		".cs": true, ".swift": true, ".php": true, ".scala": true,
	}

	skippedDirs = map[string]bool{
		"node_modules": true, "vendor": true, "__pycache__": true,
		"venv": true, "dist": true, "build": true, "target": true,
	}
)

// Prompt vocabularies, evaluated in this order.
var (
	complexKeywords  = []string{"refactor", "migrate", "rewrite", "redesign", "overhaul"}
	moderateKeywords = []string{"add", "implement", "create", "update", "modify"}
	simpleKeywords   = []string{"fix", "patch", "change"}
)

const (
	// maxScannedSources bounds the source walk; the score saturates long before.
	maxScannedSources = 10000

	scoreTests       = 10
	scoreCI          = 10
	scorePerFile     = 2
	scoreFilesCap    = 50
	moderateScoreMin = 30 // keyword "moderate" prompts need more than this
	fallbackComplex  = 50
	fallbackModerate = 20
)

// RepositoryAnalysis describes a workspace for routing purposes.
type RepositoryAnalysis struct {
	HasTests        bool   `json:"has_tests"`
	TestFramework   string `json:"test_framework,omitempty"`
	HasCI           bool   `json:"has_ci"`
	HasGit          bool   `json:"has_git"`
	FileCount       int    `json:"file_count"`
	ComplexityScore int    `json:"complexity_score"`
}

// Result converts the analysis into a phase result.
func (a RepositoryAnalysis) Result() core.PhaseResult {
	return core.PhaseResult{
		"has_tests":        a.HasTests,
		"test_framework":   a.TestFramework,
		"has_ci":           a.HasCI,
		"has_git":          a.HasGit,
		"file_count":       a.FileCount,
		"complexity_score": a.ComplexityScore,
	}
}

// Router picks the complexity tier and the ordered phase list for a task.
type Router struct {
	logger *logging.Logger
}

// NewRouter creates a router.
func NewRouter(logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{logger: logger}
}

// AnalyzeRepository inspects the workspace read-only. A missing or unreadable
// workspace yields a zero analysis.
func (r *Router) AnalyzeRepository(workspace string) RepositoryAnalysis {
	var a RepositoryAnalysis

	for _, dir := range testDirNames {
		if exists(workspace, dir) {
			a.HasTests = true
			break
		}
	}
	for _, m := range testFrameworkMarkers {
		if exists(workspace, m.file) {
			a.TestFramework = m.framework
			break
		}
	}
	for _, p := range ciConfigPaths {
		if exists(workspace, p) {
			a.HasCI = true
			break
		}
	}
	a.HasGit = exists(workspace, ".git")

	count, err := countSourceFiles(workspace)
	if err != nil {
		r.logger.Debug("source scan incomplete", "workspace", workspace, "error", err)
	}
	a.FileCount = count

	a.ComplexityScore = complexityScore(a)
	return a
}

// AnalysisExecutor returns an executor for the analysis phase that reruns
// the repository analysis against the input workspace. It is bound when no
// external analysis command is configured.
func (r *Router) AnalysisExecutor() core.PhaseExecutor {
	return core.PhaseExecutorFunc(func(ctx context.Context, in core.PhaseInput) (core.PhaseResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return r.AnalyzeRepository(in.Workspace).Result(), nil
	})
}

func complexityScore(a RepositoryAnalysis) int {
	score := 0
	if a.HasTests {
		score += scoreTests
	}
	if a.HasCI {
		score += scoreCI
	}
	score += min(a.FileCount*scorePerFile, scoreFilesCap)
	return score
}

// DetermineComplexity maps a prompt and analysis to a tier. Keywords match
// as case-insensitive substrings and take precedence over the score
// fallback.
func (r *Router) DetermineComplexity(prompt string, a RepositoryAnalysis) core.Complexity {
	text := strings.ToLower(prompt)

	switch {
	case containsAny(text, complexKeywords):
		return core.ComplexityComplex
	case containsAny(text, moderateKeywords):
		if a.ComplexityScore > moderateScoreMin {
			return core.ComplexityModerate
		}
		return core.ComplexitySimple
	case containsAny(text, simpleKeywords):
		return core.ComplexitySimple
	}

	switch {
	case a.ComplexityScore > fallbackComplex:
		return core.ComplexityComplex
	case a.ComplexityScore > fallbackModerate:
		return core.ComplexityModerate
	default:
		return core.ComplexitySimple
	}
}

// RouteWorkflow returns the fixed phase list for a tier.
func (r *Router) RouteWorkflow(c core.Complexity) ([]core.Phase, error) {
	return RouteFor(c)
}

// RouteFor returns the fixed phase list for a tier. The returned slice is
// owned by the caller.
func RouteFor(c core.Complexity) ([]core.Phase, error) {
	switch c {
	case core.ComplexitySimple:
		return []core.Phase{
			core.PhasePlanning,
			core.PhaseCoding,
			core.PhaseTesting,
			core.PhaseGitOps,
		}, nil
	case core.ComplexityModerate:
		return []core.Phase{
			core.PhaseAnalysis,
			core.PhasePlanning,
			core.PhaseCoding,
			core.PhaseTesting,
			core.PhaseReview,
			core.PhaseGitOps,
			core.PhaseExplanation,
		}, nil
	case core.ComplexityComplex, core.ComplexityVeryComplex:
		return []core.Phase{
			core.PhaseAnalysis,
			core.PhasePlanning,
			core.PhaseCoding,
			core.PhaseReview,
			core.PhaseTesting,
			core.PhaseReview, // second review after tests
			core.PhaseGitOps,
			core.PhaseExplanation,
		}, nil
	default:
		return nil, core.ErrConfiguration(core.CodeUnknownComplexity,
			fmt.Sprintf("no route for complexity %q", c))
	}
}

// containsAny reports whether text contains any keyword anywhere, inside
// longer words included ("hotfix" contains "fix").
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func exists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}

var errScanLimit = errors.New("scan limit reached")

func countSourceFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skippedDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if sourceExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			count++
			if count >= maxScannedSources {
				return errScanLimit
			}
		}
		return nil
	})
	if errors.Is(err, errScanLimit) {
		err = nil
	}
	return count, err
}
