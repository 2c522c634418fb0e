package handler

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
	"github.com/agentscaffold/scaffold/internal/vcs"
)

// extractFilesChanged resolves files_changed primarily via a VCS diff
// against HEAD, falling back to scanning the combined output when the diff
// itself cannot be run. Deduplicated, capped at 50.
func extractFilesChanged(ctx context.Context, adapter vcs.Adapter, worktreePath, output string) []string {
	diffCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var files []string
	if adapter != nil {
		if diffed, err := adapter.DiffNameOnly(diffCtx, worktreePath); err == nil && len(diffed) > 0 {
			files = diffed
		}
	}

	if len(files) == 0 {
		files = fallbackFilePatterns(output)
	}

	return dedupeCap(files, 50)
}

var fileMentionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:modified|created|deleted):\s+(\S+)`),
	regexp.MustCompile(`([a-zA-Z0-9_/\\.\-]+\.py)`),
	regexp.MustCompile(`([a-zA-Z0-9_/\\.\-]+\.md)`),
}

func fallbackFilePatterns(output string) []string {
	var files []string
	for _, re := range fileMentionPatterns {
		for _, m := range re.FindAllStringSubmatch(output, -1) {
			files = append(files, m[1])
		}
	}
	return files
}

func dedupeCap(in []string, cap_ int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range in {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	if len(out) > cap_ {
		out = out[:cap_]
	}
	return out
}

var commitMentionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)commit\s+([0-9a-f]{7,40})`),
	regexp.MustCompile(`\[([0-9a-f]{7,40})\]`),
	regexp.MustCompile(`(?i)created commit\s+([0-9a-f]{7,40})`),
}

// extractCommits resolves commits primarily via the VCS log since the
// worktree's starting ref, falling back to regex scraping of the output.
func extractCommits(ctx context.Context, adapter vcs.Adapter, worktreePath, sinceRef, output string) []string {
	logCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var commits []string
	if adapter != nil {
		if logged, err := adapter.LogShortSHAs(logCtx, worktreePath, sinceRef); err == nil {
			commits = logged
		}
	}

	if len(commits) == 0 {
		for _, re := range commitMentionPatterns {
			for _, m := range re.FindAllStringSubmatch(output, -1) {
				sha := m[1]
				if len(sha) > 7 {
					sha = sha[:7]
				}
				commits = append(commits, sha)
			}
		}
	}

	return dedupeCap(commits, 50)
}

var testsPassedRe = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+ passed in [\d.]+s`),
	regexp.MustCompile(`(?i)all tests? passed`),
	regexp.MustCompile(`(?i)OK \(\d+ tests?\)`),
}

var testsFailedRe = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+ failed`),
	regexp.MustCompile(`(?i)FAILED tests?`),
	regexp.MustCompile(`(?i)ERROR:.*test`),
}

// extractTestsPassed resolves the tests_passed tri-state from output.
func extractTestsPassed(output string) model.TestResult {
	for _, re := range testsFailedRe {
		if re.MatchString(output) {
			return model.TestsFailed
		}
	}
	for _, re := range testsPassedRe {
		if re.MatchString(output) {
			return model.TestsPassed
		}
	}
	return model.TestsUnknown
}

var costRe = regexp.MustCompile(`(?i)cost[:\s]+\$?([\d.]+)`)

// extractCost resolves cost_usd primarily via an explicit marker in output,
// falling back to a length-based heuristic.
func extractCost(output string) float64 {
	if m := costRe.FindStringSubmatch(strings.ToLower(output)); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v
		}
	}
	estimated := (float64(len(output)) / 10000.0) * 0.10
	return roundTo(estimated, 4)
}

var successMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)completed successfully`),
	regexp.MustCompile(`(?i)all tests? passed`),
	regexp.MustCompile(`(?i)implementation complete`),
	regexp.MustCompile(`(?i)task complete`),
	regexp.MustCompile(`(?i)\d+ files? changed`),
}

// isSuccessful applies the tightened heuristic from SPEC_FULL.md §4.7.1 /
// §15: exit 0 is necessary but not sufficient. At least one corroborating
// signal (a commit, a changed file, or an explicit success/test-pass
// marker) must also be present, and a test-failure marker always vetoes
// success even when some other marker also matched.
func isSuccessful(exitCode int, testsPassed model.TestResult, commits, filesChanged []string, output string) bool {
	if exitCode != 0 {
		return false
	}
	if testsPassed == model.TestsFailed {
		return false
	}
	if len(commits) > 0 || len(filesChanged) > 0 || testsPassed == model.TestsPassed {
		return true
	}
	for _, re := range successMarkerPatterns {
		if re.MatchString(output) {
			return true
		}
	}
	return false
}

var errorCapturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^ERROR:\s*(.+)$`),
	regexp.MustCompile(`(?im)^Exception:\s*(.+)$`),
	regexp.MustCompile(`(?im)^Failed:\s*(.+)$`),
}

// extractError produces a short (<=500 char) error summary for an
// unsuccessful result.
func extractError(output string) string {
	for _, re := range errorCapturePatterns {
		if m := re.FindStringSubmatch(output); m != nil {
			return truncate(strings.TrimSpace(m[1]), 500)
		}
	}
	if len(output) > 500 {
		return "..." + output[len(output)-500:]
	}
	return output
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func roundTo(v float64, decimals int) float64 {
	mult := 1.0
	for i := 0; i < decimals; i++ {
		mult *= 10
	}
	return float64(int64(v*mult+0.5)) / mult
}
