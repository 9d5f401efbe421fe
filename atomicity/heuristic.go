package atomicity

import "strings"

// toolKeywords are verbs that typically correspond to a single tool
// invocation (file I/O, shell, network, search). Counting distinct
// keyword hits approximates tool_count when no LLM is available.
var toolKeywords = []string{
	"read file", "write file", "edit file", "delete file", "create file",
	"run command", "execute", "compile", "build", "deploy", "install",
	"fetch", "download", "upload", "query", "search", "grep", "curl",
	"test", "lint", "format",
}

// complexityIndicators are words suggesting the task bundles multiple
// sub-steps; each distinct indicator present nudges the heuristic
// complexity score up (repeats of the same indicator count once).
var complexityIndicators = []string{
	"and then", "after that", "followed by", "subsequently",
	"multiple", "several", "various", "both", "all of the",
	"across", "end-to-end", "entire", "pipeline", "workflow",
}

// heuristicCheck estimates atomicity by keyword counting when the LLM
// path is unavailable or fails, grounded on decomposition.py's
// _heuristic_atomicity_check.
func heuristicCheck(content string, criteria Criteria) Result {
	lower := strings.ToLower(content)

	toolCount := 0
	for _, kw := range toolKeywords {
		if strings.Contains(lower, kw) {
			toolCount++
		}
	}

	indicatorHits := 0
	for _, kw := range complexityIndicators {
		if strings.Contains(lower, kw) {
			indicatorHits++
		}
	}

	complexity := float64(indicatorHits) * 0.15
	if toolCount > 1 {
		complexity += float64(toolCount-1) * 0.1
	}
	if complexity > 1.0 {
		complexity = 1.0
	}

	wordCount := len(strings.Fields(content))
	estimatedDuration := wordCount * 2
	if toolCount > 0 {
		estimatedDuration += toolCount * 30
	}

	isAtomic := complexity <= criteria.MaxComplexity &&
		toolCount <= criteria.MaxToolCount &&
		estimatedDuration <= criteria.MaxDurationSeconds

	reasoning := "[Heuristic] "
	if isAtomic {
		reasoning += "task appears small enough for direct execution"
	} else {
		reasoning += "task shows signs of bundling multiple sub-steps and should be decomposed"
	}

	return Result{
		IsAtomic:          isAtomic,
		ComplexityScore:   complexity,
		ToolCount:         toolCount,
		EstimatedDuration: estimatedDuration,
		Reasoning:         reasoning,
		Method:            MethodHeuristic,
	}
}
