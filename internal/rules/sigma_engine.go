package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"riskgraph/pkg/models"
)

var controlTagRegex = regexp.MustCompile(`^iso27002\.\d+(?:\.\d+)*$`)

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

type compiledSigmaRule struct {
	eval  *sigmaevaluator.RuleEvaluator
	label models.RuleTag
}

// SigmaEngine evaluates Sigma rules against (node, risk) events. Rules
// select on the fields exposed by RiskEvent.Fields, for example
// ThreatCode, AssetCode or Treatment.
type SigmaEngine struct {
	rules []compiledSigmaRule
	ctx   context.Context
}

// NewSigmaEngine loads Sigma rules from a file or directory and compiles evaluators.
// Rules for another log source, multi-event rules and keyword searches are
// skipped and counted in stats.
func NewSigmaEngine(path string) (*SigmaEngine, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	files, err := collectRuleFiles(path)
	if err != nil {
		return nil, stats, err
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		if !isRiskSource(rule.Logsource) {
			stats.SkippedDatasource++
			continue
		}
		if reason := singleEventViolation(rule.Detection); reason != "" {
			stats.SkippedComplex++
			continue
		}
		compiled = append(compiled, compiledSigmaRule{
			eval:  sigmaevaluator.ForRule(rule),
			label: tagFromRule(rule),
		})
		stats.Loaded++
	}

	return &SigmaEngine{rules: compiled, ctx: context.Background()}, stats, nil
}

// Len returns the number of compiled rules.
func (e *SigmaEngine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Apply evaluates every loaded rule against the event.
func (e *SigmaEngine) Apply(event *RiskEvent) []models.RuleTag {
	if e == nil || event == nil || event.Risk == nil || len(e.rules) == 0 {
		return nil
	}

	fields := event.Fields()
	var out []models.RuleTag
	for _, rule := range e.rules {
		res, err := rule.eval.Matches(e.ctx, fields)
		if err != nil || !res.Match {
			continue
		}
		out = append(out, rule.label)
	}
	return out
}

func collectRuleFiles(path string) ([]string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}
	if !info.IsDir() {
		if !isYAMLFile(resolved) {
			return nil, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		return []string{resolved}, nil
	}

	var files []string
	err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() && isYAMLFile(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

// isRiskSource accepts the monarc product and the risk category; either may be left empty.
func isRiskSource(src sigma.Logsource) bool {
	product := strings.ToLower(strings.TrimSpace(src.Product))
	category := strings.ToLower(strings.TrimSpace(src.Category))
	return (product == "" || product == "monarc") && (category == "" || category == "risk")
}

// singleEventViolation returns why a detection cannot be evaluated against
// one event at a time, or "".
func singleEventViolation(det sigma.Detection) string {
	if det.Timeframe > 0 {
		return "timeframe"
	}
	for _, cond := range det.Conditions {
		if cond.Aggregation != nil {
			return "aggregation"
		}
		if !isPlainExpression(cond.Search) {
			return "condition"
		}
	}
	for _, search := range det.Searches {
		if len(search.Keywords) > 0 {
			return "keywords"
		}
		if len(search.EventMatchers) == 0 {
			return "empty search"
		}
	}
	return ""
}

func isPlainExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isPlainExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isPlainExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isPlainExpression(e.Expr)
	}
	return false
}

func tagFromRule(rule sigma.Rule) models.RuleTag {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}
	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if level == "" {
		level = "medium"
	}
	theme, control := parseRiskTags(rule.Tags)
	return models.RuleTag{
		ID:       id,
		Name:     strings.TrimSpace(rule.Title),
		Severity: level,
		Theme:    theme,
		Control:  control,
	}
}

// parseRiskTags reads "monarc.theme.<name>" and "iso27002.<clause>" tags.
func parseRiskTags(tags []string) (string, string) {
	var theme, control string
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case control == "" && controlTagRegex.MatchString(tag):
			control = strings.TrimPrefix(tag, "iso27002.")
		case theme == "" && strings.HasPrefix(tag, "monarc.theme."):
			theme = strings.ReplaceAll(strings.TrimPrefix(tag, "monarc.theme."), "_", "-")
		}
	}
	return theme, control
}
