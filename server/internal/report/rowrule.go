package report

import "fmt"

// RowRule decides whether a node row is rendered in the alert color based on
// its error history.
type RowRule string

const (
	// RowRuleLegacy flags a row unless the index of the last failed request
	// equals the node's error count. This is the default; note that a node
	// without errors is flagged under it.
	RowRuleLegacy RowRule = "legacy"

	// RowRuleTrailing flags a row when the node's most recent request failed.
	RowRuleTrailing RowRule = "trailing"
)

// ParseRowRule validates s. An empty string selects RowRuleLegacy.
func ParseRowRule(s string) (RowRule, error) {
	switch RowRule(s) {
	case "":
		return RowRuleLegacy, nil
	case RowRuleLegacy, RowRuleTrailing:
		return RowRule(s), nil
	}
	return "", fmt.Errorf("report: unknown row rule %q (want %q or %q)", s, RowRuleLegacy, RowRuleTrailing)
}

// flagged applies the rule. lastErrorIndex is -1 when the node has no errors.
func (r RowRule) flagged(errorMessages []string, lastErrorIndex, numErrors int) bool {
	if r == RowRuleLegacy {
		return lastErrorIndex != numErrors
	}
	n := len(errorMessages)
	return n > 0 && errorMessages[n-1] != ""
}
