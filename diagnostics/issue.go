// Package diagnostics derives severity-tagged findings about a relay from
// consensus-evaluation data and live overload signals.
package diagnostics

import "sort"

// Severity of a diagnostic issue.
type Severity string

// Issue severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Category of a diagnostic issue.
type Category string

// Issue categories, in display priority order.
const (
	CategoryConsensus    Category = "consensus"
	CategoryReachability Category = "reachability"
	CategoryGuard        Category = "guard"
	CategoryStable       Category = "stable"
	CategoryHSDir        Category = "hsdir"
	CategoryBandwidth    Category = "bandwidth"
	CategoryDescriptor   Category = "descriptor"
	CategoryFlags        Category = "flags"
	CategoryVersion      Category = "version"
	CategoryOverload     Category = "overload"
)

var categoryPriority = map[Category]int{
	CategoryConsensus:    0,
	CategoryReachability: 1,
	CategoryGuard:        2,
	CategoryStable:       3,
	CategoryHSDir:        4,
	CategoryBandwidth:    5,
	CategoryDescriptor:   6,
	CategoryFlags:        7,
	CategoryVersion:      8,
	CategoryOverload:     9,
}

// Issue is a single categorized, severity-tagged finding.
type Issue struct {
	Severity    Severity
	Category    Category
	Title       string
	Description string
	Suggestion  string
	DocURL      string
}

// sortByCategory orders issues by category priority while preserving
// insertion order within a category.
func sortByCategory(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return categoryPriority[issues[i].Category] < categoryPriority[issues[j].Category]
	})
}
