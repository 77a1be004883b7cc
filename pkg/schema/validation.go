package schema

import (
	"fmt"
	"strings"
)

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// Structural rule ids. Any of these makes a tree invalid.
const (
	RuleFirstNodeMustBeStart   = "first-node-must-be-start"
	RuleLastNodeMustBeEnd      = "last-node-must-be-end"
	RuleInvalidID              = "invalid-id"
	RuleInvalidConfig          = "invalid-config"
	RuleConflictID             = "conflict-id"
	RuleDuplicateStart         = "duplicate-start"
	RuleAbnormalConditionBlock = "abnormal-condition-branch"
	RuleAbnormalTryCatchBlock  = "abnormal-try-catch-branch"
)

// Advisory rule ids, reported as warnings.
const (
	RuleConfigSchema       = "config-schema"
	RuleInvalidTriggerCron = "invalid-trigger-cron"
	RuleDanglingReference  = "dangling-reference"
	RuleInvalidExpression  = "invalid-expression"
)

// DefaultIssueLimit is how many issues user-facing surfaces show by default.
const DefaultIssueLimit = 5

// Issue is a single validator finding.
type Issue struct {
	Rule       string             `json:"rule"`
	NodeID     string             `json:"node_id,omitempty"`
	MessageKey string             `json:"message_key"`
	Path       string             `json:"path,omitempty"`
	Severity   ValidationSeverity `json:"severity"`
	Detail     string             `json:"detail,omitempty"`
}

// MessageKey returns the lookup key for a rule's human-readable message.
func MessageKey(rule string) string {
	return "workflow.validation." + strings.ReplaceAll(rule, "-", "_")
}

// Message renders the issue through a lookup. Unknown keys fall back to the rule id.
func (i Issue) Message(lookup Lookup) string {
	msg := ""
	if lookup != nil {
		msg = lookup.Lookup(i.MessageKey)
	}
	if msg == "" || msg == i.MessageKey {
		msg = i.Rule
	}
	if i.NodeID != "" {
		msg = fmt.Sprintf("%s (node %s)", msg, i.NodeID)
	}
	if i.Detail != "" {
		msg += ": " + i.Detail
	}
	return msg
}

// NewIssue builds an error-severity issue for a structural rule.
func NewIssue(rule, nodeID, path string) Issue {
	return Issue{
		Rule:       rule,
		NodeID:     nodeID,
		MessageKey: MessageKey(rule),
		Path:       path,
		Severity:   SeverityError,
	}
}

// TruncateIssues returns at most n issues, preserving order. n <= 0 means no limit.
func TruncateIssues(issues []Issue, n int) []Issue {
	if n <= 0 || len(issues) <= n {
		return issues
	}
	return issues[:n]
}

// ValidationResult aggregates all issues from the validation pipeline.
type ValidationResult struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors (warnings are acceptable).
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(issue Issue) {
	issue.Severity = SeverityError
	if issue.MessageKey == "" {
		issue.MessageKey = MessageKey(issue.Rule)
	}
	r.Errors = append(r.Errors, issue)
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(path, rule, nodeID, detail string) {
	r.Warnings = append(r.Warnings, Issue{
		Rule:       rule,
		NodeID:     nodeID,
		MessageKey: MessageKey(rule),
		Path:       path,
		Severity:   SeverityWarning,
		Detail:     detail,
	})
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ToError converts the result to a CertflowError if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].Message(nil)
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(r.Errors))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}
