// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"regexp"
	"strings"
)

// =============================================================================
// TASK TYPES
// =============================================================================

// TaskType is the classification bucket assigned to a user query.
type TaskType string

const (
	TaskCode     TaskType = "code"
	TaskResearch TaskType = "research"
	TaskPlanning TaskType = "planning"
	TaskQuick    TaskType = "quick"
	TaskGeneral  TaskType = "general"
)

// String returns the wire representation of the task type.
func (t TaskType) String() string {
	return string(t)
}

// IsValid checks if the task type is a known value.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskCode, TaskResearch, TaskPlanning, TaskQuick, TaskGeneral:
		return true
	}
	return false
}

// =============================================================================
// CLASSIFICATION RULES
// =============================================================================

// Rule is a single pattern rule contributing one point to a category's score
// when it matches anywhere in the query. Implementations must be
// case-insensitive and safe for concurrent use.
type Rule interface {
	Match(query string) bool
}

// regexRule matches a compiled case-insensitive pattern.
type regexRule struct {
	re *regexp.Regexp
}

func (r regexRule) Match(query string) bool {
	return r.re.MatchString(query)
}

// Keywords builds a rule matching any of the given words on word boundaries.
func Keywords(words ...string) Rule {
	return regexRule{re: regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)}
}

// Phrases builds a rule matching any of the given phrase patterns on word
// boundaries. Patterns use regular expression syntax and match
// case-insensitively.
func Phrases(patterns ...string) Rule {
	return regexRule{re: regexp.MustCompile(`(?i)\b(` + strings.Join(patterns, "|") + `)\b`)}
}

// Pattern builds a rule from a raw regular expression.
func Pattern(expr string) Rule {
	return regexRule{re: regexp.MustCompile(`(?i)` + expr)}
}

// RuleSet is the ordered collection of rules for one task type.
type RuleSet struct {
	Task  TaskType
	Rules []Rule
}

// Score returns the number of rules in the set that match the query.
func (s RuleSet) Score(query string) int {
	n := 0
	for _, r := range s.Rules {
		if r.Match(query) {
			n++
		}
	}
	return n
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier scores queries against per-category rule sets.
//
// Categories are evaluated in declared order; a tie on the highest score
// resolves to the earliest category. Classification is a pure function of the
// query and never fails: a query matching nothing is TaskGeneral.
type Classifier struct {
	sets []RuleSet
}

// NewClassifier returns a classifier with the default rule sets, evaluated
// in the fixed order CODE, RESEARCH, PLANNING, QUICK. The order is part of
// the contract: tests depend on deterministic tie-breaking.
func NewClassifier() *Classifier {
	return &Classifier{
		sets: []RuleSet{
			{
				Task: TaskCode,
				Rules: []Rule{
					Keywords("code", "program", "function", "class", "debug", "error", "bug", "implement", "script", "algorithm"),
					Keywords("python", "javascript", "java", `c\+\+`, "rust", "go", "typescript"),
					Phrases(`write.*code`, `generate.*code`, `create.*function`, `fix.*bug`),
					Pattern("```" + `[\w]*\n`),
				},
			},
			{
				Task: TaskResearch,
				Rules: []Rule{
					Keywords("research", "explain", "analyze", "compare", "study", "investigate", "explore"),
					Phrases(`what is`, `how does`, `why`, `tell me about`, `detailed`, `comprehensive`),
					Keywords("history", "background", "overview", "summary", "breakdown"),
				},
			},
			{
				Task: TaskPlanning,
				Rules: []Rule{
					Keywords("plan", "strategy", "approach", "design", "architect", "organize", "structure"),
					Keywords("steps", "roadmap", "workflow", "process", "methodology"),
					Phrases(`how to`, `how should`, `what should`, `best way`),
				},
			},
			{
				Task: TaskQuick,
				Rules: []Rule{
					Pattern(`^\w{1,20}\?$`), // short single-word questions
					Keywords("quick", "simple", "just", "only"),
					Pattern(`^(yes|no|ok|thanks|hello|hi)\b`),
				},
			},
		},
	}
}

// NewClassifierWithSets returns a classifier using custom rule sets.
// Sets are evaluated in the order given.
func NewClassifierWithSets(sets []RuleSet) *Classifier {
	return &Classifier{sets: sets}
}

// Classify determines the task type for a query.
// Returns TaskGeneral when no category rule matches.
func (c *Classifier) Classify(query string) TaskType {
	best := TaskGeneral
	bestScore := 0

	for _, set := range c.sets {
		if score := set.Score(query); score > bestScore {
			best = set.Task
			bestScore = score
		}
	}

	return best
}
