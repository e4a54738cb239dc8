package core

import (
	"fmt"
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// RuleType selects how a custom rule is evaluated
type RuleType string

const (
	RuleRegex  RuleType = "regex"
	RuleLength RuleType = "length"
	RuleCustom RuleType = "custom"
)

// PredicateFunc decides whether a field value is acceptable. fields holds the
// text of every field in the record.
type PredicateFunc func(value string, fields map[string]string) bool

// ValidationRule is a configured data-quality rule on one field
type ValidationRule struct {
	// Unique identifier for the rule
	ID string `yaml:"id" json:"id"`

	// Field the rule applies to
	Field string `yaml:"field" json:"field"`

	// Type of rule: "regex", "length" or "custom"
	Type RuleType `yaml:"type" json:"type"`

	// Pattern the value must match (regex rules)
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	// Length bounds in characters (length rules); zero means unbounded
	MinLength int `yaml:"min_length,omitempty" json:"minLength,omitempty"`
	MaxLength int `yaml:"max_length,omitempty" json:"maxLength,omitempty"`

	// Go function body returning bool, with `value string` and
	// `fields map[string]string` in scope (custom rules)
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`

	// Predicate is used instead of Expression when set from code
	Predicate PredicateFunc `yaml:"-" json:"-"`

	// Message reported when the rule fails
	Message string `yaml:"message" json:"message"`
}

// CompiledRule is a validated rule ready for evaluation
type CompiledRule struct {
	Rule ValidationRule

	re    *regexp.Regexp
	check PredicateFunc

	// interpreted predicates are not safe for concurrent calls
	mu sync.Mutex
}

// CompileRules validates and prepares every rule. Any invalid rule is a
// configuration error.
func CompileRules(rules []ValidationRule) ([]*CompiledRule, error) {
	compiled := make([]*CompiledRule, 0, len(rules))
	for i, rule := range rules {
		if rule.ID == "" {
			rule.ID = fmt.Sprintf("rule-%d", i+1)
		}
		c, err := compileRule(rule)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}

func compileRule(rule ValidationRule) (*CompiledRule, error) {
	if rule.Field == "" {
		return nil, ruleError(rule, "rule has no field", nil)
	}

	c := &CompiledRule{Rule: rule}
	switch rule.Type {
	case RuleRegex:
		if rule.Pattern == "" {
			return nil, ruleError(rule, "regex rule has no pattern", nil)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, ruleError(rule, "invalid pattern", err)
		}
		c.re = re

	case RuleLength:
		if rule.MinLength < 0 || rule.MaxLength < 0 || (rule.MaxLength > 0 && rule.MinLength > rule.MaxLength) {
			return nil, ruleError(rule, "invalid length bounds", nil)
		}

	case RuleCustom:
		switch {
		case rule.Predicate != nil:
			c.check = rule.Predicate
		case rule.Expression != "":
			fn, err := compilePredicate(rule.Expression)
			if err != nil {
				return nil, ruleError(rule, "predicate does not compile", err)
			}
			c.check = fn
		default:
			return nil, ruleError(rule, "custom rule has no expression", nil)
		}

	default:
		return nil, ruleError(rule, fmt.Sprintf("unknown rule type %q", rule.Type), nil)
	}

	if c.Rule.Message == "" {
		c.Rule.Message = fmt.Sprintf("Field '%s' failed rule %s", rule.Field, rule.ID)
	}
	return c, nil
}

func ruleError(rule ValidationRule, reason string, err error) error {
	return &ConfigError{Field: "rules." + rule.ID, Reason: reason, Err: err}
}

// compilePredicate interprets a Go function body as a PredicateFunc
func compilePredicate(body string) (PredicateFunc, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}

	wrapped := fmt.Sprintf(`
package main

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	_ = regexp.MustCompile
	_ = strconv.Atoi
	_ = strings.TrimSpace
	_ = unicode.IsDigit
)

func Check(value string, fields map[string]string) bool {
%s
}
`, body)

	if _, err := i.Eval(wrapped); err != nil {
		return nil, fmt.Errorf("failed to compile predicate: %w", err)
	}

	v, err := i.Eval("main.Check")
	if err != nil {
		return nil, fmt.Errorf("predicate has no Check function: %w", err)
	}

	fn, ok := v.Interface().(func(string, map[string]string) bool)
	if !ok {
		return nil, fmt.Errorf("check must have signature func(string, map[string]string) bool")
	}
	return fn, nil
}

// Evaluate applies the rule to a record. Rules whose field is absent are
// not applicable and report ok.
func (c *CompiledRule) Evaluate(record Record, fields map[string]string) (ok bool, err error) {
	value, present := record.Get(c.Rule.Field)
	if !present {
		return true, nil
	}
	text := value.Text()

	switch c.Rule.Type {
	case RuleRegex:
		if value.IsBlank() {
			return true, nil
		}
		return c.re.MatchString(text), nil

	case RuleLength:
		n := utf8.RuneCountInString(text)
		if n < c.Rule.MinLength {
			return false, nil
		}
		if c.Rule.MaxLength > 0 && n > c.Rule.MaxLength {
			return false, nil
		}
		return true, nil

	case RuleCustom:
		return c.call(text, fields)
	}
	return true, nil
}

func (c *CompiledRule) call(text string, fields map[string]string) (ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("predicate panicked: %v", r)
		}
	}()
	return c.check(text, fields), nil
}
