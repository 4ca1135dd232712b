package domain

import (
	"context"
	"errors"
)

// BusinessRule is a synchronous guard evaluated before an event is raised.
type BusinessRule interface {
	IsBroken() bool
	Message() string
}

// AsyncBusinessRule is a guard whose evaluation may block, e.g. on a lookup.
// It is evaluated before the event is raised, never inside Apply.
type AsyncBusinessRule interface {
	IsBroken(ctx context.Context) (bool, error)
	Message() string
}

// CheckRule returns a *BusinessRuleViolationError if the rule is broken.
func CheckRule(rule BusinessRule) error {
	if rule.IsBroken() {
		return &BusinessRuleViolationError{Message: rule.Message()}
	}

	return nil
}

// CheckRuleContext evaluates an AsyncBusinessRule.
// Errors of the evaluation itself, including cancellation, are returned unchanged.
func CheckRuleContext(ctx context.Context, rule AsyncBusinessRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	broken, err := rule.IsBroken(ctx)
	if err != nil {
		return err
	}

	if broken {
		return &BusinessRuleViolationError{Message: rule.Message()}
	}

	return nil
}

// CheckRules evaluates all rules and joins the violations.
func CheckRules(rules ...BusinessRule) error {
	var violations []error

	for _, rule := range rules {
		if err := CheckRule(rule); err != nil {
			violations = append(violations, err)
		}
	}

	return errors.Join(violations...)
}

// RuleFunc adapts a predicate and a message to a BusinessRule.
type RuleFunc struct {
	Broken func() bool
	Msg    string
}

// IsBroken implements BusinessRule.
func (r RuleFunc) IsBroken() bool {
	return r.Broken()
}

// Message implements BusinessRule.
func (r RuleFunc) Message() string {
	return r.Msg
}
