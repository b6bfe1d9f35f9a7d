package services

import (
	"fmt"

	"github.com/lmsledger/backend/internal/config"
	"github.com/lmsledger/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	PolicyPerfectScore        = "perfect_score"
	PolicyPassingFlat         = "passing_flat"
	PolicyPassingProportional = "passing_proportional"
)

var hundred = decimal.NewFromInt(100)

// RewardInput is what a policy sees of a grading event once the per-item
// overrides have been applied.
type RewardInput struct {
	Score             decimal.Decimal
	BaseAmount        decimal.Decimal
	PassingPercentage decimal.Decimal
}

// RewardPolicy decides whether a score earns a reward and how much.
type RewardPolicy interface {
	Name() string
	Evaluate(in RewardInput) (decimal.Decimal, bool)
}

// PerfectScorePolicy pays BaseAmount x Multiplier for a 100% score only.
type PerfectScorePolicy struct {
	Multiplier decimal.Decimal
}

func (PerfectScorePolicy) Name() string { return PolicyPerfectScore }

func (p PerfectScorePolicy) Evaluate(in RewardInput) (decimal.Decimal, bool) {
	if !in.Score.Equal(hundred) {
		return decimal.Zero, false
	}
	return in.BaseAmount.Mul(p.Multiplier).Round(2), true
}

// PassingFlatPolicy pays BaseAmount for any score at or above the pass mark.
type PassingFlatPolicy struct{}

func (PassingFlatPolicy) Name() string { return PolicyPassingFlat }

func (PassingFlatPolicy) Evaluate(in RewardInput) (decimal.Decimal, bool) {
	if in.Score.LessThan(in.PassingPercentage) {
		return decimal.Zero, false
	}
	return in.BaseAmount.Round(2), true
}

// PassingProportionalPolicy pays BaseAmount x score/100 at or above the pass
// mark, rounded half away from zero to cents.
type PassingProportionalPolicy struct{}

func (PassingProportionalPolicy) Name() string { return PolicyPassingProportional }

func (PassingProportionalPolicy) Evaluate(in RewardInput) (decimal.Decimal, bool) {
	if in.Score.LessThan(in.PassingPercentage) {
		return decimal.Zero, false
	}
	return in.BaseAmount.Mul(in.Score).Div(hundred).Round(2), true
}

type policyBinding struct {
	policy  RewardPolicy
	base    decimal.Decimal
	passing decimal.Decimal
}

// RewardPolicies holds one policy per kind of graded item.
type RewardPolicies struct {
	byKind map[models.SourceKind]policyBinding
}

func NewRewardPolicies(cfg map[string]config.RewardPolicyConfig) (*RewardPolicies, error) {
	rp := &RewardPolicies{byKind: make(map[models.SourceKind]policyBinding)}
	for kind, c := range cfg {
		sk := models.SourceKind(kind)
		if !sk.Valid() {
			return nil, fmt.Errorf("reward policy for unknown source kind %q", kind)
		}

		var policy RewardPolicy
		switch c.Policy {
		case PolicyPerfectScore:
			if !c.Multiplier.IsPositive() {
				return nil, fmt.Errorf("%s: multiplier must be positive", kind)
			}
			policy = PerfectScorePolicy{Multiplier: c.Multiplier}
		case PolicyPassingFlat:
			policy = PassingFlatPolicy{}
		case PolicyPassingProportional:
			policy = PassingProportionalPolicy{}
		default:
			return nil, fmt.Errorf("%s: unknown reward policy %q", kind, c.Policy)
		}

		if c.BaseAmount.IsNegative() {
			return nil, fmt.Errorf("%s: base amount must not be negative", kind)
		}
		if c.PassingPercentage.IsNegative() || c.PassingPercentage.GreaterThan(hundred) {
			return nil, fmt.Errorf("%s: passing percentage must be between 0 and 100", kind)
		}
		rp.byKind[sk] = policyBinding{policy: policy, base: c.BaseAmount, passing: c.PassingPercentage}
	}
	return rp, nil
}

// Evaluate applies the policy configured for the event's kind. The returned
// bool is false when the score earns nothing.
func (rp *RewardPolicies) Evaluate(ev models.GradingEvent) (decimal.Decimal, string, bool, error) {
	b, ok := rp.byKind[ev.SourceKind]
	if !ok {
		return decimal.Zero, "", false, fmt.Errorf("%w: no reward policy for %q", ErrInvalidGradingEvent, ev.SourceKind)
	}

	in := RewardInput{Score: ev.ScorePercentage, BaseAmount: b.base, PassingPercentage: b.passing}
	if ev.RewardAmount != nil {
		in.BaseAmount = *ev.RewardAmount
	}
	if ev.PassingPercentage != nil {
		in.PassingPercentage = *ev.PassingPercentage
	}

	amount, ok := b.policy.Evaluate(in)
	if !ok || !amount.IsPositive() {
		return decimal.Zero, b.policy.Name(), false, nil
	}
	return amount, b.policy.Name(), true, nil
}
