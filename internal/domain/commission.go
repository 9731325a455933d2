package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionKind names how a rule's value is interpreted.
type CommissionKind string

const (
	CommissionFixed      CommissionKind = "Fixed"
	CommissionPercentage CommissionKind = "Percentage"
	CommissionPerMille   CommissionKind = "PerMille"
)

// CommissionParty is who earns a commission.
type CommissionParty string

const (
	PartySystem   CommissionParty = "system"
	PartyReceiver CommissionParty = "receiver"
)

// ParseCommissionParty validates a party name; empty means system.
func ParseCommissionParty(s string) (CommissionParty, error) {
	switch p := CommissionParty(strings.TrimSpace(s)); p {
	case "":
		return PartySystem, nil
	case PartySystem, PartyReceiver:
		return p, nil
	}
	return "", Validationf("unknown commission party %q", s)
}

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// FeeRule is the closed set of commission formulas. The only way to obtain one is
// NewFeeRule, which rejects unknown kinds and out-of-range values.
type FeeRule interface {
	Kind() CommissionKind
	Value() decimal.Decimal
	// Fee computes the unrounded commission for amount.
	Fee(amount decimal.Decimal) decimal.Decimal
	sealed()
}

type FixedFee struct{ amount decimal.Decimal }

type PercentageFee struct{ rate decimal.Decimal }

type PerMilleFee struct{ rate decimal.Decimal }

func (f FixedFee) Kind() CommissionKind                  { return CommissionFixed }
func (f FixedFee) Value() decimal.Decimal                { return f.amount }
func (f FixedFee) Fee(_ decimal.Decimal) decimal.Decimal { return f.amount }
func (FixedFee) sealed()                                 {}

func (f PercentageFee) Kind() CommissionKind   { return CommissionPercentage }
func (f PercentageFee) Value() decimal.Decimal { return f.rate }
func (f PercentageFee) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(f.rate).Div(hundred)
}
func (PercentageFee) sealed() {}

func (f PerMilleFee) Kind() CommissionKind   { return CommissionPerMille }
func (f PerMilleFee) Value() decimal.Decimal { return f.rate }
func (f PerMilleFee) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(f.rate).Div(thousand)
}
func (PerMilleFee) sealed() {}

// NewFeeRule validates kind and value bounds at write time.
func NewFeeRule(kind string, value decimal.Decimal) (FeeRule, error) {
	if value.IsNegative() {
		return nil, Validationf("commission value must not be negative")
	}
	switch CommissionKind(kind) {
	case CommissionFixed:
		if value.GreaterThan(MaxAmount) {
			return nil, Validationf("fixed commission must not exceed %s", MaxAmount.String())
		}
		return FixedFee{amount: value}, nil
	case CommissionPercentage:
		if value.GreaterThan(hundred) {
			return nil, Validationf("percentage commission must be within [0,100]")
		}
		return PercentageFee{rate: value}, nil
	case CommissionPerMille:
		if value.GreaterThan(thousand) {
			return nil, Validationf("per-mille commission must be within [0,1000]")
		}
		return PerMilleFee{rate: value}, nil
	}
	return nil, Validationf("unknown commission kind %q", kind)
}

const agentScopePrefix = "agent:"

// ScopeSystem is the network-wide rule scope.
const ScopeSystem = "system"

// AgentScope returns the scope string of an office-specific rule.
func AgentScope(officeID uuid.UUID) string {
	return agentScopePrefix + officeID.String()
}

// ParseScope validates "system" or "agent:<officeId>" and returns the canonical form.
func ParseScope(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == ScopeSystem {
		return s, nil
	}
	if rest, ok := strings.CutPrefix(s, agentScopePrefix); ok {
		id, err := uuid.Parse(rest)
		if err != nil {
			return "", Validationf("invalid office id in scope %q", s)
		}
		return AgentScope(id), nil
	}
	return "", Validationf("scope must be %q or %q", ScopeSystem, fmt.Sprintf("%s<officeId>", agentScopePrefix))
}
