package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Quote is the fee breakdown of a prospective transfer.
type Quote struct {
	TransferType       domain.TransferType
	Amount             domain.Money
	SystemCommission   domain.Money
	ReceiverCommission domain.Money
	Total              domain.Money
}

// CommissionService resolves commissions and administers the rules behind them.
type CommissionService struct {
	store        QueryStore
	audit        *AuditService
	ceilingRatio decimal.Decimal
}

// NewCommissionService builds the resolver. A non-positive ceilingRatio defaults to 1, meaning
// commission may never exceed the principal amount.
func NewCommissionService(store QueryStore, ceilingRatio decimal.Decimal) *CommissionService {
	if !ceilingRatio.IsPositive() {
		ceilingRatio = decimal.NewFromInt(1)
	}
	return &CommissionService{store: store, audit: NewAuditService(), ceilingRatio: ceilingRatio}
}

// Resolve computes system and receiver commission for amount. Per party an active rule scoped
// to the receiving office wins over the system-scoped rule; no rule means zero. parties limits
// which fees are charged; none given means both. The ceiling and Total only count charged fees.
func (s *CommissionService) Resolve(ctx context.Context, transferType domain.TransferType, amount domain.Money, receiverOfficeID *uuid.UUID, parties ...domain.CommissionParty) (Quote, error) {
	if amount.Amount <= 0 {
		return Quote{}, domain.Validationf("amount must be greater than zero")
	}
	if len(parties) == 0 {
		parties = []domain.CommissionParty{domain.PartySystem, domain.PartyReceiver}
	}
	scopes := []string{domain.ScopeSystem}
	if receiverOfficeID != nil {
		scopes = append(scopes, domain.AgentScope(*receiverOfficeID))
	}

	rules, err := s.store.Queries().GetActiveCommissionRules(ctx, repository.GetActiveCommissionRulesParams{
		TransferType: string(transferType),
		Currency:     amount.Currency,
		Scopes:       scopes,
	})
	if err != nil {
		return Quote{}, fmt.Errorf("load commission rules: %w", err)
	}

	chosen := map[domain.CommissionParty]repository.CommissionRule{}
	for _, r := range rules {
		party := domain.CommissionParty(r.Party)
		if current, ok := chosen[party]; ok && current.Scope != domain.ScopeSystem {
			continue
		}
		chosen[party] = r
	}

	principal := amount.ToDecimal()
	fees := map[domain.CommissionParty]decimal.Decimal{}
	for _, party := range parties {
		r, ok := chosen[party]
		if !ok {
			continue
		}
		rule, err := domain.NewFeeRule(r.Kind, domain.NewMoney(r.ValueMicros, amount.Currency).ToDecimal())
		if err != nil {
			return Quote{}, fmt.Errorf("commission rule %s: %w", r.ID, err)
		}
		rounded, err := domain.RoundToCurrency(rule.Fee(principal), amount.Currency)
		if err != nil {
			return Quote{}, err
		}
		fees[party] = rounded
	}

	commission := fees[domain.PartySystem].Add(fees[domain.PartyReceiver])
	if commission.GreaterThan(principal.Mul(s.ceilingRatio)) {
		return Quote{}, domain.Validationf("commission %s exceeds the allowed ceiling for %s", commission.String(), amount.String())
	}

	systemFee, err := domain.MoneyFromDecimal(fees[domain.PartySystem], amount.Currency)
	if err != nil {
		return Quote{}, err
	}
	receiverFee, err := domain.MoneyFromDecimal(fees[domain.PartyReceiver], amount.Currency)
	if err != nil {
		return Quote{}, err
	}
	total, err := domain.MoneyFromDecimal(principal.Add(commission), amount.Currency)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		TransferType:       transferType,
		Amount:             amount,
		SystemCommission:   systemFee,
		ReceiverCommission: receiverFee,
		Total:              total,
	}, nil
}

// RuleInput is an administrator's request to set a commission rule.
type RuleInput struct {
	TransferType string
	Currency     string
	Scope        string
	Party        string
	Kind         string
	Value        decimal.Decimal
}

// UpsertRule replaces the active rule for (type, currency, scope, party) with a new one.
func (s *CommissionService) UpsertRule(ctx context.Context, actorID uuid.UUID, in RuleInput) (repository.CommissionRule, error) {
	transferType, err := domain.ParseTransferType(in.TransferType)
	if err != nil {
		return repository.CommissionRule{}, err
	}
	currency, err := domain.NormalizeCurrency(in.Currency)
	if err != nil {
		return repository.CommissionRule{}, err
	}
	scope, err := domain.ParseScope(in.Scope)
	if err != nil {
		return repository.CommissionRule{}, err
	}
	party, err := domain.ParseCommissionParty(in.Party)
	if err != nil {
		return repository.CommissionRule{}, err
	}
	rule, err := domain.NewFeeRule(in.Kind, in.Value)
	if err != nil {
		return repository.CommissionRule{}, err
	}
	if !rule.Value().Equal(rule.Value().Round(6)) {
		return repository.CommissionRule{}, domain.Validationf("commission value supports at most 6 decimal places")
	}

	var created repository.CommissionRule
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := qtx.DeactivateCommissionRules(ctx, repository.DeactivateCommissionRulesParams{
			TransferType: string(transferType),
			Currency:     currency,
			Scope:        scope,
			Party:        string(party),
		}); err != nil {
			return fmt.Errorf("deactivate previous rule: %w", err)
		}

		row, err := qtx.InsertCommissionRule(ctx, repository.InsertCommissionRuleParams{
			ID:           uuid.New(),
			TransferType: string(transferType),
			Currency:     currency,
			Scope:        scope,
			Party:        string(party),
			Kind:         string(rule.Kind()),
			ValueMicros:  domain.FromDecimal(rule.Value()),
		})
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.Busy(err)
			}
			return fmt.Errorf("insert commission rule: %w", err)
		}
		created = row

		metadata, _ := json.Marshal(map[string]string{
			"transfer_type": row.TransferType,
			"currency":      row.Currency,
			"scope":         row.Scope,
			"party":         row.Party,
			"kind":          row.Kind,
			"value":         rule.Value().String(),
		})
		return s.audit.Write(ctx, qtx, "commission_rule", row.ID, &actorID, "UPSERT", "", "ACTIVE", metadata)
	})
	if err != nil {
		return repository.CommissionRule{}, err
	}

	zap.L().Info("commission rule set",
		zap.String("rule_id", created.ID.String()),
		zap.String("transfer_type", created.TransferType),
		zap.String("currency", created.Currency),
		zap.String("scope", created.Scope),
		zap.String("party", created.Party))
	return created, nil
}

// DeactivateRule turns a rule off. Deactivating an inactive rule is a no-op.
func (s *CommissionService) DeactivateRule(ctx context.Context, actorID, ruleID uuid.UUID) (repository.CommissionRule, error) {
	var out repository.CommissionRule
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		row, err := qtx.GetCommissionRule(ctx, ruleID)
		if err != nil {
			return notFoundOr(err, "commission rule")
		}
		rows, err := qtx.DeactivateCommissionRule(ctx, ruleID)
		if err != nil {
			return fmt.Errorf("deactivate commission rule: %w", err)
		}
		if rows == 0 {
			out = row
			return nil
		}
		row.Active = false
		out = row
		return s.audit.Write(ctx, qtx, "commission_rule", ruleID, &actorID, "DEACTIVATE", "ACTIVE", "INACTIVE", nil)
	})
	if err != nil {
		return repository.CommissionRule{}, err
	}
	return out, nil
}

// RuleFilter narrows ListRules.
type RuleFilter struct {
	TransferType string
	Currency     string
	ActiveOnly   bool
	Limit        int32
	Offset       int32
}

func (s *CommissionService) ListRules(ctx context.Context, f RuleFilter) ([]repository.CommissionRule, error) {
	params := repository.ListCommissionRulesParams{ActiveOnly: f.ActiveOnly, Limit: f.Limit, Offset: f.Offset}
	if f.TransferType != "" {
		t, err := domain.ParseTransferType(f.TransferType)
		if err != nil {
			return nil, err
		}
		v := string(t)
		params.TransferType = &v
	}
	if f.Currency != "" {
		c, err := domain.NormalizeCurrency(f.Currency)
		if err != nil {
			return nil, err
		}
		params.Currency = &c
	}
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}
	rows, err := s.store.Queries().ListCommissionRules(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list commission rules: %w", err)
	}
	return rows, nil
}

// GetRule returns a single rule by id.
func (s *CommissionService) GetRule(ctx context.Context, id uuid.UUID) (repository.CommissionRule, error) {
	row, err := s.store.Queries().GetCommissionRule(ctx, id)
	if err != nil {
		return repository.CommissionRule{}, notFoundOr(err, "commission rule")
	}
	return row, nil
}
