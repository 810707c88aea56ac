// Package pricing resolves the margin percent applied on top of cost.
// The resolution order is fixed and must be identical wherever a
// selling price is computed: item override, company tier default,
// company-wide default, hard fallback.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"

	"rxledger/internal/core/types"
	"rxledger/internal/domain/catalog"
	"rxledger/pkg/logger"
)

// FallbackMarginPercent applies when neither the item, its tier, nor
// the company configure a margin.
var FallbackMarginPercent = types.MustMoney("20")

// Resolver resolves margin percents. Tier-mapping rules are CEL
// expressions over item attributes, compiled once per expression and
// cached.
type Resolver struct {
	mu       sync.Mutex
	env      *cel.Env
	programs map[string]cel.Program
}

// NewResolver creates a margin resolver.
func NewResolver() (*Resolver, error) {
	env, err := cel.NewEnv(
		cel.Variable("category", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("base_unit", cel.StringType),
		cel.Variable("vat_category", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &Resolver{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// ResolveMarginPercent returns the margin percent for an item under the
// given company settings. It never fails: unresolvable tiers fall
// through to the next priority level.
func (r *Resolver) ResolveMarginPercent(ctx context.Context, item *catalog.Item, settings *catalog.CompanySettings) types.Money {
	// 1. Item-level override wins outright.
	if item.MarginOverride != nil {
		return *item.MarginOverride
	}

	// 2. Tier default: explicit item tier, else category-mapped tier.
	tier := ""
	if item.MarginTier != nil {
		tier = *item.MarginTier
	} else {
		tier = r.mapTier(ctx, item, settings.TierRules)
	}
	if tier != "" {
		if margin, ok := settings.TierDefaults[tier]; ok {
			return margin
		}
	}

	// 3. Company-wide default.
	if settings.DefaultMarginPercent.IsPositive() {
		return settings.DefaultMarginPercent
	}

	// 4. Hard fallback.
	return FallbackMarginPercent
}

// SellingPrice computes cost * (1 + margin/100). Returns nil when the
// cost is not strictly positive: an unresolved cost must not produce a
// meaningless price.
func SellingPrice(cost types.Money, marginPercent types.Money) *types.Money {
	if !cost.IsPositive() {
		return nil
	}
	hundred := types.NewMoney(100)
	price := cost.Mul(hundred.Add(marginPercent)).Div(hundred).Round(4)
	return &price
}

// mapTier evaluates the company's tier rules in priority order and
// returns the tier of the first rule that matches, or "".
func (r *Resolver) mapTier(ctx context.Context, item *catalog.Item, rules []catalog.TierRule) string {
	if len(rules) == 0 {
		return ""
	}

	ordered := make([]catalog.TierRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	vars := map[string]any{
		"category":     item.Category,
		"name":         item.Name,
		"base_unit":    item.BaseUnit,
		"vat_category": string(item.VATCategory),
	}

	for _, rule := range ordered {
		prg, err := r.program(rule.Expression)
		if err != nil {
			logger.Warn(ctx, "skipping invalid tier rule",
				"expression", rule.Expression,
				"error", err,
			)
			continue
		}

		out, _, err := prg.Eval(vars)
		if err != nil {
			logger.Warn(ctx, "tier rule evaluation failed",
				"expression", rule.Expression,
				"error", err,
			)
			continue
		}

		if matched, ok := out.Value().(bool); ok && matched {
			return rule.Tier
		}
	}

	return ""
}

// program compiles a CEL expression, reusing the cache.
func (r *Resolver) program(expression string) (cel.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prg, ok := r.programs[expression]; ok {
		return prg, nil
	}

	ast, issues := r.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}

	prg, err := r.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program: %w", err)
	}

	r.programs[expression] = prg
	return prg, nil
}
