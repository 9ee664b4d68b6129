package widget

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// definitionStore is the storage interface consumed by the maturity calculator.
type definitionStore interface {
	ListDefinitions(ctx context.Context) ([]Definition, error)
	GetOverride(ctx context.Context, tenantID, widgetID uuid.UUID) (*Override, error)
	SeedOverride(ctx context.Context, o *Override) error
}

// tokenSource supplies a tenant-scoped provider access token.
type tokenSource interface {
	Token(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// MaturityCalculator scores one tenant across every defined widget and sums
// points into (totalScore, maxScore). One widget's failure never aborts the
// run: a failed fetch contributes 0 points but its full maxScore.
type MaturityCalculator struct {
	store    definitionStore
	registry *Registry
	tokens   tokenSource
	logger   *zap.Logger
}

// NewMaturityCalculator creates a MaturityCalculator.
func NewMaturityCalculator(store definitionStore, registry *Registry, tokens tokenSource, logger *zap.Logger) *MaturityCalculator {
	return &MaturityCalculator{store: store, registry: registry, tokens: tokens, logger: logger}
}

// Calculate scores the tenant. Widgets that are inactive, or disabled by a
// tenant override, are excluded from both totalScore and maxScore so that
// disabling a widget does not penalize the tenant.
func (m *MaturityCalculator) Calculate(ctx context.Context, tenantID uuid.UUID) (MaturityResult, error) {
	defs, err := m.store.ListDefinitions(ctx)
	if err != nil {
		return MaturityResult{}, fmt.Errorf("list widget definitions: %w", err)
	}

	res := MaturityResult{TenantID: tenantID}

	// One token fetch per run, not per widget. A token failure is recorded
	// once; automatic widgets then all score zero against full maxScore.
	var token string
	var tokenErr error
	tokenFetched := false

	for _, def := range defs {
		if !def.Active {
			continue
		}

		ov, err := m.store.GetOverride(ctx, tenantID, def.ID)
		if err != nil {
			m.logger.Warn("override lookup failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("widget", def.Key),
				zap.Error(err),
			)
		}
		if ov != nil && !ov.Enabled {
			continue
		}

		manual := def.Manual || (ov != nil && ov.Manual)

		var raw any
		if manual {
			if ov == nil {
				// First scoring run for a manual widget with no override yet:
				// seed a safe default so an administrator can fill it in later.
				seed := &Override{TenantID: tenantID, WidgetID: def.ID, Enabled: true, Manual: true}
				if err := m.store.SeedOverride(ctx, seed); err != nil {
					m.logger.Warn("seed manual override failed",
						zap.String("tenant_id", tenantID.String()),
						zap.String("widget", def.Key),
						zap.Error(err),
					)
				}
				ov = seed
			}
			if ov.Value != nil {
				raw = *ov.Value
			}
		} else {
			if !tokenFetched {
				token, tokenErr = m.tokens.Token(ctx, tenantID)
				tokenFetched = true
			}
			val, ok := m.fetchValue(ctx, tenantID, def, token, tokenErr)
			if !ok {
				// A failed fetch contributes exactly zero, bypassing the
				// scoring strategy so fallback or no-points configuration
				// cannot award points for data we never saw.
				res.MaxScore += def.PointsAvailable
				continue
			}
			raw = val
		}

		res.TotalScore += Score(def, raw)
		res.MaxScore += def.PointsAvailable
	}

	return res, nil
}

// fetchValue resolves an automatic widget's raw value. ok is false on any
// failure; the caller then excludes the widget from scoring entirely.
func (m *MaturityCalculator) fetchValue(ctx context.Context, tenantID uuid.UUID, def Definition, token string, tokenErr error) (any, bool) {
	if tokenErr != nil {
		m.logger.Warn("provider token unavailable",
			zap.String("tenant_id", tenantID.String()),
			zap.String("widget", def.Key),
			zap.Error(tokenErr),
		)
		return nil, false
	}
	f, err := m.registry.Lookup(def.Key)
	if err != nil {
		m.logger.Warn("widget has no fetcher",
			zap.String("tenant_id", tenantID.String()),
			zap.String("widget", def.Key),
		)
		return nil, false
	}
	raw, err := f.Fetch(ctx, tenantID, token)
	if err != nil {
		m.logger.Warn("widget fetch failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("widget", def.Key),
			zap.Error(err),
		)
		return nil, false
	}
	return raw, true
}
