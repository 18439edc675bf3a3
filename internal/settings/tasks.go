package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeCurrencyRefresh is the asynq task type that reloads cached currency settings.
const TypeCurrencyRefresh = "currency:refresh"

// RefreshPayload selects the tenant to refresh; an empty TenantID refreshes every tenant.
type RefreshPayload struct {
	TenantID string `json:"tenant_id"`
}

// NewRefreshTask builds a currency refresh task.
func NewRefreshTask(tenantID string, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(RefreshPayload{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCurrencyRefresh, payload, opts...), nil
}

// HandleRefreshTask processes a currency refresh task. Malformed payloads are not retried.
func (s *Service) HandleRefreshTask(ctx context.Context, t *asynq.Task) error {
	var p RefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TypeCurrencyRefresh, err, asynq.SkipRetry)
	}
	if p.TenantID != "" {
		return s.Refresh(ctx, p.TenantID)
	}
	n, err := s.RefreshAll(ctx)
	s.logger.Info().Int("tenants", n).Msg("currency settings refresh finished")
	return err
}
