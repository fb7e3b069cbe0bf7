package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tablebird/tablebird-backend/api/responses"
	"github.com/tablebird/tablebird-backend/api/validators"
	"github.com/tablebird/tablebird-backend/internal/payments"
	"github.com/tablebird/tablebird-backend/pkg/enums"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
	"github.com/tablebird/tablebird-backend/pkg/logger"
	"github.com/tablebird/tablebird-backend/pkg/metrics"
)

// paymentWebhookGuard dedupes gateway deliveries by event id.
type paymentWebhookGuard interface {
	CheckAndMark(ctx context.Context, gateway, eventID string) (bool, error)
	Delete(ctx context.Context, gateway, eventID string) error
}

// PaymentEventRequest is the normalized webhook body. The real gateways
// each get a thin adapter at the edge; the core consumes one shape.
type PaymentEventRequest struct {
	EventID              string          `json:"event_id" validate:"required"`
	OrderID              uuid.UUID       `json:"order_id" validate:"required"`
	GatewayTransactionID *string         `json:"gateway_transaction_id"`
	PaymentIntentID      *string         `json:"payment_intent_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency" validate:"omitempty,oneof=USD EUR GBP INR"`
	PaymentMethod        *string         `json:"payment_method"`
	Status               string          `json:"status" validate:"required"`
	RawPayload           json.RawMessage `json:"raw_payload"`
	ErrorMessage         *string         `json:"error_message"`
	ErrorCode            *string         `json:"error_code"`
}

type paymentEventView struct {
	OrderID       uuid.UUID `json:"order_id"`
	PaymentStatus string    `json:"payment_status"`
	OrderStatus   string    `json:"order_status"`
}

// PaymentWebhook ingests a gateway's payment event, guards against replayed
// deliveries, and hands the normalized transaction to the reconciliation
// engine.
func PaymentWebhook(
	svc payments.Service,
	guard paymentWebhookGuard,
	accepted []string,
	webhookMetrics *metrics.WebhookMetrics,
	logg *logger.Logger,
) http.HandlerFunc {
	allowedGateways := map[string]struct{}{}
	for _, gateway := range accepted {
		allowedGateways[strings.ToLower(strings.TrimSpace(gateway))] = struct{}{}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		gateway := strings.ToLower(chi.URLParam(r, "gateway"))
		if _, ok := allowedGateways[gateway]; !ok {
			webhookMetrics.IncRejected(gateway)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment gateway"))
			return
		}

		var payload PaymentEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			webhookMetrics.IncRejected(gateway)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParseTransactionStatus(payload.Status)
		if err != nil {
			webhookMetrics.IncRejected(gateway)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown transaction status"))
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, gateway, payload.EventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			webhookMetrics.IncDuplicate(gateway)
			responses.WriteSuccess(w, nil)
			return
		}

		order, err := svc.RecordEvent(ctx, toPaymentEventInput(gateway, status, payload))
		if err != nil {
			_ = guard.Delete(ctx, gateway, payload.EventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		webhookMetrics.IncProcessed(gateway)
		if logg != nil {
			logCtx := logg.WithFields(ctx, map[string]any{
				"gateway":  gateway,
				"event_id": payload.EventID,
				"order_id": order.ID.String(),
			})
			logg.Info(logCtx, "payment webhook processed")
		}

		responses.WriteSuccess(w, paymentEventView{
			OrderID:       order.ID,
			PaymentStatus: string(order.PaymentStatus),
			OrderStatus:   string(order.Status),
		})
	}
}

func toPaymentEventInput(gateway string, status enums.TransactionStatus, payload PaymentEventRequest) payments.PaymentEventInput {
	input := payments.PaymentEventInput{
		OrderID:                payload.OrderID,
		GatewayName:            gateway,
		GatewayTransactionID:   payload.GatewayTransactionID,
		GatewayPaymentIntentID: payload.PaymentIntentID,
		Amount:                 payload.Amount,
		Currency:               enums.Currency(payload.Currency),
		Status:                 status,
		GatewayResponse:        payload.RawPayload,
		ErrorMessage:           payload.ErrorMessage,
		ErrorCode:              payload.ErrorCode,
	}
	if payload.PaymentMethod != nil {
		method := enums.PaymentMethod(*payload.PaymentMethod)
		input.PaymentMethod = &method
	}
	return input
}
