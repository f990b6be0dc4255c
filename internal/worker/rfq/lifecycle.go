package rfq

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cargomesh/freightbid/internal/config"
	"github.com/cargomesh/freightbid/internal/messaging"
	"github.com/cargomesh/freightbid/internal/service/bidding"
	"github.com/cargomesh/freightbid/internal/worker"
)

var workerTracer = otel.Tracer("github.com/cargomesh/freightbid/worker/rfq")

// Module registers the RFQ lifecycle worker handler.
var Module = fx.Module("worker_rfq",
	fx.Provide(
		fx.Annotate(
			NewLifecycleHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLifecycleHandler sets up a worker handler that records RFQ
// lifecycle events. Downstream delivery (vendor notifications etc.)
// hangs off this consumer without touching the engine.
func NewLifecycleHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.rfq.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event bidding.LifecycleEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode lifecycle event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		fields := []zap.Field{
			zap.String("type", event.Type),
			zap.String("rfq_id", event.RFQID.String()),
			zap.String("org_id", event.OrgID.String()),
		}
		if event.RoundNo > 0 {
			fields = append(fields, zap.Int("round_no", event.RoundNo))
		}
		if event.VendorID != nil {
			fields = append(fields, zap.String("vendor_id", event.VendorID.String()))
		}
		logger.Info("rfq lifecycle event processed", fields...)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
