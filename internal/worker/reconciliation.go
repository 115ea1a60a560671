package worker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"perfume-storefront/internal/domain"
	"perfume-storefront/internal/infrastructure/payment"
	"perfume-storefront/internal/repo"
)

// Reconciler applies a gateway outcome to the order holding a payment id.
type Reconciler interface {
	Reconcile(ctx context.Context, paymentID string, action payment.Action, amount decimal.Decimal) (*domain.Order, error)
}

type Options struct {
	Interval time.Duration
	// StaleAfter is how long an order may wait for its webhook before the
	// gateway is asked directly.
	StaleAfter time.Duration
	// AbandonAfter cancels orders the gateway still reports as pending.
	AbandonAfter time.Duration
	BatchSize    int
}

// ReconciliationWorker catches payments whose webhook never arrived.
type ReconciliationWorker struct {
	orderRepo  repo.OrderRepo
	gateway    payment.PaymentGateway
	reconciler Reconciler
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

func NewReconciliationWorker(
	orderRepo repo.OrderRepo,
	gateway payment.PaymentGateway,
	reconciler Reconciler,
	opts Options,
	logger *zap.Logger,
) *ReconciliationWorker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &ReconciliationWorker{
		orderRepo:  orderRepo,
		gateway:    gateway,
		reconciler: reconciler,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.opts.Interval)
	defer ticker.Stop()

	rw.logger.Info("reconciliation worker started",
		zap.Duration("interval", rw.opts.Interval),
		zap.Duration("stale_after", rw.opts.StaleAfter))

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if err := rw.process(ctx); err != nil {
				rw.logger.Error("reconciliation failed", zap.Error(err))
			}
		}
	}
}

func (rw *ReconciliationWorker) process(ctx context.Context) error {
	stuckOrders, err := rw.orderRepo.FindStuckOrders(ctx, rw.opts.StaleAfter, rw.opts.BatchSize)
	if err != nil {
		return err
	}
	if len(stuckOrders) == 0 {
		return nil
	}

	rw.logger.Info("checking stale payments", zap.Int("count", len(stuckOrders)))

	for _, order := range stuckOrders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rw.reconcileOrder(ctx, order)
	}
	return nil
}

func (rw *ReconciliationWorker) reconcileOrder(ctx context.Context, order domain.Order) {
	log := rw.logger.With(
		zap.String("order_id", order.ID.String()),
		zap.String("payment_id", order.PaymentID))

	info, err := rw.gateway.GetPaymentStatus(ctx, order.PaymentID)
	if err != nil {
		// retried on the next tick
		log.Warn("failed to check payment status", zap.Error(err))
		return
	}

	action := payment.ActionForStatus(info.Status)
	amount := payment.FromCents(info.Amount)
	if action == payment.ActionIgnore {
		if rw.opts.AbandonAfter <= 0 || rw.now().Sub(order.CreatedAt) < rw.opts.AbandonAfter {
			return
		}
		action = payment.ActionCancel
		log.Info("abandoning unpaid order", zap.Time("created_at", order.CreatedAt))
	}

	updated, err := rw.reconciler.Reconcile(ctx, order.PaymentID, action, amount)
	if err != nil {
		log.Error("failed to reconcile order", zap.String("action", action.String()), zap.Error(err))
		return
	}
	if updated != nil {
		log.Info("order reconciled",
			zap.String("gateway_status", info.Status),
			zap.String("status", updated.Status.String()),
			zap.String("payment_status", string(updated.PaymentStatus)))
	}
}
