// services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"challenge-ledger/locks"
	"challenge-ledger/metrics"
	"challenge-ledger/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const chargeLockPrefix = "lock:point:charge:paymentKey:"

// errDuplicatePayment aborts the credit transaction when the payment was
// already recorded.
var errDuplicatePayment = errors.New("payment already recorded")

type ChargeRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type ChargeResult struct {
	CreditedAmount int64 `json:"credited"`
	Balance        int64 `json:"totalPoint"`
}

// PaymentSettlementService turns a gateway-approved payment into points,
// exactly once per payment key.
type PaymentSettlementService struct {
	DB        *gorm.DB
	Points    *PointService
	Gateway   PaymentGateway
	Locker    locks.Locker
	LockWait  time.Duration
	LockLease time.Duration
}

func NewPaymentSettlementService(db *gorm.DB, points *PointService, gateway PaymentGateway, locker locks.Locker, lockWait, lockLease time.Duration) *PaymentSettlementService {
	return &PaymentSettlementService{
		DB:        db,
		Points:    points,
		Gateway:   gateway,
		Locker:    locker,
		LockWait:  lockWait,
		LockLease: lockLease,
	}
}

// ChargeLockName is the lock guarding one payment key.
func ChargeLockName(paymentKey string) string {
	return chargeLockPrefix + paymentKey
}

// ConfirmAndCredit confirms the payment with the gateway, verifies the
// answer against the request and credits the confirmed amount once.
// A payment that was already credited returns CreditedAmount 0 and the
// current balance.
func (s *PaymentSettlementService) ConfirmAndCredit(ctx context.Context, userID string, req ChargeRequest) (*ChargeResult, error) {
	started := time.Now()
	res, err := s.confirmAndCredit(ctx, userID, req)

	outcome := ErrorClass(err)
	if err == nil {
		outcome = "credited"
		if res.CreditedAmount == 0 {
			outcome = "duplicate"
		}
	}
	metrics.RecordCharge(outcome, started)
	return res, err
}

func (s *PaymentSettlementService) confirmAndCredit(ctx context.Context, userID string, req ChargeRequest) (*ChargeResult, error) {
	userID = strings.TrimSpace(userID)
	req.PaymentKey = strings.TrimSpace(req.PaymentKey)
	req.OrderID = strings.TrimSpace(req.OrderID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if req.PaymentKey == "" || req.OrderID == "" {
		return nil, fmt.Errorf("%w: paymentKey and orderId are required", ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidRequest, req.Amount)
	}

	log := zap.L().With(
		zap.String("user_id", userID),
		zap.String("payment_key", req.PaymentKey),
		zap.String("order_id", req.OrderID))

	// Network I/O stays outside the lock and the transaction.
	payment, err := s.confirm(ctx, req)
	if err != nil {
		log.Warn("payment confirmation failed", zap.Error(err))
		return nil, err
	}
	if err := verifyPayment(req, payment); err != nil {
		log.Error("payment integrity violation",
			zap.Error(err),
			zap.String("gateway_order_id", payment.OrderID),
			zap.String("gateway_payment_key", payment.PaymentKey),
			zap.String("gateway_status", payment.Status),
			zap.Int64("gateway_total", payment.TotalAmount),
			zap.Int64("requested_amount", req.Amount))
		return nil, err
	}

	lockStart := time.Now()
	lease, err := s.Locker.TryAcquire(ctx, ChargeLockName(req.PaymentKey), s.LockWait, s.LockLease)
	metrics.RecordLockWait(err == nil, lockStart)
	if errors.Is(err, locks.ErrNotAcquired) {
		log.Info("payment lock busy")
		return nil, fmt.Errorf("%w: payment %s", ErrConflict, req.PaymentKey)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire payment lock: %w", err)
	}
	defer func() {
		if relErr := s.Locker.Release(context.WithoutCancel(ctx), lease); relErr != nil {
			log.Warn("failed to release payment lock", zap.Error(relErr))
		}
	}()

	credited := payment.TotalAmount
	balance, err := s.creditPayment(ctx, lease, userID, req, credited)
	if errors.Is(err, errDuplicatePayment) {
		acct, err := s.Points.EnsureAccount(ctx, userID)
		if err != nil {
			return nil, err
		}
		log.Info("payment already credited", zap.Int64("balance", acct.Balance))
		return &ChargeResult{CreditedAmount: 0, Balance: acct.Balance}, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordCredit(string(models.EventPaymentCredit), credited)
	log.Info("payment credited", zap.Int64("credited", credited), zap.Int64("balance", balance))
	return &ChargeResult{CreditedAmount: credited, Balance: balance}, nil
}

// confirm asks the gateway to confirm, falling back to a lookup when the
// gateway reports the payment as already confirmed.
func (s *PaymentSettlementService) confirm(ctx context.Context, req ChargeRequest) (*Payment, error) {
	payment, err := s.Gateway.Confirm(ctx, ConfirmRequest(req), req.OrderID)
	if err != nil && IsAlreadyProcessed(err) {
		payment, err = s.Gateway.GetPayment(ctx, req.PaymentKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: empty payment response", ErrPaymentGateway)
	}
	return payment, nil
}

func verifyPayment(req ChargeRequest, p *Payment) error {
	switch {
	case p.OrderID != req.OrderID:
		return fmt.Errorf("%w: order id mismatch", ErrSecurityViolation)
	case p.PaymentKey != req.PaymentKey:
		return fmt.Errorf("%w: payment key mismatch", ErrSecurityViolation)
	case p.Status != PaymentStatusDone:
		return fmt.Errorf("%w: payment status %q", ErrSecurityViolation, p.Status)
	case p.TotalAmount != req.Amount:
		return fmt.Errorf("%w: amount mismatch", ErrSecurityViolation)
	}
	return nil
}

// creditPayment records the payment and credits the account in one
// transaction. A unique violation rolls everything back and surfaces as
// errDuplicatePayment. The transaction is cancelled once the lease expires.
func (s *PaymentSettlementService) creditPayment(ctx context.Context, lease *locks.Lease, userID string, req ChargeRequest, amount int64) (int64, error) {
	txCtx := ctx
	if !lease.ExpiresAt.IsZero() {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithDeadline(ctx, lease.ExpiresAt)
		defer cancel()
	}

	var balance int64
	err := s.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, userID)
		if err != nil {
			return err
		}

		record := models.PaymentRecord{
			UserID:         userID,
			PaymentKey:     req.PaymentKey,
			OrderID:        req.OrderID,
			Amount:         amount,
			CreditedAmount: amount,
			Status:         models.PaymentStatusApproved,
		}
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				return errDuplicatePayment
			}
			return fmt.Errorf("insert payment record: %w", err)
		}

		if err := applyCredit(tx, acct, amount, models.EventPaymentCredit, req.PaymentKey); err != nil {
			return err
		}
		balance = acct.Balance
		return nil
	})
	if err != nil && !errors.Is(err, errDuplicatePayment) && errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		return 0, fmt.Errorf("credit outlived payment lock lease: %w", err)
	}
	return balance, err
}

// GetPaymentRecord looks up a recorded payment by key.
func (s *PaymentSettlementService) GetPaymentRecord(ctx context.Context, paymentKey string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := s.DB.WithContext(ctx).Where("payment_key = ?", paymentKey).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: payment %s", ErrNotFound, paymentKey)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
