// Package service содержит бизнес-логику Payment Service: создание платежа
// с суммой из заказа, подтверждение с синхронным уведомлением Order Service
// и компенсацию (refund) при отмене заказа.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/auth"
	"github.com/shestoi/GoFoodSaga/internal/auth/authctx"
	"github.com/shestoi/GoFoodSaga/internal/events"
	"github.com/shestoi/GoFoodSaga/internal/payment/domain"
	"github.com/shestoi/GoFoodSaga/internal/payment/repository"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
)

// PaymentService содержит бизнес-логику работы с платежами
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	orderClient OrderClient
	logger      *zap.Logger
}

// NewPaymentService создаёт новый экземпляр PaymentService
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	orderClient OrderClient,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		orderClient: orderClient,
		logger:      logger,
	}
}

// CreatePaymentInput содержит входные данные создания платежа
type CreatePaymentInput struct {
	OrderID string
	Method  domain.Method
}

// CreatePayment создаёт платёж для заказа вызывающего покупателя.
// Сумма берётся из Order Service; unique constraint по order_id ловит
// гонку двух одновременных созданий
func (s *PaymentService) CreatePayment(ctx context.Context, input CreatePaymentInput) (domain.Payment, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Payment{}, err
	}

	if input.OrderID == "" {
		return domain.Payment{}, apperr.Validation("order id is required")
	}
	switch input.Method {
	case domain.MethodCard, domain.MethodCash, domain.MethodWallet:
	default:
		return domain.Payment{}, apperr.Validation("unknown payment method %s", input.Method)
	}

	summary, err := s.orderClient.GetOrderSummary(ctx, input.OrderID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return domain.Payment{}, err
		}
		s.logger.Error("order service unavailable", zap.String("order_id", input.OrderID), zap.Error(err))
		return domain.Payment{}, apperr.Unavailable(err, "order service unavailable")
	}

	if err := auth.RequireOwner(ctx, summary.CustomerID); err != nil {
		return domain.Payment{}, err
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:        uuid.NewString(),
		OrderID:   input.OrderID,
		UserID:    caller.ID,
		Amount:    summary.Total,
		Method:    input.Method,
		Status:    domain.StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Payment{}, apperr.Conflict("payment for order %s already exists", input.OrderID)
		}
		return domain.Payment{}, err
	}

	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("amount", payment.Amount.StringFixed(2)))

	return payment, nil
}

// GetPayment возвращает платёж. Покупатель видит только свои платежи
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	payment, err := s.getOwned(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// ConfirmPayment подтверждает платёж владельца. Порядок эффектов:
//  1. CONFIRMED и payment.confirmed фиксируются в одной транзакции (outbox);
//  2. синхронный вызов MarkOrderPaid в Order Service.
//
// Если шаг 2 упал, платёж уже CONFIRMED — известная щель согласованности.
// Она закрывается consumer-ом payment.confirmed на стороне Order Service
// и идемпотентностью его внутреннего endpoint-а
func (s *PaymentService) ConfirmPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	payment, err := s.getOwned(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	now := time.Now().UTC()
	if err := payment.Apply(domain.StatusConfirmed, now); err != nil {
		return domain.Payment{}, err
	}

	event, err := marshalEvent(events.PaymentConfirmed{
		Meta:       events.NewMeta(events.TopicPaymentConfirmed),
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		CustomerID: payment.UserID,
		Amount:     payment.Amount.StringFixed(2),
		Method:     string(payment.Method),
	}, events.TopicPaymentConfirmed, payment.OrderID)
	if err != nil {
		return domain.Payment{}, err
	}

	if err := s.paymentRepo.Update(ctx, payment, []platformkafka.OutboxEvent{event}); err != nil {
		return domain.Payment{}, mapUpdateErr(err, paymentID)
	}

	if err := s.orderClient.MarkOrderPaid(ctx, payment.OrderID); err != nil {
		// Не откатываем: consumer payment.confirmed в Order Service доведёт
		s.logger.Warn("failed to mark order paid synchronously, relying on event",
			zap.String("payment_id", payment.ID),
			zap.String("order_id", payment.OrderID),
			zap.Error(err))
	}

	s.logger.Info("payment confirmed",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID))

	return payment, nil
}

// CancelPayment отменяет платёж владельца до подтверждения
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	payment, err := s.getOwned(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	if err := payment.Apply(domain.StatusCancelled, time.Now().UTC()); err != nil {
		return domain.Payment{}, err
	}

	if err := s.paymentRepo.Update(ctx, payment, nil); err != nil {
		return domain.Payment{}, mapUpdateErr(err, paymentID)
	}

	s.logger.Info("payment cancelled", zap.String("payment_id", payment.ID))
	return payment, nil
}

// FailPaymentInput содержит входные данные отказа платежа
type FailPaymentInput struct {
	PaymentID string
	Reason    string
}

// FailPayment помечает платёж неуспешным и публикует payment.failed
func (s *PaymentService) FailPayment(ctx context.Context, input FailPaymentInput) (domain.Payment, error) {
	payment, err := s.getOwned(ctx, input.PaymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	if err := payment.Apply(domain.StatusFailed, time.Now().UTC()); err != nil {
		return domain.Payment{}, err
	}

	event, err := marshalEvent(events.PaymentFailed{
		Meta:       events.NewMeta(events.TopicPaymentFailed),
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		CustomerID: payment.UserID,
		Reason:     input.Reason,
	}, events.TopicPaymentFailed, payment.OrderID)
	if err != nil {
		return domain.Payment{}, err
	}

	if err := s.paymentRepo.Update(ctx, payment, []platformkafka.OutboxEvent{event}); err != nil {
		return domain.Payment{}, mapUpdateErr(err, input.PaymentID)
	}

	s.logger.Info("payment failed",
		zap.String("payment_id", payment.ID),
		zap.String("reason", input.Reason))
	return payment, nil
}

// RefundPayment возвращает подтверждённый платёж. Только admin
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	caller, err := auth.Caller(ctx)
	if err != nil {
		return domain.Payment{}, err
	}
	if caller.Role != authctx.RoleAdmin {
		return domain.Payment{}, apperr.Unauthorized("only admin can refund payments")
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Payment{}, apperr.NotFound("payment %s not found", paymentID)
		}
		return domain.Payment{}, err
	}

	return s.refund(ctx, payment)
}

// RefundByOrder возвращает платёж заказа, если он был подтверждён.
// Вызывается consumer-ом order.cancelled (компенсация саги), поэтому
// идемпотентен: уже возвращённый или отсутствующий платёж - no-op
func (s *PaymentService) RefundByOrder(ctx context.Context, orderID string) error {
	payment, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	switch payment.Status {
	case domain.StatusRefunded:
		return nil
	case domain.StatusConfirmed:
		_, err := s.refund(ctx, payment)
		return err
	default:
		// PENDING/CANCELLED/FAILED: возвращать нечего
		return nil
	}
}

// refund переводит платёж в REFUNDED и публикует payment.refunded
func (s *PaymentService) refund(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	if err := payment.Apply(domain.StatusRefunded, time.Now().UTC()); err != nil {
		return domain.Payment{}, err
	}

	event, err := marshalEvent(events.PaymentRefunded{
		Meta:       events.NewMeta(events.TopicPaymentRefunded),
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		CustomerID: payment.UserID,
		Amount:     payment.Amount.StringFixed(2),
	}, events.TopicPaymentRefunded, payment.OrderID)
	if err != nil {
		return domain.Payment{}, err
	}

	if err := s.paymentRepo.Update(ctx, payment, []platformkafka.OutboxEvent{event}); err != nil {
		return domain.Payment{}, mapUpdateErr(err, payment.ID)
	}

	s.logger.Info("payment refunded",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID))
	return payment, nil
}

// getOwned загружает платёж и проверяет, что вызывающий им владеет
func (s *PaymentService) getOwned(ctx context.Context, paymentID string) (domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Payment{}, apperr.NotFound("payment %s not found", paymentID)
		}
		return domain.Payment{}, err
	}
	if err := auth.RequireOwner(ctx, payment.UserID); err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// marshalEvent сериализует payload в outbox событие
func marshalEvent(payload any, topic, aggregateID string) (platformkafka.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return platformkafka.OutboxEvent{}, err
	}
	var meta struct {
		EventID string `json:"event_id"`
	}
	_ = json.Unmarshal(data, &meta)
	return platformkafka.OutboxEvent{
		EventID:     meta.EventID,
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     data,
	}, nil
}

// mapUpdateErr переводит ошибки репозитория в ошибки уровня API
func mapUpdateErr(err error, paymentID string) error {
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return apperr.Conflict("payment %s was modified concurrently, retry", paymentID)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("payment %s not found", paymentID)
	default:
		return err
	}
}
