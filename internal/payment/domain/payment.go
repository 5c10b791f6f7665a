// Package domain содержит доменную модель платежа и машину его статусов.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// Status представляет статус платежа
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// Method представляет способ оплаты
type Method string

const (
	MethodCard   Method = "CARD"
	MethodCash   Method = "CASH"
	MethodWallet Method = "WALLET"
)

// Payment представляет доменную модель платежа.
// Amount берётся из заказа на момент создания и не принимается от клиента.
// На один заказ существует не более одного платежа (unique constraint по OrderID)
type Payment struct {
	ID      string
	OrderID string
	UserID  string
	Amount  decimal.Decimal
	Method  Method
	Status  Status
	// Version — счётчик optimistic lock, как у Order
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transition проверяет допустимость перехода статуса платежа.
// Чистая функция с единственным exhaustive switch по таблице переходов.
// CANCELLED, FAILED и REFUNDED терминальны
func Transition(current, requested Status) error {
	var allowed bool
	switch current {
	case StatusPending:
		allowed = requested == StatusConfirmed || requested == StatusCancelled || requested == StatusFailed
	case StatusConfirmed:
		allowed = requested == StatusRefunded
	case StatusCancelled, StatusFailed, StatusRefunded:
		allowed = false
	default:
		return apperr.Conflict("unknown payment status %s", current)
	}

	if !allowed {
		return apperr.Conflict("illegal payment transition from %s to %s", current, requested)
	}
	return nil
}

// Apply применяет переход к платежу, проверив его по таблице
func (p *Payment) Apply(requested Status, now time.Time) error {
	if err := Transition(p.Status, requested); err != nil {
		return err
	}
	p.Status = requested
	p.UpdatedAt = now
	return nil
}
