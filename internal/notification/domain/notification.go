// Package domain описывает уведомление пользователя.
package domain

import "time"

// Notification — уведомление пользователя о событии его заказа.
// Type хранит имя исходного события (order.confirmed, delivery.assigned...)
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   string
	OrderID   string
	CreatedAt time.Time
}
