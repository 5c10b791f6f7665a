// Package client содержит HTTP клиенты Payment Service к другим сервисам
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/payment/service"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// OrderClient реализует service.OrderClient поверх internal HTTP API
// Order Service. Таймаут ограничен, ошибки транспорта идут наверх:
// платёж без подтверждённой суммы заказа не создаётся
type OrderClient struct {
	logger        *zap.Logger
	baseURL       string
	internalToken string
	client        *http.Client
}

// NewOrderClient создаёт новый клиент Order Service
func NewOrderClient(logger *zap.Logger, baseURL, internalToken string, timeout time.Duration) *OrderClient {
	return &OrderClient{
		logger:        logger,
		baseURL:       strings.TrimRight(baseURL, "/"),
		internalToken: internalToken,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// orderDTO — нужная часть ответа GET /internal/orders/{id}
type orderDTO struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Total      string `json:"total"`
	Status     string `json:"status"`
}

// GetOrderSummary возвращает владельца и сумму заказа
func (c *OrderClient) GetOrderSummary(ctx context.Context, orderID string) (service.OrderSummary, error) {
	reqURL := fmt.Sprintf("%s/internal/orders/%s", c.baseURL, url.PathEscape(orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return service.OrderSummary{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-internal-token", c.internalToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return service.OrderSummary{}, fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return service.OrderSummary{}, apperr.NotFound("order %s not found", orderID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return service.OrderSummary{}, fmt.Errorf("order API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dto orderDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return service.OrderSummary{}, fmt.Errorf("failed to decode order response: %w", err)
	}

	total, err := decimal.NewFromString(dto.Total)
	if err != nil {
		return service.OrderSummary{}, fmt.Errorf("invalid total %q: %w", dto.Total, err)
	}

	return service.OrderSummary{
		OrderID:    dto.ID,
		CustomerID: dto.CustomerID,
		Total:      total,
		Status:     dto.Status,
	}, nil
}

// MarkOrderPaid синхронно помечает заказ оплаченным
func (c *OrderClient) MarkOrderPaid(ctx context.Context, orderID string) error {
	reqURL := fmt.Sprintf("%s/internal/orders/%s/paid", c.baseURL, url.PathEscape(orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-internal-token", c.internalToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("order API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
