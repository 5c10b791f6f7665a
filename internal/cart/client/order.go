package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/cart/service"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// OrderClient реализует service.OrderClient поверх внутреннего HTTP API
// Order Service
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

// orderItemReqDTO — позиция заказа в теле запроса
type orderItemReqDTO struct {
	MenuItemID    string `json:"menu_item_id"`
	Quantity      int32  `json:"quantity"`
	Customization string `json:"customization,omitempty"`
}

// createOrderReqDTO — тело POST /internal/orders
type createOrderReqDTO struct {
	CustomerID          string            `json:"customer_id"`
	RestaurantID        string            `json:"restaurant_id"`
	DeliveryAddressID   string            `json:"delivery_address_id"`
	Items               []orderItemReqDTO `json:"items"`
	SpecialInstructions string            `json:"special_instructions,omitempty"`
}

// orderRespDTO — заказ в ответе Order Service
type orderRespDTO struct {
	ID                    string     `json:"id"`
	Status                string     `json:"status"`
	Subtotal              string     `json:"subtotal"`
	Tax                   string     `json:"tax"`
	DeliveryFee           string     `json:"delivery_fee"`
	Total                 string     `json:"total"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time,omitempty"`
}

// CreateOrderFromCart создаёт заказ через внутренний endpoint Order Service.
// Ошибки валидации Order Service (недоступная позиция, пустой состав)
// транслируются наверх как Validation, остальное - как Unavailable
func (c *OrderClient) CreateOrderFromCart(ctx context.Context, request service.CreateOrderRequest) (service.CreatedOrder, error) {
	items := make([]orderItemReqDTO, 0, len(request.Items))
	for _, item := range request.Items {
		items = append(items, orderItemReqDTO{
			MenuItemID:    item.MenuItemID,
			Quantity:      item.Quantity,
			Customization: item.Customization,
		})
	}

	body, err := json.Marshal(createOrderReqDTO{
		CustomerID:          request.CustomerID,
		RestaurantID:        request.RestaurantID,
		DeliveryAddressID:   request.DeliveryAddressID,
		Items:               items,
		SpecialInstructions: request.SpecialInstructions,
	})
	if err != nil {
		return service.CreatedOrder{}, fmt.Errorf("failed to marshal order request: %w", err)
	}

	reqURL := c.baseURL + "/internal/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return service.CreatedOrder{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-internal-token", c.internalToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return service.CreatedOrder{}, fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		message := strings.TrimSpace(string(respBody))
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
			return service.CreatedOrder{}, apperr.Validation("order rejected: %s", message)
		}
		return service.CreatedOrder{}, fmt.Errorf("order API status %d: %s", resp.StatusCode, message)
	}

	var dto orderRespDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return service.CreatedOrder{}, fmt.Errorf("failed to decode order response: %w", err)
	}

	return toCreatedOrder(dto)
}

// toCreatedOrder конвертирует ответ API в доменное представление
func toCreatedOrder(dto orderRespDTO) (service.CreatedOrder, error) {
	parse := func(field, value string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid %s %q in order response: %w", field, value, err)
		}
		return d, nil
	}

	subtotal, err := parse("subtotal", dto.Subtotal)
	if err != nil {
		return service.CreatedOrder{}, err
	}
	tax, err := parse("tax", dto.Tax)
	if err != nil {
		return service.CreatedOrder{}, err
	}
	deliveryFee, err := parse("delivery_fee", dto.DeliveryFee)
	if err != nil {
		return service.CreatedOrder{}, err
	}
	total, err := parse("total", dto.Total)
	if err != nil {
		return service.CreatedOrder{}, err
	}

	return service.CreatedOrder{
		ID:                    dto.ID,
		Status:                dto.Status,
		Subtotal:              subtotal,
		Tax:                   tax,
		DeliveryFee:           deliveryFee,
		Total:                 total,
		EstimatedDeliveryTime: dto.EstimatedDeliveryTime,
	}, nil
}
