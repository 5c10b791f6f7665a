// Package client содержит HTTP клиенты Order Service к другим сервисам
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

	"github.com/shestoi/GoFoodSaga/internal/order/service"
)

// RestaurantClient реализует service.RestaurantClient поверх HTTP API
// Restaurant Service. Любая ошибка транспорта или не-200 ответ возвращается
// наверх как ошибка: цены без подтверждения ресторана не используются
type RestaurantClient struct {
	logger        *zap.Logger
	baseURL       string
	internalToken string
	client        *http.Client
}

// NewRestaurantClient создаёт новый клиент Restaurant Service
func NewRestaurantClient(logger *zap.Logger, baseURL, internalToken string, timeout time.Duration) *RestaurantClient {
	return &RestaurantClient{
		logger:        logger,
		baseURL:       strings.TrimRight(baseURL, "/"),
		internalToken: internalToken,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// menuItemDTO — позиция меню в ответе Restaurant Service
type menuItemDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

// GetMenuItems возвращает канонические позиции меню ресторана
func (c *RestaurantClient) GetMenuItems(ctx context.Context, restaurantID string, itemIDs []string) (map[string]service.MenuItem, error) {
	reqURL := fmt.Sprintf("%s/internal/restaurants/%s/menu-items?ids=%s",
		c.baseURL, url.PathEscape(restaurantID), url.QueryEscape(strings.Join(itemIDs, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-internal-token", c.internalToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("restaurant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("restaurant API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dtos []menuItemDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("failed to decode restaurant response: %w", err)
	}

	items := make(map[string]service.MenuItem, len(dtos))
	for _, dto := range dtos {
		price, err := decimal.NewFromString(dto.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q for menu item %s: %w", dto.Price, dto.ID, err)
		}
		items[dto.ID] = service.MenuItem{
			ID:        dto.ID,
			Name:      dto.Name,
			Price:     price,
			Available: dto.Available,
		}
	}
	return items, nil
}
