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

	"go.uber.org/zap"

	"github.com/shestoi/GoFoodSaga/internal/delivery/service"
	"github.com/shestoi/GoFoodSaga/platform/apperr"
)

// ProfileClient реализует service.ProfileClient поверх internal HTTP API
// Profile Service
type ProfileClient struct {
	logger        *zap.Logger
	baseURL       string
	internalToken string
	client        *http.Client
}

// NewProfileClient создаёт новый клиент Profile Service
func NewProfileClient(logger *zap.Logger, baseURL, internalToken string, timeout time.Duration) *ProfileClient {
	return &ProfileClient{
		logger:        logger,
		baseURL:       strings.TrimRight(baseURL, "/"),
		internalToken: internalToken,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// driverDTO — профиль водителя в ответе Profile Service
type driverDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetDriver возвращает профиль водителя по GET /internal/drivers/{id}.
// 404 означает, что пользователя нет или он не водитель
func (c *ProfileClient) GetDriver(ctx context.Context, driverID string) (service.Driver, error) {
	reqURL := fmt.Sprintf("%s/internal/drivers/%s", c.baseURL, url.PathEscape(driverID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return service.Driver{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-internal-token", c.internalToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return service.Driver{}, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return service.Driver{}, apperr.NotFound("driver %s not found", driverID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return service.Driver{}, fmt.Errorf("profile API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dto driverDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return service.Driver{}, fmt.Errorf("failed to decode profile response: %w", err)
	}

	return service.Driver{
		ID:   dto.ID,
		Name: dto.Name,
	}, nil
}
