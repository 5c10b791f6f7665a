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
)

// ProfileClient реализует service.ProfileClient поверх HTTP API
// Profile Service. Ответ отличный от 200/404 считается ошибкой вызова,
// а не отрицательным результатом: решение принимает вызывающий fail-closed
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

// addressDTO — адрес в ответе Profile Service
type addressDTO struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// VerifyAddressOwnership проверяет, что адрес существует и принадлежит
// пользователю. false без ошибки - однозначно чужой или отсутствующий адрес
func (c *ProfileClient) VerifyAddressOwnership(ctx context.Context, userID, addressID string) (bool, error) {
	reqURL := fmt.Sprintf("%s/internal/addresses/%s", c.baseURL, url.PathEscape(addressID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-internal-token", c.internalToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("profile API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var address addressDTO
	if err := json.NewDecoder(resp.Body).Decode(&address); err != nil {
		return false, fmt.Errorf("failed to decode profile response: %w", err)
	}

	return address.UserID == userID, nil
}
