package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orderflow/fulfillment-system/order-service/domain"
	"github.com/orderflow/fulfillment-system/shared/faults"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// HTTPInventoryClient implements InventoryService against the catalog
// service's reservation endpoints
type HTTPInventoryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPInventoryClient creates an HTTPInventoryClient
func NewHTTPInventoryClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPInventoryClient {
	return &HTTPInventoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type reserveStockRequest struct {
	OrderReference string               `json:"order_reference"`
	Items          []reserveRequestItem `json:"items"`
}

type reserveRequestItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Reserve asks the catalog service to reserve stock for the given order
// reference. A decoded response with success=false is returned as-is so the
// caller can inspect per-item availability.
func (c *HTTPInventoryClient) Reserve(ctx context.Context, orderReference string, items []domain.ReservationRequestItem) (*domain.ReservationResult, error) {
	payload := reserveStockRequest{
		OrderReference: orderReference,
		Items:          make([]reserveRequestItem, 0, len(items)),
	}
	for _, item := range items {
		payload.Items = append(payload.Items, reserveRequestItem{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
		})
	}

	body, err := c.do(ctx, http.MethodPost, "/reservations", payload)
	if err != nil {
		return nil, err
	}

	var result domain.ReservationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, faults.Wrap(faults.KindUnavailable, err, "catalog service returned a malformed reservation response")
	}
	return &result, nil
}

// Confirm makes the reservation for the given order reference permanent
func (c *HTTPInventoryClient) Confirm(ctx context.Context, orderReference string) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/reservations/%s/confirm", orderReference), nil)
	return err
}

// Release returns the reserved stock for the given order reference
func (c *HTTPInventoryClient) Release(ctx context.Context, orderReference string) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/reservations/%s/release", orderReference), nil)
	return err
}

func (c *HTTPInventoryClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Wrapf(faults.KindUnavailable, err, "catalog service is unreachable at %s", c.baseURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Wrap(faults.KindUnavailable, err, "failed to read catalog service response")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	message := c.errorMessage(body, resp.StatusCode)
	c.logger.Warn("catalog service rejected request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.String("message", message),
	)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return nil, faults.New(faults.KindValidation, message)
	case http.StatusNotFound:
		return nil, faults.New(faults.KindNotFound, message)
	case http.StatusConflict:
		return nil, faults.New(faults.KindConflict, message)
	default:
		return nil, faults.New(faults.KindUnavailable, message)
	}
}

func (c *HTTPInventoryClient) errorMessage(body []byte, statusCode int) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return fmt.Sprintf("catalog service returned status %d", statusCode)
}
