package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionCaller invokes the external endpoint named by an api_call action,
// passing along the notification id. The endpoints themselves (friend
// accept/decline and friends) live in other subsystems.
type ActionCaller interface {
	Call(ctx context.Context, endpoint string, notificationID uuid.UUID) error
}

type httpActionCaller struct {
	baseURL string
	client  *http.Client
}

func NewHTTPActionCaller(baseURL string) ActionCaller {
	return &httpActionCaller{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpActionCaller) Call(ctx context.Context, endpoint string, notificationID uuid.UUID) error {
	body, err := json.Marshal(map[string]string{"notificationId": notificationID.String()})
	if err != nil {
		return err
	}

	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
