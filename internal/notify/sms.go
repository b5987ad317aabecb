package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultSMSBaseURL = "https://api.textline.dev/2024-01/Accounts"

// SMSClient HTTP-клиент SMS-провайдера
type SMSClient struct {
	accountID string
	token     string
	from      string
	baseURL   string
	client    *http.Client
}

type smsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var _ SMSSender = (*SMSClient)(nil)

func NewSMSClient(accountID, token, from, baseURL string) *SMSClient {
	if baseURL == "" {
		baseURL = defaultSMSBaseURL
	}
	return &SMSClient{
		accountID: accountID,
		token:     token,
		from:      from,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *SMSClient) Send(ctx context.Context, phone, body string) error {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/%s/Messages.json", c.baseURL, url.PathEscape(c.accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.accountID, c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr smsError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("sms provider error %d: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	return nil
}
