// Package bank talks to the FinTS gateway sidecar. The gateway owns the
// bank credentials and the online-banking dialog state; this client only
// drives the submit/confirm handshake over its JSON API.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kassenwart/kassenwart-backend/internal/config"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
)

const requestTimeout = 60 * time.Second

// GatewayClient implements domain.BankClient against the gateway's HTTP API.
type GatewayClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewGatewayClient creates a new GatewayClient
func NewGatewayClient(cfg config.BankConfig) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimSuffix(cfg.GatewayURL, "/"),
		token:   cfg.GatewayToken,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type debitRequest struct {
	AccountIBAN      string `json:"accountIban"`
	Payload          string `json:"payload"`
	Multiple         bool   `json:"multiple"`
	COR1             bool   `json:"cor1"`
	ControlSum       string `json:"controlSum"`
	Currency         string `json:"currency"`
	SchemaDescriptor string `json:"schemaDescriptor"`
}

type confirmRequest struct {
	TAN string `json:"tan"`
}

type initiateResponse struct {
	Status         string `json:"status"`
	ChallengeToken string `json:"challengeToken"`
	Reason         string `json:"reason"`
}

type gatewayError struct {
	Error string `json:"error"`
}

// ListConnections returns the configured bank logins and their accounts.
func (g *GatewayClient) ListConnections(ctx context.Context) (map[string]domain.BankConnection, error) {
	var connections map[string]domain.BankConnection
	if err := g.do(ctx, http.MethodGet, "/connections", nil, &connections); err != nil {
		return nil, err
	}
	return connections, nil
}

// InitiateDebit submits the order for execution from the given account.
func (g *GatewayClient) InitiateDebit(ctx context.Context, loginID, accountIBAN string, order domain.DebitOrder) (*domain.InitiateResult, error) {
	req := debitRequest{
		AccountIBAN:      accountIBAN,
		Payload:          order.Payload,
		Multiple:         order.Multiple,
		COR1:             order.COR1,
		ControlSum:       order.ControlSum.StringFixed(2),
		Currency:         order.Currency,
		SchemaDescriptor: order.SchemaDescriptor,
	}
	var resp initiateResponse
	path := fmt.Sprintf("/connections/%s/debits", url.PathEscape(loginID))
	if err := g.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return toResult(resp), nil
}

// ConfirmChallenge answers a pending strong-authentication challenge.
func (g *GatewayClient) ConfirmChallenge(ctx context.Context, loginID, token, tan string) (*domain.InitiateResult, error) {
	var resp initiateResponse
	path := fmt.Sprintf("/connections/%s/challenges/%s", url.PathEscape(loginID), url.PathEscape(token))
	if err := g.do(ctx, http.MethodPost, path, confirmRequest{TAN: tan}, &resp); err != nil {
		return nil, err
	}
	return toResult(resp), nil
}

// GetChallengeForm fetches the presentation metadata of a pending challenge.
func (g *GatewayClient) GetChallengeForm(ctx context.Context, loginID, token string) (domain.ChallengeForm, error) {
	var form domain.ChallengeForm
	path := fmt.Sprintf("/connections/%s/challenges/%s", url.PathEscape(loginID), url.PathEscape(token))
	if err := g.do(ctx, http.MethodGet, path, nil, &form); err != nil {
		return nil, err
	}
	return form, nil
}

func toResult(resp initiateResponse) *domain.InitiateResult {
	result := &domain.InitiateResult{
		ChallengeToken: resp.ChallengeToken,
		Reason:         resp.Reason,
	}
	switch resp.Status {
	case string(domain.InitiateCompleted):
		result.Status = domain.InitiateCompleted
	case string(domain.InitiateChallenge):
		result.Status = domain.InitiateChallenge
	default:
		// Anything unrecognized counts as a failure.
		result.Status = domain.InitiateFailed
		if result.Reason == "" {
			result.Reason = fmt.Sprintf("unrecognized gateway status %q", resp.Status)
		}
	}
	return result
}

func (g *GatewayClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrConnectionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ge gatewayError
		if json.Unmarshal(data, &ge) == nil && ge.Error != "" {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, ge.Error)
		}
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
