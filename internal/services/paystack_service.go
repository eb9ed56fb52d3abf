// internal/services/paystack_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rankbeam/license-api/internal/config"
)

const paystackBaseURL = "https://api.paystack.co"

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// PaymentGateway starts a checkout session with the payment provider. The
// rest of the system treats the provider as an external collaborator behind
// this interface.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req *InitializeTransactionRequest) (*InitializeTransactionResponse, error)
}

type InitializeTransactionRequest struct {
	Email     string
	PlanCode  string
	Reference string
	Metadata  map[string]string
}

type InitializeTransactionResponse struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Mock             bool
}

type PaystackService struct {
	config *config.Config
	client *http.Client
}

func NewPaystackService(cfg *config.Config) *PaystackService {
	return &PaystackService{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.Paystack.Timeout) * time.Second,
		},
	}
}

func (s *PaystackService) InitializeTransaction(ctx context.Context, req *InitializeTransactionRequest) (*InitializeTransactionResponse, error) {
	if req.Email == "" {
		return nil, errors.New("email is required")
	}
	if req.PlanCode == "" {
		return nil, errors.New("plan code is required")
	}

	secretKey := s.config.Paystack.SecretKey
	mockEnabled := s.mockEnabled()

	if secretKey == "" {
		if mockEnabled {
			return mockResponse(req), nil
		}
		return nil, errors.New("PAYSTACK_SECRET_KEY must be configured")
	}

	resp, err := s.post(ctx, secretKey, req)
	if err != nil {
		if mockEnabled && isIPRestrictionError(err) {
			logrus.Warn("Falling back to mock Paystack transaction due to IP restriction")
			return mockResponse(req), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return resp, nil
}

func (s *PaystackService) post(ctx context.Context, secretKey string, req *InitializeTransactionRequest) (*InitializeTransactionResponse, error) {
	payload := map[string]interface{}{
		"email":     req.Email,
		"plan":      req.PlanCode,
		"reference": req.Reference,
		"metadata":  req.Metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		paystackBaseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	if httpResp.StatusCode >= 400 || !parsed.Status {
		message := parsed.Message
		if message == "" {
			message = httpResp.Status
		}
		return nil, fmt.Errorf("gateway rejected transaction: %s", message)
	}

	return &InitializeTransactionResponse{
		AuthorizationURL: parsed.Data.AuthorizationURL,
		AccessCode:       parsed.Data.AccessCode,
		Reference:        parsed.Data.Reference,
	}, nil
}

func (s *PaystackService) mockEnabled() bool {
	configured := strings.ToLower(strings.TrimSpace(s.config.Paystack.UseMock))
	switch configured {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return !s.config.IsProduction()
}

func mockResponse(req *InitializeTransactionRequest) *InitializeTransactionResponse {
	reference := req.Reference
	if reference == "" {
		reference = "MOCK-" + uuid.NewString()
	}
	return &InitializeTransactionResponse{
		AuthorizationURL: "https://paystack.mock/checkout/" + url.PathEscape(reference),
		AccessCode:       "MOCK-" + reference,
		Reference:        reference,
		Mock:             true,
	}
}

func isIPRestrictionError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "ip address is not allowed")
}
