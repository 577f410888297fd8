package payments

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
)

const DefaultPaystackBaseURL = "https://api.paystack.co"

type PaystackAdapter struct {
	SecretKey  string
	BaseURL    string
	httpClient *http.Client
}

func NewPaystackAdapter(secret, baseURL string, client *http.Client) *PaystackAdapter {
	if baseURL == "" {
		baseURL = DefaultPaystackBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PaystackAdapter{
		SecretKey:  secret,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// envelope is the shape of every Paystack reply.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *PaystackAdapter) do(ctx context.Context, op, method, path string, payload any) (*envelope, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("%s encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s request: %w", op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w: %v", op, ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s read: %w: %v", op, ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, raw, fmt.Errorf("%s: %w: http=%d body=%s", op, ErrGatewayUnavailable, resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, raw, fmt.Errorf("%s decode: http=%d err=%w body=%s", op, resp.StatusCode, err, string(raw))
	}

	if !env.Status || resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &env, raw, &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	return &env, raw, nil
}

func (p *PaystackAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	payload := map[string]any{
		"email":     req.Email,
		"amount":    req.AmountSubunit,
		"reference": req.Reference,
		"metadata": map[string]string{
			"order_id":      req.Reference,
			"customer_name": req.CustomerName,
			"phone":         req.CustomerPhone,
		},
	}
	if req.Currency != "" {
		payload["currency"] = req.Currency
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	env, raw, err := p.do(ctx, "paystack initialize", http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return PaymentResponse{Raw: raw}, err
	}

	var res struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return PaymentResponse{Raw: raw}, fmt.Errorf("paystack initialize decode data: %w", err)
	}
	if res.Reference == "" {
		res.Reference = req.Reference
	}

	return PaymentResponse{
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Reference:        res.Reference,
		Raw:              raw,
	}, nil
}

func (p *PaystackAdapter) VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error) {
	ref := strings.TrimSpace(req.Reference)
	if ref == "" {
		return PaymentVerifyResponse{}, fmt.Errorf("paystack verify requires reference")
	}

	env, raw, err := p.do(ctx, "paystack verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(ref), nil)
	if err != nil {
		return PaymentVerifyResponse{Reference: ref, Raw: raw}, err
	}

	var res struct {
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		Amount          int64  `json:"amount"`
		Currency        string `json:"currency"`
		PaidAt          string `json:"paid_at"`
		GatewayResponse string `json:"gateway_response"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return PaymentVerifyResponse{Reference: ref, Raw: raw}, fmt.Errorf("paystack verify decode data: %w", err)
	}

	state := strings.ToLower(strings.TrimSpace(res.Status))

	// Only "success" is success.
	terminal := false
	switch state {
	case "success", "failed", "reversed":
		terminal = true
	}

	out := PaymentVerifyResponse{
		Success:       state == "success",
		State:         state,
		Terminal:      terminal,
		Reference:     ref,
		AmountSubunit: res.Amount,
		Currency:      strings.ToUpper(res.Currency),
		Message:       res.GatewayResponse,
		Raw:           raw,
	}
	if res.Reference != "" {
		out.Reference = res.Reference
	}
	if res.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, res.PaidAt); err == nil {
			out.PaidAt = &t
		}
	}
	return out, nil
}
