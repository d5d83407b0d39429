package solana

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
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// CommitmentFinalized is the strongest commitment level offered by the RPC.
	CommitmentFinalized = "finalized"

	defaultHTTPTimeout  = 30 * time.Second
	defaultPollInterval = 2 * time.Second
	maxResponseBytes    = 1 << 20
)

var (
	// ErrConfirmationTimeout indicates that a signature did not finalize in time.
	ErrConfirmationTimeout = errors.New("solana: transaction confirmation timed out")

	errMissingEndpoint = errors.New("solana: rpc endpoint required")
)

// RPCError is a JSON-RPC error object returned by the endpoint.
type RPCError struct {
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("solana rpc error %d: %s", e.Code, e.Message)
}

// TransactionError reports a transaction the chain executed with an error.
type TransactionError struct {
	Signature string
	// Payload is the raw on-chain error value.
	Payload json.RawMessage
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("solana: transaction %s failed: %s", e.Signature, string(e.Payload))
}

// SignatureStatus is the cluster's view of a submitted transaction.
type SignatureStatus struct {
	Found              bool
	Slot               uint64
	ConfirmationStatus string
	Err                json.RawMessage
}

// Failed reports whether the chain recorded an execution error.
func (s SignatureStatus) Failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

// ClientConfig configures the JSON-RPC client.
type ClientConfig struct {
	Endpoint string
	// APIKey is appended as the api-key query parameter when set.
	APIKey       string
	HTTPClient   *http.Client
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Client talks to a Solana JSON-RPC endpoint.
type Client struct {
	endpoint     string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       *zap.Logger
	requestID    atomic.Uint64
}

// NewClient constructs a Client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errMissingEndpoint
	}
	if cfg.APIKey != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("solana: invalid rpc endpoint: %w", err)
		}
		query := parsed.Query()
		query.Set("api-key", cfg.APIKey)
		parsed.RawQuery = query.Encode()
		endpoint = parsed.String()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint:     endpoint,
		httpClient:   httpClient,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

// GetBalance returns the finalized lamport balance of the account.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := ValidateAddress(address); err != nil {
		return 0, err
	}
	result, err := c.call(ctx, "getBalance", []any{
		strings.TrimSpace(address),
		map[string]string{"commitment": CommitmentFinalized},
	})
	if err != nil {
		return 0, err
	}
	value := result.Get("value")
	if !value.Exists() {
		return 0, fmt.Errorf("solana: getBalance response missing value")
	}
	return value.Uint(), nil
}

// GetSignatureStatus looks the signature up, including transaction history.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (SignatureStatus, error) {
	result, err := c.call(ctx, "getSignatureStatuses", []any{
		[]string{signature},
		map[string]bool{"searchTransactionHistory": true},
	})
	if err != nil {
		return SignatureStatus{}, err
	}
	status := result.Get("value.0")
	if !status.Exists() || status.Type == gjson.Null {
		return SignatureStatus{}, nil
	}
	parsed := SignatureStatus{
		Found:              true,
		Slot:               status.Get("slot").Uint(),
		ConfirmationStatus: status.Get("confirmationStatus").String(),
	}
	if errValue := status.Get("err"); errValue.Exists() && errValue.Type != gjson.Null {
		parsed.Err = json.RawMessage(errValue.Raw)
	}
	return parsed, nil
}

// WaitForFinalized polls the signature until it reaches finalized commitment,
// the chain reports an execution error, or timeout elapses.
func (c *Client) WaitForFinalized(ctx context.Context, signature string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.GetSignatureStatus(waitCtx, signature)
		if err != nil {
			if waitCtx.Err() != nil {
				return c.waitError(ctx, waitCtx, signature)
			}
			return err
		}
		if status.Failed() {
			return &TransactionError{Signature: signature, Payload: status.Err}
		}
		if status.ConfirmationStatus == CommitmentFinalized {
			return nil
		}
		c.logger.Debug("awaiting finalization",
			zap.String("signature", signature),
			zap.String("confirmation_status", status.ConfirmationStatus))

		select {
		case <-waitCtx.Done():
			return c.waitError(ctx, waitCtx, signature)
		case <-ticker.C:
		}
	}
}

func (c *Client) waitError(parent, waitCtx context.Context, signature string) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrConfirmationTimeout, signature)
	}
	return waitCtx.Err()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func (c *Client) call(ctx context.Context, method string, params []any) (gjson.Result, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return gjson.Result{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("solana: %s request failed: %w", method, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("solana: read %s response: %w", method, err)
	}
	if response.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("solana: %s returned status %d", method, response.StatusCode)
	}
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, fmt.Errorf("solana: %s returned malformed json", method)
	}

	parsed := gjson.ParseBytes(payload)
	if rpcErr := parsed.Get("error"); rpcErr.Exists() && rpcErr.Type != gjson.Null {
		return gjson.Result{}, &RPCError{
			Code:    rpcErr.Get("code").Int(),
			Message: rpcErr.Get("message").String(),
		}
	}
	return parsed.Get("result"), nil
}
