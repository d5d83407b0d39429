package trade

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// ActionCreate requests a token creation transaction.
	ActionCreate = "create"
	// ActionBuy requests a token buy transaction.
	ActionBuy = "buy"
)

const (
	defaultPool        = "pump"
	defaultHTTPTimeout = 30 * time.Second
	maxTransactionSize = 64 << 10
	maxErrorBodyBytes  = 512
)

var (
	// ErrEmptyTransaction indicates the API answered 200 without a payload.
	ErrEmptyTransaction = errors.New("trade: empty transaction payload")

	errMissingEndpoint = errors.New("trade: endpoint required")
	errMissingPayer    = errors.New("trade: payer public key required")
	errMissingMint     = errors.New("trade: mint address required")
	errInvalidAmount   = errors.New("trade: amount must not be negative")
)

// StatusError reports a non-200 answer from the trade API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trade: api returned status %d: %s", e.StatusCode, e.Body)
}

// Transaction is an unsigned serialized transaction awaiting client signatures.
type Transaction []byte

// Base64 encodes the transaction for JSON transport.
func (t Transaction) Base64() string {
	return base64.StdEncoding.EncodeToString(t)
}

// TokenMetadata names the token a create transaction mints.
type TokenMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri"`
}

// CreateRequest describes a token creation paid for by Payer.
type CreateRequest struct {
	Payer    string
	Mint     string
	Metadata TokenMetadata
	// AmountSOL is an optional initial buy bundled into the creation.
	AmountSOL float64
}

// BuyRequest describes a buy of Mint paid for by Payer.
type BuyRequest struct {
	Payer     string
	Mint      string
	AmountSOL float64
}

// ClientConfig configures the trade API client.
type ClientConfig struct {
	Endpoint        string
	Pool            string
	SlippagePercent float64
	PriorityFeeSOL  float64
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// Client builds unsigned create and buy transactions through the trade API.
type Client struct {
	endpoint        string
	pool            string
	slippagePercent float64
	priorityFeeSOL  float64
	httpClient      *http.Client
	logger          *zap.Logger
}

// NewClient constructs a Client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errMissingEndpoint
	}
	pool := strings.TrimSpace(cfg.Pool)
	if pool == "" {
		pool = defaultPool
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:        endpoint,
		pool:            pool,
		slippagePercent: cfg.SlippagePercent,
		priorityFeeSOL:  cfg.PriorityFeeSOL,
		httpClient:      httpClient,
		logger:          logger,
	}, nil
}

type tradeRequest struct {
	PublicKey        string         `json:"publicKey"`
	Action           string         `json:"action"`
	Mint             string         `json:"mint"`
	DenominatedInSol string         `json:"denominatedInSol"`
	Amount           float64        `json:"amount"`
	Slippage         float64        `json:"slippage"`
	PriorityFee      float64        `json:"priorityFee"`
	Pool             string         `json:"pool"`
	TokenMetadata    *TokenMetadata `json:"tokenMetadata,omitempty"`
}

// BuildCreate requests an unsigned token creation transaction.
func (c *Client) BuildCreate(ctx context.Context, request CreateRequest) (Transaction, error) {
	if err := validateParties(request.Payer, request.Mint, request.AmountSOL); err != nil {
		return nil, err
	}
	metadata := request.Metadata
	return c.post(ctx, tradeRequest{
		PublicKey:        strings.TrimSpace(request.Payer),
		Action:           ActionCreate,
		Mint:             strings.TrimSpace(request.Mint),
		DenominatedInSol: "true",
		Amount:           request.AmountSOL,
		Slippage:         c.slippagePercent,
		PriorityFee:      c.priorityFeeSOL,
		Pool:             c.pool,
		TokenMetadata:    &metadata,
	})
}

// BuildBuy requests an unsigned buy transaction.
func (c *Client) BuildBuy(ctx context.Context, request BuyRequest) (Transaction, error) {
	if err := validateParties(request.Payer, request.Mint, request.AmountSOL); err != nil {
		return nil, err
	}
	return c.post(ctx, tradeRequest{
		PublicKey:        strings.TrimSpace(request.Payer),
		Action:           ActionBuy,
		Mint:             strings.TrimSpace(request.Mint),
		DenominatedInSol: "true",
		Amount:           request.AmountSOL,
		Slippage:         c.slippagePercent,
		PriorityFee:      c.priorityFeeSOL,
		Pool:             c.pool,
	})
}

func validateParties(payer, mint string, amount float64) error {
	if strings.TrimSpace(payer) == "" {
		return errMissingPayer
	}
	if strings.TrimSpace(mint) == "" {
		return errMissingMint
	}
	if amount < 0 {
		return errInvalidAmount
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload tradeRequest) (Transaction, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("trade: %s request failed: %w", payload.Action, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		c.logger.Warn("trade api rejected request",
			zap.String("action", payload.Action),
			zap.String("mint", payload.Mint),
			zap.Int("status", response.StatusCode))
		return nil, &StatusError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxTransactionSize))
	if err != nil {
		return nil, fmt.Errorf("trade: read %s response: %w", payload.Action, err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyTransaction
	}
	return Transaction(raw), nil
}
