package pinning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxResponseBytes   = 64 << 10
	maxErrorBodyBytes  = 512
)

var (
	// ErrMissingMetadataURI indicates the pinning API answered without a metadata URI.
	ErrMissingMetadataURI = errors.New("pinning: response missing metadataUri")

	errMissingEndpoint = errors.New("pinning: endpoint required")
	errMissingImage    = errors.New("pinning: image required")
	errMissingName     = errors.New("pinning: name and symbol required")
)

// StatusError reports a non-200 answer from the pinning API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pinning: api returned status %d: %s", e.StatusCode, e.Body)
}

// Metadata holds the fixed descriptive fields attached to every upload.
type Metadata struct {
	Description string
	Twitter     string
	Telegram    string
	Website     string
}

// ClientConfig configures the pinning API client.
type ClientConfig struct {
	Endpoint   string
	Metadata   Metadata
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client uploads token images and metadata to the pinning API.
type Client struct {
	endpoint   string
	metadata   Metadata
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errMissingEndpoint
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
		endpoint:   endpoint,
		metadata:   cfg.Metadata,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Upload describes one token image and its naming.
type Upload struct {
	Name      string
	Symbol    string
	ImageName string
	Image     io.Reader
}

// Pin uploads the image with the token metadata and returns the metadata URI.
func (c *Client) Pin(ctx context.Context, upload Upload) (string, error) {
	if upload.Image == nil || strings.TrimSpace(upload.ImageName) == "" {
		return "", errMissingImage
	}
	if strings.TrimSpace(upload.Name) == "" || strings.TrimSpace(upload.Symbol) == "" {
		return "", errMissingName
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writeImagePart(writer, upload); err != nil {
		return "", err
	}
	fields := [][2]string{
		{"name", upload.Name},
		{"symbol", upload.Symbol},
		{"description", c.metadata.Description},
		{"twitter", c.metadata.Twitter},
		{"telegram", c.metadata.Telegram},
		{"website", c.metadata.Website},
		{"showName", "true"},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return "", fmt.Errorf("pinning: write field %s: %w", field[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("pinning: upload failed: %w", err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("pinning: read response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		snippet := payload
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		c.logger.Warn("pinning api rejected upload",
			zap.String("image", upload.ImageName),
			zap.Int("status", response.StatusCode))
		return "", &StatusError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	metadataURI := gjson.GetBytes(payload, "metadataUri").String()
	if metadataURI == "" {
		return "", ErrMissingMetadataURI
	}
	return metadataURI, nil
}

func writeImagePart(writer *multipart.Writer, upload Upload) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filepath.Base(upload.ImageName))))
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("pinning: create image part: %w", err)
	}
	if _, err := io.Copy(part, upload.Image); err != nil {
		return fmt.Errorf("pinning: copy image: %w", err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(value string) string {
	return quoteEscaper.Replace(value)
}
