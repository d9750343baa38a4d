package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"

	"github.com/kevinjin420/jaseci-llmdocs/internal/tracing"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/llm"
)

const (
	// bedrockService is the SigV4 service name for the Bedrock runtime.
	bedrockService = "bedrock"

	// bedrockAnthropicVersion pins the Anthropic message schema Bedrock
	// expects in the request body.
	bedrockAnthropicVersion = "bedrock-2023-05-31"

	// bedrockDefaultMaxTokens applies when the request leaves MaxTokens
	// unset; the Bedrock API requires an explicit value.
	bedrockDefaultMaxTokens = 4096
)

// BedrockConfig configures the AWS Bedrock client.
type BedrockConfig struct {
	// Region is the AWS region hosting the model (required).
	Region string

	// ModelID is the Bedrock model identifier, e.g.
	// "anthropic.claude-3-5-sonnet-20241022-v2:0" (required).
	ModelID string

	// BaseURL overrides the runtime endpoint. Defaults to
	// https://bedrock-runtime.<region>.amazonaws.com.
	BaseURL string
}

func (c BedrockConfig) validate() error {
	if c.Region == "" {
		return &errors.ConfigError{Key: "bedrock.region", Reason: "region is required for the Bedrock client"}
	}
	if c.ModelID == "" {
		return &errors.ConfigError{Key: "bedrock.model_id", Reason: "model id is required for the Bedrock client"}
	}
	return nil
}

// Bedrock invokes Anthropic models through the AWS Bedrock runtime API.
// Requests are signed with SigV4 using the ambient AWS credential chain
// (environment, shared config, instance role).
type Bedrock struct {
	cfg        BedrockConfig
	baseURL    string
	httpClient *http.Client
	awsConfig  aws.Config
	signer     *v4.Signer

	credMu      sync.RWMutex
	credentials aws.Credentials
	credExpiry  time.Time
}

// NewBedrock creates a Bedrock client and verifies the resolved credentials
// with an STS GetCallerIdentity call so misconfiguration fails at startup
// rather than mid-run.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (*Bedrock, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", cfg.Region)
	}

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(loadCtx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, &errors.ConfigError{
			Key:    "bedrock.region",
			Reason: "failed to load AWS configuration",
			Cause:  err,
		}
	}

	b := &Bedrock{
		cfg:     cfg,
		baseURL: baseURL,
		// The correlation header is added after signing, which is fine:
		// SigV4 only covers headers listed in SignedHeaders.
		httpClient: tracing.WrapHTTPClient(&http.Client{
			Timeout: providerHTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}),
		awsConfig: awsCfg,
		signer:    v4.NewSigner(),
	}

	if err := b.validateCredentials(loadCtx); err != nil {
		return nil, err
	}

	return b, nil
}

// Name returns the client identifier.
func (p *Bedrock) Name() string {
	return "bedrock"
}

// validateCredentials calls STS GetCallerIdentity to ensure the credential
// chain resolves to something usable.
func (p *Bedrock) validateCredentials(ctx context.Context) error {
	if err := p.refreshCredentials(ctx); err != nil {
		return err
	}

	stsClient := sts.NewFromConfig(p.awsConfig)

	validationCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := stsClient.GetCallerIdentity(validationCtx, &sts.GetCallerIdentityInput{}); err != nil {
		return &errors.ConfigError{
			Key:    "bedrock.credentials",
			Reason: fmt.Sprintf("AWS credential validation failed: %v", sanitizeAWSError(err.Error())),
			Cause:  err,
		}
	}

	return nil
}

// refreshCredentials retrieves and caches AWS credentials with a 1 hour TTL.
func (p *Bedrock) refreshCredentials(ctx context.Context) error {
	p.credMu.Lock()
	defer p.credMu.Unlock()

	if !p.credExpiry.IsZero() && time.Now().Before(p.credExpiry) {
		return nil
	}

	creds, err := p.awsConfig.Credentials.Retrieve(ctx)
	if err != nil {
		return &errors.ConfigError{
			Key:    "bedrock.credentials",
			Reason: fmt.Sprintf("unable to resolve AWS credentials: %v", sanitizeAWSError(err.Error())),
			Cause:  err,
		}
	}

	p.credentials = creds
	expiry := creds.Expires
	if expiry.IsZero() || time.Until(expiry) > time.Hour {
		expiry = time.Now().Add(time.Hour)
	}
	p.credExpiry = expiry

	return nil
}

// bedrockRequest is the Anthropic messages payload the Bedrock runtime
// expects for Claude models.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string         `json:"role"`
	Content []bedrockBlock `json:"content"`
}

type bedrockBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockResponse struct {
	Content []bedrockBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Invoke sends one prompt through the Bedrock InvokeModel endpoint.
func (p *Bedrock) Invoke(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if err := p.refreshCredentials(ctx); err != nil {
		return nil, err
	}

	requestID := uuid.New().String()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = bedrockDefaultMaxTokens
	}

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      req.Temperature,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockBlock{{Type: "text", Text: req.Prompt}},
		}},
	})
	if err != nil {
		return nil, &errors.BadRequestError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("failed to marshal request: %v", err),
		}
	}

	invokeURL := fmt.Sprintf("%s/model/%s/invoke", p.baseURL, url.PathEscape(p.cfg.ModelID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, invokeURL, bytes.NewReader(body))
	if err != nil {
		return nil, &errors.BadRequestError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("failed to create request: %v", err),
		}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	payloadHash := sha256.Sum256(body)
	hashHex := hex.EncodeToString(payloadHash[:])
	httpReq.Header.Set("X-Amz-Content-Sha256", hashHex)

	p.credMu.RLock()
	creds := p.credentials
	p.credMu.RUnlock()

	if err := p.signer.SignHTTP(ctx, creds, httpReq, hashHex, bedrockService, p.cfg.Region, time.Now()); err != nil {
		return nil, &errors.BadRequestError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("failed to sign request: %v", err),
		}
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(p.Name(), err, req.Timeout)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.TransportError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    "failed to read response body",
			Cause:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp.StatusCode, respBody, resp.Header)
	}

	return p.parseResponse(respBody, requestID)
}

// parseResponse extracts the completion text from a Bedrock response body.
func (p *Bedrock) parseResponse(body []byte, requestID string) (*llm.InvokeResult, error) {
	var parsed bedrockResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &errors.InvalidResponseError{
			Provider: p.Name(),
			Message:  "response is not valid JSON",
			Cause:    err,
		}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return nil, &errors.InvalidResponseError{
			Provider: p.Name(),
			Message:  "response contains no text content",
		}
	}

	return &llm.InvokeResult{
		Text: text.String(),
		Usage: llm.TokenUsage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
		Model:     p.cfg.ModelID,
		RequestID: requestID,
		Created:   time.Now(),
	}, nil
}

// statusError maps Bedrock error responses to the engine's error kinds.
// Throttling maps to a rate limit regardless of status code; the runtime
// reports it as 429 but older endpoints used 400 with a throttling type.
func (p *Bedrock) statusError(statusCode int, body []byte, header http.Header) error {
	var awsErr struct {
		Message string `json:"message"`
	}
	message := fmt.Sprintf("request failed with status %d", statusCode)
	if err := json.Unmarshal(body, &awsErr); err == nil && awsErr.Message != "" {
		message = sanitizeAWSError(awsErr.Message)
	}

	errType := header.Get("X-Amzn-Errortype")
	if idx := strings.Index(errType, ":"); idx >= 0 {
		errType = errType[:idx]
	}

	switch {
	case statusCode == http.StatusTooManyRequests || errType == "ThrottlingException":
		return &errors.RateLimitError{
			Provider:   p.Name(),
			RetryAfter: parseRetryAfter(header),
			Message:    message,
		}
	case statusCode >= 500:
		return &errors.TransportError{
			Provider:   p.Name(),
			StatusCode: statusCode,
			Message:    message,
		}
	default:
		return &errors.BadRequestError{
			Provider:   p.Name(),
			StatusCode: statusCode,
			Message:    message,
		}
	}
}

// sanitizeAWSError redacts AWS access key ids from error messages before
// they reach logs. Keys start with AKIA followed by 16 characters.
func sanitizeAWSError(msg string) string {
	searchPos := 0
	for {
		akiaPos := strings.Index(msg[searchPos:], "AKIA")
		if akiaPos == -1 {
			break
		}
		akiaPos += searchPos

		endPos := akiaPos + 20
		if endPos > len(msg) {
			endPos = len(msg)
		}

		msg = msg[:akiaPos] + "AKIA****" + msg[endPos:]
		searchPos = akiaPos + len("AKIA****")
	}
	return msg
}

var _ llm.Client = (*Bedrock)(nil)
