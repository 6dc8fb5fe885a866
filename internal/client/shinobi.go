package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/yourusername/u2s/internal/models"
	"go.uber.org/zap"
)

// ShinobiConfig holds the CCTV platform settings
type ShinobiConfig struct {
	CCTVURL  string
	APIKey   string
	GroupKey string
}

// platformReply is the status envelope the platform answers with
type platformReply struct {
	OK  *bool  `json:"ok"`
	Msg string `json:"msg"`
}

// configureRequest is the body of the configureMonitor call
type configureRequest struct {
	Data models.Monitor `json:"data"`
}

// ShinobiClient talks to the CCTV platform monitor API
type ShinobiClient struct {
	http   *resty.Client
	config ShinobiConfig
	logger *zap.Logger
}

// NewShinobiClient creates a platform client on top of the shared transport
func NewShinobiClient(httpClient *resty.Client, config ShinobiConfig, logger *zap.Logger) *ShinobiClient {
	config.CCTVURL = strings.TrimRight(config.CCTVURL, "/")

	return &ShinobiClient{
		http:   httpClient,
		config: config,
		logger: logger,
	}
}

// FetchMonitors returns all monitors of the configured group
func (c *ShinobiClient) FetchMonitors(ctx context.Context) ([]models.Monitor, error) {
	endpoint := fmt.Sprintf("%s/%s/monitor/%s",
		c.config.CCTVURL,
		url.PathEscape(c.config.APIKey),
		url.PathEscape(c.config.GroupKey),
	)

	resp, err := c.http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect shinobi monitors API: %w", ErrConnectivity, stripURL(err))
	}
	if !resp.IsSuccess() {
		return nil, statusError("get monitors", resp.StatusCode(), resp.String())
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) > 0 && body[0] == '{' {
		// An object instead of a list is the platform's way of refusing the key
		var reply platformReply
		if err := json.Unmarshal(body, &reply); err == nil && reply.OK != nil && !*reply.OK {
			return nil, fmt.Errorf("%w: shinobi refused monitor listing: %s", ErrAuth, reply.Msg)
		}
		return nil, fmt.Errorf("%w: monitors response is not a list", ErrDecode)
	}

	var monitors []models.Monitor
	if err := json.Unmarshal(body, &monitors); err != nil {
		return nil, fmt.Errorf("%w: monitors response: %w", ErrDecode, err)
	}
	for i, monitor := range monitors {
		if err := monitor.Validate(); err != nil {
			return nil, fmt.Errorf("%w: monitor %d: %w", ErrDecode, i, err)
		}
	}

	c.logger.Debug("Shinobi monitors fetched", zap.Int("count", len(monitors)))
	return monitors, nil
}

// CreateMonitor registers a new monitor
func (c *ShinobiClient) CreateMonitor(ctx context.Context, monitor models.Monitor) error {
	return c.configure(ctx, "add", monitor, "")
}

// UpdateMonitor rewrites an existing monitor
func (c *ShinobiClient) UpdateMonitor(ctx context.Context, monitor models.Monitor) error {
	return c.configure(ctx, "update", monitor, "/")
}

// configure posts the monitor to the configureMonitor endpoint
func (c *ShinobiClient) configure(ctx context.Context, action string, monitor models.Monitor, suffix string) error {
	endpoint := fmt.Sprintf("%s/%s/configureMonitor/%s/%s%s",
		c.config.CCTVURL,
		url.PathEscape(c.config.APIKey),
		url.PathEscape(c.config.GroupKey),
		url.PathEscape(monitor.MID),
		suffix,
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(configureRequest{Data: monitor}).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("%w: unable to connect shinobi %s monitor API: %w", ErrApply, action, stripURL(err))
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %s %s failed with status %d: %s", ErrApply, action, monitor.MID, resp.StatusCode(), truncate(resp.String()))
	}

	var reply platformReply
	if err := json.Unmarshal(resp.Body(), &reply); err == nil && reply.OK != nil && !*reply.OK {
		return fmt.Errorf("%w: %s %s rejected: %s", ErrApply, action, monitor.MID, reply.Msg)
	}

	c.logger.Debug("Shinobi monitor configured",
		zap.String("action", action),
		zap.String("mid", monitor.MID),
		zap.String("response", truncate(resp.String())),
	)
	return nil
}
