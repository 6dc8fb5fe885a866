package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/yourusername/u2s/internal/models"
	"go.uber.org/zap"
)

const (
	contractAuthPath = "/api/v1/auth/auth_by_contract/"
	cloudAuthPath    = "/api/v0/auth/?ttl=86400"
	myCamerasPath    = "/api/v0/cameras/my/"

	defaultPageSize = 20
	defaultMaxPages = 50
	tokenTTL        = 86400
)

// UfanetConfig holds the camera provider settings
type UfanetConfig struct {
	ServiceURL string
	CloudURL   string
	User       string
	Password   string
	PageSize   int
	MaxPages   int
}

// contractAuthResponse is the response of the contract login
type contractAuthResponse struct {
	Token struct {
		Access string `json:"access"`
	} `json:"token"`
}

// cloudAuthResponse is the response of the cloud token exchange
type cloudAuthResponse struct {
	Token string `json:"token"`
}

// cameraQuery is the request body of the camera listing
type cameraQuery struct {
	Fields    []string `json:"fields"`
	OrderBy   string   `json:"order_by"`
	Page      int      `json:"page"`
	PageSize  int      `json:"page_size"`
	TokenDTTL int      `json:"token_d_ttl"`
	TokenLTTL int      `json:"token_l_ttl"`
}

// cameraPage is one page of the camera listing
type cameraPage struct {
	Count   int              `json:"count"`
	Next    json.RawMessage  `json:"next"`
	Results *[]models.Camera `json:"results"`
}

// UfanetClient talks to the camera provider: contract login, cloud token
// exchange and the camera listing.
type UfanetClient struct {
	http   *resty.Client
	config UfanetConfig
	logger *zap.Logger

	accessToken string
	cloudToken  string
}

// NewUfanetClient creates a provider client on top of the shared transport
func NewUfanetClient(httpClient *resty.Client, config UfanetConfig, logger *zap.Logger) *UfanetClient {
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaultMaxPages
	}
	config.ServiceURL = strings.TrimRight(config.ServiceURL, "/")
	config.CloudURL = strings.TrimRight(config.CloudURL, "/")

	return &UfanetClient{
		http:   httpClient,
		config: config,
		logger: logger,
	}
}

// Authenticate logs in by contract and exchanges the access token for a cloud token
func (c *UfanetClient) Authenticate(ctx context.Context) error {
	c.accessToken = ""
	c.cloudToken = ""

	access, err := c.contractAuth(ctx)
	if err != nil {
		return err
	}
	c.accessToken = access

	cloud, err := c.cloudAuth(ctx, access)
	if err != nil {
		return err
	}
	c.cloudToken = cloud

	return nil
}

// contractAuth performs the contract login and returns the access token
func (c *UfanetClient) contractAuth(ctx context.Context) (string, error) {
	c.logger.Info("Ufanet contract auth", zap.String("contract", c.config.User))

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"contract": c.config.User,
			"password": c.config.Password,
		}).
		Post(c.config.ServiceURL + contractAuthPath)
	if err != nil {
		return "", fmt.Errorf("%w: unable to connect ufanet auth API: %w", ErrConnectivity, stripURL(err))
	}
	if !resp.IsSuccess() {
		// A rejected contract is reported as a client error, never as a connectivity problem
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
			return "", fmt.Errorf("%w: contract auth rejected with status %d: %s", ErrAuth, resp.StatusCode(), truncate(resp.String()))
		}
		return "", statusError("contract auth", resp.StatusCode(), resp.String())
	}

	var auth contractAuthResponse
	if err := json.Unmarshal(resp.Body(), &auth); err != nil {
		return "", fmt.Errorf("%w: contract auth response: %w", ErrDecode, err)
	}
	if auth.Token.Access == "" {
		return "", fmt.Errorf("%w: contract auth response has no access token", ErrAuth)
	}

	c.logger.Debug("Ufanet contract auth succeeded")
	return auth.Token.Access, nil
}

// cloudAuth exchanges the access token for a cloud token
func (c *UfanetClient) cloudAuth(ctx context.Context, accessToken string) (string, error) {
	c.logger.Info("Ufanet auth to cloud")

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "JWT "+accessToken).
		Post(c.config.CloudURL + cloudAuthPath)
	if err != nil {
		return "", fmt.Errorf("%w: unable to connect ufanet cloud auth API: %w", ErrConnectivity, stripURL(err))
	}
	if !resp.IsSuccess() {
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
			return "", fmt.Errorf("%w: cloud auth rejected with status %d: %s", ErrAuth, resp.StatusCode(), truncate(resp.String()))
		}
		return "", statusError("cloud auth", resp.StatusCode(), resp.String())
	}

	var auth cloudAuthResponse
	if err := json.Unmarshal(resp.Body(), &auth); err != nil {
		return "", fmt.Errorf("%w: cloud auth response: %w", ErrDecode, err)
	}
	if auth.Token == "" {
		return "", fmt.Errorf("%w: cloud auth response has no token", ErrAuth)
	}

	return auth.Token, nil
}

// FetchCameras returns every camera of the contract, following pagination
func (c *UfanetClient) FetchCameras(ctx context.Context) ([]models.Camera, error) {
	if c.cloudToken == "" {
		return nil, fmt.Errorf("%w: not authenticated", ErrAuth)
	}

	var cameras []models.Camera
	for page := 1; page <= c.config.MaxPages; page++ {
		result, err := c.fetchCameraPage(ctx, page)
		if err != nil {
			return nil, err
		}

		for i, camera := range *result.Results {
			if err := camera.Validate(); err != nil {
				return nil, fmt.Errorf("%w: page %d camera %d: %w", ErrDecode, page, i, err)
			}
		}
		cameras = append(cameras, *result.Results...)

		if !hasNextPage(result.Next) || len(*result.Results) == 0 {
			break
		}
		if page == c.config.MaxPages {
			c.logger.Warn("Camera listing truncated at page limit",
				zap.Int("max_pages", c.config.MaxPages),
				zap.Int("count", result.Count),
			)
		}
	}

	c.logger.Debug("Ufanet cameras fetched", zap.Int("count", len(cameras)))
	return cameras, nil
}

// fetchCameraPage requests a single page of the camera listing
func (c *UfanetClient) fetchCameraPage(ctx context.Context, page int) (*cameraPage, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.cloudToken).
		SetBody(cameraQuery{
			Fields:    models.CameraFields,
			OrderBy:   "title_asc",
			Page:      page,
			PageSize:  c.config.PageSize,
			TokenDTTL: tokenTTL,
			TokenLTTL: tokenTTL,
		}).
		Post(c.config.CloudURL + myCamerasPath)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect ufanet cloud cameras API: %w", ErrConnectivity, stripURL(err))
	}
	if !resp.IsSuccess() {
		return nil, statusError("get cameras", resp.StatusCode(), resp.String())
	}

	var result cameraPage
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: cameras response: %w", ErrDecode, err)
	}
	if result.Results == nil {
		return nil, fmt.Errorf("%w: cameras response has no results", ErrDecode)
	}

	return &result, nil
}

func hasNextPage(next json.RawMessage) bool {
	trimmed := bytes.TrimSpace(next)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte(`""`))
}
