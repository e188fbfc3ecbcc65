package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keek-conecta/escuta-api/pkg/config"
	appErrors "github.com/keek-conecta/escuta-api/pkg/errors"
)

const (
	aadTokenURL       = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	powerBIScope      = "https://analysis.windows.net/powerbi/api/.default"
	powerBIGenerateURL = "https://api.powerbi.com/v1.0/myorg/groups/%s/reports/%s/GenerateToken"
)

// EmbedToken is the payload the dashboard frontend needs to embed the
// governance report.
type EmbedToken struct {
	Token      string    `json:"token"`
	ReportID   string    `json:"report_id"`
	EmbedURL   string    `json:"embed_url"`
	Expiration time.Time `json:"expiration"`
}

// PowerBIService exchanges service-principal credentials for Power BI embed
// tokens. Tokens are cached until shortly before expiry.
type PowerBIService struct {
	cfg    config.PowerBIConfig
	client *http.Client
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewPowerBIService constructs a PowerBIService.
func NewPowerBIService(cfg config.PowerBIConfig, cache *CacheService, logger *zap.Logger) *PowerBIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.TokenTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PowerBIService{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether embedding is configured.
func (s *PowerBIService) Enabled() bool {
	return s.cfg.TenantID != "" && s.cfg.ClientID != "" && s.cfg.ClientSecret != "" &&
		s.cfg.WorkspaceID != "" && s.cfg.ReportID != ""
}

// EmbedToken returns a valid embed token for the configured report.
func (s *PowerBIService) EmbedToken(ctx context.Context) (*EmbedToken, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "embedded report is not configured")
	}

	cacheKey := fmt.Sprintf("powerbi:embed:%s", s.cfg.ReportID)
	var cached EmbedToken
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit && cached.Expiration.After(s.now().Add(time.Minute)) {
		return &cached, nil
	}

	accessToken, err := s.clientCredentialsToken(ctx)
	if err != nil {
		return nil, err
	}

	embed, err := s.generateEmbedToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	ttl := time.Until(embed.Expiration) - time.Minute
	if ttl > 0 {
		if err := s.cache.Set(ctx, cacheKey, embed, ttl); err != nil {
			s.logger.Warn("embed token cache write failed", zap.Error(err))
		}
	}
	return embed, nil
}

func (s *PowerBIService) clientCredentialsToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)
	form.Set("scope", powerBIScope)

	endpoint := fmt.Sprintf(aadTokenURL, s.cfg.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", appErrors.Wrap(err, "POWERBI_UPSTREAM", http.StatusBadGateway, "identity provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", appErrors.New("POWERBI_UPSTREAM", http.StatusBadGateway,
			fmt.Sprintf("identity provider returned status %d", resp.StatusCode))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", appErrors.New("POWERBI_UPSTREAM", http.StatusBadGateway, "identity provider returned an empty token")
	}
	return payload.AccessToken, nil
}

func (s *PowerBIService) generateEmbedToken(ctx context.Context, accessToken string) (*EmbedToken, error) {
	endpoint := fmt.Sprintf(powerBIGenerateURL, s.cfg.WorkspaceID, s.cfg.ReportID)
	body := strings.NewReader(`{"accessLevel":"View"}`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, "POWERBI_UPSTREAM", http.StatusBadGateway, "embed service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.New("POWERBI_UPSTREAM", http.StatusBadGateway,
			fmt.Sprintf("embed service returned status %d", resp.StatusCode))
	}

	var payload struct {
		Token      string    `json:"token"`
		Expiration time.Time `json:"expiration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	return &EmbedToken{
		Token:      payload.Token,
		ReportID:   s.cfg.ReportID,
		EmbedURL:   fmt.Sprintf("https://app.powerbi.com/reportEmbed?reportId=%s&groupId=%s", s.cfg.ReportID, s.cfg.WorkspaceID),
		Expiration: payload.Expiration,
	}, nil
}
