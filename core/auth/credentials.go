package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
	jwtBearerGrant     = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// Refresh slightly before the provider-reported expiry so an
	// in-flight synthesis never races token expiration.
	tokenExpirySlack = 2 * time.Minute
)

// CredentialProvider supplies bearer tokens for the speech API.
// Implementations handle their own refresh; callers treat an empty
// token as "not authenticated" and do not retry.
type CredentialProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticProvider returns a fixed token. Used in tests and for local
// development with a manually minted token.
type StaticProvider struct {
	Token string
}

func (p StaticProvider) AccessToken(ctx context.Context) (string, error) {
	return p.Token, nil
}

// serviceAccountKey is the subset of the Google service-account JSON
// key file this provider needs.
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// ServiceAccountProvider exchanges a signed JWT assertion for an OAuth
// access token and caches it until expiry. A failed exchange is retried
// once with a freshly signed assertion before giving up.
type ServiceAccountProvider struct {
	mu            sync.Mutex
	httpClient    *http.Client
	clientEmail   string
	signingKey    *rsa.PrivateKey
	tokenEndpoint string

	cachedToken string
	expiry      time.Time
}

// NewServiceAccountProvider loads a service-account key file. The token
// endpoint from the key file wins over the configured fallback.
func NewServiceAccountProvider(credentialsFile, tokenEndpoint string, httpClient *http.Client) (*ServiceAccountProvider, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", credentialsFile, err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", credentialsFile, err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("credentials file %s is missing client_email or private_key", credentialsFile)
	}

	signingKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account private key: %w", err)
	}

	if key.TokenURI != "" {
		tokenEndpoint = key.TokenURI
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &ServiceAccountProvider{
		httpClient:    httpClient,
		clientEmail:   key.ClientEmail,
		signingKey:    signingKey,
		tokenEndpoint: tokenEndpoint,
	}, nil
}

// AccessToken returns a cached token while it is still valid, otherwise
// performs the JWT-bearer exchange. One retry on a failed exchange.
func (p *ServiceAccountProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedToken != "" && time.Now().Before(p.expiry.Add(-tokenExpirySlack)) {
		return p.cachedToken, nil
	}

	token, lifetime, err := p.exchange(ctx)
	if err != nil {
		// The assertion may have been signed against a skewed clock or
		// the previous token revoked server-side; one fresh attempt.
		token, lifetime, err = p.exchange(ctx)
		if err != nil {
			p.cachedToken = ""
			return "", fmt.Errorf("failed to exchange service account token: %w", err)
		}
	}

	p.cachedToken = token
	p.expiry = time.Now().Add(lifetime)
	return token, nil
}

// exchange signs a fresh assertion and posts it to the token endpoint.
func (p *ServiceAccountProvider) exchange(ctx context.Context) (string, time.Duration, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   p.clientEmail,
		"scope": cloudPlatformScope,
		"aud":   p.tokenEndpoint,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.signingKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", 0, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("token response contained no access_token")
	}

	lifetime := time.Duration(tokenResp.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return tokenResp.AccessToken, lifetime, nil
}
