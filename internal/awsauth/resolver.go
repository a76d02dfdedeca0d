// Package awsauth resolves a regional AWS session from a named local profile.
package awsauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/ssocreds"
	ssotypes "github.com/aws/aws-sdk-go-v2/service/sso/types"
	ssooidctypes "github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cchalm/bedrock-chat/internal/apperr"
)

const (
	DefaultProfile = "default"
	DefaultRegion  = "us-east-1"
)

// Session is an authenticated AWS configuration bound to one profile and region
type Session struct {
	Profile string
	Region  string
	Config  aws.Config
}

// LoadConfigFunc matches config.LoadDefaultConfig so tests can substitute it
type LoadConfigFunc func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error)

// LoadProfileFunc matches config.LoadSharedConfigProfile
type LoadProfileFunc func(ctx context.Context, profile string, optFns ...func(*config.LoadSharedConfigOptions)) (config.SharedConfig, error)

type Resolver struct {
	load        LoadConfigFunc
	loadProfile LoadProfileFunc // nil skips the cached SSO token check
}

func NewResolver() *Resolver {
	return &Resolver{
		load:        config.LoadDefaultConfig,
		loadProfile: config.LoadSharedConfigProfile,
	}
}

// NewResolverWithLoader creates a resolver that loads configuration with the given function and does not inspect
// the SSO token cache
func NewResolverWithLoader(load LoadConfigFunc) *Resolver {
	return &Resolver{load: load}
}

// NewResolverWithLoaders creates a resolver that loads configuration and the raw shared profile with the given
// functions
func NewResolverWithLoaders(load LoadConfigFunc, loadProfile LoadProfileFunc) *Resolver {
	return &Resolver{load: load, loadProfile: loadProfile}
}

// Resolve loads the shared configuration for profile and region and retrieves credentials once, so that missing
// profiles and expired SSO sessions surface here rather than on the first model call. Every returned error is an
// *apperr.Error.
func (r *Resolver) Resolve(ctx context.Context, profile, region string) (Session, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if region == "" {
		region = DefaultRegion
	}

	cfg, err := r.load(ctx,
		config.WithSharedConfigProfile(profile),
		config.WithRegion(region),
	)
	if err != nil {
		return Session{}, classify(profile, nil, fmt.Errorf("failed to load AWS config: %w", err))
	}

	if cfg.Credentials == nil {
		return Session{}, apperr.New(apperr.KindClientConfiguration, apperr.HintClientConfiguration,
			fmt.Errorf("no credentials provider configured for profile '%s'", profile))
	}

	if err := r.checkCachedSSOToken(ctx, profile); err != nil {
		return Session{}, apperr.New(apperr.KindExpiredSession, apperr.HintExpiredSession, err)
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return Session{}, classify(profile, cfg.Credentials, fmt.Errorf("failed to retrieve credentials: %w", err))
	}
	if creds.CanExpire {
		log.Printf("Credentials for profile '%s' expire at %s", profile, creds.Expires.Format("15:04:05 MST"))
	}

	return Session{
		Profile: profile,
		Region:  region,
		Config:  cfg,
	}, nil
}

// cachedSSOToken is the subset of the AWS CLI's SSO cache file needed to tell whether a login is still usable
type cachedSSOToken struct {
	ExpiresAt    string `json:"expiresAt"`
	RefreshToken string `json:"refreshToken"`
}

// checkCachedSSOToken returns an error if the profile uses SSO and its cached token has expired with no way to
// refresh it. Profiles without SSO, unreadable profiles and missing cache files are left for Retrieve to report.
func (r *Resolver) checkCachedSSOToken(ctx context.Context, profile string) error {
	if r.loadProfile == nil {
		return nil
	}
	shared, err := r.loadProfile(ctx, profile)
	if err != nil {
		return nil
	}

	// sso-session profiles key the cache by session name, legacy profiles by start URL
	cacheKey := shared.SSOSessionName
	if cacheKey == "" {
		cacheKey = shared.SSOStartURL
	}
	if cacheKey == "" {
		return nil
	}

	path, err := ssocreds.StandardCachedTokenFilepath(cacheKey)
	if err != nil {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var token cachedSSOToken
	if err := json.Unmarshal(b, &token); err != nil {
		return nil
	}
	expiresAt, err := time.Parse(time.RFC3339, token.ExpiresAt)
	if err != nil {
		return nil
	}
	if token.RefreshToken == "" && !time.Now().Before(expiresAt) {
		return fmt.Errorf("cached SSO token for '%s' expired at %s", cacheKey, expiresAt.Format(time.RFC3339))
	}
	return nil
}

var expiredTokenCodes = map[string]bool{
	"ExpiredToken":          true,
	"ExpiredTokenException": true,
}

// classify maps a setup failure to its kind. provider is the credentials provider whose Retrieve failed, or nil
// when loading the configuration failed.
func classify(profile string, provider aws.CredentialsProvider, err error) error {
	var profileErr config.SharedConfigProfileNotExistError
	if errors.As(err, &profileErr) {
		return apperr.New(apperr.KindProfileNotFound, fmt.Sprintf(apperr.HintProfileNotFound, profile), err)
	}

	if isExpiredSession(err) {
		return apperr.New(apperr.KindExpiredSession, apperr.HintExpiredSession, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apperr.New(apperr.KindClientConfiguration, apperr.HintClientConfiguration, err)
	}

	// The SSO token provider reports a missing or unrefreshable token as an untyped error. Anything from an SSO
	// provider that did not fail on the wire is a login problem.
	var sendErr *smithyhttp.RequestSendError
	if provider != nil && aws.IsCredentialsProvider(provider, (*ssocreds.Provider)(nil)) && !errors.As(err, &sendErr) {
		return apperr.New(apperr.KindExpiredSession, apperr.HintExpiredSession, err)
	}

	return apperr.New(apperr.KindUnexpectedSetup, apperr.HintUnexpectedSetup, err)
}

func isExpiredSession(err error) bool {
	var tokenErr *ssocreds.InvalidTokenError
	if errors.As(err, &tokenErr) {
		return true
	}

	// Refreshing the SSO token was refused
	var grantErr *ssooidctypes.InvalidGrantException
	if errors.As(err, &grantErr) {
		return true
	}
	var clientErr *ssooidctypes.UnauthorizedClientException
	if errors.As(err, &clientErr) {
		return true
	}
	// The SSO portal rejected the access token
	var unauthorizedErr *ssotypes.UnauthorizedException
	if errors.As(err, &unauthorizedErr) {
		return true
	}

	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && expiredTokenCodes[apiErr.ErrorCode()]
}
