// Package awsboot builds the AWS clients the transcode commands need.
//
// The source credentials come from the SDK default chain (environment first),
// a shared config profile, or the credential_source of a role profile. When
// the profile, or ASSUME_ROLE_ARN, names a role, those source credentials are
// exchanged for temporary ones through STS before any MediaConvert call is
// made, and the MediaConvert and S3 clients run with the temporary
// credentials. The role is assumed exactly once.
package awsboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog/log"

	"github.com/fpang/mediaconvert-cli/internal/assume"
	"github.com/fpang/mediaconvert-cli/internal/config"
)

// Clients holds the SDK clients used by the transcode flow.
type Clients struct {
	// Config carries the credentials the job clients run with.
	Config       aws.Config
	MediaConvert *mediaconvert.Client
	S3           *s3.Client

	// Source describes where the source credentials came from.
	Source string
	// AssumedRole is empty when the source credentials are used as-is.
	AssumedRole string
}

// LoadSource loads the AWS config in region. A non-empty profile is pinned,
// which makes the SDK take credentials from that profile even when
// AWS_ACCESS_KEY_ID is set; an empty one leaves the default chain in charge.
func LoadSource(ctx context.Context, region, profile string, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	opts = append(opts, optFns...)
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config for profile %q: %w", profile, err)
	}
	log.Debug().Str("region", cfg.Region).Str("profile", profile).Msg("AWS config loaded")
	return cfg, nil
}

// Init resolves the role to assume, performs the credential exchange and
// returns clients bound to the MediaConvert endpoint in settings.
func Init(ctx context.Context, settings *config.Settings) (*Clients, error) {
	role, err := assume.FromProfile(ctx, settings.Profile, settings.AssumeRoleARN)
	if err != nil {
		return nil, err
	}

	source, origin, err := loadSourceConfig(ctx, settings.Region, role)
	if err != nil {
		return nil, err
	}

	cfg := source.Copy()
	assumed := role.IdentityRole
	if role.Params.RoleARN != "" {
		exchanger := assume.NewExchanger(sts.NewFromConfig(source))
		cfg.Credentials = aws.NewCredentialsCache(assume.NewProvider(exchanger, role.Params))

		// Exchange now so a failure aborts before anything is submitted.
		start := time.Now()
		if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
			return nil, err
		}
		log.Debug().Dur("elapsed", time.Since(start)).Msg("Temporary credentials cached")
		assumed = role.Params.RoleARN
	} else if assumed == "" {
		log.Warn().
			Str("profile", settings.Profile).
			Str("source", origin).
			Msg("No role to assume - using the source credentials directly")
	}

	return &Clients{
		Config:       cfg,
		MediaConvert: NewMediaConvert(cfg, settings.MediaConvertEndpoint),
		S3:           s3.NewFromConfig(cfg),
		Source:       origin,
		AssumedRole:  assumed,
	}, nil
}

// loadSourceConfig picks the credentials that call STS. A profile that names
// a role is never handed to the SDK as-is, or the SDK would assume the role
// itself before the exchange.
func loadSourceConfig(ctx context.Context, region string, role assume.ProfileRole) (aws.Config, string, error) {
	switch {
	case role.SourceProfile != "":
		cfg, err := LoadSource(ctx, region, role.SourceProfile)
		return cfg, "profile " + role.SourceProfile, err
	case role.CredentialSource != "":
		provider, err := credentialSourceProvider(role.CredentialSource)
		if err != nil {
			return aws.Config{}, "", fmt.Errorf("profile %s: %w", role.Profile, err)
		}
		cfg, err := LoadSource(ctx, region, role.Profile, awsconfig.WithCredentialsProvider(provider))
		return cfg, "credential_source " + role.CredentialSource, err
	case role.IdentityRole != "":
		cfg, err := LoadSource(ctx, region, role.Profile)
		return cfg, "role profile " + role.Profile, err
	case pinProfile(role.Profile):
		cfg, err := LoadSource(ctx, region, role.Profile)
		return cfg, "profile " + role.Profile, err
	default:
		cfg, err := LoadSource(ctx, region, "")
		return cfg, "default chain", err
	}
}

// pinProfile reports whether profile differs from the one the SDK would pick
// on its own, e.g. when it was only set in the dotenv file.
func pinProfile(profile string) bool {
	if profile == "" || profile == config.DefaultProfile {
		return false
	}
	return profile != os.Getenv("AWS_PROFILE")
}

// NewMediaConvert creates a MediaConvert client that talks to endpoint, the
// account-specific URL MediaConvert requires.
func NewMediaConvert(cfg aws.Config, endpoint string) *mediaconvert.Client {
	return mediaconvert.NewFromConfig(cfg, func(o *mediaconvert.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}
