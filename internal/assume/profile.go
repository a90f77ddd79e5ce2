package assume

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"
)

// ProfileRole is the role assumption described by a shared config profile,
// together with where the credentials that call STS come from.
type ProfileRole struct {
	// Profile is the profile that was read.
	Profile string
	// SourceProfile is the profile's source_profile, empty when it has none.
	SourceProfile string
	// CredentialSource is the profile's credential_source (Environment,
	// Ec2InstanceMetadata or EcsContainer), empty when it has none.
	CredentialSource string
	// IdentityRole is a role the SDK assumes itself while loading the profile,
	// e.g. through web_identity_token_file or credential_process. It is never
	// passed to the exchanger.
	IdentityRole string
	Params       Params
}

// FromProfile reads role_arn, source_profile, credential_source,
// role_session_name, external_id and duration_seconds from the named shared
// config profile. A non-empty roleOverride replaces the profile's role_arn.
// When neither is set the returned Params.RoleARN is empty and the profile's
// own credentials apply.
//
// configFiles overrides the config file lookup, which otherwise follows
// AWS_CONFIG_FILE and AWS_SHARED_CREDENTIALS_FILE like the SDK does.
func FromProfile(ctx context.Context, profile, roleOverride string, configFiles ...string) (ProfileRole, error) {
	var optFns []func(*config.LoadSharedConfigOptions)
	switch {
	case len(configFiles) > 0:
		optFns = append(optFns, func(o *config.LoadSharedConfigOptions) {
			o.ConfigFiles = configFiles
			o.CredentialsFiles = []string{}
		})
	case os.Getenv("AWS_CONFIG_FILE") != "" || os.Getenv("AWS_SHARED_CREDENTIALS_FILE") != "":
		optFns = append(optFns, func(o *config.LoadSharedConfigOptions) {
			if f := os.Getenv("AWS_CONFIG_FILE"); f != "" {
				o.ConfigFiles = []string{f}
			}
			if f := os.Getenv("AWS_SHARED_CREDENTIALS_FILE"); f != "" {
				o.CredentialsFiles = []string{f}
			}
		})
	}

	sc, err := config.LoadSharedConfigProfile(ctx, profile, optFns...)
	if err != nil {
		return fromProfileError(profile, roleOverride, err)
	}

	role := ProfileRole{
		Profile: profile,
		Params: Params{
			RoleARN:     sc.RoleARN,
			SessionName: sc.RoleSessionName,
			ExternalID:  sc.ExternalID,
		},
	}
	if sc.RoleDurationSeconds != nil {
		role.Params.Duration = *sc.RoleDurationSeconds
	}
	if sc.RoleARN != "" {
		switch {
		case sc.SourceProfileName != "":
			role.SourceProfile = sc.SourceProfileName
		case sc.CredentialSource != "":
			role.CredentialSource = sc.CredentialSource
		default:
			role.IdentityRole = sc.RoleARN
			role.Params = Params{}
		}
	}
	if roleOverride != "" {
		role.Params.RoleARN = roleOverride
	}
	return role, nil
}

func fromProfileError(profile, roleOverride string, err error) (ProfileRole, error) {
	var notExist config.SharedConfigProfileNotExistError
	var chain config.SharedConfigAssumeRoleError
	switch {
	case errors.As(err, &notExist) && notExist.Profile == profile:
		// Credentials may still come from the environment.
		return ProfileRole{
			Profile: profile,
			Params:  Params{RoleARN: roleOverride},
		}, nil
	case errors.As(err, &chain) && chain.Err == nil:
		// The source profile exists but stores no credentials; loading it
		// falls through to container or instance credentials.
		log.Debug().
			Str("profile", profile).
			Str("sourceProfile", chain.Profile).
			Msg("Source profile has no stored credentials")
		role := ProfileRole{
			Profile:       profile,
			SourceProfile: chain.Profile,
			Params:        Params{RoleARN: chain.RoleARN},
		}
		if roleOverride != "" {
			role.Params.RoleARN = roleOverride
		}
		return role, nil
	default:
		return ProfileRole{}, fmt.Errorf("load profile %s: %w", profile, err)
	}
}
