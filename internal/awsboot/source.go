package awsboot

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/credentials/endpointcreds"
)

// credential_source values accepted in a role profile.
const (
	CredentialSourceEnvironment = "Environment"
	CredentialSourceEC2         = "Ec2InstanceMetadata"
	CredentialSourceECS         = "EcsContainer"
)

const ecsContainerHost = "http://169.254.170.2"

// credentialSourceProvider returns the provider a credential_source names,
// without the role on top of it.
func credentialSourceProvider(source string) (aws.CredentialsProvider, error) {
	env, err := awsconfig.NewEnvConfig()
	if err != nil {
		return nil, fmt.Errorf("read AWS environment: %w", err)
	}

	switch source {
	case CredentialSourceEnvironment:
		if !env.Credentials.HasKeys() {
			return nil, fmt.Errorf("credential_source %s: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are not set", source)
		}
		return credentials.NewStaticCredentialsProvider(
			env.Credentials.AccessKeyID,
			env.Credentials.SecretAccessKey,
			env.Credentials.SessionToken,
		), nil
	case CredentialSourceEC2:
		return ec2rolecreds.New(), nil
	case CredentialSourceECS:
		endpoint := env.ContainerCredentialsEndpoint
		if env.ContainerCredentialsRelativePath != "" {
			endpoint = ecsContainerHost + env.ContainerCredentialsRelativePath
		}
		if endpoint == "" {
			return nil, fmt.Errorf("credential_source %s: no container credentials URI in the environment", source)
		}
		return endpointcreds.New(endpoint, func(o *endpointcreds.Options) {
			o.AuthorizationToken = env.ContainerAuthorizationToken
		}), nil
	default:
		return nil, fmt.Errorf("unsupported credential_source %q", source)
	}
}
