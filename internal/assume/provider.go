package assume

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ProviderSource is reported in aws.Credentials.Source.
const ProviderSource = "AssumeRoleExchange"

// Provider adapts an Exchanger to aws.CredentialsProvider so SDK clients can
// consume the exchanged credentials. Wrap it with aws.NewCredentialsCache to
// avoid an exchange per request.
type Provider struct {
	exchanger *Exchanger
	params    Params
}

// NewProvider creates a Provider that assumes the role described by p.
func NewProvider(exchanger *Exchanger, p Params) *Provider {
	return &Provider{exchanger: exchanger, params: p}
}

// Retrieve implements aws.CredentialsProvider.
func (p *Provider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	creds, err := p.exchanger.Exchange(ctx, p.params)
	if err != nil {
		return aws.Credentials{}, err
	}
	return aws.Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Source:          ProviderSource,
		CanExpire:       !creds.Expires.IsZero(),
		Expires:         creds.Expires,
	}, nil
}
