// Package assume exchanges source AWS credentials for temporary ones by
// assuming an IAM role through STS.
//
// The exchange is a single AssumeRole call. A response without a credential
// payload is reported as an ExchangeError; transport and API errors from STS
// are returned wrapped but otherwise unchanged, so errors.As still finds the
// smithy.APIError underneath. Nothing is retried.
package assume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionPrefix is prepended to generated role session names.
const SessionPrefix = "mediaconvert-cli-"

// Session duration bounds accepted by AssumeRole.
const (
	MinDuration = 15 * time.Minute
	MaxDuration = 12 * time.Hour
)

var (
	// ErrEmptyRole is returned when no role ARN was supplied.
	ErrEmptyRole = errors.New("role ARN must not be empty")

	// ErrCredentialExchange matches every ExchangeError via errors.Is.
	ErrCredentialExchange = errors.New("credential exchange failed")
)

// ExchangeError reports an AssumeRole response that carried no usable
// credential payload.
type ExchangeError struct {
	RoleARN string
	Reason  string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("unable to assume %s: %s", e.RoleARN, e.Reason)
}

// Is reports ErrCredentialExchange as a match.
func (e *ExchangeError) Is(target error) bool {
	return target == ErrCredentialExchange
}

// Credentials is the temporary key triple returned by STS.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
}

// Params describes the role to assume.
type Params struct {
	RoleARN     string
	SessionName string
	// Duration is optional; zero lets STS apply the role's default. Other
	// values are clamped to [MinDuration, MaxDuration].
	Duration   time.Duration
	ExternalID string
}

// STSAPI is the subset of the STS client used by the Exchanger.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Exchanger performs the role assumption with an STS client that was built
// from the source credentials.
type Exchanger struct {
	client STSAPI
}

// NewExchanger creates an Exchanger.
func NewExchanger(client STSAPI) *Exchanger {
	return &Exchanger{client: client}
}

// NewSessionName returns a unique role session name.
func NewSessionName() string {
	return SessionPrefix + uuid.NewString()
}

// Exchange assumes p.RoleARN and returns the temporary credentials.
func (e *Exchanger) Exchange(ctx context.Context, p Params) (Credentials, error) {
	if p.RoleARN == "" {
		return Credentials{}, ErrEmptyRole
	}
	if p.SessionName == "" {
		p.SessionName = NewSessionName()
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(p.RoleARN),
		RoleSessionName: aws.String(p.SessionName),
	}
	if p.Duration > 0 {
		input.DurationSeconds = aws.Int32(durationSeconds(p.Duration))
	}
	if p.ExternalID != "" {
		input.ExternalId = aws.String(p.ExternalID)
	}

	log.Debug().
		Str("roleArn", p.RoleARN).
		Str("sessionName", p.SessionName).
		Msg("Assuming role")

	start := time.Now()
	out, err := e.client.AssumeRole(ctx, input)
	if err != nil {
		return Credentials{}, fmt.Errorf("assume role %s: %w", p.RoleARN, err)
	}

	if out == nil || out.Credentials == nil {
		return Credentials{}, &ExchangeError{RoleARN: p.RoleARN, Reason: "empty credential object"}
	}
	c := out.Credentials
	if aws.ToString(c.AccessKeyId) == "" || aws.ToString(c.SecretAccessKey) == "" {
		return Credentials{}, &ExchangeError{RoleARN: p.RoleARN, Reason: "credential object without key pair"}
	}

	creds := Credentials{
		AccessKeyID:     aws.ToString(c.AccessKeyId),
		SecretAccessKey: aws.ToString(c.SecretAccessKey),
		SessionToken:    aws.ToString(c.SessionToken),
		Expires:         aws.ToTime(c.Expiration),
	}

	log.Info().
		Str("roleArn", p.RoleARN).
		Time("expires", creds.Expires).
		Dur("elapsed", time.Since(start)).
		Msg("Role assumed")

	return creds, nil
}

func durationSeconds(d time.Duration) int32 {
	clamped := min(max(d, MinDuration), MaxDuration)
	if clamped != d {
		log.Warn().
			Dur("requested", d).
			Dur("applied", clamped).
			Msg("Role session duration out of range")
	}
	return int32(clamped / time.Second)
}
