package assume

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"
)

// fakeSTS records AssumeRole calls and returns a canned response.
type fakeSTS struct {
	out   *sts.AssumeRoleOutput
	err   error
	calls []*sts.AssumeRoleInput
}

func (f *fakeSTS) AssumeRole(ctx context.Context, in *sts.AssumeRoleInput, _ ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.calls = append(f.calls, in)
	return f.out, f.err
}

const testRole = "arn:aws:iam::123456789012:role/Transcoder"

func TestExchange(t *testing.T) {
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeSTS{out: &sts.AssumeRoleOutput{
		Credentials: &types.Credentials{
			AccessKeyId:     aws.String("ASIATEST"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("token"),
			Expiration:      aws.Time(expires),
		},
	}}

	creds, err := NewExchanger(fake).Exchange(context.Background(), Params{
		RoleARN:     testRole,
		SessionName: "session-1",
		Duration:    15 * time.Minute,
		ExternalID:  "ext",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.AccessKeyID != "ASIATEST" || creds.SecretAccessKey != "secret" || creds.SessionToken != "token" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
	if !creds.Expires.Equal(expires) {
		t.Errorf("expected expiry %v, got %v", expires, creds.Expires)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("expected exactly 1 AssumeRole call, got %d", len(fake.calls))
	}
	in := fake.calls[0]
	if aws.ToString(in.RoleArn) != testRole {
		t.Errorf("unexpected role arn %q", aws.ToString(in.RoleArn))
	}
	if aws.ToString(in.RoleSessionName) != "session-1" {
		t.Errorf("unexpected session name %q", aws.ToString(in.RoleSessionName))
	}
	if aws.ToInt32(in.DurationSeconds) != 900 {
		t.Errorf("expected 900 duration seconds, got %d", aws.ToInt32(in.DurationSeconds))
	}
	if aws.ToString(in.ExternalId) != "ext" {
		t.Errorf("unexpected external id %q", aws.ToString(in.ExternalId))
	}
}

func TestExchangeClampsDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     int32
	}{
		{"in range", time.Hour, 3600},
		{"below minimum", time.Minute, 900},
		{"above maximum", 24 * time.Hour, 43200},
		{"overflows int32 seconds", 1 << 62, 43200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSTS{out: &sts.AssumeRoleOutput{Credentials: &types.Credentials{
				AccessKeyId:     aws.String("AK"),
				SecretAccessKey: aws.String("SK"),
			}}}
			if _, err := NewExchanger(fake).Exchange(context.Background(), Params{RoleARN: testRole, Duration: tt.duration}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := aws.ToInt32(fake.calls[0].DurationSeconds); got != tt.want {
				t.Errorf("expected %d duration seconds, got %d", tt.want, got)
			}
		})
	}
}

func TestExchangeGeneratesSessionName(t *testing.T) {
	fake := &fakeSTS{out: &sts.AssumeRoleOutput{
		Credentials: &types.Credentials{
			AccessKeyId:     aws.String("AK"),
			SecretAccessKey: aws.String("SK"),
		},
	}}

	if _, err := NewExchanger(fake).Exchange(context.Background(), Params{RoleARN: testRole}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name := aws.ToString(fake.calls[0].RoleSessionName)
	if !strings.HasPrefix(name, SessionPrefix) {
		t.Errorf("expected generated session name with prefix %q, got %q", SessionPrefix, name)
	}
	if fake.calls[0].DurationSeconds != nil {
		t.Error("expected no duration when Params.Duration is zero")
	}
}

func TestExchangeEmptyRole(t *testing.T) {
	fake := &fakeSTS{}
	_, err := NewExchanger(fake).Exchange(context.Background(), Params{})
	if !errors.Is(err, ErrEmptyRole) {
		t.Fatalf("expected ErrEmptyRole, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("expected no STS call, got %d", len(fake.calls))
	}
}

func TestExchangeMissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		out  *sts.AssumeRoleOutput
	}{
		{"nil output", nil},
		{"nil credentials", &sts.AssumeRoleOutput{}},
		{"missing secret", &sts.AssumeRoleOutput{Credentials: &types.Credentials{
			AccessKeyId:  aws.String("AK"),
			SessionToken: aws.String("token"),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSTS{out: tt.out}
			creds, err := NewExchanger(fake).Exchange(context.Background(), Params{RoleARN: testRole})
			if !errors.Is(err, ErrCredentialExchange) {
				t.Fatalf("expected ErrCredentialExchange, got %v", err)
			}
			var exErr *ExchangeError
			if !errors.As(err, &exErr) || exErr.RoleARN != testRole {
				t.Errorf("expected ExchangeError for %s, got %v", testRole, err)
			}
			if creds != (Credentials{}) {
				t.Errorf("expected zero credentials, got %+v", creds)
			}
			if len(fake.calls) != 1 {
				t.Errorf("expected exactly one attempt, got %d", len(fake.calls))
			}
		})
	}
}

func TestExchangeTransportErrorPropagates(t *testing.T) {
	transport := errors.New("dial tcp: connection refused")
	fake := &fakeSTS{err: transport}

	_, err := NewExchanger(fake).Exchange(context.Background(), Params{RoleARN: testRole})
	if !errors.Is(err, transport) {
		t.Fatalf("expected transport error to propagate, got %v", err)
	}
	if errors.Is(err, ErrCredentialExchange) {
		t.Error("transport failure must not be reported as a credential exchange error")
	}
	if len(fake.calls) != 1 {
		t.Errorf("expected no retry, got %d calls", len(fake.calls))
	}
}

func TestProviderRetrieve(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	fake := &fakeSTS{out: &sts.AssumeRoleOutput{
		Credentials: &types.Credentials{
			AccessKeyId:     aws.String("AK"),
			SecretAccessKey: aws.String("SK"),
			SessionToken:    aws.String("ST"),
			Expiration:      aws.Time(expires),
		},
	}}

	creds, err := NewProvider(NewExchanger(fake), Params{RoleARN: testRole}).Retrieve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Source != ProviderSource || !creds.CanExpire {
		t.Errorf("unexpected provider metadata: %+v", creds)
	}
	if creds.AccessKeyID != "AK" || creds.SessionToken != "ST" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

func TestProviderRetrieveError(t *testing.T) {
	fake := &fakeSTS{out: &sts.AssumeRoleOutput{}}
	_, err := NewProvider(NewExchanger(fake), Params{RoleARN: testRole}).Retrieve(context.Background())
	if !errors.Is(err, ErrCredentialExchange) {
		t.Fatalf("expected ErrCredentialExchange, got %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromProfile(t *testing.T) {
	path := writeConfig(t, `[default]
role_arn = arn:aws:iam::123456789012:role/FromProfile
source_profile = base
role_session_name = audio
external_id = ext-1
duration_seconds = 1800

[profile base]
region = eu-west-1
aws_access_key_id = AKIDBASE
aws_secret_access_key = base-secret
`)

	role, err := FromProfile(context.Background(), "default", "", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role.SourceProfile != "base" {
		t.Errorf("expected source profile base, got %q", role.SourceProfile)
	}
	if role.Params.RoleARN != "arn:aws:iam::123456789012:role/FromProfile" {
		t.Errorf("unexpected role %q", role.Params.RoleARN)
	}
	if role.Params.SessionName != "audio" || role.Params.ExternalID != "ext-1" {
		t.Errorf("unexpected params: %+v", role.Params)
	}
	if role.Params.Duration != 30*time.Minute {
		t.Errorf("expected 30m duration, got %v", role.Params.Duration)
	}
}

func TestFromProfileOverride(t *testing.T) {
	path := writeConfig(t, `[default]
region = eu-west-1
`)

	role, err := FromProfile(context.Background(), "default", testRole, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role.Params.RoleARN != testRole {
		t.Errorf("expected override role, got %q", role.Params.RoleARN)
	}
	if role.Profile != "default" || role.SourceProfile != "" {
		t.Errorf("expected the profile's own credentials, got %+v", role)
	}
}

func TestFromProfileSourceWithoutStoredCredentials(t *testing.T) {
	path := writeConfig(t, `[default]
role_arn = arn:aws:iam::123456789012:role/FromProfile
source_profile = base
role_session_name = audio

[profile base]
region = eu-west-1
`)

	role, err := FromProfile(context.Background(), "default", "", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role.SourceProfile != "base" {
		t.Errorf("expected source profile base, got %q", role.SourceProfile)
	}
	if role.Params.RoleARN != "arn:aws:iam::123456789012:role/FromProfile" {
		t.Errorf("unexpected role %q", role.Params.RoleARN)
	}
}

func TestFromProfileMissingSourceProfile(t *testing.T) {
	path := writeConfig(t, `[default]
role_arn = arn:aws:iam::123456789012:role/FromProfile
source_profile = gone
`)

	if _, err := FromProfile(context.Background(), "default", "", path); err == nil {
		t.Fatal("expected an error for a source profile that does not exist")
	}
}

func TestFromProfileCredentialSource(t *testing.T) {
	path := writeConfig(t, `[default]
role_arn = arn:aws:iam::123456789012:role/FromProfile
credential_source = Environment
`)

	role, err := FromProfile(context.Background(), "default", "", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role.CredentialSource != "Environment" || role.SourceProfile != "" {
		t.Errorf("expected credential_source Environment without a source profile, got %+v", role)
	}
	if role.Params.RoleARN != "arn:aws:iam::123456789012:role/FromProfile" {
		t.Errorf("unexpected role %q", role.Params.RoleARN)
	}
}

func TestFromProfileWebIdentity(t *testing.T) {
	path := writeConfig(t, `[default]
role_arn = arn:aws:iam::123456789012:role/WebIdentity
web_identity_token_file = /var/run/token
`)

	role, err := FromProfile(context.Background(), "default", "", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role.IdentityRole != "arn:aws:iam::123456789012:role/WebIdentity" {
		t.Errorf("unexpected identity role %q", role.IdentityRole)
	}
	if role.Params.RoleARN != "" {
		t.Errorf("web identity role must not be exchanged again, got %q", role.Params.RoleARN)
	}

	role, err = FromProfile(context.Background(), "default", testRole, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role.Params.RoleARN != testRole {
		t.Errorf("expected override on top of the web identity, got %q", role.Params.RoleARN)
	}
}

func TestFromProfileMissing(t *testing.T) {
	path := writeConfig(t, `[default]
region = eu-west-1
`)

	role, err := FromProfile(context.Background(), "nope", "", path)
	if err != nil {
		t.Fatalf("missing profile should not fail, got %v", err)
	}
	if role.Params.RoleARN != "" {
		t.Errorf("expected no role, got %q", role.Params.RoleARN)
	}
}
