// Package config loads the process configuration from environment variables
// and an optional dotenv file. Environment variables take precedence over the
// file; the three job keys are required and loading fails fast without them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// DefaultProfile is the shared config profile used when AWS_PROFILE is unset.
const DefaultProfile = "default"

// Key names double as environment variable names (upper-cased by viper).
const (
	KeyEndpoint      = "media_convert_endpoint"
	KeyJobRole       = "job_role"
	KeyBucket        = "bucket_name"
	KeyRegion        = "aws_region"
	KeyProfile       = "aws_profile"
	KeyAssumeRoleARN = "assume_role_arn"
	KeySocketURL     = "socket_url"
	KeyLogLevel      = "mediaconvert_log_level"
)

// ErrMissing is returned (wrapped) when a required key has no value.
var ErrMissing = errors.New("missing required configuration")

// Settings is the resolved configuration.
type Settings struct {
	MediaConvertEndpoint string `mapstructure:"media_convert_endpoint"`
	JobRole              string `mapstructure:"job_role"`
	BucketName           string `mapstructure:"bucket_name"`
	Region               string `mapstructure:"aws_region"`
	Profile              string `mapstructure:"aws_profile"`
	AssumeRoleARN        string `mapstructure:"assume_role_arn"`
	SocketURL            string `mapstructure:"socket_url"`
	LogLevel             string `mapstructure:"mediaconvert_log_level"`
}

var requiredFields = []string{
	KeyEndpoint,
	KeyJobRole,
	KeyBucket,
}

// field: default value
var optionalFields = map[string]interface{}{
	KeyRegion:        "eu-west-1",
	KeyProfile:       DefaultProfile,
	KeyAssumeRoleARN: "",
	KeySocketURL:     "wss://ff6x7f50y6.execute-api.eu-west-1.amazonaws.com/dev",
	KeyLogLevel:      "info",
}

// Load reads envFile (ignored when it does not exist) and the environment,
// then validates the required job keys.
func Load(envFile string) (*Settings, error) {
	return load(envFile, requiredFields)
}

// LoadStatus requires only the MediaConvert endpoint; querying an existing
// job needs neither the job role nor the bucket.
func LoadStatus(envFile string) (*Settings, error) {
	return load(envFile, []string{KeyEndpoint})
}

// LoadSocket reads only what the socket command needs; the job keys are not
// required there.
func LoadSocket(envFile string) (*Settings, error) {
	return load(envFile, nil)
}

func load(envFile string, required []string) (*Settings, error) {
	v, err := newViper(envFile)
	if err != nil {
		return nil, err
	}

	for _, field := range required {
		if v.GetString(field) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissing, envName(field))
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	return &settings, nil
}

func newViper(envFile string) (*viper.Viper, error) {
	v := viper.New()

	for field, defaultValue := range optionalFields {
		v.SetDefault(field, defaultValue)
	}

	v.AutomaticEnv()
	for _, field := range requiredFields {
		v.BindEnv(field, envName(field))
	}
	for field := range optionalFields {
		v.BindEnv(field, envName(field))
	}

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("could not read %s: %w", envFile, err)
			}
		}
	}
	return v, nil
}

func envName(key string) string {
	return strings.ToUpper(key)
}
