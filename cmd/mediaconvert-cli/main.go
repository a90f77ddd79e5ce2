package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/mediaconvert-cli/internal/assume"
	"github.com/fpang/mediaconvert-cli/internal/config"
	"github.com/fpang/mediaconvert-cli/internal/logging"
	"github.com/fpang/mediaconvert-cli/internal/transcode"
)

// Global flags
var (
	envFileFlag string
	timeoutFlag time.Duration
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "mediaconvert-cli",
	Short: "Submit MediaConvert audio jobs and exercise the messaging socket",
	Long: `mediaconvert-cli submits an AWS Elemental MediaConvert job that transcodes an
audio file in S3 to MP3, then waits for the job to finish. Credentials come
from the shared AWS profile; when the profile (or ASSUME_ROLE_ARN) names a
role, it is assumed through STS first.

Required environment (or .env file):
  MEDIA_CONVERT_ENDPOINT  account-specific MediaConvert endpoint
  JOB_ROLE                IAM role MediaConvert runs the job as
  BUCKET_NAME             bucket holding music.mp3 and receiving out/

Examples:
  mediaconvert-cli transcode
  mediaconvert-cli transcode --upload ./music.mp3 --timeout 10m
  mediaconvert-cli status 1700000000000-abc123
  mediaconvert-cli socket --data "hello world"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", config.DefaultEnvFile, "Dotenv file to read configuration from (ignored if missing)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 0, "Abort the command after this long (0 = no limit)")
	rootCmd.Version = versionString()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			reportError(err)
		}
		os.Exit(1)
	}
}

// reportedError marks an error that was already logged by its command.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// loadSettings reads the configuration with load and applies its log level.
func loadSettings(load func(envFile string) (*config.Settings, error)) (*config.Settings, error) {
	settings, err := load(envFileFlag)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(settings.LogLevel)
	return settings, nil
}

// commandContext cancels on SIGINT/SIGTERM and, if set, after --timeout.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeoutFlag <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeoutFlag)
	return ctx, func() {
		cancel()
		stop()
	}
}

// reportError logs err with whatever detail its type carries.
func reportError(err error) {
	evt := log.Error().Err(err)

	var failed *transcode.JobFailedError
	var exchange *assume.ExchangeError
	var apiErr smithy.APIError
	switch {
	case errors.As(err, &failed):
		evt = evt.
			Str("jobId", failed.Handle.ID).
			Int32("errorCode", failed.Snapshot.ErrorCode()).
			Str("errorMessage", failed.Snapshot.ErrorMessage())
		evt.Msg("Job failed")
	case errors.As(err, &exchange):
		evt.Str("roleArn", exchange.RoleARN).Msg("Credential exchange failed")
	case errors.Is(err, config.ErrMissing):
		evt.Msg("Configuration incomplete")
	case errors.As(err, &apiErr):
		evt.Str("code", apiErr.ErrorCode()).Str("fault", apiErr.ErrorFault().String()).Msg("AWS request failed")
	case errors.Is(err, context.DeadlineExceeded):
		evt.Dur("timeout", timeoutFlag).Msg("Timed out")
	case errors.Is(err, context.Canceled):
		evt.Msg("Interrupted")
	default:
		evt.Msg("Command failed")
	}
}
