package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fpang/mediaconvert-cli/internal/awsboot"
	"github.com/fpang/mediaconvert-cli/internal/config"
	"github.com/fpang/mediaconvert-cli/internal/logging"
	"github.com/fpang/mediaconvert-cli/internal/transcode"
)

var statusPollFlags pollSettings

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Wait for an existing MediaConvert job to finish",
	Long: `Polls a job that was submitted earlier (by transcode or elsewhere) until it
is COMPLETE or ERROR. Only MEDIA_CONVERT_ENDPOINT is required.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	addPollFlags(statusCmd, &statusPollFlags)
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(config.LoadStatus)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	clients, err := awsboot.Init(ctx, settings)
	if err != nil {
		return err
	}

	handle := transcode.Handle{ID: args[0]}
	logging.NewRunSummary("status").
		Version(versionString()).
		AWS("region", settings.Region).
		AWS("endpoint", settings.MediaConvertEndpoint).
		Role("assumed", clients.AssumedRole).
		Feature("metrics", statusPollFlags.emitMetrics).
		Config("jobId", handle.ID).
		Config("pollInterval", statusPollFlags.interval.String()).
		Config("maxAttempts", strconv.Itoa(statusPollFlags.maxAttempts)).
		Log()

	return waitForJob(ctx, cmd, clients.MediaConvert, handle, statusPollFlags)
}
