package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/mediaconvert-cli/internal/awsboot"
	"github.com/fpang/mediaconvert-cli/internal/config"
	"github.com/fpang/mediaconvert-cli/internal/logging"
	"github.com/fpang/mediaconvert-cli/internal/metrics"
	"github.com/fpang/mediaconvert-cli/internal/s3util"
	"github.com/fpang/mediaconvert-cli/internal/transcode"
)

// Transcode flags
var (
	inputKeyFlag     string
	outputPrefixFlag string
	uploadFlag       string
	bitrateFlag      int32
	pollFlags        pollSettings
)

// pollSettings are shared by transcode and status.
type pollSettings struct {
	interval    time.Duration
	maxAttempts int
	emitMetrics bool
}

var transcodeCmd = &cobra.Command{
	Use:   "transcode",
	Short: "Submit the MP3 transcode job and wait for it to finish",
	Long: `Assumes the configured role, submits a MediaConvert job that transcodes
s3://$BUCKET_NAME/<input-key> to MP3 under s3://$BUCKET_NAME/<output-prefix>,
then polls the job every --interval until it is COMPLETE or ERROR.

There is no limit on how long the job may take unless --timeout or
--max-attempts is given.`,
	Args: cobra.NoArgs,
	RunE: runTranscode,
}

func init() {
	transcodeCmd.Flags().StringVar(&inputKeyFlag, "input-key", transcode.DefaultInputKey, "Object key of the source audio in the bucket")
	transcodeCmd.Flags().StringVar(&outputPrefixFlag, "output-prefix", transcode.DefaultOutputPrefix, "Key prefix MediaConvert writes outputs under")
	transcodeCmd.Flags().StringVar(&uploadFlag, "upload", "", "Local file to upload as the input object before submitting")
	transcodeCmd.Flags().Int32Var(&bitrateFlag, "bitrate", transcode.DefaultBitrate, "MP3 bitrate in bits per second")
	addPollFlags(transcodeCmd, &pollFlags)
	rootCmd.AddCommand(transcodeCmd)
}

func addPollFlags(cmd *cobra.Command, p *pollSettings) {
	cmd.Flags().DurationVar(&p.interval, "interval", transcode.DefaultPollInterval, "Fixed delay between status queries")
	cmd.Flags().IntVar(&p.maxAttempts, "max-attempts", 0, "Give up after this many status queries (0 = unlimited)")
	cmd.Flags().BoolVar(&p.emitMetrics, "metrics", false, "Print a CloudWatch EMF metrics line when polling ends")
}

// runTranscode logs the outcome of the flow and then the sentinel line,
// whether the flow succeeded or not.
func runTranscode(cmd *cobra.Command, args []string) error {
	err := transcodeFlow(cmd)
	if err != nil {
		reportError(err)
		err = reportedError{err}
	}
	log.Info().Msg("~~fin~~")
	return err
}

// transcodeFlow runs the credential, submit and poll steps in order.
func transcodeFlow(cmd *cobra.Command) error {
	settings, err := loadSettings(config.Load)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	clients, err := awsboot.Init(ctx, settings)
	if err != nil {
		return err
	}

	spec := transcode.DefaultMP3Spec(settings.BucketName)
	spec.InputKey = inputKeyFlag
	spec.OutputPrefix = outputPrefixFlag
	spec.Bitrate = bitrateFlag

	logging.NewRunSummary("transcode").
		Version(versionString()).
		AWS("region", settings.Region).
		AWS("profile", settings.Profile).
		AWS("source", clients.Source).
		AWS("endpoint", settings.MediaConvertEndpoint).
		Bucket("media", settings.BucketName).
		Role("job", settings.JobRole).
		Role("assumed", clients.AssumedRole).
		Feature("upload", uploadFlag != "").
		Feature("metrics", pollFlags.emitMetrics).
		Config("input", spec.InputURI()).
		Config("destination", spec.DestinationURI()).
		Config("pollInterval", pollFlags.interval.String()).
		Config("maxAttempts", strconv.Itoa(pollFlags.maxAttempts)).
		Log()

	if uploadFlag != "" {
		if _, err := s3util.UploadFile(ctx, s3util.NewUploader(clients.S3), spec.Bucket, spec.InputKey, uploadFlag); err != nil {
			return err
		}
	}

	handle, err := transcode.NewSubmitter(clients.MediaConvert).Submit(ctx, transcode.BuildJob(settings.JobRole, spec))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), handle.ID)

	return waitForJob(ctx, cmd, clients.MediaConvert, handle, pollFlags)
}

// waitForJob polls handle, logs the outcome and optionally emits metrics.
func waitForJob(ctx context.Context, cmd *cobra.Command, client transcode.GetJobAPI, handle transcode.Handle, p pollSettings) error {
	poller := transcode.NewPoller(client, transcode.PollOptions{
		Interval:    p.interval,
		MaxAttempts: p.maxAttempts,
	})

	res, err := poller.Wait(ctx, handle)

	if p.emitMetrics {
		outcome := transcode.Classify(res.Snapshot.Status).String()
		if err != nil && !errors.Is(err, transcode.ErrJobFailed) {
			outcome = "ABORTED"
		}
		rec := metrics.NewWithWriter(metrics.Namespace, cmd.OutOrStdout()).
			Dimension("Outcome", outcome).
			Count("PollAttempts", res.Attempts).
			Duration("WaitDuration", res.Elapsed).
			Property("jobId", handle.ID)
		if ferr := rec.Flush(); ferr != nil {
			log.Warn().Err(ferr).Msg("Failed to emit metrics")
		}
	}

	if err != nil {
		return err
	}
	log.Info().
		Str("jobId", handle.ID).
		Bool("succeeded", res.Succeeded()).
		Int("attempts", res.Attempts).
		Dur("elapsed", res.Elapsed).
		Msg("Transcode finished")
	return nil
}
