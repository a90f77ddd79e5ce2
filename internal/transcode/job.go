// Package transcode submits AWS Elemental MediaConvert jobs and waits for
// them to finish.
//
// A submitted job is identified by a Handle. Poller.Wait queries the job's
// status at a fixed interval, one request at a time, until MediaConvert
// reports COMPLETE or ERROR. Every other status, including ones this package
// does not know about, keeps the poller waiting.
package transcode

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/google/uuid"

	"github.com/fpang/mediaconvert-cli/internal/s3util"
)

// Defaults for the MP3 output.
const (
	DefaultInputKey     = "music.mp3"
	DefaultOutputPrefix = "out/"
	DefaultBitrate      = 160000
	DefaultSampleRate   = 48000
	DefaultChannels     = 2
	DefaultVBRQuality   = 4

	outputGroupName = "Mp3 Group"
	audioSelector   = "Audio Selector 1"
)

// MP3Spec describes an audio-only transcode from one S3 object to MP3 files
// under a prefix of the same bucket.
type MP3Spec struct {
	Bucket       string
	InputKey     string
	OutputPrefix string

	Bitrate    int32
	SampleRate int32
	Channels   int32
	VBRQuality int32
}

// DefaultMP3Spec returns the spec for bucket with every other field defaulted.
func DefaultMP3Spec(bucket string) MP3Spec {
	return MP3Spec{
		Bucket:       bucket,
		InputKey:     DefaultInputKey,
		OutputPrefix: DefaultOutputPrefix,
		Bitrate:      DefaultBitrate,
		SampleRate:   DefaultSampleRate,
		Channels:     DefaultChannels,
		VBRQuality:   DefaultVBRQuality,
	}
}

// InputURI is the s3:// location of the source object.
func (s MP3Spec) InputURI() string {
	return s3util.ObjectURI(s.Bucket, s.InputKey)
}

// DestinationURI is the s3:// prefix MediaConvert writes outputs under. It
// always ends in a slash.
func (s MP3Spec) DestinationURI() string {
	prefix := s.OutputPrefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return s3util.ObjectURI(s.Bucket, prefix)
}

// BuildJob renders spec into a CreateJob request that runs as role.
// Each call carries a fresh client request token, so a retried submission of
// the same request is not executed twice by MediaConvert.
func BuildJob(role string, spec MP3Spec) *mediaconvert.CreateJobInput {
	submission := uuid.NewString()

	return &mediaconvert.CreateJobInput{
		Role:               aws.String(role),
		ClientRequestToken: aws.String(submission),
		UserMetadata: map[string]string{
			"submission": submission,
			"input":      spec.InputURI(),
		},
		Settings: &types.JobSettings{
			AdAvailOffset: aws.Int32(0),
			OutputGroups: []types.OutputGroup{
				{
					Name: aws.String(outputGroupName),
					OutputGroupSettings: &types.OutputGroupSettings{
						Type: types.OutputGroupTypeFileGroupSettings,
						FileGroupSettings: &types.FileGroupSettings{
							Destination: aws.String(spec.DestinationURI()),
						},
					},
					Outputs: []types.Output{
						{
							AudioDescriptions: []types.AudioDescription{
								{
									AudioTypeControl: types.AudioTypeControlFollowInput,
									CodecSettings: &types.AudioCodecSettings{
										Codec: types.AudioCodecMp3,
										Mp3Settings: &types.Mp3Settings{
											Bitrate:         aws.Int32(spec.Bitrate),
											SampleRate:      aws.Int32(spec.SampleRate),
											Channels:        aws.Int32(spec.Channels),
											RateControlMode: types.Mp3RateControlModeVbr,
											VbrQuality:      aws.Int32(spec.VBRQuality),
										},
									},
									LanguageCodeControl: types.AudioLanguageCodeControlFollowInput,
								},
							},
							ContainerSettings: &types.ContainerSettings{
								Container: types.ContainerTypeRaw,
							},
						},
					},
				},
			},
			Inputs: []types.Input{
				{
					AudioSelectors: map[string]types.AudioSelector{
						audioSelector: {
							Tracks:           []int32{1},
							Offset:           aws.Int32(0),
							DefaultSelection: types.AudioDefaultSelectionDefault,
							SelectorType:     types.AudioSelectorTypeTrack,
							ProgramSelection: aws.Int32(1),
						},
					},
					TimecodeSource: types.InputTimecodeSourceEmbedded,
					FileInput:      aws.String(spec.InputURI()),
				},
			},
		},
	}
}
