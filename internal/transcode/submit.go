package transcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/rs/zerolog/log"
)

// ErrNoJob is returned when CreateJob succeeds without returning a job ID.
var ErrNoJob = errors.New("mediaconvert returned no job")

// Handle identifies a submitted job. It is the only key used for status queries.
type Handle struct {
	ID string
}

// CreateJobAPI is the subset of the MediaConvert client used by Submitter.
type CreateJobAPI interface {
	CreateJob(ctx context.Context, params *mediaconvert.CreateJobInput, optFns ...func(*mediaconvert.Options)) (*mediaconvert.CreateJobOutput, error)
}

// Submitter sends CreateJob requests.
type Submitter struct {
	client CreateJobAPI
}

// NewSubmitter creates a Submitter.
func NewSubmitter(client CreateJobAPI) *Submitter {
	return &Submitter{client: client}
}

// Submit sends input and returns the handle of the created job.
func (s *Submitter) Submit(ctx context.Context, input *mediaconvert.CreateJobInput) (Handle, error) {
	start := time.Now()
	out, err := s.client.CreateJob(ctx, input)
	if err != nil {
		return Handle{}, fmt.Errorf("create job: %w", err)
	}
	if out == nil || out.Job == nil || aws.ToString(out.Job.Id) == "" {
		return Handle{}, ErrNoJob
	}

	h := Handle{ID: aws.ToString(out.Job.Id)}
	log.Info().
		Str("jobId", h.ID).
		Str("status", string(out.Job.Status)).
		Str("queue", aws.ToString(out.Job.Queue)).
		Dur("elapsed", time.Since(start)).
		Msg("Job submitted")
	return h, nil
}
