package transcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is the fixed delay between two status queries.
const DefaultPollInterval = 200 * time.Millisecond

var (
	// ErrJobFailed matches every JobFailedError via errors.Is.
	ErrJobFailed = errors.New("job failed")

	// ErrMaxAttempts is returned when PollOptions.MaxAttempts queries all
	// came back non-terminal.
	ErrMaxAttempts = errors.New("job still pending after max attempts")
)

// State is the poller's view of a job.
type State int

const (
	// StatePending covers every non-terminal status.
	StatePending State = iota
	// StateComplete is terminal success.
	StateComplete
	// StateError is terminal failure.
	StateError
)

func (s State) String() string {
	switch s {
	case StateComplete:
		return "COMPLETE"
	case StateError:
		return "ERROR"
	default:
		return "PENDING"
	}
}

// Classify maps a MediaConvert job status to a poller state. Only COMPLETE
// and ERROR are terminal.
func Classify(status types.JobStatus) State {
	switch status {
	case types.JobStatusComplete:
		return StateComplete
	case types.JobStatusError:
		return StateError
	default:
		return StatePending
	}
}

// Snapshot is the job description returned by one status query.
type Snapshot struct {
	Status types.JobStatus
	Job    *types.Job
}

// ErrorCode returns MediaConvert's error code, or 0.
func (s Snapshot) ErrorCode() int32 {
	if s.Job == nil {
		return 0
	}
	return aws.ToInt32(s.Job.ErrorCode)
}

// ErrorMessage returns MediaConvert's error message, or "".
func (s Snapshot) ErrorMessage() string {
	if s.Job == nil {
		return ""
	}
	return aws.ToString(s.Job.ErrorMessage)
}

// JobFailedError carries the snapshot in which MediaConvert reported ERROR.
type JobFailedError struct {
	Handle   Handle
	Snapshot Snapshot
}

func (e *JobFailedError) Error() string {
	msg := e.Snapshot.ErrorMessage()
	if msg == "" {
		msg = "no error message"
	}
	return fmt.Sprintf("job %s failed: %s (code %d)", e.Handle.ID, msg, e.Snapshot.ErrorCode())
}

// Is reports ErrJobFailed as a match.
func (e *JobFailedError) Is(target error) bool {
	return target == ErrJobFailed
}

// Result is the outcome of Wait.
type Result struct {
	Handle   Handle
	Snapshot Snapshot
	Attempts int
	Elapsed  time.Duration
}

// Succeeded reports whether the last snapshot was COMPLETE.
func (r Result) Succeeded() bool {
	return Classify(r.Snapshot.Status) == StateComplete
}

// GetJobAPI is the subset of the MediaConvert client used by Poller.
type GetJobAPI interface {
	GetJob(ctx context.Context, params *mediaconvert.GetJobInput, optFns ...func(*mediaconvert.Options)) (*mediaconvert.GetJobOutput, error)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// PollOptions tunes a Poller. Zero values select the defaults.
type PollOptions struct {
	// Interval between the end of one query and the start of the next.
	Interval time.Duration
	// MaxAttempts bounds the number of queries; 0 means unbounded.
	MaxAttempts int
	// Sleep replaces the real timer, mainly in tests.
	Sleep SleepFunc
}

// Poller waits for a job to reach a terminal status.
type Poller struct {
	client      GetJobAPI
	interval    time.Duration
	maxAttempts int
	sleep       SleepFunc
}

// NewPoller creates a Poller.
func NewPoller(client GetJobAPI, opts PollOptions) *Poller {
	p := &Poller{
		client:      client,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		sleep:       opts.Sleep,
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	return p
}

// Wait queries h until MediaConvert reports COMPLETE or ERROR.
//
// Queries never overlap: the delay starts only after the previous response
// arrived. ctx is checked before every delay; without a deadline on ctx and
// with MaxAttempts at 0, Wait runs for as long as the job stays non-terminal.
// Errors from GetJob end the wait and are returned wrapped.
func (p *Poller) Wait(ctx context.Context, h Handle) (Result, error) {
	start := time.Now()
	res := Result{Handle: h}

	for {
		snap, err := p.query(ctx, h)
		res.Attempts++
		res.Elapsed = time.Since(start)
		if err != nil {
			return res, err
		}
		res.Snapshot = snap

		log.Info().
			Str("jobId", h.ID).
			Int("attempt", res.Attempts).
			Str("status", string(snap.Status)).
			Interface("job", snap.Job).
			Msg("Job status")

		switch Classify(snap.Status) {
		case StateComplete:
			log.Info().Str("jobId", h.ID).Int("attempts", res.Attempts).Dur("elapsed", res.Elapsed).Msg("Job complete")
			return res, nil
		case StateError:
			return res, &JobFailedError{Handle: h, Snapshot: snap}
		}

		if p.maxAttempts > 0 && res.Attempts >= p.maxAttempts {
			return res, fmt.Errorf("job %s: %w (%d)", h.ID, ErrMaxAttempts, p.maxAttempts)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return res, err
		}
	}
}

func (p *Poller) query(ctx context.Context, h Handle) (Snapshot, error) {
	out, err := p.client.GetJob(ctx, &mediaconvert.GetJobInput{Id: aws.String(h.ID)})
	if err != nil {
		return Snapshot{}, fmt.Errorf("get job %s: %w", h.ID, err)
	}
	if out == nil || out.Job == nil {
		return Snapshot{}, fmt.Errorf("get job %s: %w", h.ID, ErrNoJob)
	}
	return Snapshot{Status: out.Job.Status, Job: out.Job}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
