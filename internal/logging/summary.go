package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunSummary collects the identity, AWS resources and switches a command runs
// with, then emits them as one structured event. Secrets never go in here.
type RunSummary struct {
	command   string
	version   string
	startedAt time.Time

	aws      map[string]string
	buckets  map[string]string
	roles    map[string]string
	features map[string]bool
	config   map[string]string
}

// NewRunSummary creates a RunSummary for the given subcommand (e.g. "transcode").
func NewRunSummary(command string) *RunSummary {
	return &RunSummary{
		command:   command,
		startedAt: time.Now(),
		aws:       make(map[string]string),
		buckets:   make(map[string]string),
		roles:     make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// Version sets the build version baked into the binary.
func (s *RunSummary) Version(v string) *RunSummary {
	s.version = v
	return s
}

// AWS registers an AWS setting such as region, profile or endpoint.
func (s *RunSummary) AWS(key, value string) *RunSummary {
	s.aws[key] = value
	return s
}

// Bucket registers an S3 bucket used by the command.
func (s *RunSummary) Bucket(label, name string) *RunSummary {
	s.buckets[label] = name
	return s
}

// Role registers an IAM role ARN used by the command.
func (s *RunSummary) Role(label, arn string) *RunSummary {
	s.roles[label] = arn
	return s
}

// Feature registers a boolean switch (e.g. "upload").
func (s *RunSummary) Feature(name string, enabled bool) *RunSummary {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *RunSummary) Config(key, value string) *RunSummary {
	s.config[key] = value
	return s
}

// Log emits the summary through the global logger.
func (s *RunSummary) Log() {
	s.Emit(log.Logger)
}

// Emit writes the summary as a single INFO event on logger.
func (s *RunSummary) Emit(logger zerolog.Logger) {
	evt := logger.Info()

	identity := zerolog.Dict().
		Str("command", s.command).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", os.Getenv(LevelEnvVar))
	if s.version != "" {
		identity = identity.Str("version", s.version)
	}
	evt = evt.Dict("run", identity)

	if len(s.aws) > 0 {
		evt = evt.Dict("aws", dictFromMap(s.aws))
	}

	// Resources: only non-empty maps are attached.
	resources := zerolog.Dict()
	hasResources := false
	if len(s.buckets) > 0 {
		resources = resources.Dict("s3Buckets", dictFromMap(s.buckets))
		hasResources = true
	}
	if len(s.roles) > 0 {
		resources = resources.Dict("iamRoles", dictFromMap(s.roles))
		hasResources = true
	}
	if hasResources {
		evt = evt.Dict("resources", resources)
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	evt.Dur("setupDuration", time.Since(s.startedAt)).Msg("Command configured")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
