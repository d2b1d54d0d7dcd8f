// Package analysis runs the call-analysis pipeline: fetch tracked calls,
// transcribe their recordings, score each caller with the language model, and
// submit normalized lead records back to the application server. Progress is
// reported through a session event stream.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/dentalops/assistant/internal/appserver"
	"github.com/dentalops/assistant/internal/callrail"
	"github.com/dentalops/assistant/internal/parse"
	"github.com/dentalops/assistant/internal/transcribe"
	"github.com/dentalops/assistant/pkg/logging"
)

var pipelineTracer = otel.Tracer("dentalops.internal.analysis")

// transcriptSeparator joins the transcripts of one phone-number group.
const transcriptSeparator = "\n\n---\n\n"

// maxConcurrentTranscriptions bounds the per-group transcription fan-out.
const maxConcurrentTranscriptions = 4

type callSource interface {
	Calls(ctx context.Context, callIDs []string) ([]callrail.Call, error)
	CallsForTenant(ctx context.Context, tenantID int64) ([]callrail.Call, error)
	Recording(ctx context.Context, call callrail.Call) ([]byte, error)
}

type transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (transcribe.Result, error)
}

type groupSummarizer interface {
	Summarize(ctx context.Context, tenantID int64, callerName, transcript string) (Summary, error)
}

type submitter interface {
	SubmitLeadRecords(ctx context.Context, records []appserver.LeadSubmission) (*appserver.BatchResult, error)
}

type recordingArchiver interface {
	ArchiveRecording(ctx context.Context, call callrail.Call, audio []byte) error
}

// Recorder receives pipeline counters. A nil Recorder disables recording.
type Recorder interface {
	CallTranscribed(outcome string)
	SubmissionEmitted(kind string)
}

type noopRecorder struct{}

func (noopRecorder) CallTranscribed(string)   {}
func (noopRecorder) SubmissionEmitted(string) {}

// Pipeline is the call-analysis worker.
type Pipeline struct {
	calls      callSource
	transcribe transcriber
	summarize  groupSummarizer
	submit     submitter
	archive    recordingArchiver
	sessions   *Sessions
	metrics    Recorder
	logger     *logging.Logger
}

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	Calls       callSource
	Transcriber transcriber
	Summarizer  groupSummarizer
	Submitter   submitter
	// Archive is optional; recordings are archived best effort.
	Archive  recordingArchiver
	Sessions *Sessions
	Metrics  Recorder
	Logger   *logging.Logger
}

// NewPipeline validates the configuration and returns the worker.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Calls == nil {
		return nil, errors.New("analysis: call source is required")
	}
	if cfg.Transcriber == nil {
		return nil, errors.New("analysis: transcriber is required")
	}
	if cfg.Summarizer == nil {
		return nil, errors.New("analysis: summarizer is required")
	}
	if cfg.Submitter == nil {
		return nil, errors.New("analysis: submitter is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("analysis: session table is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopRecorder{}
	}
	return &Pipeline{
		calls:      cfg.Calls,
		transcribe: cfg.Transcriber,
		summarize:  cfg.Summarizer,
		submit:     cfg.Submitter,
		archive:    cfg.Archive,
		sessions:   cfg.Sessions,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}, nil
}

// Request selects the calls one analysis run covers. CallIDs wins when set;
// otherwise all calls of the listed tenants are fetched.
type Request struct {
	SessionID string
	CallIDs   []string
	TenantIDs []int64
	// UserID is stamped onto each emitted submission.
	UserID string
}

// Run executes one analysis batch. The outcome is reported on the session
// stream; the returned error mirrors the terminal error event.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	start := time.Now()
	defer func() {
		if obs, ok := p.metrics.(interface{ ObserveRunDuration(seconds float64) }); ok {
			obs.ObserveRunDuration(time.Since(start).Seconds())
		}
	}()

	ctx, span := pipelineTracer.Start(ctx, "analysis.run")
	defer span.End()
	span.SetAttributes(attribute.String("dentalops.session_id", req.SessionID))

	calls, err := p.fetchCalls(ctx, req)
	if err != nil {
		p.sessions.Fail(req.SessionID, 0, 0, err.Error())
		return err
	}

	groups := groupCalls(filterCalls(calls, req.TenantIDs))
	total := len(groups)
	span.SetAttributes(attribute.Int("dentalops.call_groups", total))

	// groups run sequentially to bound memory and keep progress monotone
	submissions := make([]appserver.LeadSubmission, 0, total)
	for i, group := range groups {
		submission := p.processGroup(ctx, group, req.UserID)
		submissions = append(submissions, submission)
		p.metrics.SubmissionEmitted(submission.Type)
		p.sessions.Progress(req.SessionID, i+1, total,
			fmt.Sprintf("%s: %s (%d call(s))", group.phone, submission.Type, len(group.calls)))
	}

	if len(submissions) > 0 {
		result, err := p.submit.SubmitLeadRecords(ctx, submissions)
		if err != nil {
			p.sessions.Fail(req.SessionID, total, total, err.Error())
			return fmt.Errorf("analysis: submit batch: %w", err)
		}
		if result.Failed > 0 {
			p.logger.Warn("lead submission batch had failures",
				"saved", result.Saved, "failed", result.Failed, "errors", strings.Join(result.Errors, "; "))
		}
	}

	p.sessions.Complete(req.SessionID, total, total)
	return nil
}

func (p *Pipeline) fetchCalls(ctx context.Context, req Request) ([]callrail.Call, error) {
	if len(req.CallIDs) > 0 {
		calls, err := p.calls.Calls(ctx, req.CallIDs)
		if err != nil {
			return nil, fmt.Errorf("analysis: fetch calls: %w", err)
		}
		return calls, nil
	}

	var all []callrail.Call
	for _, tenantID := range req.TenantIDs {
		calls, err := p.calls.CallsForTenant(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("analysis: fetch calls for tenant %d: %w", tenantID, err)
		}
		all = append(all, calls...)
	}
	return all, nil
}

// filterCalls keeps calls in the tenant set and drops rows without a phone
// number.
func filterCalls(calls []callrail.Call, tenantIDs []int64) []callrail.Call {
	allowed := make(map[int64]bool, len(tenantIDs))
	for _, id := range tenantIDs {
		allowed[id] = true
	}

	kept := make([]callrail.Call, 0, len(calls))
	for _, call := range calls {
		if strings.TrimSpace(call.PhoneNumber) == "" {
			continue
		}
		if len(allowed) > 0 && !allowed[call.ClientID] {
			continue
		}
		kept = append(kept, call)
	}
	return kept
}

type callGroup struct {
	phone string
	calls []callrail.Call
}

// groupCalls buckets calls by phone number. Groups keep first-seen order;
// calls within a group are sorted oldest first.
func groupCalls(calls []callrail.Call) []callGroup {
	index := make(map[string]int)
	var groups []callGroup
	for _, call := range calls {
		i, seen := index[call.PhoneNumber]
		if !seen {
			i = len(groups)
			index[call.PhoneNumber] = i
			groups = append(groups, callGroup{phone: call.PhoneNumber})
		}
		groups[i].calls = append(groups[i].calls, call)
	}
	for i := range groups {
		group := groups[i].calls
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].OccurredAt() < group[b].OccurredAt()
		})
	}
	return groups
}

// processGroup transcribes one phone-number group and produces its lead
// submission. A group with no usable transcript becomes a "miss".
func (p *Pipeline) processGroup(ctx context.Context, group callGroup, userID string) appserver.LeadSubmission {
	transcripts := p.transcribeGroup(ctx, group)

	tenantID := group.calls[0].ClientID
	submission := appserver.LeadSubmission{
		TenantID:      tenantID,
		ContactNumber: group.phone,
		CallRailID:    group.calls[0].ID,
		UserID:        userID,
	}

	var valid []string
	for _, t := range transcripts {
		if t.Valid() {
			valid = append(valid, t.Text)
		}
	}

	if len(valid) == 0 {
		submission.Type = "miss"
		submission.Transcription = ""
		submission.PotentialScore = 0
		p.fillCallerName(&submission, group, "")
		return submission
	}

	combined := strings.Join(valid, transcriptSeparator)
	submission.Type = "receive"
	submission.Transcription = combined
	p.fillCallerName(&submission, group, combined)

	callerName := strings.TrimSpace(submission.FirstName + " " + submission.LastName)
	summary, err := p.summarize.Summarize(ctx, tenantID, callerName, combined)
	if err != nil {
		p.logger.Warn("summarizer failed for call group", "phone", group.phone, "error", err)
		return submission
	}

	submission.Description = summary.Text
	submission.PotentialScore = summary.Scores.Potential
	submission.IsScored = true
	return submission
}

// transcribeGroup fetches and transcribes each recorded call concurrently,
// preserving chronological order in the result slice.
func (p *Pipeline) transcribeGroup(ctx context.Context, group callGroup) []transcribe.Result {
	results := make([]transcribe.Result, len(group.calls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTranscriptions)
	for i, call := range group.calls {
		if strings.TrimSpace(call.RecordingURL) == "" {
			p.metrics.CallTranscribed("no_recording")
			continue
		}
		g.Go(func() error {
			result, err := p.transcribeCall(gctx, call)
			if err != nil {
				// a failed call contributes nothing; the group may still
				// succeed on its other calls
				p.logger.Warn("transcription failed", "call_id", call.ID, "error", err)
				p.metrics.CallTranscribed("error")
				return nil
			}
			p.metrics.CallTranscribed("ok")
			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) transcribeCall(ctx context.Context, call callrail.Call) (transcribe.Result, error) {
	audio, err := p.calls.Recording(ctx, call)
	if err != nil {
		return transcribe.Result{}, err
	}

	if p.archive != nil {
		if err := p.archive.ArchiveRecording(ctx, call, audio); err != nil {
			p.logger.Warn("recording archive failed", "call_id", call.ID, "error", err)
		}
	}

	return p.transcribe.Transcribe(ctx, audio, call.ID+audioExtension(call.RecordingURL))
}

// fillCallerName prefers structured caller fields, then the transcript's
// self-introduction.
func (p *Pipeline) fillCallerName(submission *appserver.LeadSubmission, group callGroup, transcript string) {
	for _, call := range group.calls {
		if name := strings.TrimSpace(call.CallerName); name != "" {
			submission.FirstName, submission.LastName = parse.SplitName(parse.StripHonorific(name))
			return
		}
	}
	if transcript != "" {
		if name, ok := CallerNameFromTranscript(transcript); ok {
			submission.FirstName, submission.LastName = parse.SplitName(name)
			return
		}
	}
	submission.FirstName = "Unknown"
}
