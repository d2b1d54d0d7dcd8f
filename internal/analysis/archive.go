package analysis

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dentalops/assistant/internal/callrail"
	"github.com/dentalops/assistant/pkg/logging"
)

// S3API is the subset of the S3 client used by the recording archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// RecordingArchive stores fetched call recordings in S3 before transcription.
// Archival is best effort; a failed put never blocks the pipeline.
type RecordingArchive struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

// NewRecordingArchive creates the archive. An empty bucket disables it.
func NewRecordingArchive(s3Client S3API, bucket string, logger *logging.Logger) *RecordingArchive {
	if logger == nil {
		logger = logging.Default()
	}
	return &RecordingArchive{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled reports whether archival is configured.
func (a *RecordingArchive) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// ArchiveRecording writes one recording blob under a date-partitioned key.
func (a *RecordingArchive) ArchiveRecording(ctx context.Context, call callrail.Call, audio []byte) error {
	if !a.Enabled() {
		return nil
	}
	if len(audio) == 0 {
		return nil
	}

	now := a.now().UTC()
	key := fmt.Sprintf("recordings/v1/by-date/%d/%02d/%02d/%d/%s%s",
		now.Year(), now.Month(), now.Day(), call.ClientID, call.ID, audioExtension(call.RecordingURL))

	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(audio),
		ContentType: aws.String(audioContentType(call.RecordingURL)),
	})
	if err != nil {
		return fmt.Errorf("analysis: archive recording %s: %w", key, err)
	}

	a.logger.Info("archived call recording",
		"call_id", call.ID,
		"client_id", call.ClientID,
		"s3_key", key,
		"bytes", len(audio),
	)
	return nil
}

func audioExtension(recordingURL string) string {
	if strings.Contains(strings.ToLower(recordingURL), ".mp3") {
		return ".mp3"
	}
	return ".wav"
}

func audioContentType(recordingURL string) string {
	if audioExtension(recordingURL) == ".mp3" {
		return "audio/mpeg"
	}
	return "audio/wav"
}
