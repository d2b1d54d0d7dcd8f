package analysis

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalops/assistant/internal/callrail"
)

type stubS3 struct {
	puts []*s3.PutObjectInput
	err  error
}

func (s *stubS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.puts = append(s.puts, params)
	return &s3.PutObjectOutput{}, s.err
}

func TestArchiveRecordingKeyLayout(t *testing.T) {
	api := &stubS3{}
	archive := NewRecordingArchive(api, "call-recordings", nil)
	archive.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

	call := callrail.Call{ID: "CAL1", ClientID: 7, RecordingURL: "/r/CAL1.mp3"}
	require.NoError(t, archive.ArchiveRecording(context.Background(), call, []byte("audio")))

	require.Len(t, api.puts, 1)
	put := api.puts[0]
	assert.Equal(t, "call-recordings", *put.Bucket)
	assert.Equal(t, "recordings/v1/by-date/2026/08/28/7/CAL1.mp3", *put.Key)
	assert.Equal(t, "audio/mpeg", *put.ContentType)

	body, err := io.ReadAll(put.Body)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(body))
}

func TestArchiveDisabledWithoutBucket(t *testing.T) {
	api := &stubS3{}
	archive := NewRecordingArchive(api, "", nil)

	assert.False(t, archive.Enabled())
	require.NoError(t, archive.ArchiveRecording(context.Background(), callrail.Call{ID: "CAL1"}, []byte("audio")))
	assert.Empty(t, api.puts)
}

func TestArchiveSkipsEmptyAudio(t *testing.T) {
	api := &stubS3{}
	archive := NewRecordingArchive(api, "bucket", nil)

	require.NoError(t, archive.ArchiveRecording(context.Background(), callrail.Call{ID: "CAL1"}, nil))
	assert.Empty(t, api.puts)
}

func TestArchivePutFailure(t *testing.T) {
	archive := NewRecordingArchive(&stubS3{err: errors.New("access denied")}, "bucket", nil)

	err := archive.ArchiveRecording(context.Background(), callrail.Call{ID: "CAL1", RecordingURL: "/r/CAL1.wav"}, []byte("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestAudioExtension(t *testing.T) {
	assert.Equal(t, ".mp3", audioExtension("https://x/y/CAL1.MP3?sig=1"))
	assert.Equal(t, ".wav", audioExtension("/r/CAL1.wav"))
	assert.Equal(t, ".wav", audioExtension(""))
}
