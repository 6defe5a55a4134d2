package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/callrelay/adapters"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
)

type fakeArchive struct {
	got repositories.CallArtifacts
	err error
}

func (f *fakeArchive) Store(ctx context.Context, artifacts repositories.CallArtifacts) (string, error) {
	f.got = artifacts
	if f.err != nil {
		return "", f.err
	}
	return "/recordings/" + artifacts.CallSID + ".wav", nil
}

func TestArchiveWritesArtifactsAndRecord(t *testing.T) {
	archive := &fakeArchive{}
	records := adapters.NewMemoryCallRecordRepository()
	svc := NewArchiveService(archive, records, "en", zaptest.NewLogger(t))

	session := newTestSession(t)
	session.SetCallerLanguage("ta", "en")
	session.AppendTranscript(finalTurn(entities.TrackCaller, "உதவி", "ta"))
	session.AppendTranscript(finalTurn(entities.TrackDispatcher, "Where?", "en"))
	session.Record([]int16{1, 2, 3})
	session.CountCallerFrame()

	record, err := svc.Archive(context.Background(), session, entities.EndReasonStop)
	require.NoError(t, err)

	assert.Equal(t, "+15550100", archive.got.CallerNumber)
	assert.Len(t, archive.got.Transcripts[entities.TrackCaller], 1)
	assert.Len(t, archive.got.Transcripts[entities.TrackDispatcher], 1)
	assert.Equal(t, []int16{1, 2, 3}, archive.got.Recording)
	assert.Equal(t, 16000, archive.got.SampleRate)

	stored, err := records.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)
	assert.Equal(t, entities.CallStatusCompleted, stored.Status)
	assert.Equal(t, entities.EndReasonStop, stored.EndReason)
	assert.Equal(t, "MZ1", stored.StreamSID)
	assert.Equal(t, entities.LanguageState{CallerLanguage: "ta", DispatcherLanguage: "en"}, stored.Languages)
	assert.Equal(t, int64(1), stored.Stats.CallerFrames)
	assert.Equal(t, "/recordings/CA1.wav", stored.Recording)
	assert.Len(t, stored.Transcripts, 2)
	assert.NotNil(t, stored.StartedAt)
}

func TestArchiveFailureStillSavesRecord(t *testing.T) {
	records := adapters.NewMemoryCallRecordRepository()
	svc := NewArchiveService(&fakeArchive{err: errors.New("disk full")}, records, "en", zaptest.NewLogger(t))

	_, err := svc.Archive(context.Background(), newTestSession(t), entities.EndReasonDisconnect)
	assert.Error(t, err)

	stored, err := records.GetByCallSID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Empty(t, stored.Recording)
}

func TestRecentCalls(t *testing.T) {
	records := adapters.NewMemoryCallRecordRepository()
	svc := NewArchiveService(nil, records, "en", zaptest.NewLogger(t))
	ctx := context.Background()

	for i, sid := range []string{"CA1", "CA2"} {
		r := entities.NewCallRecord(sid, entities.CallerInfo{Number: "+1"})
		r.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, records.Save(ctx, r))
	}

	calls, err := svc.RecentCalls(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "CA2", calls[0].CallSID)

	calls, err = svc.RecentCalls(ctx, "+9", 10)
	require.NoError(t, err)
	assert.Empty(t, calls)

	empty := NewArchiveService(nil, nil, "en", zaptest.NewLogger(t))
	calls, err = empty.RecentCalls(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, calls)
	_, err = empty.Call(ctx, "CA1")
	assert.Error(t, err)
}
