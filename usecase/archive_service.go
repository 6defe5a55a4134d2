package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/audio"
	"github.com/satriahrh/callrelay/internal/callsession"
)

// ArchiveService persists what a call leaves behind: transcript files,
// the caller recording and a call record.
type ArchiveService struct {
	archive  repositories.CallArchive
	records  repositories.CallRecordRepository
	baseline string
	logger   *zap.Logger
}

// NewArchiveService creates the teardown archiver. Either dependency may
// be nil to skip that half.
func NewArchiveService(archive repositories.CallArchive, records repositories.CallRecordRepository, baseline string, logger *zap.Logger) *ArchiveService {
	return &ArchiveService{
		archive:  archive,
		records:  records,
		baseline: baseline,
		logger:   logger.With(zap.String("component", "archive_service")),
	}
}

// Archive runs once per call during teardown. Failures are logged and
// joined; they never stop the rest of teardown.
func (s *ArchiveService) Archive(ctx context.Context, session *callsession.Session, reason entities.EndReason) (*entities.CallRecord, error) {
	transcripts := session.Transcripts()
	record := entities.NewCallRecord(session.CallSID(), session.Caller())
	record.StreamSID = session.StreamSID()
	record.CreatedAt = session.CreatedAt()
	if started := session.StartedAt(); !started.IsZero() {
		record.StartedAt = &started
	}
	record.Languages = session.Language().Resolve(s.baseline)
	record.Stats = session.Stats()
	for _, t := range transcripts {
		record.AddTranscript(t)
	}
	record.Complete(reason, time.Now())

	var errs []error
	if s.archive != nil {
		path, err := s.archive.Store(ctx, repositories.CallArtifacts{
			CallSID:      session.CallSID(),
			CallerNumber: session.CallerNumber(),
			Transcripts: map[entities.Track][]entities.TranscriptEvent{
				entities.TrackCaller:     record.TranscriptFor(entities.TrackCaller),
				entities.TrackDispatcher: record.TranscriptFor(entities.TrackDispatcher),
			},
			Recording:  session.Recording(),
			SampleRate: audio.WidebandRate,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("store artifacts: %w", err))
		}
		record.Recording = path
	}

	if s.records != nil {
		if err := s.records.Save(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("save call record: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error("Failed to archive call", zap.String("callSid", session.CallSID()), zap.Error(err))
	} else {
		s.logger.Info("Call archived",
			zap.String("callSid", session.CallSID()),
			zap.Int("transcripts", len(record.Transcripts)),
			zap.String("recording", record.Recording),
			zap.Duration("duration", record.Duration()))
	}
	return record, err
}

// RecentCalls lists finished calls, newest first.
func (s *ArchiveService) RecentCalls(ctx context.Context, callerNumber string, limit int) ([]*entities.CallRecord, error) {
	if s.records == nil {
		return []*entities.CallRecord{}, nil
	}
	if callerNumber != "" {
		return s.records.ListByCaller(ctx, callerNumber, limit)
	}
	return s.records.ListRecent(ctx, limit)
}

// Call returns one finished call.
func (s *ArchiveService) Call(ctx context.Context, callSID string) (*entities.CallRecord, error) {
	if s.records == nil {
		return nil, fmt.Errorf("call %s: %w", callSID, errNoRecords)
	}
	return s.records.GetByCallSID(ctx, callSID)
}

var errNoRecords = errors.New("call records are not kept")
