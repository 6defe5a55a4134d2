package repositories

import (
	"context"

	"github.com/satriahrh/callrelay/domain/entities"
)

// CallRecordRepository defines data access methods for finished calls
type CallRecordRepository interface {
	Save(ctx context.Context, record *entities.CallRecord) error
	GetByCallSID(ctx context.Context, callSID string) (*entities.CallRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*entities.CallRecord, error)
	ListByCaller(ctx context.Context, callerNumber string, limit int) ([]*entities.CallRecord, error)
}

// OperatorRepository defines data access methods for dispatcher accounts
type OperatorRepository interface {
	Create(ctx context.Context, operator *entities.Operator) error
	GetByID(ctx context.Context, id string) (*entities.Operator, error)
	// ValidateOperator checks credentials for authentication
	ValidateOperator(username, secret string) (*entities.Operator, error)
}

// CallArtifacts is what gets written to disk when a call ends
type CallArtifacts struct {
	CallSID      string
	CallerNumber string
	Transcripts  map[entities.Track][]entities.TranscriptEvent
	Recording    []int16
	SampleRate   int
}

// CallArchive persists transcripts and recordings. It returns the
// recording location, if one was written.
type CallArchive interface {
	Store(ctx context.Context, artifacts CallArtifacts) (string, error)
}
