package changelog

import (
	"context"
	"github.com/google/uuid"
	"github.com/heartmarshall/persona-registry/internal/domain"
	"sync"
)

var _ reviewerChecker = &reviewerCheckerMock{}

type reviewerCheckerMock struct {
	IsRelativeReviewerFunc func(ctx context.Context, personaID uuid.UUID, fields domain.Fields) (bool, error)

	calls struct {
		IsRelativeReviewer []struct {
			Ctx       context.Context
			PersonaID uuid.UUID
			Fields    domain.Fields
		}
	}
	lockIsRelativeReviewer sync.RWMutex
}

func (mock *reviewerCheckerMock) IsRelativeReviewer(ctx context.Context, personaID uuid.UUID, fields domain.Fields) (bool, error) {
	if mock.IsRelativeReviewerFunc == nil {
		panic("reviewerCheckerMock.IsRelativeReviewerFunc: method is nil but reviewerChecker.IsRelativeReviewer was just called")
	}
	callInfo := struct {
		Ctx       context.Context
		PersonaID uuid.UUID
		Fields    domain.Fields
	}{Ctx: ctx, PersonaID: personaID, Fields: fields}
	mock.lockIsRelativeReviewer.Lock()
	mock.calls.IsRelativeReviewer = append(mock.calls.IsRelativeReviewer, callInfo)
	mock.lockIsRelativeReviewer.Unlock()
	return mock.IsRelativeReviewerFunc(ctx, personaID, fields)
}

func (mock *reviewerCheckerMock) IsRelativeReviewerCalls() []struct {
	Ctx       context.Context
	PersonaID uuid.UUID
	Fields    domain.Fields
} {
	mock.lockIsRelativeReviewer.RLock()
	calls := mock.calls.IsRelativeReviewer
	mock.lockIsRelativeReviewer.RUnlock()
	return calls
}
