package service

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/assessment-results-server/internal/assessment"
	"github.com/assessment-results-server/internal/domain"
)

// fakeStore is an in-memory ReportStore
type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	reads  int
	writes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[sessionID+"/"+key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (s *fakeStore) Set(ctx context.Context, sessionID, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.data[sessionID+"/"+key] = append([]byte(nil), payload...)
	return nil
}

func (s *fakeStore) Clear(ctx context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID+"/"+key)
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) put(sessionID, key, payload string) {
	s.data[sessionID+"/"+key] = []byte(payload)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testCatalog(t *testing.T) *assessment.Catalog {
	t.Helper()
	catalog, err := assessment.NewDefaultCatalog(quietLogger(), "", "")
	require.NoError(t, err)
	return catalog
}

const surgeryReport = `{
	"overallScore": 74,
	"categories": [
		{
			"name": "Physical Fitness",
			"score": 82,
			"maxScore": 100,
			"description": "Aerobic capacity and strength",
			"recommendations": ["Walk 30 minutes daily"]
		},
		{
			"name": "Nutritional Status",
			"score": 65,
			"maxScore": 100,
			"description": "Protein intake",
			"recommendations": ["Add a protein source to every meal"],
			"priority": "high"
		}
	],
	"summary": "Mostly ready for surgery"
}`
