package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/assessment"
	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/monitoring"
)

// TabStatus is the client-facing snapshot of a view state
type TabStatus struct {
	AssessmentID string       `json:"assessment_id"`
	ActiveTab    domain.Tab   `json:"active_tab"`
	Tabs         []domain.Tab `json:"tabs"`
	ViewedTabs   []domain.Tab `json:"viewed_tabs"`
	Remaining    []domain.Tab `json:"remaining_tabs"`
	CanProceed   bool         `json:"can_proceed"`
}

// TabService keeps the per-session tab view state in the report store
type TabService struct {
	store   domain.ReportStore
	catalog *assessment.Catalog
	logger  *logrus.Logger
	metrics *monitoring.Metrics
	locks   *keyedMutex
}

// NewTabService creates a new tab service
func NewTabService(store domain.ReportStore, catalog *assessment.Catalog, logger *logrus.Logger, metrics *monitoring.Metrics) *TabService {
	return &TabService{
		store:   store,
		catalog: catalog,
		logger:  logger,
		metrics: metrics,
		locks:   newKeyedMutex(),
	}
}

// Status returns the current view state, starting a fresh one when none is stored.
func (s *TabService) Status(ctx context.Context, sessionID, assessmentID string) (*TabStatus, error) {
	def, vs, err := s.load(ctx, sessionID, assessmentID)
	if err != nil {
		return nil, err
	}
	return snapshot(def.ID, vs), nil
}

// Select activates a tab, marks it viewed and persists the state.
// Selections for one session and assessment are serialised, and the write merges
// whatever viewed set is stored at that moment so the set never shrinks.
func (s *TabService) Select(ctx context.Context, sessionID, assessmentID string, tab domain.Tab) (*TabStatus, error) {
	unlock := s.locks.Lock(sessionID + "\x00" + assessmentID)
	defer unlock()

	def, vs, err := s.load(ctx, sessionID, assessmentID)
	if err != nil {
		return nil, err
	}

	if err := vs.Select(tab); err != nil {
		return nil, domain.NewValidationError("tab", fmt.Sprintf("tab must be one of %s", joinTabs(vs.Tabs())), tab)
	}

	// Another instance sharing the store may have written since the first read.
	if _, latest, err := s.load(ctx, sessionID, assessmentID); err == nil {
		vs.Merge(latest)
	}
	if err := s.save(ctx, sessionID, assessmentID, vs); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"assessment": assessmentID,
		"tab":        tab,
		"viewed":     len(vs.Viewed()),
	}).Debug("Tab selected")
	return snapshot(def.ID, vs), nil
}

// Proceed returns the next destination once every tab has been viewed.
// While tabs remain it fails with TAB_GATE_CLOSED.
func (s *TabService) Proceed(ctx context.Context, sessionID, assessmentID string) (*domain.Navigation, error) {
	def, vs, err := s.load(ctx, sessionID, assessmentID)
	if err != nil {
		return nil, err
	}

	allowed := vs.AllViewed()
	s.metrics.ObserveProceed(assessmentID, allowed)
	if !allowed {
		return nil, domain.TabGateClosed(joinTabs(vs.Remaining()))
	}

	destination := def.NextDestination
	if destination == "" {
		destination = domain.DestinationAssessmentList
	}
	return &domain.Navigation{Destination: destination}, nil
}

// Back returns the navigation target of the back control.
func (s *TabService) Back(ctx context.Context, sessionID, assessmentID string) (*domain.Navigation, error) {
	if _, ok := s.catalog.Get(assessmentID); !ok {
		return nil, domain.UnknownAssessment(assessmentID)
	}
	return &domain.Navigation{Destination: domain.DestinationAssessmentList}, nil
}

func (s *TabService) load(ctx context.Context, sessionID, assessmentID string) (*assessment.Definition, *domain.ViewState, error) {
	def, ok := s.catalog.Get(assessmentID)
	if !ok {
		return nil, nil, domain.UnknownAssessment(assessmentID)
	}

	fresh := func() (*assessment.Definition, *domain.ViewState, error) {
		vs, err := domain.NewViewState(def.Tabs())
		if err != nil {
			return nil, nil, err
		}
		return def, vs, nil
	}

	payload, err := s.store.Get(ctx, sessionID, domain.ViewKey(assessmentID))
	if errors.Is(err, domain.ErrNotFound) {
		return fresh()
	}
	if err != nil {
		return nil, nil, &storeError{op: "get", err: err}
	}

	var vs domain.ViewState
	if err := json.Unmarshal(payload, &vs); err != nil || !slices.Equal(vs.Tabs(), def.Tabs()) {
		s.logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"assessment": assessmentID,
		}).WithError(err).Warn("Discarding unusable stored view state")
		return fresh()
	}
	return def, &vs, nil
}

func (s *TabService) save(ctx context.Context, sessionID, assessmentID string, vs *domain.ViewState) error {
	payload, err := json.Marshal(vs)
	if err != nil {
		return fmt.Errorf("failed to encode view state: %w", err)
	}
	if err := s.store.Set(ctx, sessionID, domain.ViewKey(assessmentID), payload); err != nil {
		return &storeError{op: "set", err: err}
	}
	return nil
}

func snapshot(assessmentID string, vs *domain.ViewState) *TabStatus {
	return &TabStatus{
		AssessmentID: assessmentID,
		ActiveTab:    vs.Active(),
		Tabs:         vs.Tabs(),
		ViewedTabs:   vs.Viewed(),
		Remaining:    vs.Remaining(),
		CanProceed:   vs.AllViewed(),
	}
}

func joinTabs(tabs []domain.Tab) string {
	names := make([]string, len(tabs))
	for i, t := range tabs {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// keyedMutex hands out one mutex per key and drops it once nobody holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
