package mqtt

import (
	"fmt"
	"sync"

	"github.com/kilianp07/hems/core/model"
	coremqtt "github.com/kilianp07/hems/core/mqtt"
)

// Publisher mirrors the core SchedulePublisher interface.
type Publisher = coremqtt.SchedulePublisher

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Published map[string]model.Result
	Fail      bool
	mu        sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Published: make(map[string]model.Result)}
}

// PublishSchedule records the schedule or returns an error if configured to fail.
func (m *MockPublisher) PublishSchedule(runID string, res model.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Published[runID] = res
	return nil
}
