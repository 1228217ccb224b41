package timer

import (
	"time"

	"go.uber.org/zap"
)

// Mock is a standalone Adapter used by cmd/mockls and by tests in place of
// a real embedding timer. It tracks a fixed number of splits, logging each
// transition instead of driving any UI, grounded on the splitCount-bounded
// state machine in crates/mockls/src/main.rs.
type Mock struct {
	splitCount int

	currentSplit   int
	state          State
	gameTime       time.Duration
	gameTimePaused bool

	logger *zap.Logger
}

// NewMock returns a Mock that finishes after splitCount splits.
func NewMock(splitCount int, logger *zap.Logger) *Mock {
	return &Mock{
		splitCount:   splitCount,
		currentSplit: -1,
		state:        NotRunning,
		logger:       logger,
	}
}

var _ Adapter = (*Mock)(nil)

func (m *Mock) TimerState() State { return m.state }

func (m *Mock) Start() {
	if m.currentSplit >= 0 {
		return
	}
	m.currentSplit = 0
	m.state = Running
	m.logger.Info("timer started")
}

func (m *Mock) Split() {
	if m.currentSplit >= m.splitCount || m.currentSplit < 0 {
		return
	}
	m.logger.Info("split finished", zap.Int("split", m.currentSplit))
	m.currentSplit++
	if m.currentSplit == m.splitCount {
		m.state = Finished
		m.logger.Info("run finished")
	}
}

func (m *Mock) Reset() {
	m.currentSplit = -1
	m.state = NotRunning
	m.logger.Info("timer reset")
}

func (m *Mock) SetGameTime(d time.Duration) {
	m.gameTime = d
	m.logger.Info("game time set", zap.Duration("game_time", d))
}

func (m *Mock) PauseGameTime() {
	m.gameTimePaused = true
	m.logger.Info("game time paused")
}

func (m *Mock) ResumeGameTime() {
	m.gameTimePaused = false
	m.logger.Info("game time resumed")
}

func (m *Mock) IsGameTimePaused() bool { return m.gameTimePaused }
