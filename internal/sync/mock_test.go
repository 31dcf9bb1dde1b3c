package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitalrelay/vitalrelay/internal/model"
)

// --- Mock Health Source ------------------------------------------------------

type mockSource struct {
	mu        sync.Mutex
	steps     []model.StepsRecord
	distance  []model.DistanceRecord
	calories  []model.CaloriesRecord
	sleep     []model.SleepSession
	heartRate []model.HeartRateSeries
	oxygen    []model.OxygenReading
	exercise  []model.ExerciseSession

	// failing[cat] makes that category's read return an error.
	failing map[model.Category]error

	// windows records the [from, to) each category was queried with.
	windows map[model.Category][]Window
}

func newMockSource() *mockSource {
	return &mockSource{
		failing: make(map[model.Category]error),
		windows: make(map[model.Category][]Window),
	}
}

func (m *mockSource) fail(cat model.Category, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[cat] = err
}

func (m *mockSource) windowsFor(cat model.Category) []Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windows[cat]
}

// record notes the query window and returns the injected error, if any.
func (m *mockSource) record(cat model.Category, from, to time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows[cat] = append(m.windows[cat], Window{From: from, To: to})
	return m.failing[cat]
}

// inWindow mirrors the gateway: only records whose timestamp falls in
// [from, to) are returned.
func inWindow(ts, from, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}

func (m *mockSource) Steps(_ context.Context, from, to time.Time) ([]model.StepsRecord, error) {
	if err := m.record(model.CategorySteps, from, to); err != nil {
		return nil, err
	}
	var out []model.StepsRecord
	for _, s := range m.steps {
		if inWindow(s.Start, from, to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSource) Distance(_ context.Context, from, to time.Time) ([]model.DistanceRecord, error) {
	if err := m.record(model.CategoryDistance, from, to); err != nil {
		return nil, err
	}
	var out []model.DistanceRecord
	for _, d := range m.distance {
		if inWindow(d.Start, from, to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockSource) Calories(_ context.Context, from, to time.Time) ([]model.CaloriesRecord, error) {
	if err := m.record(model.CategoryCalories, from, to); err != nil {
		return nil, err
	}
	var out []model.CaloriesRecord
	for _, c := range m.calories {
		if inWindow(c.Start, from, to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockSource) SleepSessions(_ context.Context, from, to time.Time) ([]model.SleepSession, error) {
	if err := m.record(model.CategorySleep, from, to); err != nil {
		return nil, err
	}
	var out []model.SleepSession
	for _, s := range m.sleep {
		if inWindow(s.Start, from, to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSource) HeartRates(_ context.Context, from, to time.Time) ([]model.HeartRateSeries, error) {
	if err := m.record(model.CategoryHeartRate, from, to); err != nil {
		return nil, err
	}
	var out []model.HeartRateSeries
	for _, series := range m.heartRate {
		var samples []model.HeartRateSample
		for _, s := range series.Samples {
			if inWindow(s.Time, from, to) {
				samples = append(samples, s)
			}
		}
		if len(samples) > 0 {
			out = append(out, model.HeartRateSeries{Samples: samples})
		}
	}
	return out, nil
}

func (m *mockSource) OxygenSaturation(_ context.Context, from, to time.Time) ([]model.OxygenReading, error) {
	if err := m.record(model.CategoryBloodOxygen, from, to); err != nil {
		return nil, err
	}
	var out []model.OxygenReading
	for _, o := range m.oxygen {
		if inWindow(o.Time, from, to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockSource) ExerciseSessions(_ context.Context, from, to time.Time) ([]model.ExerciseSession, error) {
	if err := m.record(model.CategoryExercise, from, to); err != nil {
		return nil, err
	}
	var out []model.ExerciseSession
	for _, e := range m.exercise {
		if inWindow(e.Start, from, to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- Mock Record Store -------------------------------------------------------

type storedRecord struct {
	rec model.SensorRecord
	key model.DedupKey
}

type mockRecords struct {
	mu      sync.Mutex
	records map[string][]storedRecord // sensorType → rows

	inserts int
	updates int

	findErr   error
	softFail  bool // all writes return (false, nil)
	insertErr error
}

func newMockRecords() *mockRecords {
	return &mockRecords{records: make(map[string][]storedRecord)}
}

func (m *mockRecords) FindExisting(_ context.Context, userID string, cat model.Category, from, to time.Time) ([]model.SensorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}

	var result []model.SensorRecord
	for _, sr := range m.records[cat.SensorType()] {
		ts := sr.rec.Timestamp
		if sr.rec.UserID == userID && !ts.Before(from) && ts.Before(to) {
			result = append(result, sr.rec)
		}
	}
	return result, nil
}

func (m *mockRecords) Insert(_ context.Context, rec model.SensorRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if m.softFail {
		return false, nil
	}

	// Stored instants carry microsecond precision, like the real column.
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Microsecond)

	key := model.DedupKey{UnixMicro: rec.Timestamp.UnixMicro(), SubType: rec.DedupSubType()}
	for _, sr := range m.records[rec.SensorType] {
		if sr.rec.UserID == rec.UserID && sr.key == key {
			return true, nil // idempotent re-delivery
		}
	}
	m.records[rec.SensorType] = append(m.records[rec.SensorType], storedRecord{rec: rec, key: key})
	m.inserts++
	return true, nil
}

func (m *mockRecords) UpdateByKey(_ context.Context, userID string, cat model.Category, key model.DedupKey, fields model.Fields) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.softFail {
		return false, nil
	}

	rows := m.records[cat.SensorType()]
	for i, sr := range rows {
		if sr.rec.UserID == userID && sr.key == key {
			rows[i].rec.Fields = fields
			m.updates++
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRecords) count(sensorType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[sensorType])
}

func (m *mockRecords) counts() (inserts, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts, m.updates
}

func (m *mockRecords) byType(sensorType string) []model.SensorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.SensorRecord
	for _, sr := range m.records[sensorType] {
		result = append(result, sr.rec)
	}
	return result
}

// --- Mock Checkpoint / Config Store ------------------------------------------

type mockState struct {
	mu          sync.Mutex
	checkpoints map[string]time.Time
	groups      map[string][]model.Group

	checkpointErr error
	setErr        error
	groupsErr     error

	setCalls int
}

func newMockState() *mockState {
	return &mockState{
		checkpoints: make(map[string]time.Time),
		groups:      make(map[string][]model.Group),
	}
}

func (m *mockState) Checkpoint(_ context.Context, userID string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkpointErr != nil {
		return time.Time{}, false, m.checkpointErr
	}
	cp, ok := m.checkpoints[userID]
	return cp, ok, nil
}

func (m *mockState) SetCheckpoint(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.setCalls++
	if existing, ok := m.checkpoints[userID]; !ok || at.After(existing) {
		m.checkpoints[userID] = at
	}
	return nil
}

func (m *mockState) EnabledGroups(_ context.Context, userID string) ([]model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupsErr != nil {
		return nil, m.groupsErr
	}
	return m.groups[userID], nil
}

func (m *mockState) enable(userID string, groups ...model.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[userID] = groups
}

func (m *mockState) checkpoint(userID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[userID]
	return cp, ok
}

// --- Mock Device Registry ----------------------------------------------------

type mockDevices struct {
	mu       sync.Mutex
	seen     map[string]time.Time // "user/device" → last instant
	seenErr  error
	lastUser string
}

func newMockDevices() *mockDevices {
	return &mockDevices{seen: make(map[string]time.Time)}
}

func (m *mockDevices) MarkSeen(_ context.Context, userID, deviceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seenErr != nil {
		return m.seenErr
	}
	m.lastUser = userID
	m.seen[fmt.Sprintf("%s/%s", userID, deviceID)] = at
	return nil
}

func (m *mockDevices) seenAt(userID, deviceID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.seen[fmt.Sprintf("%s/%s", userID, deviceID)]
	return at, ok
}

// --- Mock Status Notifier ----------------------------------------------------

type cycleResult struct {
	userID    string
	processed int
	failures  int
}

type mockNotifier struct {
	mu      sync.Mutex
	results []cycleResult
}

func (m *mockNotifier) CycleResult(_ context.Context, userID string, processed, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, cycleResult{userID: userID, processed: processed, failures: failures})
}

func (m *mockNotifier) last() (cycleResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.results) == 0 {
		return cycleResult{}, false
	}
	return m.results[len(m.results)-1], true
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}
