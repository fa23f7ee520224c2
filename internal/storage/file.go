package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/yourname/fixyoursleep/internal"
)

type FileStorage struct {
	profiles       map[string]*internal.GoalProfile     // userID -> profile
	sleepLogs      map[string]*internal.SleepLogEntry   // id -> entry
	userSleepIndex map[string][]*internal.SleepLogEntry // userID -> entries (sorted by date, descending)
	mu             sync.RWMutex
	profilesFile   string
	sleepFile      string
	saveLogsChan   chan struct{}
	saveProfiles   chan struct{}
	shutdownChan   chan struct{}
	closeOnce      sync.Once
	saveDelay      time.Duration
	logger         internal.Logger
}

func NewFileStorage(profilesFile, sleepFile string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		profiles:       make(map[string]*internal.GoalProfile),
		sleepLogs:      make(map[string]*internal.SleepLogEntry),
		userSleepIndex: make(map[string][]*internal.SleepLogEntry),
		profilesFile:   profilesFile,
		sleepFile:      sleepFile,
		saveLogsChan:   make(chan struct{}, 1),
		saveProfiles:   make(chan struct{}, 1),
		shutdownChan:   make(chan struct{}),
		saveDelay:      500 * time.Millisecond,
		logger:         logger,
	}

	if err := s.loadProfiles(); err != nil {
		logger.Errorf("storage: failed to load profiles: %v", err)
		return nil, err
	}
	if err := s.loadSleepLogs(); err != nil {
		logger.Errorf("storage: failed to load sleep logs: %v", err)
		return nil, err
	}

	go s.saveWorker(s.saveLogsChan, "sleep logs", s.saveSleepLogs)
	go s.saveWorker(s.saveProfiles, "profiles", s.saveProfilesFile)

	return s, nil
}

func readDocuments(path string) ([]Document, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var docs []Document
	if err := json.NewDecoder(file).Decode(&docs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return docs, nil
}

func (s *FileStorage) loadProfiles() error {
	docs, err := readDocuments(s.profilesFile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range docs {
		p, err := DecodeProfile(doc)
		if err != nil {
			return fmt.Errorf("profile #%d: %w", i, err)
		}
		s.profiles[p.UserID] = p
	}
	return nil
}

func (s *FileStorage) loadSleepLogs() error {
	docs, err := readDocuments(s.sleepFile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range docs {
		e, err := DecodeSleepLog(doc, "")
		if err != nil {
			return fmt.Errorf("sleep log #%d: %w", i, err)
		}
		if e.UserID == "" {
			return fmt.Errorf("sleep log #%d: %w: missing %q", i, internal.ErrInvalidDocument, fieldUserID)
		}
		s.sleepLogs[e.ID] = e
		s.userSleepIndex[e.UserID] = append(s.userSleepIndex[e.UserID], e)
	}

	for userID := range s.userSleepIndex {
		sortByDateDesc(s.userSleepIndex[userID])
	}
	return nil
}

func sortByDateDesc(entries []*internal.SleepLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) saveSleepLogs() error {
	s.mu.RLock()
	docs := make([]Document, 0, len(s.sleepLogs))
	for _, e := range s.sleepLogs {
		docs = append(docs, EncodeSleepLog(e))
	}
	s.mu.RUnlock()

	return atomicWriteFileJSON(s.sleepFile, docs)
}

func (s *FileStorage) saveProfilesFile() error {
	s.mu.RLock()
	docs := make([]Document, 0, len(s.profiles))
	for _, p := range s.profiles {
		docs = append(docs, EncodeProfile(p))
	}
	s.mu.RUnlock()

	return atomicWriteFileJSON(s.profilesFile, docs)
}

// saveWorker batches writes: every signal pushes the flush back by saveDelay.
func (s *FileStorage) saveWorker(signal <-chan struct{}, what string, save func() error) {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-signal:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := save(); err != nil {
				s.logger.Errorf("storage: error saving %s: %v", what, err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *FileStorage) Close() error {
	s.closeOnce.Do(func() { close(s.shutdownChan) })

	// Save pending data synchronously on shutdown
	if err := s.saveSleepLogs(); err != nil {
		return err
	}
	return s.saveProfilesFile()
}

// --- ProfileStore ---
func (s *FileStorage) GetProfile(ctx context.Context, userID string) (*internal.GoalProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("storage: profile %s: %w", userID, internal.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *FileStorage) PutProfile(ctx context.Context, profile *internal.GoalProfile) (*internal.GoalProfile, error) {
	if _, err := DecodeProfile(EncodeProfile(profile)); err != nil {
		return nil, err
	}
	cp := *profile
	s.mu.Lock()
	s.profiles[cp.UserID] = &cp
	s.mu.Unlock()
	notify(s.saveProfiles)
	out := cp
	return &out, nil
}

func (s *FileStorage) UpdateGoalFields(ctx context.Context, userID string, fields internal.GoalFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return fmt.Errorf("storage: profile %s: %w", userID, internal.ErrNotFound)
	}
	updated := *p
	if fields.BedTime != nil {
		updated.BedTime = *fields.BedTime
	}
	if fields.WakeTime != nil {
		updated.WakeTime = *fields.WakeTime
	}
	if err := validateGoalPair(updated.BedTime, updated.WakeTime); err != nil {
		return err
	}
	updated.UpdatedAt = time.Now()
	s.profiles[userID] = &updated
	notify(s.saveProfiles)
	return nil
}

// --- SleepLogStore ---
func (s *FileStorage) SaveSleepLog(ctx context.Context, userID string, entry *internal.SleepLogEntry) error {
	e := *entry
	e.UserID = userID

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.sleepLogs[e.ID]; ok {
		s.removeFromIndex(old)
	}
	s.sleepLogs[e.ID] = &e
	logs := s.userSleepIndex[userID]
	inserted := false
	for i, existing := range logs {
		if existing.Date.Before(e.Date) {
			logs = append(logs[:i], append([]*internal.SleepLogEntry{&e}, logs[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		logs = append(logs, &e)
	}
	s.userSleepIndex[userID] = logs
	notify(s.saveLogsChan)
	return nil
}

func (s *FileStorage) ListSleepLogs(ctx context.Context, userID string) ([]internal.SleepLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logsPtr, ok := s.userSleepIndex[userID]
	if !ok {
		return []internal.SleepLogEntry{}, nil
	}
	logs := make([]internal.SleepLogEntry, len(logsPtr))
	for i, l := range logsPtr {
		logs[i] = *l
	}
	return logs, nil
}

func (s *FileStorage) DeleteSleepLog(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sleepLogs[id]
	if !ok || e.UserID != userID {
		return fmt.Errorf("storage: sleep log %s: %w", id, internal.ErrNotFound)
	}
	s.removeFromIndex(e)
	delete(s.sleepLogs, id)
	notify(s.saveLogsChan)
	return nil
}

func (s *FileStorage) removeFromIndex(e *internal.SleepLogEntry) {
	logs := s.userSleepIndex[e.UserID]
	for i, existing := range logs {
		if existing.ID == e.ID {
			s.userSleepIndex[e.UserID] = append(logs[:i], logs[i+1:]...)
			return
		}
	}
}

// --- Compile-time assertions ---
var _ Store = (*FileStorage)(nil)
