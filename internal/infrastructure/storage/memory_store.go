package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/shared"
)

var _ ledgerapp.ReportStore = (*MemoryReportStore)(nil)

// MemoryReportStore keeps reports in process memory. It is used when object storage
// is disabled and in tests; contents are lost on restart.
type MemoryReportStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	contentType string
	body        []byte
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryReportStore) Put(_ context.Context, key, contentType string, body []byte) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{contentType: contentType, body: append([]byte(nil), body...)}
	return nil
}

func (s *MemoryReportStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, shared.NewNotFoundError("report", key)
	}
	return append([]byte(nil), obj.body...), nil
}

// URL returns a memory:// link; there is nothing to expire
func (s *MemoryReportStore) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", shared.NewNotFoundError("report", key)
	}
	return "memory://" + key, nil
}

// Keys lists stored keys with the given prefix in order
func (s *MemoryReportStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
