package memory

import (
	"context"
	"sort"
	"sync"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// DeploymentStore is an in-memory implementation of storage.DeploymentStore.
type DeploymentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Deployment // keyed by ledger_id
}

// NewDeploymentStore creates a new in-memory deployment store.
func NewDeploymentStore() *DeploymentStore {
	return &DeploymentStore{
		data: make(map[string]*domain.Deployment),
	}
}

// Insert adds a new deployment. Returns ErrDuplicateKey if ledger_id exists.
func (s *DeploymentStore) Insert(_ context.Context, d *domain.Deployment) error {
	if d == nil || d.LedgerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.LedgerID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	deploymentCopy := *d
	s.data[d.LedgerID] = &deploymentCopy
	return nil
}

// GetByID retrieves a deployment by ledger id. Returns ErrNotFound if not exists.
func (s *DeploymentStore) GetByID(_ context.Context, ledgerID string) (*domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[ledgerID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	deploymentCopy := *d
	return &deploymentCopy, nil
}

// GetByCreator retrieves all deployments for a creator, in creation order.
func (s *DeploymentStore) GetByCreator(_ context.Context, creator string) ([]*domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Deployment
	for _, d := range s.data {
		if d.Creator == creator {
			deploymentCopy := *d
			result = append(result, &deploymentCopy)
		}
	}

	sortDeployments(result)
	return result, nil
}

// GetAll retrieves every deployment, in creation order.
func (s *DeploymentStore) GetAll(_ context.Context) ([]*domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Deployment, 0, len(s.data))
	for _, d := range s.data {
		deploymentCopy := *d
		result = append(result, &deploymentCopy)
	}

	sortDeployments(result)
	return result, nil
}

// Count returns the total number of deployments.
func (s *DeploymentStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// sortDeployments orders by created_at ASC, ledger_id ASC for determinism.
func sortDeployments(deployments []*domain.Deployment) {
	sort.Slice(deployments, func(i, j int) bool {
		if deployments[i].CreatedAt != deployments[j].CreatedAt {
			return deployments[i].CreatedAt < deployments[j].CreatedAt
		}
		return deployments[i].LedgerID < deployments[j].LedgerID
	})
}

// Verify interface compliance at compile time.
var _ storage.DeploymentStore = (*DeploymentStore)(nil)
