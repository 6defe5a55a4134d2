package adapters

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/callrelay/domain"
	"github.com/satriahrh/callrelay/domain/entities"
	"github.com/satriahrh/callrelay/domain/repositories"
)

// MemoryOperatorRepository is an in-memory implementation of OperatorRepository
type MemoryOperatorRepository struct {
	mu        sync.RWMutex
	operators map[string]*entities.Operator // id -> operator
	usernames map[string]*entities.Operator // username -> operator
}

var _ repositories.OperatorRepository = (*MemoryOperatorRepository)(nil)

// NewMemoryOperatorRepository creates a new in-memory operator repository
func NewMemoryOperatorRepository() *MemoryOperatorRepository {
	return &MemoryOperatorRepository{
		operators: make(map[string]*entities.Operator),
		usernames: make(map[string]*entities.Operator),
	}
}

// SeedOperators registers "username:secret" pairs from configuration
func (m *MemoryOperatorRepository) SeedOperators(ctx context.Context, entries []string) error {
	for _, entry := range entries {
		username, secret, ok := strings.Cut(entry, ":")
		if !ok {
			return fmt.Errorf("operator entry %q must be username:secret", entry)
		}
		if err := m.Create(ctx, &entities.Operator{Username: username, Secret: secret, Name: username}); err != nil {
			return fmt.Errorf("seed operator %s: %w", username, err)
		}
	}
	return nil
}

// ValidateOperator validates operator credentials (username + secret)
func (m *MemoryOperatorRepository) ValidateOperator(username, secret string) (*entities.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operator, exists := m.usernames[username]
	if !exists {
		return nil, domain.ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(operator.Secret), []byte(secret)) != 1 {
		return nil, domain.ErrInvalidCredentials
	}

	operatorCopy := *operator
	return &operatorCopy, nil
}

// Create implements OperatorRepository interface
func (m *MemoryOperatorRepository) Create(ctx context.Context, operator *entities.Operator) error {
	if operator == nil {
		return errors.New("operator cannot be nil")
	}
	if err := operator.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usernames[operator.Username]; exists {
		return errors.New("operator with this username already exists")
	}

	if operator.ID == "" {
		operator.ID = uuid.New().String()
	}
	now := time.Now()
	operator.CreatedAt = now
	operator.UpdatedAt = now

	operatorCopy := *operator
	m.operators[operator.ID] = &operatorCopy
	m.usernames[operator.Username] = &operatorCopy
	return nil
}

// GetByID implements OperatorRepository interface
func (m *MemoryOperatorRepository) GetByID(ctx context.Context, id string) (*entities.Operator, error) {
	if id == "" {
		return nil, errors.New("operator ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	operator, exists := m.operators[id]
	if !exists {
		return nil, domain.ErrNotFound
	}

	operatorCopy := *operator
	return &operatorCopy, nil
}
