package auth

import (
	"fmt"
	"sync"

	"github.com/elys-network/stablevault/internal/types"
)

// Authorizer answers who may call governance and reserve operations.
type Authorizer interface {
	IsGovernor(addr string) bool
	IsApprovedStrategy(addr string) bool
}

// RequireGovernor is evaluated before any governance mutation.
func RequireGovernor(a Authorizer, caller string) error {
	if a == nil || !a.IsGovernor(caller) {
		return fmt.Errorf("%w: %s", types.ErrNotGovernor, caller)
	}
	return nil
}

// RequireApprovedStrategy guards the reserve channel.
func RequireApprovedStrategy(a Authorizer, caller string) error {
	if a == nil || !a.IsApprovedStrategy(caller) {
		return fmt.Errorf("%w: %s", types.ErrNotAuthorizedStrategy, caller)
	}
	return nil
}

// Static is an in-memory Authorizer with a single governor.
type Static struct {
	mu       sync.RWMutex
	governor string
	approved map[string]bool
}

func NewStatic(governor string, approved ...string) *Static {
	s := &Static{governor: governor, approved: make(map[string]bool)}
	for _, a := range approved {
		s.approved[a] = true
	}
	return s
}

func (s *Static) IsGovernor(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return addr != "" && addr == s.governor
}

func (s *Static) IsApprovedStrategy(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approved[addr]
}

// SetGovernor hands governance to a new address. Only the current governor may do so.
func (s *Static) SetGovernor(caller, next string) error {
	if err := RequireGovernor(s, caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.governor = next
	return nil
}

// ApproveStrategy allows strategy to use the reserve channel.
func (s *Static) ApproveStrategy(caller, strategy string) error {
	if err := RequireGovernor(s, caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved[strategy] = true
	return nil
}

func (s *Static) RevokeStrategy(caller, strategy string) error {
	if err := RequireGovernor(s, caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.approved, strategy)
	return nil
}
