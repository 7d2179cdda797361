package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
)

// family holds the strategies of one type. Callers hold the registry lock.
type family[T strategy.Strategy] struct {
	kind  strategy.StrategyType
	items map[string]T
	def   string
}

func newFamily[T strategy.Strategy](kind strategy.StrategyType) family[T] {
	return family[T]{kind: kind, items: make(map[string]T)}
}

func (f *family[T]) register(s T) error {
	name := s.Name()
	if s.Type() != f.kind {
		return fmt.Errorf("%w: strategy '%s' is a %s strategy, not %s", shared.ErrInvalidInput, name, s.Type(), f.kind)
	}
	if _, exists := f.items[name]; exists {
		return fmt.Errorf("%w: %s strategy '%s' already registered", shared.ErrAlreadyExists, f.kind, name)
	}
	f.items[name] = s
	return nil
}

func (f *family[T]) get(name string) (T, error) {
	var zero T
	if name == "" {
		if f.def == "" {
			return zero, fmt.Errorf("%w: no default %s strategy set", shared.ErrNotFound, f.kind)
		}
		name = f.def
	}
	s, exists := f.items[name]
	if !exists {
		return zero, fmt.Errorf("%w: %s strategy '%s' not found", shared.ErrNotFound, f.kind, name)
	}
	return s, nil
}

func (f *family[T]) unregister(name string) error {
	if _, exists := f.items[name]; !exists {
		return fmt.Errorf("%w: %s strategy '%s' not found", shared.ErrNotFound, f.kind, name)
	}
	delete(f.items, name)
	if f.def == name {
		f.def = ""
	}
	return nil
}

func (f *family[T]) names() []string {
	names := make([]string, 0, len(f.items))
	for name := range f.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *family[T]) has(name string) bool {
	_, ok := f.items[name]
	return ok
}

// StrategyRegistry holds the tax calculators and payment allocation strategies the
// application can select by name
type StrategyRegistry struct {
	mu         sync.RWMutex
	tax        family[strategy.TaxCalculator]
	allocation family[strategy.PaymentAllocationStrategy]
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		tax:        newFamily[strategy.TaxCalculator](strategy.StrategyTypeTax),
		allocation: newFamily[strategy.PaymentAllocationStrategy](strategy.StrategyTypeAllocation),
	}
}

func (r *StrategyRegistry) RegisterTaxCalculator(s strategy.TaxCalculator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tax.register(s)
}

// GetTaxCalculator returns the named calculator, or the default when name is empty
func (r *StrategyRegistry) GetTaxCalculator(name string) (strategy.TaxCalculator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tax.get(name)
}

func (r *StrategyRegistry) ListTaxCalculators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tax.names()
}

func (r *StrategyRegistry) UnregisterTaxCalculator(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tax.unregister(name)
}

func (r *StrategyRegistry) RegisterAllocationStrategy(s strategy.PaymentAllocationStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocation.register(s)
}

// GetAllocationStrategy returns the named strategy, or the default when name is empty
func (r *StrategyRegistry) GetAllocationStrategy(name string) (strategy.PaymentAllocationStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allocation.get(name)
}

// GetAllocationStrategyOrDefault falls back to the default for unknown names
func (r *StrategyRegistry) GetAllocationStrategyOrDefault(name string) strategy.PaymentAllocationStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, err := r.allocation.get(name); err == nil {
		return s
	}
	s, _ := r.allocation.get("")
	return s
}

func (r *StrategyRegistry) ListAllocationStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allocation.names()
}

func (r *StrategyRegistry) UnregisterAllocationStrategy(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocation.unregister(name)
}

// SetDefault makes name the default for strategyType; it must already be registered
func (r *StrategyRegistry) SetDefault(strategyType strategy.StrategyType, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch strategyType {
	case strategy.StrategyTypeTax:
		if r.tax.has(name) {
			r.tax.def = name
			return nil
		}
	case strategy.StrategyTypeAllocation:
		if r.allocation.has(name) {
			r.allocation.def = name
			return nil
		}
	default:
		return fmt.Errorf("%w: unknown strategy type '%s'", shared.ErrInvalidInput, strategyType)
	}
	return fmt.Errorf("%w: strategy '%s' of type '%s' not found", shared.ErrNotFound, name, strategyType)
}

func (r *StrategyRegistry) GetDefault(strategyType strategy.StrategyType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch strategyType {
	case strategy.StrategyTypeTax:
		return r.tax.def
	case strategy.StrategyTypeAllocation:
		return r.allocation.def
	}
	return ""
}

// Stats returns registration counts per strategy type
func (r *StrategyRegistry) Stats() map[strategy.StrategyType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[strategy.StrategyType]int{
		strategy.StrategyTypeTax:        len(r.tax.items),
		strategy.StrategyTypeAllocation: len(r.allocation.items),
	}
}
