package strategy

import (
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/infrastructure/strategy/allocation"
)

// NewRegistryWithDefaults registers the built-in calculators and allocation strategies.
// defaultAllocation selects the allocation default ("fifo" when empty).
func NewRegistryWithDefaults(defaultAllocation string) (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	rate := strategy.NewRateTaxCalculator()
	for _, s := range []strategy.TaxCalculator{rate, NewExemptTaxCalculator()} {
		if err := r.RegisterTaxCalculator(s); err != nil {
			return nil, err
		}
	}
	fifo := allocation.NewFIFOAllocationStrategy()
	for _, s := range []strategy.PaymentAllocationStrategy{fifo, allocation.NewProportionalAllocationStrategy()} {
		if err := r.RegisterAllocationStrategy(s); err != nil {
			return nil, err
		}
	}

	if err := r.SetDefault(strategy.StrategyTypeTax, rate.Name()); err != nil {
		return nil, err
	}
	if defaultAllocation == "" {
		defaultAllocation = fifo.Name()
	}
	if err := r.SetDefault(strategy.StrategyTypeAllocation, defaultAllocation); err != nil {
		return nil, err
	}
	return r, nil
}
