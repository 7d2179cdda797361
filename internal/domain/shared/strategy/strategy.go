package strategy

// StrategyType identifies a family of pluggable algorithms
type StrategyType string

const (
	StrategyTypeTax        StrategyType = "tax"
	StrategyTypeAllocation StrategyType = "allocation"
)

func (t StrategyType) String() string {
	return string(t)
}

func (t StrategyType) IsValid() bool {
	switch t {
	case StrategyTypeTax, StrategyTypeAllocation:
		return true
	}
	return false
}

// AllStrategyTypes returns every strategy family
func AllStrategyTypes() []StrategyType {
	return []StrategyType{StrategyTypeTax, StrategyTypeAllocation}
}

// Strategy is implemented by every registered algorithm
type Strategy interface {
	Name() string
	Type() StrategyType
	Description() string
}

// BaseStrategy supplies the Strategy methods for embedding
type BaseStrategy struct {
	name         string
	strategyType StrategyType
	description  string
}

func NewBaseStrategy(name string, strategyType StrategyType, description string) BaseStrategy {
	return BaseStrategy{
		name:         name,
		strategyType: strategyType,
		description:  description,
	}
}

func (s BaseStrategy) Name() string        { return s.name }
func (s BaseStrategy) Type() StrategyType  { return s.strategyType }
func (s BaseStrategy) Description() string { return s.description }
