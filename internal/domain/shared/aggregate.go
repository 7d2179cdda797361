package shared

// AggregateRoot is implemented by every consistency boundary in the ledger
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot tracks the optimistic-lock version and pending domain events.
// The version the aggregate had when it was loaded is kept separately so a
// repository can compare against it no matter how many mutations happened since.
type BaseAggregateRoot struct {
	BaseEntity
	Version       int `json:"version"`
	loadedVersion int
	domainEvents  []DomainEvent
}

func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

func (a *BaseAggregateRoot) GetVersion() int { return a.Version }

func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// LoadedVersion is the version read from storage, or 0 for an aggregate never persisted
func (a *BaseAggregateRoot) LoadedVersion() int { return a.loadedVersion }

// IsNew reports whether the aggregate has never been persisted
func (a *BaseAggregateRoot) IsNew() bool { return a.loadedVersion == 0 }

// RestoreVersion sets the version of an aggregate loaded from storage
func (a *BaseAggregateRoot) RestoreVersion(version int) {
	a.Version = version
	a.loadedVersion = version
}

// MarkPersisted records that the current version is now the stored one
func (a *BaseAggregateRoot) MarkPersisted() {
	a.loadedVersion = a.Version
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}
