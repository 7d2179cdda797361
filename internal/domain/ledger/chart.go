package ledger

import (
	"fmt"
	"sort"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Chart is an adjacency index over a set of accounts used for hierarchy queries.
// It is a read model: build it from the repository, query, then discard.
type Chart struct {
	accounts map[uuid.UUID]*Account
	children map[uuid.UUID][]uuid.UUID
}

// NewChart indexes accounts by ID and by parent
func NewChart(accounts []*Account) *Chart {
	c := &Chart{
		accounts: make(map[uuid.UUID]*Account, len(accounts)),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
	for _, a := range accounts {
		c.accounts[a.ID] = a
	}
	for _, a := range accounts {
		if p := a.ParentID(); p != nil {
			c.children[*p] = append(c.children[*p], a.ID)
		}
	}
	for p := range c.children {
		ids := c.children[p]
		sort.Slice(ids, func(i, j int) bool { return c.codeOf(ids[i]) < c.codeOf(ids[j]) })
	}
	return c
}

func (c *Chart) codeOf(id uuid.UUID) string {
	if a, ok := c.accounts[id]; ok {
		return a.Code
	}
	return id.String()
}

func (c *Chart) Get(id uuid.UUID) (*Account, bool) {
	a, ok := c.accounts[id]
	return a, ok
}

func (c *Chart) Len() int { return len(c.accounts) }

// Children returns the direct children of id ordered by code
func (c *Chart) Children(id uuid.UUID) []*Account {
	out := make([]*Account, 0, len(c.children[id]))
	for _, cid := range c.children[id] {
		out = append(out, c.accounts[cid])
	}
	return out
}

// Ancestors walks the parent chain from id's parent up to the root, nearest first.
// The walk stops if it revisits an account so corrupted data cannot loop forever.
func (c *Chart) Ancestors(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	seen := map[uuid.UUID]bool{id: true}
	cur, ok := c.accounts[id]
	for ok {
		p := cur.ParentID()
		if p == nil || seen[*p] {
			break
		}
		seen[*p] = true
		out = append(out, *p)
		cur, ok = c.accounts[*p]
	}
	return out
}

// Descendants returns every account below id in breadth-first order
func (c *Chart) Descendants(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	seen := map[uuid.UUID]bool{id: true}
	queue := append([]uuid.UUID(nil), c.children[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, c.children[next]...)
	}
	return out
}

// IsRoot is true when the account has no parent inside the chart
func (c *Chart) IsRoot(id uuid.UUID) bool {
	a, ok := c.accounts[id]
	if !ok {
		return false
	}
	p := a.ParentID()
	if p == nil {
		return true
	}
	_, parentKnown := c.accounts[*p]
	return !parentKnown
}

func (c *Chart) IsLeaf(id uuid.UUID) bool {
	_, ok := c.accounts[id]
	return ok && len(c.children[id]) == 0
}

// Depth is 0 for roots
func (c *Chart) Depth(id uuid.UUID) int {
	return len(c.Ancestors(id))
}

func (c *Chart) sorted(filter func(uuid.UUID) bool) []*Account {
	var out []*Account
	for id, a := range c.accounts {
		if filter(id) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (c *Chart) Roots() []*Account  { return c.sorted(c.IsRoot) }
func (c *Chart) Leaves() []*Account { return c.sorted(c.IsLeaf) }

// HasActiveChildren reports whether any direct child is not closed
func (c *Chart) HasActiveChildren(id uuid.UUID) bool {
	for _, cid := range c.children[id] {
		if !c.accounts[cid].IsClosed() {
			return true
		}
	}
	return false
}

// ValidateAcyclic runs a depth-first search over every account and fails on the first
// back edge found
func (c *Chart) ValidateAcyclic() error {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[uuid.UUID]int, len(c.accounts))

	var visit func(id uuid.UUID) error
	visit = func(id uuid.UUID) error {
		state[id] = inProgress
		for _, cid := range c.children[id] {
			switch state[cid] {
			case inProgress:
				return shared.NewInvariantError(CodeCycleDetected,
					fmt.Sprintf("account %s is its own ancestor", c.codeOf(cid)))
			case unvisited:
				if err := visit(cid); err != nil {
					return err
				}
			}
		}
		state[id] = done
		return nil
	}

	ids := make([]uuid.UUID, 0, len(c.accounts))
	for id := range c.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return c.codeOf(ids[i]) < c.codeOf(ids[j]) })
	for _, id := range ids {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// RollupBalance sums the balance of id and all of its descendants.
// Every account in the subtree must share the root's currency.
func (c *Chart) RollupBalance(id uuid.UUID) (valueobject.Money, error) {
	root, ok := c.accounts[id]
	if !ok {
		return valueobject.Money{}, shared.NewNotFoundError("account", id)
	}
	total := root.Balance()
	for _, did := range c.Descendants(id) {
		var err error
		if total, err = total.Add(c.accounts[did].Balance()); err != nil {
			return valueobject.Money{}, err
		}
	}
	return total, nil
}
