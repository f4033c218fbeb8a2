package gateway

import (
	"sync"

	"github.com/replypipe/replypipe/core"
)

// AgentUsage is the accumulated spend attributed to one calling agent.
type AgentUsage struct {
	Calls     int64      `json:"calls"`
	Tokens    int64      `json:"tokens"`
	CostCents core.Money `json:"cost_cents"`
}

// CostLedger accumulates token counts and estimated monetary cost per calling
// agent. It is owned by the Gateway, mutated under its own lock, and exposed
// read-only through Status(). There is deliberately no package-level instance:
// cost state is never ambient.
type CostLedger struct {
	mu     sync.Mutex
	agents map[string]AgentUsage
	total  AgentUsage
}

// NewCostLedger creates an empty ledger.
func NewCostLedger() *CostLedger {
	return &CostLedger{agents: map[string]AgentUsage{}}
}

// Add records one successful call's usage attributed to agent.
func (l *CostLedger) Add(agent string, tokens int, cost core.Money) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.agents[agent]
	u.Calls++
	u.Tokens += int64(tokens)
	u.CostCents += cost
	l.agents[agent] = u

	l.total.Calls++
	l.total.Tokens += int64(tokens)
	l.total.CostCents += cost
}

// Total returns the aggregate usage across all agents.
func (l *CostLedger) Total() AgentUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Agent returns the usage attributed to one agent.
func (l *CostLedger) Agent(agent string) AgentUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agents[agent]
}

// Snapshot returns a copy of all per-agent usage for Status().
func (l *CostLedger) Snapshot() map[string]AgentUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]AgentUsage, len(l.agents))
	for k, v := range l.agents {
		out[k] = v
	}
	return out
}
