package step

import (
	"sort"
)

// Graph is the dependency graph of a catalog. It remembers declaration
// order, which breaks ties in the topological order.
type Graph struct {
	steps      map[ID]Step
	index      map[ID]int
	order      []ID
	dependedBy map[ID][]ID
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		steps:      make(map[ID]Step),
		index:      make(map[ID]int),
		dependedBy: make(map[ID][]ID),
	}
}

// BuildGraph adds steps in order and validates the result.
func BuildGraph(steps []Step) (*Graph, error) {
	g := NewGraph()
	for _, s := range steps {
		if err := g.Add(s); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Len returns the number of steps in the graph.
func (g *Graph) Len() int {
	return len(g.steps)
}

// Add validates s and appends it to the graph.
func (g *Graph) Add(s Step) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, exists := g.steps[s.ID]; exists {
		return NewStepDuplicateError(s.ID.String())
	}

	g.steps[s.ID] = s
	g.index[s.ID] = len(g.order)
	g.order = append(g.order, s.ID)
	for _, dep := range s.DependsOn {
		g.dependedBy[dep] = append(g.dependedBy[dep], s.ID)
	}
	return nil
}

// Get retrieves a step by ID.
func (g *Graph) Get(id ID) (Step, bool) {
	s, ok := g.steps[id]
	return s, ok
}

// Steps returns the steps in declaration order.
func (g *Graph) Steps() []Step {
	out := make([]Step, len(g.order))
	for i, id := range g.order {
		out[i] = g.steps[id]
	}
	return out
}

// Index returns the declaration position of id, or -1.
func (g *Graph) Index(id ID) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// Dependents returns the steps that depend directly on id, in declaration
// order.
func (g *Graph) Dependents(id ID) []ID {
	deps := append([]ID(nil), g.dependedBy[id]...)
	sort.Slice(deps, func(i, j int) bool { return g.index[deps[i]] < g.index[deps[j]] })
	return deps
}

// Validate checks that every dependency exists and the graph is acyclic.
func (g *Graph) Validate() error {
	for _, id := range g.order {
		for _, dep := range g.steps[id].DependsOn {
			if _, exists := g.steps[dep]; !exists {
				return NewDependencyMissingError(id.String(), dep.String())
			}
		}
	}
	_, err := g.Order()
	return err
}

// Order returns the steps in dependency order. Among steps whose
// dependencies are all placed, the earliest declared comes first.
func (g *Graph) Order() ([]Step, error) {
	inDegree := make(map[ID]int, len(g.steps))
	for _, id := range g.order {
		for _, dep := range g.steps[id].DependsOn {
			if _, exists := g.steps[dep]; exists {
				inDegree[id]++
			}
		}
	}

	ready := &idQueue{index: g.index}
	for _, id := range g.order {
		if inDegree[id] == 0 {
			ready.push(id)
		}
	}

	sorted := make([]Step, 0, len(g.steps))
	for ready.len() > 0 {
		id := ready.pop()
		sorted = append(sorted, g.steps[id])
		for _, dependent := range g.dependedBy[id] {
			if _, exists := g.steps[dependent]; !exists {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready.push(dependent)
			}
		}
	}

	if len(sorted) != len(g.steps) {
		return nil, NewCyclicDependencyError(g.findCycle(inDegree))
	}
	return sorted, nil
}

// findCycle walks dependencies among the unplaced steps until one repeats.
func (g *Graph) findCycle(inDegree map[ID]int) []string {
	var start ID
	for _, id := range g.order {
		if inDegree[id] > 0 {
			start = id
			break
		}
	}

	pos := make(map[ID]int)
	var path []ID
	for cur := start; ; {
		if at, seen := pos[cur]; seen {
			cycle := make([]string, 0, len(path)-at+1)
			for _, id := range path[at:] {
				cycle = append(cycle, id.String())
			}
			return append(cycle, cur.String())
		}
		pos[cur] = len(path)
		path = append(path, cur)

		next := ID{}
		for _, dep := range g.steps[cur].DependsOn {
			if inDegree[dep] > 0 {
				next = dep
				break
			}
		}
		if next.IsZero() {
			return []string{start.String()}
		}
		cur = next
	}
}

// WithDependencies returns the given steps plus everything they depend on
// transitively. Unknown IDs are returned as missing.
func (g *Graph) WithDependencies(ids []ID) (set map[ID]bool, missing []ID) {
	set = make(map[ID]bool)
	var visit func(ID)
	visit = func(id ID) {
		if set[id] {
			return
		}
		set[id] = true
		for _, dep := range g.steps[id].DependsOn {
			visit(dep)
		}
	}
	for _, id := range ids {
		if _, ok := g.steps[id]; !ok {
			missing = append(missing, id)
			continue
		}
		visit(id)
	}
	return set, missing
}

// idQueue pops the earliest declared ID.
type idQueue struct {
	index map[ID]int
	items []ID
}

func (q *idQueue) len() int { return len(q.items) }

func (q *idQueue) push(id ID) {
	i := sort.Search(len(q.items), func(i int) bool { return q.index[q.items[i]] > q.index[id] })
	q.items = append(q.items, ID{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = id
}

func (q *idQueue) pop() ID {
	id := q.items[0]
	q.items = q.items[1:]
	return id
}
