package dependency

import (
	"container/heap"
	"fmt"
	"strings"
)

// CircularDependencyError is returned when the graph has at least one
// cycle. AccountIDs lists every node Kahn's algorithm could not place, in
// account order: the nodes on cycles and everything downstream of them.
type CircularDependencyError struct {
	AccountIDs []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency among %d account(s): %s",
		len(e.AccountIDs), strings.Join(e.AccountIDs, ", "))
}

// Sort orders the graph topologically with Kahn's algorithm. Among nodes
// that are ready at the same time, the one inserted first wins.
func (g *Graph) Sort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for _, id := range g.nodes {
		for _, e := range g.edges[id] {
			inDegree[e.To]++
		}
	}

	ready := &readyQueue{index: g.index}
	for _, id := range g.nodes {
		if inDegree[id] == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)

		for _, e := range g.edges[id] {
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				heap.Push(ready, e.To)
			}
		}
	}

	if len(order) < len(g.nodes) {
		placed := make(map[string]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		var remaining []string
		for _, id := range g.nodes {
			if !placed[id] {
				remaining = append(remaining, id)
			}
		}
		return nil, &CircularDependencyError{AccountIDs: remaining}
	}

	return order, nil
}

// readyQueue is a min-heap of node ids keyed by insertion index.
type readyQueue struct {
	ids   []string
	index map[string]int
}

func (q *readyQueue) Len() int { return len(q.ids) }

func (q *readyQueue) Less(i, j int) bool {
	return q.index[q.ids[i]] < q.index[q.ids[j]]
}

func (q *readyQueue) Swap(i, j int) { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }

func (q *readyQueue) Push(x interface{}) { q.ids = append(q.ids, x.(string)) }

func (q *readyQueue) Pop() interface{} {
	n := len(q.ids)
	id := q.ids[n-1]
	q.ids = q.ids[:n-1]
	return id
}
