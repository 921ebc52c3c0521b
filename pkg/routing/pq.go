package routing

import "github.com/azybler/mapmatch/pkg/network"

// pqItem is a priority queue entry for A*'s open set.
type pqItem struct {
	key      network.VertexKey
	priority float64
}

// vertexPQ is a concrete min-heap keyed by float64 priority. Stale entries
// (a vertex pushed more than once with a worse priority) are left in place
// and skipped lazily on pop, rather than decreased in place.
type vertexPQ struct {
	items []pqItem
}

func newPQ() *vertexPQ {
	return &vertexPQ{items: make([]pqItem, 0, 64)}
}

func (h *vertexPQ) len() int { return len(h.items) }

func (h *vertexPQ) push(key network.VertexKey, priority float64) {
	h.items = append(h.items, pqItem{key, priority})
	h.siftUp(len(h.items) - 1)
}

func (h *vertexPQ) pop() (network.VertexKey, float64) {
	n := len(h.items)
	top := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return top.key, top.priority
}

func (h *vertexPQ) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].priority >= h.items[parent].priority {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *vertexPQ) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left, right := 2*i+1, 2*i+2
		if left < n && h.items[left].priority < h.items[smallest].priority {
			smallest = left
		}
		if right < n && h.items[right].priority < h.items[smallest].priority {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
