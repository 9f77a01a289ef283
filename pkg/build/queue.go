package build

import (
	"github.com/the-maldridge/pbuild/pkg/types"
)

// A QueueItem is one unit of work for the executor.  Items are
// created when a package is determined necessary, consumed exactly
// once, and never mutated afterwards except for the install-only sync
// tool appended under a source override.
type QueueItem struct {
	Name       string
	Arch       string
	Aports     string
	Definition *types.PackageDefinition
	Pkgver     string
	OutputPath string
	Channel    string
	Depends    []string
	Cross      types.CrossMode
	Chroot     types.Chroot

	// Satisfies lists the originally requested names this item
	// covers, so the orchestrator can report back exactly what got
	// rebuilt.
	Satisfies []string
}

// A Queue is the ordered collection of build items.  It is built by
// pushing each package before its dependencies and finalized with a
// single reversal so dependencies execute first.
type Queue struct {
	items []*QueueItem
}

func newQueue() *Queue {
	return &Queue{}
}

// Contains checks whether a package of that name is already queued.
func (q *Queue) Contains(name string) bool {
	for _, item := range q.items {
		if item.Name == name {
			return true
		}
	}
	return false
}

// Push appends an item unless one with the same name is already
// present, and reports whether the item was added.
func (q *Queue) Push(item *QueueItem) bool {
	if q.Contains(item.Name) {
		return false
	}
	q.items = append(q.items, item)
	return true
}

// Finalize orders the queue for execution.  The single reversal puts
// dependencies ahead of their dependents within each walked subtree;
// the stable topological pass afterwards repairs the orderings a
// dependency shared between two requested roots can otherwise break.
func (q *Queue) Finalize() {
	q.reverse()
	q.sortDependenciesFirst()
}

func (q *Queue) reverse() {
	for i, j := 0, len(q.items)-1; i < j; i, j = i+1, j-1 {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	}
}

// sortDependenciesFirst is a stable topological sort over the queued
// items: an item never executes before another queued item it depends
// on.  Ties keep their current order, and a dependency cycle falls
// back to that order as well.
func (q *Queue) sortDependenciesFirst() {
	provides := make(map[string]int, len(q.items))
	for i, item := range q.items {
		for _, name := range item.Definition.SelfNames() {
			provides[name] = i
		}
	}

	deps := make([][]int, len(q.items))
	for i, item := range q.items {
		for _, d := range item.Depends {
			if j, ok := provides[types.RemoveOperators(d)]; ok && j != i {
				deps[i] = append(deps[i], j)
			}
		}
	}

	placed := make([]bool, len(q.items))
	out := make([]*QueueItem, 0, len(q.items))
	for len(out) < len(q.items) {
		next := -1
		for i := range q.items {
			if placed[i] {
				continue
			}
			ready := true
			for _, j := range deps[i] {
				if !placed[j] {
					ready = false
					break
				}
			}
			if ready {
				next = i
				break
			}
		}
		if next == -1 {
			for i := range q.items {
				if !placed[i] {
					next = i
					break
				}
			}
		}
		placed[next] = true
		out = append(out, q.items[next])
	}
	q.items = out
}

// Items returns the queue contents in their current order.
func (q *Queue) Items() []*QueueItem {
	return q.items
}

func (q *Queue) Len() int {
	return len(q.items)
}
