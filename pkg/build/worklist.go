package build

// A worklist is a double ended queue of raw dependency strings.
// PushBack appends work in discovery order; PushFront splices a
// package's own dependencies ahead of the remaining work so they get
// decided before unrelated siblings.  Pop always takes the front.
type worklist struct {
	items []string
}

func newWorklist(initial ...string) *worklist {
	w := worklist{items: make([]string, 0, len(initial))}
	w.items = append(w.items, initial...)
	return &w
}

// PushBack appends deps to the end of the worklist, preserving their
// order.
func (w *worklist) PushBack(deps ...string) {
	w.items = append(w.items, deps...)
}

// PushFront prepends deps to the worklist, preserving their order:
// after the call, deps[0] is the next item Pop returns.
func (w *worklist) PushFront(deps ...string) {
	if len(deps) == 0 {
		return
	}
	next := make([]string, 0, len(deps)+len(w.items))
	next = append(next, deps...)
	next = append(next, w.items...)
	w.items = next
}

// Pop removes and returns the front item.
func (w *worklist) Pop() (string, bool) {
	if len(w.items) == 0 {
		return "", false
	}
	item := w.items[0]
	w.items = w.items[1:]
	return item, true
}

func (w *worklist) Len() int {
	return len(w.items)
}
