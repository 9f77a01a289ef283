package build

import (
	"testing"
	"time"

	"github.com/the-maldridge/pbuild/pkg/types"
)

func TestWorklistOrder(t *testing.T) {
	w := newWorklist("a", "b")
	w.PushBack("c")
	w.PushFront("x", "y")

	want := []string{"x", "y", "a", "b", "c"}
	for _, expect := range want {
		got, ok := w.Pop()
		if !ok || got != expect {
			t.Fatalf("pop = %q (%v), want %q", got, ok, expect)
		}
	}
	if _, ok := w.Pop(); ok {
		t.Error("drained worklist must report empty")
	}
	if w.Len() != 0 {
		t.Errorf("length wrong: %d", w.Len())
	}
}

func TestQueueDedup(t *testing.T) {
	q := newQueue()
	item := &QueueItem{Name: "musl", Definition: mkdef("musl", "1.0")}
	if !q.Push(item) {
		t.Error("first push must succeed")
	}
	if q.Push(&QueueItem{Name: "musl", Definition: mkdef("musl", "2.0")}) {
		t.Error("duplicate names must not be queued twice")
	}
	if q.Len() != 1 || !q.Contains("musl") {
		t.Errorf("queue state wrong: %v", q.Items())
	}
}

func TestQueueFinalize(t *testing.T) {
	// Push order is root first, exactly as the walker produces it.
	q := newQueue()
	q.Push(&QueueItem{Name: "app-a", Depends: []string{"lib-b>=1.0"}, Definition: mkdef("app-a", "1.0")})
	q.Push(&QueueItem{Name: "lib-b", Depends: []string{"lib-c"}, Definition: mkdef("lib-b", "1.0")})
	q.Push(&QueueItem{Name: "lib-c", Definition: mkdef("lib-c", "1.0")})
	q.Finalize()

	want := []string{"lib-c", "lib-b", "app-a"}
	for i, item := range q.Items() {
		if item.Name != want[i] {
			t.Fatalf("order wrong at %d: got %v", i, q.Items())
		}
	}
}

func TestQueueFinalizeSharedDependency(t *testing.T) {
	// Two roots walked one after the other, sharing a dependency that
	// got queued during the first root's subtree.
	q := newQueue()
	q.Push(&QueueItem{Name: "app-b", Depends: []string{"lib-c"}, Definition: mkdef("app-b", "1.0")})
	q.Push(&QueueItem{Name: "lib-c", Definition: mkdef("lib-c", "1.0")})
	q.Push(&QueueItem{Name: "app-a", Depends: []string{"lib-c"}, Definition: mkdef("app-a", "1.0")})
	q.Finalize()

	pos := make(map[string]int)
	for i, item := range q.Items() {
		pos[item.Name] = i
	}
	if pos["lib-c"] > pos["app-a"] || pos["lib-c"] > pos["app-b"] {
		t.Errorf("shared dependency must come first: %v", q.Items())
	}
}

func TestQueueFinalizeSubpackageEdge(t *testing.T) {
	// Depending on a subpackage must order the parent build first.
	parent := mkdef("ncurses", "1.0")
	parent.Subpackages = map[string]*types.Subpackage{
		"ncurses-dev": {Name: "ncurses-dev"},
	}
	q := newQueue()
	q.Push(&QueueItem{Name: "app-a", Depends: []string{"ncurses-dev"}, Definition: mkdef("app-a", "1.0")})
	q.Push(&QueueItem{Name: "ncurses", Definition: parent})
	q.Finalize()

	if q.Items()[0].Name != "ncurses" {
		t.Errorf("parent of a depended-on subpackage must come first: %v", q.Items())
	}
}

func TestQueueFinalizeProvidesEdge(t *testing.T) {
	// Depending on a provided virtual name must order the provider
	// first.
	provider := mkdef("dash", "1.0")
	provider.Provides = []string{"/bin/sh", "sh=1.0"}
	q := newQueue()
	q.Push(&QueueItem{Name: "app-a", Depends: []string{"sh"}, Definition: mkdef("app-a", "1.0")})
	q.Push(&QueueItem{Name: "dash", Definition: provider})
	q.Finalize()

	if q.Items()[0].Name != "dash" {
		t.Errorf("provider of a depended-on name must come first: %v", q.Items())
	}
}

func TestQueueFinalizeCycle(t *testing.T) {
	q := newQueue()
	q.Push(&QueueItem{Name: "cycle-a", Depends: []string{"cycle-b"}, Definition: mkdef("cycle-a", "1.0")})
	q.Push(&QueueItem{Name: "cycle-b", Depends: []string{"cycle-a"}, Definition: mkdef("cycle-b", "1.0")})
	q.Finalize()

	if q.Len() != 2 {
		t.Fatalf("cycle must not drop items: %v", q.Items())
	}
}

func TestComputedPkgver(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	if got := computedPkgver("1.0.1", true, now); got != "1.0.1" {
		t.Errorf("pinned source keeps its version: %s", got)
	}
	if got := computedPkgver("1.0.1", false, now); got != "1.0.1_p20250314150926" {
		t.Errorf("override version wrong: %s", got)
	}
	if got := computedPkgver("1.0.1_git20240101", false, now); got != "1.0.1_p20250314150926" {
		t.Errorf("existing suffix must be replaced: %s", got)
	}
}

func TestOutputPath(t *testing.T) {
	if got := outputPath("aarch64", "hello", "1.0", "2"); got != "aarch64/hello-1.0-r2.apk" {
		t.Errorf("output path wrong: %s", got)
	}
}

func TestSessionCache(t *testing.T) {
	s := NewSessionCache()
	if s.IsDecidedOrMark("x86_64", "musl") {
		t.Error("first mark must report undecided")
	}
	if !s.IsDecidedOrMark("x86_64", "musl") {
		t.Error("second mark must report decided")
	}
	if s.IsDecidedOrMark("aarch64", "musl") {
		t.Error("decisions are per arch")
	}

	if got := s.Decided("x86_64"); len(got) != 1 || got[0] != "musl" {
		t.Errorf("decided list wrong: %v", got)
	}

	s.Reset()
	if s.IsDecidedOrMark("x86_64", "musl") {
		t.Error("reset must clear decisions")
	}
}
