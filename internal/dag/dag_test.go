// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTopologicalSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		want  []string
	}{
		{name: "empty"},
		{name: "single", nodes: []string{"build"}, want: []string{"build"}},
		{
			name:  "chain",
			edges: [][2]string{{"compile", "test"}, {"test", "package"}},
			want:  []string{"compile", "test", "package"},
		},
		{
			name:  "shared dependency",
			edges: [][2]string{{"clean", "a"}, {"clean", "b"}, {"a", "c"}, {"b", "c"}},
			want:  []string{"clean", "a", "b", "c"},
		},
		{
			name:  "independent nodes keep insertion order",
			nodes: []string{"z", "m", "a"},
			want:  []string{"z", "m", "a"},
		},
		{
			name:  "duplicate edges",
			edges: [][2]string{{"a", "b"}, {"a", "b"}},
			want:  []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := New()
			for _, n := range tt.nodes {
				g.AddNode(n)
			}
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			got, err := g.TopologicalSort()
			if err != nil {
				t.Fatalf("TopologicalSort() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("TopologicalSort() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTopologicalSort_Cycle(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddEdge("setup", "a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("TopologicalSort() error = %v, want *CycleError", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "a"}, cycleErr.Cycle); diff != "" {
		t.Errorf("Cycle mismatch (-want +got):\n%s", diff)
	}
	if cycleErr.Error() != "dependency cycle detected: a -> b -> c -> a" {
		t.Errorf("Error() = %s", cycleErr.Error())
	}
}

func TestFindCycle(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddEdge("a", "b")
	if c := g.FindCycle(); c != nil {
		t.Errorf("FindCycle() = %v, want nil", c)
	}

	g.AddEdge("self", "self")
	if diff := cmp.Diff([]string{"self", "self"}, g.FindCycle()); diff != "" {
		t.Errorf("FindCycle() mismatch (-want +got):\n%s", diff)
	}
}

func TestNodes(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddEdge("b", "a")
	g.AddNode("b")
	g.AddNode("c")

	if diff := cmp.Diff([]string{"b", "a", "c"}, g.Nodes()); diff != "" {
		t.Errorf("Nodes() mismatch (-want +got):\n%s", diff)
	}
	if !g.Has("c") || g.Has("d") {
		t.Error("Has() reports wrong membership")
	}
}
