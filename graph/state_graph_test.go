package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestState struct {
	Count int      `json:"count"`
	Name  string   `json:"name"`
	Trail []string `json:"trail"`
}

func step(name string) NodeFunc[TestState] {
	return func(ctx context.Context, s TestState) (TestState, error) {
		s.Count++
		s.Trail = append(s.Trail, name)
		return s, nil
	}
}

func TestStateGraph_BasicFunctionality(t *testing.T) {
	g := NewStateGraph[TestState]()
	g.AddNode("increment", "Increment counter", step("increment"))
	g.AddNode("check", "Check count", func(ctx context.Context, s TestState) (TestState, error) {
		if s.Name == "" {
			s.Name = "test"
		}
		return s, nil
	})
	g.SetEntryPoint("increment")
	g.AddEdge("increment", "check")
	g.AddEdge("check", END)

	runnable, err := g.Compile()
	if err != nil {
		t.Fatalf("Failed to compile graph: %v", err)
	}

	final, err := runnable.Invoke(context.Background(), TestState{})
	if err != nil {
		t.Fatalf("Failed to invoke graph: %v", err)
	}
	if final.Count != 1 {
		t.Errorf("Expected count to be 1, got %d", final.Count)
	}
	if final.Name != "test" {
		t.Errorf("Expected name to be 'test', got '%s'", final.Name)
	}
}

func TestStateGraph_ConditionalLoop(t *testing.T) {
	g := NewStateGraph[TestState]()
	g.AddNode("think", "model call", step("think"))
	g.AddNode("act", "tool call", step("act"))
	g.SetEntryPoint("think")
	g.AddConditionalEdge("think", func(ctx context.Context, s TestState) string {
		if s.Count < 5 {
			return "act"
		}
		return END
	}, "act", END)
	g.AddEdge("act", "think")

	runnable, err := g.Compile()
	require.NoError(t, err)

	final, err := runnable.Invoke(context.Background(), TestState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"think", "act", "think", "act", "think"}, final.Trail)
}

func TestStateGraph_CompileValidation(t *testing.T) {
	noop := func(ctx context.Context, s TestState) (TestState, error) { return s, nil }

	t.Run("missing entry point", func(t *testing.T) {
		g := NewStateGraph[TestState]()
		g.AddNode("a", "", noop)
		_, err := g.Compile()
		assert.ErrorIs(t, err, ErrEntryPointNotSet)
	})

	t.Run("unknown entry point", func(t *testing.T) {
		g := NewStateGraph[TestState]()
		g.SetEntryPoint("ghost")
		_, err := g.Compile()
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("edge to unknown node", func(t *testing.T) {
		g := NewStateGraph[TestState]()
		g.AddNode("a", "", noop)
		g.SetEntryPoint("a")
		g.AddEdge("a", "b")
		_, err := g.Compile()
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("conditional target unknown", func(t *testing.T) {
		g := NewStateGraph[TestState]()
		g.AddNode("a", "", noop)
		g.SetEntryPoint("a")
		g.AddConditionalEdge("a", func(context.Context, TestState) string { return END }, "b", END)
		_, err := g.Compile()
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestStateGraph_RuntimeErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no outgoing edge", func(t *testing.T) {
		g := NewStateGraph[TestState]()
		g.AddNode("a", "", step("a"))
		g.SetEntryPoint("a")
		r, err := g.Compile()
		require.NoError(t, err)

		_, err = r.Invoke(ctx, TestState{})
		assert.ErrorIs(t, err, ErrNoOutgoingEdge)
	})

	t.Run("undeclared route", func(t *testing.T) {
		g := NewStateGraph[TestState]()
		g.AddNode("a", "", step("a"))
		g.AddNode("b", "", step("b"))
		g.AddEdge("b", END)
		g.SetEntryPoint("a")
		g.AddConditionalEdge("a", func(context.Context, TestState) string { return "b" }, END)
		r, err := g.Compile()
		require.NoError(t, err)

		_, err = r.Invoke(ctx, TestState{})
		assert.ErrorIs(t, err, ErrUnexpectedRoute)
	})

	t.Run("node error keeps partial state", func(t *testing.T) {
		boom := errors.New("boom")
		g := NewStateGraph[TestState]()
		g.AddNode("a", "", step("a"))
		g.AddNode("b", "", func(context.Context, TestState) (TestState, error) { return TestState{}, boom })
		g.SetEntryPoint("a")
		g.AddEdge("a", "b")
		g.AddEdge("b", END)
		r, err := g.Compile()
		require.NoError(t, err)

		state, err := r.Invoke(ctx, TestState{})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "node b")
		assert.Equal(t, 1, state.Count)
	})

	t.Run("panic becomes error", func(t *testing.T) {
		g := NewStateGraph[TestState]()
		g.AddNode("a", "", func(context.Context, TestState) (TestState, error) { panic("oops") })
		g.AddEdge("a", END)
		g.SetEntryPoint("a")
		r, err := g.Compile()
		require.NoError(t, err)

		_, err = r.Invoke(ctx, TestState{})
		assert.ErrorIs(t, err, ErrNodePanic)
		assert.Contains(t, err.Error(), "oops")
	})

	t.Run("recursion limit", func(t *testing.T) {
		g := NewStateGraph[TestState]()
		g.AddNode("a", "", step("a"))
		g.AddEdge("a", "a")
		g.SetEntryPoint("a")
		r, err := g.Compile(WithRecursionLimit(4))
		require.NoError(t, err)

		state, err := r.Invoke(ctx, TestState{})
		assert.ErrorIs(t, err, ErrRecursionLimit)
		assert.Equal(t, 4, state.Count)

		state, err = r.InvokeWithConfig(ctx, TestState{}, &Config{RecursionLimit: 2})
		assert.ErrorIs(t, err, ErrRecursionLimit)
		assert.Equal(t, 2, state.Count)
	})

	t.Run("cancelled context", func(t *testing.T) {
		g := NewStateGraph[TestState]()
		g.AddNode("a", "", step("a"))
		g.AddEdge("a", END)
		g.SetEntryPoint("a")
		r, err := g.Compile()
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = r.Invoke(cctx, TestState{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStateGraph_Schema(t *testing.T) {
	g := NewStateGraph[TestState]()
	g.SetSchema(NewStructSchema(TestState{Name: "init"}, func(cur, upd TestState) (TestState, error) {
		cur.Count += upd.Count
		cur.Trail = AppendReducer(cur.Trail, upd.Trail)
		if upd.Name != "" {
			cur.Name = upd.Name
		}
		return cur, nil
	}))
	// Nodes return deltas only.
	g.AddNode("a", "", func(context.Context, TestState) (TestState, error) {
		return TestState{Count: 2, Trail: []string{"a"}}, nil
	})
	g.AddNode("b", "", func(context.Context, TestState) (TestState, error) {
		return TestState{Count: 3, Trail: []string{"b"}}, nil
	})
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.AddEdge("b", END)

	r, err := g.Compile()
	require.NoError(t, err)

	final, err := r.Invoke(context.Background(), TestState{Trail: []string{"input"}})
	require.NoError(t, err)
	assert.Equal(t, 5, final.Count)
	assert.Equal(t, "init", final.Name)
	assert.Equal(t, []string{"input", "a", "b"}, final.Trail)
}

func TestStateGraph_Listeners(t *testing.T) {
	g := NewStateGraph[TestState]()
	g.AddNode("a", "", step("a"))
	g.AddNode("b", "", func(context.Context, TestState) (TestState, error) { return TestState{}, errors.New("fail") })
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.AddEdge("b", END)

	var events []string
	g.AddListener(NodeListenerFunc[TestState](func(ctx context.Context, event NodeEvent, node string, _ TestState, err error) {
		events = append(events, node+":"+string(event))
		assert.Equal(t, "thread-x", GetConfig(ctx).ThreadID)
	}))

	r, err := g.Compile()
	require.NoError(t, err)

	_, err = r.InvokeWithConfig(context.Background(), TestState{}, &Config{ThreadID: "thread-x"})
	require.Error(t, err)
	assert.Equal(t, []string{"a:start", "a:complete", "b:start", "b:error"}, events)
}

func TestStateGraph_Nodes(t *testing.T) {
	g := NewStateGraph[TestState]()
	g.AddNode("z", "last letter", step("z"))
	g.AddNode("a", "first letter", step("a"))
	g.AddNode("z", "replaced", step("z"))

	nodes := g.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "z", nodes[0].Name)
	assert.Equal(t, "replaced", nodes[0].Description)
	assert.Equal(t, "a", nodes[1].Name)
}
