package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	nodex "github.com/kalpit-S/ai-support-agent/agent/nodes"
)

func (h *Handler) compileBatchGraph(
	ctx context.Context,
) (compose.Runnable[contractx.PendingBatch, nodex.GraphOutput], error) {
	graph := compose.NewGraph[contractx.PendingBatch, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("load_context",
		compose.InvokableLambda(func(ctx context.Context, in contractx.PendingBatch) (*nodex.GraphState, error) {
			return nodex.LoadContext(ctx, in, h.store, h.now())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_context: %w", err)
	}

	if err := graph.AddLambdaNode("run_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunTurn(ctx, in, h.engine)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_turn: %w", err)
	}

	if err := graph.AddLambdaNode("save_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SaveTurn(ctx, in, h.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_turn: %w", err)
	}

	if err := graph.AddLambdaNode("notify_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.NotifyReply(ctx, in, h.notifier)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node notify_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "load_context"},
		{"load_context", "run_turn"},
		{"run_turn", "save_turn"},
		{"save_turn", "notify_reply"},
		{"notify_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_batch"))
	if err != nil {
		return nil, fmt.Errorf("compile batch graph: %w", err)
	}
	return runner, nil
}
