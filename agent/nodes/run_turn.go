package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
)

func RunTurn(ctx context.Context, in *GraphState, engine TurnRunner) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Skipped {
		return in, nil
	}

	result, err := engine.ProcessTurn(ctx, in.Input)
	if err != nil {
		return nil, err
	}
	in.Result = result
	return in, nil
}
