package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/executor"
	"github.com/goa-design/kernel/toolregistry"
)

var s4Cmd = &cobra.Command{
	Use:   "s4",
	Short: "CRV blocks on a negative-amount output",
	RunE:  runS4,
}

func init() {
	rootCmd.AddCommand(s4Cmd)
}

func runS4(cmd *cobra.Command, args []string) error {
	h := newHarness()
	ctx := context.Background()

	if err := h.registry.Register(toolregistry.ToolSpec{
		ID:       "refund",
		Name:     "refund",
		RiskTier: domain.RiskLow,
	}); err != nil {
		return err
	}
	spec, err := h.registry.Get(ctx, "refund")
	if err != nil {
		return err
	}

	principal := alicePrincipal(readPermission())
	action := &domain.Action{ID: "issue-refund", Name: "issue-refund", RiskTier: domain.RiskLow}

	exec := executor.New(h.policy, h.wrapper,
		executor.WithCRVPre(basicCRVGate(alwaysValid("schema-shape"))),
		executor.WithCRVPost(basicCRVGate(nonNegativeAmountValidator("non-negative-amount"))),
		executor.WithCollector(h.collector),
	)

	result := exec.Execute(ctx, executor.Request{
		CallCtx: domain.CallContext{WorkflowID: "wf-4", TaskID: "task-4", StepID: "step-4", ToolName: "refund"},
		Principal: principal,
		Action:    action,
		Spec:      spec,
		Params:    mustJSON(map[string]any{}),
		Invoke: func(ctx context.Context, params []byte) ([]byte, error) {
			return mustJSON(map[string]any{"amount": -5}), nil
		},
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if result.Success {
		return fmt.Errorf("expected post-CRV to block this commit")
	}
	return nil
}
