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

var s1Cmd = &cobra.Command{
	Use:   "s1",
	Short: "Low-risk read succeeds end-to-end",
	RunE:  runS1,
}

func init() {
	rootCmd.AddCommand(s1Cmd)
}

func runS1(cmd *cobra.Command, args []string) error {
	h := newHarness()
	ctx := context.Background()

	if err := h.registry.Register(toolregistry.ToolSpec{
		ID:             "fetch-report",
		Name:           "fetch-report",
		RiskTier:       domain.RiskLow,
		HasSideEffects: false,
	}); err != nil {
		return err
	}
	spec, err := h.registry.Get(ctx, "fetch-report")
	if err != nil {
		return err
	}

	principal := alicePrincipal(readPermission())
	action := &domain.Action{
		ID:                  "read-report",
		Name:                "read-report",
		RiskTier:            domain.RiskLow,
		RequiredPermissions: []domain.Permission{readPermission()},
	}

	exec := executor.New(h.policy, h.wrapper,
		executor.WithCRVPre(basicCRVGate(alwaysValid("schema-shape"))),
		executor.WithCRVPost(basicCRVGate(alwaysValid("result-shape"))),
		executor.WithEffort(demoEffort()),
		executor.WithCollector(h.collector),
	)

	result := exec.Execute(ctx, executor.Request{
		CallCtx: domain.CallContext{
			WorkflowID: "wf-1", TaskID: "task-1", StepID: "step-1",
			CorrelationID: "corr-1", ToolName: "fetch-report",
		},
		Principal: principal,
		Action:    action,
		Spec:      spec,
		Params:    mustJSON(map[string]string{"report_id": "r42"}),
		Invoke: func(ctx context.Context, params []byte) ([]byte, error) {
			return mustJSON(map[string]string{"title": "Q3"}), nil
		},
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}
