package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/executor"
	"github.com/goa-design/kernel/reflexion"
	"github.com/goa-design/kernel/reliability"
	"github.com/goa-design/kernel/toolregistry"
)

var s7Cmd = &cobra.Command{
	Use:   "s7",
	Short: "A failing tool exhausts C6's retry budget and C8 promotes an alternate-tool fix",
	RunE:  runS7,
}

func init() {
	rootCmd.AddCommand(s7Cmd)
}

func runS7(cmd *cobra.Command, args []string) error {
	h := newHarness()
	ctx := context.Background()

	if err := h.registry.Register(toolregistry.ToolSpec{
		ID:       "A",
		Name:     "A",
		RiskTier: domain.RiskLow,
	}); err != nil {
		return err
	}
	spec, err := h.registry.Get(ctx, "A")
	if err != nil {
		return err
	}

	principal := alicePrincipal(readPermission())
	action := &domain.Action{
		ID:           "run-step",
		Name:         "run-step",
		RiskTier:     domain.RiskLow,
		AllowedTools: []string{"A", "B"},
	}

	crvGate := basicCRVGate(alwaysValid("fix-shape"))
	reflexionEngine := reflexion.New(h.policy, crvGate, h.audit, reflexion.WithClock(h.clock))
	retrier := reliability.NewRetrier(h.clock)

	exec := executor.New(h.policy, h.wrapper,
		executor.WithCollector(h.collector),
		executor.WithRetry(retrier, reliability.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: 0,
			Multiplier:   2.0,
			Timeout:      0,
		}),
		executor.WithReflexion(reflexionEngine, 0.7, reflexion.BoundaryConditionsScenario()),
	)

	var attempts int
	result := exec.Execute(ctx, executor.Request{
		CallCtx:   domain.CallContext{WorkflowID: "wf-7", TaskID: "task-7", StepID: "step-7", ToolName: "A"},
		Principal: principal,
		Action:    action,
		Spec:      spec,
		Params:    mustJSON(map[string]any{}),
		Invoke: func(ctx context.Context, params []byte) ([]byte, error) {
			attempts++
			return nil, &reliability.HTTPStatusError{StatusCode: 503, Message: "tool A unavailable"}
		},
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	fmt.Printf("tool_invocations=%d executor_attempts=%d\n", attempts, result.Attempts)

	if result.Success {
		return fmt.Errorf("expected the retry budget to exhaust and the call to fail")
	}
	if result.ReflexionFix == nil || result.ReflexionFix.Kind != reflexion.FixAlternateTool || result.ReflexionFix.AlternateTool != "B" {
		return fmt.Errorf("expected C8 to propose an alternate-tool fix targeting B, got %+v", result.ReflexionFix)
	}
	if result.SandboxResult == nil || !result.SandboxResult.Promoted {
		return fmt.Errorf("expected C8's sandbox to promote the alternate-tool fix")
	}
	return nil
}
