package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/reflexion"
)

var s6Cmd = &cobra.Command{
	Use:   "s6",
	Short: "Reflexion proposes and promotes an alternate-tool fix",
	RunE:  runS6,
}

func init() {
	rootCmd.AddCommand(s6Cmd)
}

func runS6(cmd *cobra.Command, args []string) error {
	h := newHarness()
	ctx := context.Background()

	crvGate := basicCRVGate(alwaysValid("fix-shape"))
	engine := reflexion.New(h.policy, crvGate, h.audit, reflexion.WithClock(h.clock))

	principal := alicePrincipal(readPermission())
	action := &domain.Action{
		ID:           "run-step",
		Name:         "run-step",
		RiskTier:     domain.RiskLow,
		AllowedTools: []string{"A", "B"},
	}

	ev := reflexion.FailureEvent{
		TaskID:        "task-6",
		Message:       "tool A returned a non-2xx response",
		IsToolFailure: true,
		FailedTool:    "A",
		AllowedTools:  []string{"A", "B"},
	}

	scenarios := []reflexion.ChaosScenario{
		reflexion.BoundaryConditionsScenario(),
	}

	fix, result, state := engine.HandleFailure(ctx, ev, principal, action, 0.7, scenarios)

	fmt.Printf("taxonomy=%s fix_kind=%s alternate_tool=%s\n", reflexion.Classify(ev), fix.Kind, fix.AlternateTool)
	fmt.Printf("sandbox: policy_approved=%v crv_passed=%v promoted=%v final_state=%s\n",
		result.PolicyApproved, result.CRVPassed, result.Promoted, state)

	if fix.Kind != reflexion.FixAlternateTool || fix.AlternateTool != "B" {
		return fmt.Errorf("expected alternate tool fix targeting B, got %+v", fix)
	}
	if !result.Promoted {
		return fmt.Errorf("expected the fix to be promoted")
	}

	// apply_fix: update the action's effective tool selection to the
	// promoted alternate.
	action.AllowedTools = []string{fix.AlternateTool}
	fmt.Printf("action %q effective tools now: %v\n", action.ID, action.AllowedTools)
	return nil
}
