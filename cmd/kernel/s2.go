package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goa-design/kernel/domain"
)

var s2Cmd = &cobra.Command{
	Use:   "s2",
	Short: "High-risk write gated for approval, then approved",
	RunE:  runS2,
}

func init() {
	rootCmd.AddCommand(s2Cmd)
}

func runS2(cmd *cobra.Command, args []string) error {
	h := newHarness()
	ctx := context.Background()

	principal := alicePrincipal(writePermission())
	action := &domain.Action{
		ID:                  "delete-record",
		Name:                "delete-record",
		RiskTier:            domain.RiskHigh,
		RequiredPermissions: []domain.Permission{writePermission()},
	}

	first := h.policy.Evaluate(ctx, principal, action, "")
	fmt.Printf("first evaluate: allowed=%v requires_human_approval=%v token=%q\n",
		first.Allowed, first.RequiresHumanApproval, first.ApprovalToken)
	if first.Allowed || !first.RequiresHumanApproval || first.ApprovalToken == "" {
		return fmt.Errorf("expected pending-human decision with a token")
	}

	approved := h.policy.Approve(ctx, action.ID, first.ApprovalToken)
	fmt.Printf("approve(%q, token): %v\n", action.ID, approved)

	replay := h.policy.Approve(ctx, action.ID, first.ApprovalToken)
	fmt.Printf("second approve with same token: %v\n", replay)

	entries, err := h.audit.Read(ctx, 1)
	if err != nil {
		return err
	}
	fmt.Printf("audit entries: %d\n", len(entries))
	return nil
}
