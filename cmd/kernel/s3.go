package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goa-design/kernel/domain"
	"github.com/goa-design/kernel/idempotency"
	"github.com/goa-design/kernel/toolregistry"
	"github.com/goa-design/kernel/toolwrapper"
)

var s3Cmd = &cobra.Command{
	Use:   "s3",
	Short: "Idempotent retry of a side-effecting tool",
	RunE:  runS3,
}

func init() {
	rootCmd.AddCommand(s3Cmd)
}

func runS3(cmd *cobra.Command, args []string) error {
	h := newHarness()
	ctx := context.Background()

	if err := h.registry.Register(toolregistry.ToolSpec{
		ID:             "post-payment",
		Name:           "post-payment",
		RiskTier:       domain.RiskMedium,
		HasSideEffects: true,
		Idempotency:    domain.IdempotencyCacheReplay,
	}); err != nil {
		return err
	}
	spec, err := h.registry.Get(ctx, "post-payment")
	if err != nil {
		return err
	}

	invocations := 0
	invoke := func(ctx context.Context, params []byte) ([]byte, error) {
		invocations++
		return mustJSON(map[string]string{"id": "p1"}), nil
	}

	callCtx := domain.CallContext{WorkflowID: "wf-3", TaskID: "task-3", StepID: "step-3", ToolName: "post-payment"}
	params := mustJSON(map[string]any{"amount": 100, "ref": "x"})

	first := h.wrapper.Call(ctx, toolwrapper.Request{
		Spec: spec, Params: params, CallCtx: callCtx, Invoke: invoke, Outbox: h.outbox, Collector: h.collector,
	})
	second := h.wrapper.Call(ctx, toolwrapper.Request{
		Spec: spec, Params: params, CallCtx: callCtx, Invoke: invoke, Outbox: h.outbox, Collector: h.collector,
	})

	fmt.Printf("invocations=%d\n", invocations)
	firstOut, _ := json.Marshal(first)
	secondOut, _ := json.Marshal(second)
	fmt.Printf("first call:  %s\n", firstOut)
	fmt.Printf("second call: %s\n", secondOut)

	key := idempotency.DeriveKey(callCtx.TaskID, callCtx.StepID, spec.ID, params)
	entry, err := h.outbox.Peek(ctx, key)
	if err != nil {
		return err
	}
	fmt.Printf("outbox entry state=%s attempts=%d\n", entry.State, entry.Attempts)
	return nil
}
