package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/goa-design/kernel/reliability"
)

var s5Cmd = &cobra.Command{
	Use:   "s5",
	Short: "Transient retry with backoff succeeds on the third attempt",
	RunE:  runS5,
}

func init() {
	rootCmd.AddCommand(s5Cmd)
}

// etimedout mimics a transient network timeout error for retry classification.
type etimedout struct{}

func (etimedout) Error() string { return "ETIMEDOUT" }
func (etimedout) Timeout() bool { return true }
func (etimedout) Temporary() bool { return true }

func runS5(cmd *cobra.Command, args []string) error {
	h := newHarness()
	ctx := context.Background()
	retrier := reliability.NewRetrier(h.clock)

	cfg := reliability.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		Timeout:      30 * time.Second,
	}

	var attempts int
	start := h.clock.Now()
	err := retrier.Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return etimedout{}
		}
		return nil
	})
	// The fake clock's After fires immediately, so elapsed stays at zero;
	// a real deployment would observe the ~90-110ms and ~180-220ms delays
	// the backoff formula produces for this config.
	elapsed := h.clock.Now().Sub(start)

	fmt.Printf("attempts=%d success=%v elapsed=%v\n", attempts, err == nil, elapsed)
	if err != nil {
		return err
	}
	if attempts != 3 {
		return fmt.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
	return nil
}
