package common

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScissorsErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jumpgate_scissor_errors_caught",
			Help: "Total number of unhandled errors caught",
		})
)

// Runnable is a long-running component that stops once ctx is canceled.
type Runnable func(ctx context.Context) error

// RunWithScissors starts runnable in a goroutine. A panic is recovered and delivered to errC
// like any other error, prefixed with name.
func RunWithScissors(ctx context.Context, errC chan error, name string, runnable Runnable) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errC <- fmt.Errorf("%s: %w", name, recovered(r))
				ScissorsErrors.Inc()
			}
		}()
		if err := runnable(ctx); err != nil {
			errC <- fmt.Errorf("%s: %w", name, err)
		}
	}()
}

// WrapWithScissors turns a panic in runnable into its returned error.
func WrapWithScissors(runnable Runnable) Runnable {
	return func(ctx context.Context) (result error) {
		defer func() {
			if r := recover(); r != nil {
				result = recovered(r)
				ScissorsErrors.Inc()
			}
		}()
		return runnable(ctx)
	}
}

func recovered(r interface{}) error {
	switch x := r.(type) {
	case error:
		return x
	default:
		return fmt.Errorf("%v", x)
	}
}
