package headcache

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		result  Result
		err     error
		outcome Outcome
	}{
		{"failure", Result{}, errors.New("boom"), OutcomeFailure},
		{"invalid", Invalid(), nil, OutcomeInvalid},
		{"not replicated", ValidResult(Empty()), nil, OutcomeNotReplicated},
		{"replicated", ValidResult(NonEmpty(5, 0, false)), nil, OutcomeReplicated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.result, tc.err); got != tc.outcome {
				t.Fatalf("classify() = %v, want %v", got, tc.outcome)
			}
		})
	}
}

func TestWithMetricsRecordsOneObservationPerGet(t *testing.T) {
	metrics := &fakeMetrics{}
	q := WithMetrics(&fakeQuerier{result: ValidResult(NonEmpty(1, 0, false))}, metrics)

	for i := 0; i < 3; i++ {
		if _, err := q.Get(context.Background(), Key{Topic: "orders", ID: "a"}, 0, 0); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	outcomes := metrics.getOutcomes()
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o != OutcomeReplicated {
			t.Fatalf("expected Replicated, got %v", o)
		}
	}
}

func TestWithMetricsClassifiesFailure(t *testing.T) {
	metrics := &fakeMetrics{}
	q := WithMetrics(&fakeQuerier{err: errors.New("boom")}, metrics)
	if _, err := q.Get(context.Background(), Key{Topic: "orders", ID: "a"}, 0, 0); err == nil {
		t.Fatalf("expected error to propagate through the decorator")
	}
	outcomes := metrics.getOutcomes()
	if len(outcomes) != 1 || outcomes[0] != OutcomeFailure {
		t.Fatalf("expected [Failure], got %v", outcomes)
	}
}

func TestWithDebugLoggingPropagatesResultAndError(t *testing.T) {
	inner := &fakeQuerier{result: ValidResult(NonEmpty(3, 0, false))}
	q := WithDebugLogging(inner, silentLogger())
	result, err := q.Get(context.Background(), Key{Topic: "orders", ID: "a"}, 0, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if result.IsInvalid() || result.Info().SeqNr() != 3 {
		t.Fatalf("expected the inner querier's result to pass through unchanged, got %v", result)
	}

	inner.err = errors.New("boom")
	if _, err := q.Get(context.Background(), Key{Topic: "orders", ID: "a"}, 0, 0); err == nil {
		t.Fatalf("expected the inner querier's error to propagate")
	}
}

func TestDecoratorsComposeInEitherOrder(t *testing.T) {
	metrics := &fakeMetrics{}
	inner := &fakeQuerier{result: ValidResult(Empty())}

	a := WithDebugLogging(WithMetrics(inner, metrics), silentLogger())
	b := WithMetrics(WithDebugLogging(inner, silentLogger()), metrics)

	for _, q := range []Querier{a, b} {
		if _, err := q.Get(context.Background(), Key{Topic: "orders", ID: "a"}, 0, 0); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if len(metrics.getOutcomes()) != 2 {
		t.Fatalf("expected both composition orders to reach the metrics decorator")
	}
}
