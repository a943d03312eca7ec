package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"atomref/internal/atom"
	"atomref/internal/event"
	"atomref/internal/logging"
	"atomref/internal/metrics"
	"atomref/internal/otel"
	"atomref/internal/ref"
)

const transitionBusName = "ref_transitions"

type scenarioOptions struct {
	Name        string
	Workers     int
	Increments  int64
	Validator   ref.Validator[int64]
	Logger      *logging.Logger
	Metrics     *metrics.Registry
	Instruments *otel.Instruments
}

type scenarioResult struct {
	RunID     string
	Name      string
	Final     int64
	Attempted int64
	Commits   int
	Rejected  int64
	Delivered int
	Counters  metrics.RefSnapshot
	Duration  time.Duration
}

type chainLink struct {
	Old int64
	New int64
}

type chainRecorder struct {
	mu    sync.Mutex
	links []chainLink
}

func (r *chainRecorder) watch(transition ref.Transition[int64]) error {
	r.mu.Lock()
	r.links = append(r.links, chainLink{Old: transition.Old, New: transition.New})
	r.mu.Unlock()
	return nil
}

func (r *chainRecorder) snapshot() []chainLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chainLink(nil), r.links...)
}

func increment(value int64) int64 {
	return value + 1
}

// runScenario starts Workers goroutines that each swap increment into a
// fresh atom Increments times, then checks that the committed transitions
// form one unbroken chain from 0 to the final value.
func runScenario(ctx context.Context, opts scenarioOptions) (scenarioResult, error) {
	result := scenarioResult{
		RunID:     uuid.NewString(),
		Name:      opts.Name,
		Attempted: int64(opts.Workers) * opts.Increments,
	}
	logger := opts.Logger.With(map[string]string{"run": result.RunID})

	ctx, span := otel.StartStressSpan(ctx, opts.Name, opts.Workers)
	defer span.End()
	span.SetAttributes(attribute.String("stress.run_id", result.RunID))
	fail := func(err error, description string) (scenarioResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, description)
		logger.Error("stress run failed", map[string]string{"error": err.Error()})
		return result, err
	}

	bus := event.NewBus[event.TransitionEvent](ctx, event.BusOptions{
		Name:        transitionBusName,
		BlockOnFull: true,
		Registry:    opts.Metrics,
		Logger:      logger,
	})
	defer bus.Close()
	events, unsubscribe := bus.SubscribeTypes(event.TypeRefSwap)
	delivered := make(chan int, 1)
	go func() {
		count := 0
		for range events {
			count++
		}
		delivered <- count
	}()

	recorder := &chainRecorder{}
	cell, err := atom.NewWithOptions[int64](0, atom.Options[int64]{
		Name:      opts.Name,
		Meta:      map[string]any{"run": result.RunID},
		Validator: opts.Validator,
		Watches: map[any]ref.WatchFunc[int64]{
			"chain":      recorder.watch,
			result.RunID: event.Publisher[int64](bus, opts.Name),
		},
		Logger:      logger,
		Metrics:     opts.Metrics,
		Instruments: opts.Instruments,
	})
	if err != nil {
		unsubscribe()
		<-delivered
		return fail(err, "initial value rejected")
	}

	logger.Info("stress run started", map[string]string{
		"workers":    strconv.Itoa(opts.Workers),
		"increments": strconv.FormatInt(opts.Increments, 10),
	})
	otel.RecordSpanEvent(ctx, "workers.started")

	var rejected atomic.Int64
	start := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)
	for worker := 0; worker < opts.Workers; worker++ {
		group.Go(func() error {
			for i := int64(0); i < opts.Increments; i++ {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				if _, err := cell.Swap(increment); err != nil {
					if ref.IsRejected(err) {
						rejected.Add(1)
						continue
					}
					return err
				}
			}
			return nil
		})
	}
	err = group.Wait()
	result.Duration = time.Since(start)
	unsubscribe()
	result.Delivered = <-delivered
	result.Rejected = rejected.Load()
	result.Final = cell.Deref()
	result.Counters = opts.Metrics.Snapshot(opts.Name)
	otel.RecordSpanEvent(ctx, "workers.finished",
		attribute.Int64("stress.rejected", result.Rejected),
		attribute.Int64("stress.final", result.Final),
	)
	if err != nil {
		return fail(err, "workers aborted")
	}

	links := recorder.snapshot()
	result.Commits = len(links)
	if err := verifyChain(0, result.Final, links); err != nil {
		return fail(err, "transition chain broken")
	}
	if got := int64(result.Commits) + result.Rejected; got != result.Attempted {
		return fail(fmt.Errorf("accounted for %d of %d swaps", got, result.Attempted), "swaps lost")
	}
	if result.Delivered != result.Commits {
		return fail(fmt.Errorf("bus delivered %d of %d transitions", result.Delivered, result.Commits), "events lost")
	}
	otel.RecordSpanEvent(ctx, "chain.verified", attribute.Int("stress.commits", result.Commits))

	logger.Info("stress run finished", map[string]string{
		"final":    strconv.FormatInt(result.Final, 10),
		"commits":  strconv.Itoa(result.Commits),
		"rejected": strconv.FormatInt(result.Rejected, 10),
		"retries":  strconv.FormatInt(result.Counters.Retries, 10),
		"duration": result.Duration.String(),
	})
	return result, nil
}

// verifyChain checks that every link increments by one and that, ordered
// by their old values, the links run from initial to final without a gap.
func verifyChain(initial, final int64, links []chainLink) error {
	ordered := append([]chainLink(nil), links...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Old < ordered[j].Old })
	expected := initial
	for i, link := range ordered {
		if link.Old != expected {
			return fmt.Errorf("transition %d starts at %d, want %d", i, link.Old, expected)
		}
		if link.New != link.Old+1 {
			return fmt.Errorf("transition %d moves %d -> %d", i, link.Old, link.New)
		}
		expected = link.New
	}
	if expected != final {
		return fmt.Errorf("chain ends at %d but the atom holds %d", expected, final)
	}
	return nil
}
