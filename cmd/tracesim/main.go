// ════════════════════════════════════════════════════════════════════════════════════════════════
// tracesim — Call-Trace Interning Demo
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Sampler Simulation & Periodic Drain
//
// Description:
//   Drives the intern table the way an embedding profiler would: a SIGPROF
//   timer interrupts the process, the signal goroutine pushes a sample
//   descriptor into a lock-free SPSC ring, and a pinned sampler goroutine
//   drains the ring, walks a synthetic stack, and interns it. Go gives no
//   way to run arbitrary code inside the actual OS signal trampoline, so
//   the signal-notification goroutine here is the closest idiomatic
//   stand-in for asynchronous signal-handler context.
//
// Architecture:
//   - Phase 1: build the intern table, the sample ring, the pinned sampler
//   - Phase 2: SIGPROF-driven sampling until SIGINT/SIGTERM
//   - Phase 3: every drain interval, collect, export, then quiesce and
//     clear; on SIGINT/SIGTERM, stop and close the table
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"traceintern/calltrace"
	"traceintern/intern"
	"traceintern/samplering"
	"traceintern/session"
	"traceintern/stackwalk"
	"traceintern/traceexport"
	"traceintern/tracelog"
)

const (
	ringCapacity  = 1024
	sampleDepth   = 16
	distinctSeeds = 4096
	profInterval  = 2 * time.Millisecond
	drainInterval = 500 * time.Millisecond
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	setupShutdownSignals(cancel)

	table := intern.NewDefault()
	defer table.Close()
	coord := &session.Coordinator{}
	ring := samplering.New(ringCapacity)

	var wg sync.WaitGroup
	wg.Add(2)
	go runProfSignalProducer(ctx, &wg, ring)
	go runSampler(ctx, &wg, ring, table, coord)

	if err := armProfTimer(profInterval); err != nil {
		tracelog.Warn("tracesim: prof timer unavailable, using tick fallback", err)
		wg.Add(1)
		go runTickFallback(ctx, &wg, ring)
	}

	drainLoop(ctx, table, coord)
	wg.Wait()
}

func setupShutdownSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		tracelog.Warn("tracesim: shutdown signal received", nil)
		cancel()
	}()
}

// runProfSignalProducer is the single producer side of the sample ring: one
// Push per SIGPROF delivery, nothing else. A full ring drops the sample the
// same way a real profiler sheds load under burst.
func runProfSignalProducer(ctx context.Context, wg *sync.WaitGroup, ring *samplering.Ring) {
	defer wg.Done()

	profChan := make(chan os.Signal, 64)
	signal.Notify(profChan, syscall.SIGPROF)
	defer signal.Stop(profChan)

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-profChan:
			s := samplering.Sample{
				Depth: sampleDepth,
				Seed:  tick % distinctSeeds,
				Tick:  tick,
			}
			ring.Push(&s)
			tick++
		}
	}
}

// runTickFallback stands in for the prof timer on platforms where arming it
// failed: same ring, same cadence, no signals involved.
func runTickFallback(ctx context.Context, wg *sync.WaitGroup, ring *samplering.Ring) {
	defer wg.Done()
	ticker := time.NewTicker(profInterval)
	defer ticker.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := samplering.Sample{
				Depth: sampleDepth,
				Seed:  tick % distinctSeeds,
				Tick:  tick,
			}
			ring.Push(&s)
			tick++
		}
	}
}

// runSampler is the single consumer side of the ring: pinned to a CPU, it
// walks a synthetic stack for each pending sample and interns it,
// bracketing every Put with the session coordinator so the drain loop can
// quiesce before clearing.
func runSampler(ctx context.Context, wg *sync.WaitGroup, ring *samplering.Ring, table *intern.InternTable, coord *session.Coordinator) {
	defer wg.Done()
	pinToCPU(0)

	for {
		s, ok := ring.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			default:
			}
			runtime.Gosched()
			continue
		}

		frames := stackwalk.Synthetic(s.Seed, int(s.Depth))
		coord.EnterPut()
		table.Put(frames)
		coord.ExitPut()
	}
}

// drainLoop periodically collects the table, exports the snapshot, then
// quiesces sampler threads and clears for the next window.
func drainLoop(ctx context.Context, table *intern.InternTable, coord *session.Coordinator) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			coord.Stop()
			return
		case <-ticker.C:
			out := make(map[uint32]*calltrace.CallTrace)
			table.Collect(out)
			if err := traceexport.Dump(os.Stdout, out); err != nil {
				tracelog.Warn("tracesim: export failed", err)
			}
			if !coord.QuiesceAndClear(table, 100*time.Millisecond) {
				tracelog.Warn("tracesim: quiesce timed out, skipping clear this round", nil)
			}
		}
	}
}
