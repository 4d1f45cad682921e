// Package traceexport serializes a Collect() snapshot: the consumer side
// of the profiler periodically drains the intern table into an
// identifier -> trace map and ships it off-process. All JSON encoding
// goes through github.com/sugawarayuuta/sonnet, a drop-in
// encoding/json-compatible encoder.
package traceexport

import (
	"fmt"
	"io"

	"github.com/sugawarayuuta/sonnet"

	"traceintern/calltrace"
)

// Record is the exported shape of one interned trace: identifier, frame
// count, and hex-encoded program counters. PCs are hex-encoded because a
// raw uint64 round-trips through JSON as a float in naive decoders; hex
// strings keep the export exact and human-readable.
type Record struct {
	ID        uint32   `json:"id"`
	NumFrames int32    `json:"num_frames"`
	PCs       []string `json:"pcs"`
}

// Dump marshals a Collect() snapshot to w as a JSON array of Records,
// ordered by ascending identifier for reproducible output.
func Dump(w io.Writer, snapshot map[uint32]*calltrace.CallTrace) error {
	ids := make([]uint32, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sortUint32(ids)

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		trace := snapshot[id]
		frames := trace.Frames()
		pcs := make([]string, len(frames))
		for i, f := range frames {
			pcs[i] = fmt.Sprintf("%#x", f.PC)
		}
		records = append(records, Record{ID: id, NumFrames: trace.NumFrames, PCs: pcs})
	}

	enc := sonnet.NewEncoder(w)
	return enc.Encode(records)
}

// sortUint32 is insertion sort: export batches are small (one per distinct
// trace drained since the last dump), so an allocation-free O(n^2) sort
// beats pulling in sort.Slice's reflection-based comparator for this path.
func sortUint32(xs []uint32) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
