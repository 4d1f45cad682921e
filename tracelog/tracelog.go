// Package tracelog is a lightweight diagnostic logger for the module's
// non-hot paths; cmd/tracesim is its only caller. The core packages do not
// log: construction failure panics, and page-allocator failures surface
// in-band as nil pointers or identifier 0.
// A single-binary tool like this has no use for a structured logging
// facade; plain log lines are the whole contract.
package tracelog

import "log"

// Warn prints "<prefix>: <err>" when err is non-nil, or just "<prefix>"
// otherwise (used as a cheap trace marker, e.g. around growth/clear
// events). Intentionally unformatted — this is not meant to grow into a
// structured logging facade.
func Warn(prefix string, err error) {
	if err != nil {
		log.Printf("%s: %v", prefix, err)
		return
	}
	log.Print(prefix)
}
