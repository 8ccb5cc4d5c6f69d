package utils

// ComputeFare prices a ride over hops stops: base plus perStop for every hop.
// A non-positive hop count, or a route without per-stop pricing, falls back to fallback.
func ComputeFare(hops int, base, perStop, fallback int64) int64 {
	if hops <= 0 || perStop <= 0 {
		return fallback
	}
	return base + int64(hops)*perStop
}
