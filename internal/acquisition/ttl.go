// Package acquisition parses secondary recording sources and extracts the
// marker timelines the alignment engine works with. Each device logs trial
// markers as TTL pulses on a digital line sampled by its own clock; the
// pulse rising edges are the device's observations of the trial starts.
package acquisition

// DefaultThreshold separates logical low from high on a digital line that
// was sampled as an analog value.
const DefaultThreshold = 0.5

// RisingEdges returns the timestamps at which the signal crosses the
// threshold upward. The sample at index i is an edge when signal[i-1] is
// at or below the threshold and signal[i] is above it; a signal that is
// already high at the first sample does not count, since the pulse began
// before recording started.
func RisingEdges(times, signal []float64, threshold float64) []float64 {
	var edges []float64
	for i := 1; i < len(signal) && i < len(times); i++ {
		if signal[i-1] <= threshold && signal[i] > threshold {
			edges = append(edges, times[i])
		}
	}
	return edges
}
