package sample

import (
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Mean returns the mean voltage of the samples, keyed by Key.
func Mean(samples []Sample) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range samples {
		sums[s.Key()] += s.Volts
		counts[s.Key()]++
	}

	means := make(map[string]float64)
	for k, v := range sums {
		means[k] = v / float64(counts[k])
	}

	return means
}

// StdDev returns the population standard deviation of the voltage, keyed by Key.
func StdDev(samples []Sample) map[string]float64 {
	avg := Mean(samples)

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range samples {
		sums[s.Key()] += math.Pow(s.Volts-avg[s.Key()], 2)
		counts[s.Key()]++
	}

	devs := make(map[string]float64)
	for k, v := range sums {
		devs[k] = math.Sqrt(v / float64(counts[k]))
	}

	return devs
}

func Min(samples []Sample) map[string]float64 {
	x := make(map[string]float64)
	for _, s := range samples {
		if v, ok := x[s.Key()]; !ok || s.Volts < v {
			x[s.Key()] = s.Volts
		}
	}

	return x
}

func Max(samples []Sample) map[string]float64 {
	x := make(map[string]float64)
	for _, s := range samples {
		if v, ok := x[s.Key()]; !ok || s.Volts > v {
			x[s.Key()] = s.Volts
		}
	}

	return x
}

// Average collapses the samples of each Key into one whose Raw and Volts are the means and whose
// Timestamp is the latest. The result is ordered by Key.
func Average(samples []Sample) []Sample {
	groups := make(map[string][]Sample)
	for _, s := range samples {
		groups[s.Key()] = append(groups[s.Key()], s)
	}

	out := make([]Sample, 0, len(groups))
	for _, k := range SortedKeys(groups) {
		g := groups[k]

		avg := g[0]
		var raw, volts float64
		for _, s := range g {
			raw += float64(s.Raw)
			volts += s.Volts
			if s.Timestamp.After(avg.Timestamp) {
				avg.Timestamp = s.Timestamp
			}
		}
		avg.Raw = int16(math.Round(raw / float64(len(g))))
		avg.Volts = volts / float64(len(g))
		out = append(out, avg)
	}

	return out
}

// Latest returns the most recent sample of each Key, ordered by Key.
func Latest(samples []Sample) []Sample {
	latest := make(map[string]Sample)
	for _, s := range samples {
		if cur, ok := latest[s.Key()]; !ok || s.Timestamp.After(cur.Timestamp) {
			latest[s.Key()] = s
		}
	}

	out := make([]Sample, 0, len(latest))
	for _, k := range SortedKeys(latest) {
		out = append(out, latest[k])
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
