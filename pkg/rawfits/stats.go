package rawfits

import (
	"fmt"
	"math"
)

// ImageStatistics summarises one channel of a grid.
type ImageStatistics struct {
	Count  int
	Min    uint16
	Max    uint16
	Median float64
	MAD    float64
	Mean   float64
	StdDev float64
}

func (s ImageStatistics) String() string {
	return fmt.Sprintf("{Min=%d, Max=%d, Median=%.1f, MAD=%.1f, Mean=%.2f, StdDev=%.2f}",
		s.Min, s.Max, s.Median, s.MAD, s.Mean, s.StdDev)
}

// Sigma is the MAD scaled to a normal-distribution standard deviation.
func (s ImageStatistics) Sigma() float64 {
	return 1.4826 * s.MAD
}

// SampleHistogram counts every value of channel c. The result always has
// 65536 buckets.
func SampleHistogram(g *PixelGrid, c int) []uint64 {
	hist := make([]uint64, 1<<16)
	n := g.Width * g.Height
	for i := 0; i < n; i++ {
		hist[g.Pix[i*g.Channels+c]]++
	}
	return hist
}

// CalculateStatistics computes exact statistics of channel c from its
// sample histogram; median and MAD average the two middle values when the
// count is even.
func CalculateStatistics(g *PixelGrid, c int) ImageStatistics {
	var s ImageStatistics
	s.Count = g.Width * g.Height
	if s.Count == 0 || c < 0 || c >= g.Channels {
		return ImageStatistics{}
	}
	hist := SampleHistogram(g, c)

	first, last := -1, 0
	var total float64
	for v, n := range hist {
		if n == 0 {
			continue
		}
		if first < 0 {
			first = v
		}
		last = v
		total += float64(v) * float64(n)
	}
	s.Min, s.Max = uint16(first), uint16(last)
	s.Mean = total / float64(s.Count)

	if s.Count > 1 {
		var sse float64
		for v := first; v <= last; v++ {
			if hist[v] == 0 {
				continue
			}
			d := float64(v) - s.Mean
			sse += float64(hist[v]) * d * d
		}
		s.StdDev = math.Sqrt(sse / float64(s.Count-1))
	}

	// Work in doubled units so a half-integer median stays integral.
	median2 := histogramMedian2(hist, s.Count)
	s.Median = float64(median2) / 2

	dev := make([]uint64, 2*len(hist))
	for v := first; v <= last; v++ {
		if hist[v] == 0 {
			continue
		}
		d := 2*v - median2
		if d < 0 {
			d = -d
		}
		dev[d] += hist[v]
	}
	s.MAD = float64(histogramMedian2(dev, s.Count)) / 4
	return s
}

// histogramMedian2 returns twice the median of the values counted in hist.
func histogramMedian2(hist []uint64, count int) int {
	lo := uint64((count - 1) / 2)
	hi := uint64(count / 2)
	var seen uint64
	loVal, hiVal := -1, -1
	for v, n := range hist {
		if n == 0 {
			continue
		}
		seen += n
		if loVal < 0 && seen > lo {
			loVal = v
		}
		if seen > hi {
			hiVal = v
			break
		}
	}
	return loVal + hiVal
}
