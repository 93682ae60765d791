package imaging

import (
	"math"
	"sort"
)

// ChannelStatistics are the per-channel statistics exposed as attributes.
// Values are normalised to [0,1] like the samples themselves.
type ChannelStatistics struct {
	Mean              float64
	Median            float64
	Minima            float64
	Maxima            float64
	StandardDeviation float64
	Kurtosis          float64
	Skewness          float64
}

// Statistics holds the statistics of the five stored channels plus the
// composite over the colour channels at index CompositeChannel.
type Statistics struct {
	Channels [PixelChannels + 1]ChannelStatistics
}

// Channel returns the statistics of c. Undefined and derived channels fall
// back to the composite.
func (s *Statistics) Channel(c Channel) ChannelStatistics {
	if c.Stored() || c == CompositeChannel {
		return s.Channels[c]
	}
	return s.Channels[CompositeChannel]
}

// ComputeStatistics scans every pixel of the image once.
func ComputeStatistics(img Image) *Statistics {
	stats := &Statistics{}
	n := img.Columns() * img.Rows()
	if n == 0 {
		return stats
	}

	colour := []Channel{RedChannel, GreenChannel, BlueChannel}
	switch img.Colorspace() {
	case GrayColorspace:
		colour = []Channel{GrayChannel}
	case CMYKColorspace:
		colour = append(colour, BlackChannel)
	}

	samples := make([][]float64, PixelChannels+1)
	for c := range samples {
		samples[c] = make([]float64, 0, n)
	}
	for y := 0; y < img.Rows(); y++ {
		for x := 0; x < img.Columns(); x++ {
			p := img.At(x, y)
			if !img.HasAlpha() {
				p[AlphaChannel] = 1
			}
			for c := RedChannel; c <= AlphaChannel; c++ {
				samples[c] = append(samples[c], p[c])
			}
			for _, c := range colour {
				samples[CompositeChannel] = append(samples[CompositeChannel], p[c])
			}
		}
	}
	if img.Colorspace() == GrayColorspace {
		samples[GreenChannel] = samples[GrayChannel]
		samples[BlueChannel] = samples[GrayChannel]
	}
	for c := range samples {
		stats.Channels[c] = summarize(samples[c])
	}
	return stats
}

func summarize(v []float64) ChannelStatistics {
	var cs ChannelStatistics
	if len(v) == 0 {
		return cs
	}
	n := float64(len(v))
	cs.Minima, cs.Maxima = math.Inf(1), math.Inf(-1)
	var sum float64
	for _, x := range v {
		sum += x
		cs.Minima = math.Min(cs.Minima, x)
		cs.Maxima = math.Max(cs.Maxima, x)
	}
	cs.Mean = sum / n

	var m2, m3, m4 float64
	for _, x := range v {
		d := x - cs.Mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	m2, m3, m4 = m2/n, m3/n, m4/n
	cs.StandardDeviation = math.Sqrt(m2)
	if m2 > 0 {
		cs.Skewness = m3 / math.Pow(m2, 1.5)
		cs.Kurtosis = m4/(m2*m2) - 3
	}

	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		cs.Median = sorted[mid]
	} else {
		cs.Median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return cs
}
