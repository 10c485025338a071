package exporters

import (
	"strconv"

	dto "github.com/prometheus/client_model/go"
)

// JSONFamily is the JSON rendering of a Prometheus metric family
type JSONFamily struct {
	Name    string       `json:"name"`
	Help    string       `json:"help,omitempty"`
	Type    string       `json:"type"`
	Metrics []JSONMetric `json:"metrics"`
}

// JSONMetric is one labelled sample. Value is set for counters, gauges and
// untyped metrics; Count and Sum for histograms and summaries.
type JSONMetric struct {
	Labels    map[string]string  `json:"labels,omitempty"`
	Value     *float64           `json:"value,omitempty"`
	Count     *uint64            `json:"count,omitempty"`
	Sum       *float64           `json:"sum,omitempty"`
	Buckets   map[string]uint64  `json:"buckets,omitempty"`
	Quantiles map[string]float64 `json:"quantiles,omitempty"`
}

// FamiliesToJSON converts gathered families to their JSON model
func FamiliesToJSON(families []*dto.MetricFamily) []JSONFamily {
	out := make([]JSONFamily, 0, len(families))
	for _, mf := range families {
		jf := JSONFamily{
			Name:    mf.GetName(),
			Help:    mf.GetHelp(),
			Type:    metricTypeName(mf.GetType()),
			Metrics: make([]JSONMetric, 0, len(mf.GetMetric())),
		}
		for _, m := range mf.GetMetric() {
			jf.Metrics = append(jf.Metrics, metricToJSON(mf.GetType(), m))
		}
		out = append(out, jf)
	}
	return out
}

func metricToJSON(t dto.MetricType, m *dto.Metric) JSONMetric {
	var jm JSONMetric
	if labels := m.GetLabel(); len(labels) > 0 {
		jm.Labels = make(map[string]string, len(labels))
		for _, l := range labels {
			jm.Labels[l.GetName()] = l.GetValue()
		}
	}

	value := func(v float64) *float64 { return &v }

	switch t {
	case dto.MetricType_COUNTER:
		jm.Value = value(m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		jm.Value = value(m.GetGauge().GetValue())
	case dto.MetricType_UNTYPED:
		jm.Value = value(m.GetUntyped().GetValue())
	case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
		h := m.GetHistogram()
		count := h.GetSampleCount()
		jm.Count = &count
		jm.Sum = value(h.GetSampleSum())
		jm.Buckets = make(map[string]uint64, len(h.GetBucket()))
		for _, b := range h.GetBucket() {
			jm.Buckets[strconv.FormatFloat(b.GetUpperBound(), 'g', -1, 64)] = b.GetCumulativeCount()
		}
	case dto.MetricType_SUMMARY:
		s := m.GetSummary()
		count := s.GetSampleCount()
		jm.Count = &count
		jm.Sum = value(s.GetSampleSum())
		jm.Quantiles = make(map[string]float64, len(s.GetQuantile()))
		for _, q := range s.GetQuantile() {
			jm.Quantiles[strconv.FormatFloat(q.GetQuantile(), 'g', -1, 64)] = q.GetValue()
		}
	}
	return jm
}

func metricTypeName(t dto.MetricType) string {
	switch t {
	case dto.MetricType_COUNTER:
		return "counter"
	case dto.MetricType_GAUGE:
		return "gauge"
	case dto.MetricType_HISTOGRAM:
		return "histogram"
	case dto.MetricType_GAUGE_HISTOGRAM:
		return "gaugehistogram"
	case dto.MetricType_SUMMARY:
		return "summary"
	default:
		return "untyped"
	}
}
