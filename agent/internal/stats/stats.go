package stats

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/xrbridge/xrbridge/agent/internal/client"
)

const (
	familySessions  = "xrbridge_sessions_active"
	familyUsers     = "xrbridge_users_known"
	familySequence  = "xrbridge_sequence"
	familyFrames    = "xrbridge_frames_total"
	familyArmed     = "xrbridge_events_armed_total"
	familyDelivered = "xrbridge_events_delivered_total"
)

// Summary is the relay state reconstructed from one scrape. Per-kind maps
// are keyed by the "kind" label value.
type Summary struct {
	Sessions  float64
	Users     float64
	Sequences map[string]float64
	Frames    map[string]float64
	Armed     map[string]float64
	Delivered map[string]float64
}

// Scrape fetches /metrics through c and summarizes it.
func Scrape(ctx context.Context, c *client.Client) (*Summary, error) {
	body, err := c.Get(ctx, "/metrics", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer body.Close()
	return Parse(body)
}

// Parse summarizes a Prometheus text exposition.
func Parse(r io.Reader) (*Summary, error) {
	mfs, err := parseMetrics(r)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Sessions:  sumFamily(mfs[familySessions]),
		Users:     sumFamily(mfs[familyUsers]),
		Sequences: byLabel(mfs[familySequence], "kind"),
		Frames:    byLabel(mfs[familyFrames], "kind"),
		Armed:     byLabel(mfs[familyArmed], "kind"),
		Delivered: byLabel(mfs[familyDelivered], "kind"),
	}, nil
}

// Write prints s as an aligned table.
func (s *Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "sessions\t%g\n", s.Sessions)
	fmt.Fprintf(tw, "users\t%g\n", s.Users)
	for _, sec := range []struct {
		name string
		vals map[string]float64
	}{
		{"sequence", s.Sequences},
		{"armed", s.Armed},
		{"delivered", s.Delivered},
		{"frames", s.Frames},
	} {
		for _, k := range sortedKeys(sec.vals) {
			fmt.Fprintf(tw, "%s{%s}\t%g\n", sec.name, k, sec.vals[k])
		}
	}
	return tw.Flush()
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("stats: parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// byLabel sums values grouped by the given label. Series without the label
// are ignored.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += value(m)
				break
			}
		}
	}
	return out
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
