package reporting

import (
	"fmt"
	"strings"

	"funding-market-lab/internal/domain"
)

// RenderDecilesCSV renders the decile table as CSV string.
func RenderDecilesCSV(stats []*domain.DecileStat) string {
	var sb strings.Builder

	sb.WriteString("decile,avg_markout,event_count\n")
	for _, d := range stats {
		sb.WriteString(fmt.Sprintf("%d,%.8f,%d\n", d.Decile, d.AvgMarkout, d.EventCount))
	}

	return sb.String()
}

// RenderMarkoutsCSV renders markout records as CSV string. Events whose
// window held no returns render an empty markout field.
func RenderMarkoutsCSV(records []*domain.MarkoutRecord) string {
	var sb strings.Builder

	sb.WriteString("symbol,event_timestamp_ms,horizon_minutes,markout_sum,sample_count\n")
	for _, r := range records {
		sum := ""
		if r.MarkoutSum != nil {
			sum = fmt.Sprintf("%.8f", *r.MarkoutSum)
		}
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%s,%d\n",
			r.Symbol, r.EventTimestampMs, r.HorizonMinutes, sum, r.SampleCount))
	}

	return sb.String()
}
