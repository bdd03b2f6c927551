package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Funding Market Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Range: %d - %d (ms)\n\n", r.StartMs, r.EndMs))

	// Symbol Overview
	sb.WriteString("## Symbol Overview\n\n")
	if len(r.Overview) > 0 {
		sb.WriteString("| Symbol | Klines | Funding Events | Avg Volume |\n")
		sb.WriteString("|--------|--------|----------------|------------|\n")
		for _, o := range r.Overview {
			avgVol := "n/a"
			if o.AvgKlineVolume != nil {
				avgVol = fmt.Sprintf("%.4f", *o.AvgKlineVolume)
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s |\n",
				o.Symbol, o.KlineCount, o.FundingEventCount, avgVol))
		}
	} else {
		sb.WriteString("No symbols in range.\n")
	}
	sb.WriteString("\n")

	// Rate Deciles
	sb.WriteString("## Rate Deciles (avg 60m markout)\n\n")
	if len(r.Deciles) > 0 {
		sb.WriteString("| Decile | Avg Markout | Events |\n")
		sb.WriteString("|--------|-------------|--------|\n")
		for _, d := range r.Deciles {
			sb.WriteString(fmt.Sprintf("| %d | %.6f | %d |\n", d.Decile, d.AvgMarkout, d.EventCount))
		}
	} else {
		sb.WriteString("No decile statistics available.\n")
	}
	sb.WriteString("\n")

	// Extreme Regimes
	sb.WriteString("## Extreme Regimes\n\n")
	if len(r.ExtremeRegimes) > 0 {
		sb.WriteString("| Symbol | Avg Markout | Events |\n")
		sb.WriteString("|--------|-------------|--------|\n")
		for _, s := range r.ExtremeRegimes {
			sb.WriteString(fmt.Sprintf("| %s | %.6f | %d |\n", s.Symbol, s.AvgMarkout, s.EventCount))
		}
	} else {
		sb.WriteString("No symbols met the extreme-regime criteria.\n")
	}
	sb.WriteString("\n")

	// Hour-of-Day
	sb.WriteString("## Markout by UTC Hour\n\n")
	if len(r.Hourly) > 0 {
		sb.WriteString("| Hour | Avg Markout | Events |\n")
		sb.WriteString("|------|-------------|--------|\n")
		for _, h := range r.Hourly {
			sb.WriteString(fmt.Sprintf("| %02d | %.6f | %d |\n", h.Hour, h.AvgMarkout, h.EventCount))
		}
	} else {
		sb.WriteString("No hourly statistics available.\n")
	}
	sb.WriteString("\n")

	// Volatility Terciles
	sb.WriteString("## Markout by Volatility Tercile\n\n")
	if len(r.Terciles) > 0 {
		sb.WriteString("| Tercile | Avg Markout | Events |\n")
		sb.WriteString("|---------|-------------|--------|\n")
		for _, t := range r.Terciles {
			sb.WriteString(fmt.Sprintf("| %d | %.6f | %d |\n", t.Tercile, t.AvgMarkout, t.EventCount))
		}
	} else {
		sb.WriteString("No tercile statistics available.\n")
	}
	sb.WriteString("\n")

	// Funding Pressure
	sb.WriteString("## Top Funding Pressure\n\n")
	if len(r.FundingPressure) > 0 {
		sb.WriteString("| Symbol | Avg Abs Rate | Events |\n")
		sb.WriteString("|--------|--------------|--------|\n")
		for _, p := range r.FundingPressure {
			sb.WriteString(fmt.Sprintf("| %s | %.6f | %d |\n", p.Symbol, p.AvgAbsRate, p.EventCount))
		}
	} else {
		sb.WriteString("No symbols met the funding-pressure criteria.\n")
	}
	sb.WriteString("\n")

	// Safe Symbols
	sb.WriteString("## Low-Volatility Safe Symbols\n\n")
	if len(r.SafeSymbols) > 0 {
		for _, sym := range r.SafeSymbols {
			sb.WriteString(fmt.Sprintf("- %s\n", sym))
		}
	} else {
		sb.WriteString("No safe symbols in range.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
