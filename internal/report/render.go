package report

import (
	"fmt"
	"io"
	"strings"
)

const (
	rule = "=========================="
	sep  = "------"
)

func smaNote(period int) string {
	switch period {
	case 7:
		return "(short-term average)"
	case 15:
		return "(mid-term trend)"
	default:
		return "(long-term trend)"
	}
}

// Render writes the text report for snap. Undefined values print as N/A.
func Render(w io.Writer, snap *Snapshot) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Analysis: %s (%s)\n%s\n", snap.Symbol, snap.Interval, rule)
	fmt.Fprintf(&b, "Price (%s): %.2f %s\n%s\n", snap.Exchange, snap.Price, snap.Currency, sep)

	b.WriteString("SMA:\n")
	for _, pv := range snap.SMA {
		if pv.Value.IsDefined() {
			fmt.Fprintf(&b, " - %d-period SMA: %s %s\n", pv.Period, pv.Value.Format(2), smaNote(pv.Period))
		} else {
			fmt.Fprintf(&b, " - %d-period SMA: N/A\n", pv.Period)
		}
	}
	b.WriteString(sep + "\n")

	b.WriteString("RSI:\n")
	if snap.RSI.IsDefined() {
		fmt.Fprintf(&b, " - 14-period RSI: %s (< 30 oversold / > 70 overbought: %s)\n", snap.RSI.Format(2), snap.RSIZone)
	} else {
		b.WriteString(" - 14-period RSI: N/A\n")
	}
	b.WriteString(sep + "\n")

	b.WriteString("VWAP:\n")
	if snap.VWAP.IsDefined() {
		fmt.Fprintf(&b, " - VWAP (%d): %s (vs current price: %s)\n", PriceHistory, snap.VWAP.Format(2), snap.VWAPSide)
	} else {
		fmt.Fprintf(&b, " - VWAP (%d): N/A\n", PriceHistory)
	}
	b.WriteString(sep + "\n")

	b.WriteString("ATR & OBV:\n")
	fmt.Fprintf(&b, " - ATR (14): %s\n", snap.ATR.Format(2))
	fmt.Fprintf(&b, " - OBV: %s\n", snap.OBV.Format(2))
	b.WriteString(sep + "\n")

	b.WriteString("MACD & MACI:\n")
	fmt.Fprintf(&b, " - MACD: %s\n", snap.MACD.Format(4))
	fmt.Fprintf(&b, " - MACI: %s\n", snap.MACI.Format(4))
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}
