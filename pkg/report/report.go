package report

import (
	"fmt"
	"time"
)

// LoadRow summarizes the engine's throughput over the run.
type LoadRow struct {
	Breaths   uint64
	Frees     uint64
	FreeBytes uint64
	Elapsed   time.Duration
}

// LinkRow summarizes one link's counters.
type LinkRow struct {
	Spec      string
	TXPackets uint64
	TXBytes   uint64
	TXDrop    uint64
	RXPackets uint64
}

// AppRow carries one app's custom Report hook output.
type AppRow struct {
	Name string
	Text string
}

// LossRate returns the fraction of transmit attempts dropped for
// backpressure, 0 when nothing was attempted.
func (r LinkRow) LossRate() float64 {
	attempted := r.TXPackets + r.TXDrop
	if attempted == 0 {
		return 0
	}
	return float64(r.TXDrop) / float64(attempted)
}

// Print renders the three-section end-of-run report to stdout. The load
// section is always printed; the links and apps sections are omitted
// when they have no rows.
func Print(load LoadRow, links []LinkRow, apps []AppRow) {
	fmt.Println(Bold("load"))
	loadTable := NewTable("BREATHS", "FREES", "FREEBYTES", "PACKETS/S", "BYTES/S")
	secs := load.Elapsed.Seconds()
	var pps, bps float64
	if secs > 0 {
		pps = float64(load.Frees) / secs
		bps = float64(load.FreeBytes) / secs
	}
	loadTable.Row(
		fmt.Sprintf("%d", load.Breaths),
		fmt.Sprintf("%d", load.Frees),
		fmt.Sprintf("%d", load.FreeBytes),
		fmt.Sprintf("%.1f", pps),
		fmt.Sprintf("%.1f", bps),
	)
	loadTable.Flush()

	if len(links) > 0 {
		fmt.Println()
		fmt.Println(Bold("links"))
		linkTable := NewTable("LINK", "TXPACKETS", "RXPACKETS", "TXDROP", "LOSS")
		for _, l := range links {
			loss := l.LossRate()
			lossStr := fmt.Sprintf("%.4f%%", loss*100)
			if loss > 0.01 {
				lossStr = Red(lossStr)
			} else if loss > 0 {
				lossStr = Yellow(lossStr)
			}
			linkTable.Row(
				l.Spec,
				fmt.Sprintf("%d", l.TXPackets),
				fmt.Sprintf("%d", l.RXPackets),
				fmt.Sprintf("%d", l.TXDrop),
				lossStr,
			)
		}
		linkTable.Flush()
	}

	if len(apps) > 0 {
		fmt.Println()
		fmt.Println(Bold("apps"))
		for _, a := range apps {
			fmt.Printf("%s\n", DotPad(a.Name, 24))
			fmt.Printf("  %s\n", a.Text)
		}
	}
}
