package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/roach88/cascade/internal/conserve"
)

// reporter writes the fixed-width per-event measurement table: simulated
// time, conservation drift, scattering rate, interval scatterings, live
// particle count and elapsed wall time.
type reporter struct {
	w         io.Writer
	start     float64
	wallNow   func() time.Time
	wallStart time.Time
	lastTotal int
}

func newReporter(w io.Writer, start float64, wallNow func() time.Time) *reporter {
	return &reporter{w: w, start: start, wallNow: wallNow, wallStart: wallNow()}
}

func (r *reporter) header(event int) {
	fmt.Fprintf(r.w, "event %d\n", event)
	fmt.Fprintf(r.w, "%6s %12s %12s %12s %10s %12s %12s\n",
		"t[fm]", "dE[GeV]", "d|p|[GeV]", "rate[1/fm]", "scatt", "particles", "elapsed[s]")
}

func (r *reporter) line(now float64, devi conserve.Report, total, particles int) {
	interval := total - r.lastTotal
	r.lastTotal = total
	rate := scatteringRate(total, particles, now-r.start)
	elapsed := r.wallNow().Sub(r.wallStart).Seconds()
	fmt.Fprintf(r.w, "%6.2f %12g %12g %12g %10d %12d %12g\n",
		now, devi.EnergyDiff(), devi.MomentumDiff(), rate, interval, particles, elapsed)
}

func (r *reporter) summary(event int, now float64, total, particles int, rate float64) {
	elapsed := r.wallNow().Sub(r.wallStart).Seconds()
	fmt.Fprintf(r.w, "event %d done at t=%.2f: %d interactions, rate %g/fm, %d particles, %gs real\n",
		event, now, total, rate, particles, elapsed)
}
