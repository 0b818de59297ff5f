package player

// Progress thresholds reported once per load.
var progressThresholds = [...]int{25, 50, 75}

const (
	// completionPct is treated as the end of the track.
	completionPct = 98.0

	watermarkComplete = 100
)

// milestones is the per-load progress watermark.
type milestones struct {
	watermark int
}

func (m *milestones) reset() {
	m.watermark = 0
}

// advance raises the watermark for pct and returns the thresholds crossed, in order,
// and whether completion was reached for the first time.
func (m *milestones) advance(pct float64) (crossed []int, complete bool) {
	if m.watermark >= watermarkComplete {
		return nil, false
	}
	for _, th := range progressThresholds {
		if th > m.watermark && pct >= float64(th) {
			crossed = append(crossed, th)
			m.watermark = th
		}
	}
	if pct >= completionPct {
		m.watermark = watermarkComplete
		complete = true
	}
	return crossed, complete
}
