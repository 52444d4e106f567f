package probe

// Severity tags a proximity band for presentation (color, ordering).
type Severity int

const (
	SeverityNeutral Severity = iota
	SeverityStrong
	SeverityGood
	SeverityWeak
	SeverityVeryWeak
)

// Proximity is a discrete distance estimate derived from a single RSSI
// reading.
type Proximity struct {
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

// proximityBands is evaluated top to bottom; the first band whose bound
// the reading exceeds wins. The ordering from strongest to weakest is a
// correctness requirement: a stable linear scan over this table is what
// makes Classify monotonic.
var proximityBands = []struct {
	bound    int // exclusive lower bound, dBm
	label    string
	severity Severity
}{
	{-60, "VERY CLOSE", SeverityStrong},
	{-70, "NEAR", SeverityGood},
	{-83, "FAR", SeverityWeak},
	{-92, "VERY FAR", SeverityVeryWeak},
}

// ProximityUnknown is returned for readings weaker than every band.
var ProximityUnknown = Proximity{Label: "Unknown", Severity: SeverityNeutral}

// Classify maps an RSSI reading (more negative = weaker) to a discrete
// proximity band. It is total: every input yields a label.
func Classify(rssi int) Proximity {
	for _, band := range proximityBands {
		if rssi > band.bound {
			return Proximity{Label: band.label, Severity: band.severity}
		}
	}
	return ProximityUnknown
}
