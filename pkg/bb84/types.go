package bb84

// Basis is a measurement basis.
type Basis uint8

const (
	BasisZ Basis = iota // rectilinear
	BasisX              // diagonal
)

// String returns "Z" or "X".
func (b Basis) String() string {
	if b == BasisX {
		return "X"
	}
	return "Z"
}

// Result is the receiver's outcome for one slot.
type Result uint8

const (
	// ResultNone marks a slot in which the detector did not click.
	ResultNone Result = iota
	ResultZero
	ResultOne
)

// Bit returns the measured bit and false for ResultNone.
func (r Result) Bit() (uint8, bool) {
	switch r {
	case ResultZero:
		return 0, true
	case ResultOne:
		return 1, true
	default:
		return 0, false
	}
}

func resultFromBit(b uint8) Result {
	if b&1 == 1 {
		return ResultOne
	}
	return ResultZero
}

// Slot is one transmitted qubit and what the receiver observed.
type Slot struct {
	SenderBit     uint8
	SenderBasis   Basis
	ReceiverBasis Basis
	Result        Result
}

// RawExchange is the per-slot record of one session, owned by that session.
type RawExchange []Slot

// SiftedKey holds the bits both parties kept after basis comparison.
// Sender and Receiver always have equal length.
type SiftedKey struct {
	Sender   []uint8
	Receiver []uint8
}

// Len returns the number of sifted bits.
func (k *SiftedKey) Len() int {
	return len(k.Sender)
}

// RemoveIndices deletes the given positions from both sequences. Indices
// must be unique and in range; they are removed in descending order so
// earlier deletions do not shift later ones.
func (k *SiftedKey) RemoveIndices(indices []int) {
	drop := make([]bool, len(k.Sender))
	for _, i := range indices {
		drop[i] = true
	}

	w := 0
	for r := range k.Sender {
		if drop[r] {
			continue
		}
		k.Sender[w] = k.Sender[r]
		k.Receiver[w] = k.Receiver[r]
		w++
	}
	clear(k.Sender[w:])
	clear(k.Receiver[w:])
	k.Sender = k.Sender[:w]
	k.Receiver = k.Receiver[:w]
}

// Wipe zeroes both sequences.
func (k *SiftedKey) Wipe() {
	clear(k.Sender)
	clear(k.Receiver)
}

// Sample is the subset of sifted positions disclosed to estimate the QBER.
type Sample struct {
	Indices []int
	Errors  int
	QBER    float64
}

// Metrics summarizes one BB84 run. It never carries key bits.
type Metrics struct {
	SiftLen        int     `json:"sift_len"`
	SampleSize     int     `json:"sample_size"`
	QBER           float64 `json:"qber_est"`
	LeakageBits    int     `json:"leakage_bits"`
	ResidualErrors int     `json:"residual_errors"`
	DistanceKM     float64 `json:"distance_km"`
	ProbReach      float64 `json:"prob_reach"`
}

// Stage names a step of the protocol engine.
type Stage int

const (
	StageGenerate Stage = iota
	StageMeasure
	StageSift
	StageSampleQBER
	StageReconcile
	StageAmplify
	StageAbort
)

var stageNames = [...]string{
	StageGenerate:   "GENERATE",
	StageMeasure:    "MEASURE",
	StageSift:       "SIFT",
	StageSampleQBER: "SAMPLE_QBER",
	StageReconcile:  "RECONCILE",
	StageAmplify:    "AMPLIFY",
	StageAbort:      "ABORT",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}
