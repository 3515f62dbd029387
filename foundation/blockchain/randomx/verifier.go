package randomx

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/blacksilk/node/foundation/blockchain/database"
)

// Timing gates relative to the calibrated baseline. The baseline and every
// verification time the same span: the VM program run over a filled
// scratchpad. Fetching or building the seed cache, expanding the dataset
// and filling the scratchpad are outside it, so a cold cache on the first
// block of a new seed does not read as a slow computation.
const (
	RejectionPercent  = 8
	SuspiciousPercent = 30
	SlowFactor        = 10

	minBaseline = time.Microsecond
)

// Set of errors returned by VerifyBlockPoW.
var (
	ErrBlacklisted  = errors.New("peer is blacklisted")
	ErrHashMismatch = errors.New("recomputed hash differs from claimed hash")
	ErrTargetMissed = errors.New("hash does not meet difficulty target")
	ErrTooFast      = errors.New("hash computed too fast")
	ErrHeuristic    = errors.New("hash failed integrity heuristics")
)

// Class is the outcome of a verification.
type Class string

// Set of verification classes.
const (
	ClassNormal      Class = "normal"
	ClassSuspicious  Class = "suspicious"
	ClassSlow        Class = "slow"
	ClassExtreme     Class = "extreme"
	ClassInvalid     Class = "invalid"
	ClassHeuristic   Class = "heuristic"
	ClassBlacklisted Class = "blacklisted"
)

// Verdict describes a verification. Valid blocks may still be flagged
// suspicious.
type Verdict struct {
	Valid      bool          `json:"valid"`
	Suspicious bool          `json:"suspicious"`
	Class      Class         `json:"class"`
	Reason     string        `json:"reason"`
	Hash       database.Hash `json:"hash"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Config holds what the verifier needs to be constructed.
type Config struct {
	Mode            Mode
	Secure          bool
	CacheEntries    int
	Clock           clock.Clock
	AvailableMemory func() (uint64, error)
	OnVerdict       func(v Verdict)
	EvHandler       func(v string, args ...any)
}

// Stats summarizes the verifier state.
type Stats struct {
	TotalPeers       int     `json:"total_peers"`
	BlacklistedPeers int     `json:"blacklisted_peers"`
	TotalSuspicious  uint64  `json:"total_suspicious"`
	TotalSubmissions uint64  `json:"total_submissions"`
	BaselineMicros   float64 `json:"baseline_us"`
	Calibrations     int64   `json:"calibrations"`
	Mode             string  `json:"mode"`
	Insecure         bool    `json:"insecure"`
	HardwareAES      bool    `json:"hardware_aes"`
}

// =============================================================================

// Verifier recomputes proof-of-work hashes and scores the peers that submit
// them. Construct one per process.
type Verifier struct {
	hasher    *Hasher
	secure    bool
	clock     clock.Clock
	onVerdict func(v Verdict)
	evHandler func(v string, args ...any)
	hwAES     bool

	calibrating  atomic.Bool
	ready        chan struct{}
	baseline     atomic.Int64
	calibrations atomic.Int64

	mu     sync.Mutex
	scores map[string]*PeerScore
}

// NewVerifier constructs a verifier. In auto mode the host memory decides
// between full and light mode; a host that is short on memory runs light
// and the verifier reports itself insecure.
func NewVerifier(cfg Config) (*Verifier, error) {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	avail := cfg.AvailableMemory
	if avail == nil {
		avail = AvailableMemory
	}

	mode := cfg.Mode
	if mode == ModeAuto {
		mode = ModeFull

		free, err := avail()
		switch {
		case err != nil:
			ev("randomx: NewVerifier: memory check failed: %s: running light mode (insecure)", err)
			mode = ModeLight
		case free < FullMemoryRequired:
			ev("randomx: NewVerifier: %d MiB available, %d MiB required: running light mode (insecure)", free>>20, FullMemoryRequired>>20)
			mode = ModeLight
		}
	}

	hasher, err := NewHasher(mode, cfg.CacheEntries)
	if err != nil {
		return nil, err
	}

	v := Verifier{
		hasher:    hasher,
		secure:    cfg.Secure,
		clock:     clk,
		onVerdict: cfg.OnVerdict,
		evHandler: ev,
		hwAES:     HardwareAES(),
		ready:     make(chan struct{}),
		scores:    make(map[string]*PeerScore),
	}

	ev("randomx: NewVerifier: mode[%s]: secure[%v]: hardware-aes[%v]", mode, cfg.Secure, v.hwAES)

	return &v, nil
}

// Hasher returns the hasher the verifier recomputes with.
func (v *Verifier) Hasher() *Hasher {
	return v.hasher
}

// Insecure reports whether the verifier runs without the full dataset.
func (v *Verifier) Insecure() bool {
	return v.hasher.Mode() != ModeFull
}

// Baseline returns the calibrated reference duration, calibrating first if
// needed.
func (v *Verifier) Baseline() time.Duration {
	v.calibrate()
	return time.Duration(v.baseline.Load())
}

// VerifyBlockPoW recomputes the header hash and classifies the submission.
// The error is nil exactly when the verdict is valid.
func (v *Verifier) VerifyBlockPoW(header database.BlockHeader, peerID string) (Verdict, error) {
	verdict, err := v.verify(header, peerID)
	if v.onVerdict != nil {
		v.onVerdict(verdict)
	}
	return verdict, err
}

func (v *Verifier) verify(header database.BlockHeader, peerID string) (Verdict, error) {
	if peerID != "" && v.IsPeerBlacklisted(peerID) {
		return Verdict{Class: ClassBlacklisted, Reason: "peer is blacklisted"}, fmt.Errorf("%s: %w", peerID, ErrBlacklisted)
	}

	v.calibrate()
	baseline := time.Duration(v.baseline.Load())

	input := header.Bytes()
	r, err := v.hasher.compute(header.PrevHash[:], input, v.clock)
	if err != nil {
		return Verdict{Class: ClassInvalid, Reason: err.Error()}, err
	}

	verdict := Verdict{
		Hash:    r.hash,
		Elapsed: r.elapsed,
	}

	if database.Hash(r.hash) != header.Pow.Hash {
		verdict.Class = ClassInvalid
		verdict.Reason = "hash mismatch: recomputed hash differs from claimed hash"
		return verdict, ErrHashMismatch
	}

	if !database.MeetsTarget(r.hash, header.Difficulty) {
		verdict.Class = ClassInvalid
		verdict.Reason = "hash does not meet difficulty target"
		return verdict, ErrTargetMissed
	}

	switch {
	case r.elapsed < baseline*RejectionPercent/100:
		verdict.Class = ClassExtreme
		verdict.Suspicious = true
		verdict.Reason = fmt.Sprintf("block rejected: hash computed too fast (%s vs %s baseline): likely GPU/ASIC", r.elapsed, baseline)
		v.record(peerID, verdict.Class, verdict.Reason)
		return verdict, ErrTooFast

	case r.elapsed < baseline*SuspiciousPercent/100:
		verdict.Class = ClassSuspicious
		verdict.Suspicious = true
		verdict.Reason = fmt.Sprintf("suspiciously fast computation (%s vs %s baseline)", r.elapsed, baseline)

	case r.elapsed > baseline*SlowFactor:
		verdict.Class = ClassSlow
		verdict.Suspicious = true
		verdict.Reason = fmt.Sprintf("anomalously slow computation (%s vs %s baseline)", r.elapsed, baseline)

	default:
		verdict.Class = ClassNormal
		verdict.Reason = "valid"
	}

	if v.secure {
		if reason := checkHeuristics(r.hash, input, r); reason != "" {
			verdict.Class = ClassHeuristic
			verdict.Suspicious = true
			verdict.Reason = reason
			v.record(peerID, verdict.Class, reason)
			return verdict, fmt.Errorf("%s: %w", reason, ErrHeuristic)
		}
	}

	v.record(peerID, verdict.Class, verdict.Reason)
	verdict.Valid = true

	return verdict, nil
}

// calibrate sets the baseline exactly once. Concurrent callers wait for
// the first one to finish.
func (v *Verifier) calibrate() {
	if !v.calibrating.CompareAndSwap(false, true) {
		<-v.ready
		return
	}
	defer close(v.ready)

	v.calibrations.Add(1)

	ref := database.BlockHeader{
		Version:    database.BlockVersion,
		Difficulty: 1,
		Pow:        database.Pow{Nonce: 12345},
	}

	// The first hash builds the cache, only the second one is measured.
	baseline := minBaseline
	if _, err := v.hasher.compute(ref.PrevHash[:], ref.Bytes(), nil); err == nil {
		ref.Pow.Nonce++
		if r, err := v.hasher.compute(ref.PrevHash[:], ref.Bytes(), v.clock); err == nil && r.elapsed > baseline {
			baseline = r.elapsed
		}
	}

	v.baseline.Store(int64(baseline))
	v.evHandler("randomx: calibrate: baseline[%s]: suspicious[<%s]: rejection[<%s]", baseline, baseline*SuspiciousPercent/100, baseline*RejectionPercent/100)
}

// Stats returns a summary of the peer scores and calibration.
func (v *Verifier) Stats() Stats {
	s := Stats{
		BaselineMicros: float64(v.baseline.Load()) / float64(time.Microsecond),
		Calibrations:   v.calibrations.Load(),
		Mode:           v.hasher.Mode().String(),
		Insecure:       v.Insecure(),
		HardwareAES:    v.hwAES,
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	s.TotalPeers = len(v.scores)
	for _, score := range v.scores {
		if score.Blacklisted {
			s.BlacklistedPeers++
		}
		s.TotalSuspicious += uint64(score.SuspiciousCount)
		s.TotalSubmissions += uint64(score.TotalSubmissions)
	}

	return s
}
