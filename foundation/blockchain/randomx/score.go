package randomx

import (
	"time"
)

// Blacklisting thresholds.
const (
	consecutiveExtremeLimit = 2
	minSuspicious           = 5
	suspiciousRatio         = 0.5
	longRunSubmissions      = 50
	longRunRatio            = 0.3
)

// PeerScore counts what a peer has submitted. Once blacklisted a peer stays
// blacklisted.
type PeerScore struct {
	SuspiciousCount    uint32    `json:"suspicious_count"`
	TotalSubmissions   uint32    `json:"total_submissions"`
	ConsecutiveExtreme uint32    `json:"consecutive_extreme"`
	LastSuspicious     time.Time `json:"last_suspicious"`
	Blacklisted        bool      `json:"blacklisted"`
}

// IsPeerBlacklisted reports whether the peer has been blacklisted.
func (v *Verifier) IsPeerBlacklisted(peerID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	score, exists := v.scores[peerID]
	return exists && score.Blacklisted
}

// PeerScore returns a copy of the peer's score.
func (v *Verifier) PeerScore(peerID string) (PeerScore, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	score, exists := v.scores[peerID]
	if !exists {
		return PeerScore{}, false
	}
	return *score, true
}

// record updates the peer's score with the class of its latest submission.
func (v *Verifier) record(peerID string, class Class, reason string) {
	if peerID == "" {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	score, exists := v.scores[peerID]
	if !exists {
		score = &PeerScore{}
		v.scores[peerID] = score
	}

	score.TotalSubmissions++

	switch class {
	case ClassNormal:
		score.ConsecutiveExtreme = 0
		return

	case ClassExtreme:
		score.ConsecutiveExtreme++

	default:
		score.ConsecutiveExtreme = 0
	}

	score.SuspiciousCount++
	score.LastSuspicious = v.clock.Now()

	if score.Blacklisted {
		return
	}

	ratio := float64(score.SuspiciousCount) / float64(score.TotalSubmissions)

	switch {
	case score.ConsecutiveExtreme >= consecutiveExtremeLimit,
		score.SuspiciousCount > minSuspicious && ratio > suspiciousRatio,
		score.TotalSubmissions >= longRunSubmissions && ratio > longRunRatio:
		score.Blacklisted = true
		v.evHandler("randomx: record: peer[%s]: BLACKLISTED: %s", peerID, reason)

	default:
		v.evHandler("randomx: record: peer[%s]: suspicious[%d/%d]: %s", peerID, score.SuspiciousCount, score.TotalSubmissions, reason)
	}
}
