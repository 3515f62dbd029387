// Package randomx implements the memory-hard proof-of-work function and the
// stateful verifier that times it, applies anti-ASIC heuristics and scores
// the peers that submit blocks.
package randomx

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lightningnetwork/lnd/clock"
)

// Parameters of the hash function. Changing any of them changes every hash.
const (
	CacheSize         = 256 << 10
	ItemSize          = 64
	DatasetItems      = 1 << 15
	ScratchpadSize    = 64 << 10
	ProgramSize       = 256
	ProgramIterations = 8

	argonTime   = 1
	argonMemory = CacheSize >> 10
	argonLanes  = 1
)

// FullMemoryRequired is the host memory full mode expects to have
// available.
const FullMemoryRequired = 2080 << 20

var (
	argonSalt = []byte("RandomX\x03")
	keySuffix = []byte("RandomX-Key-v1")
)

// Mode selects how dataset items are produced.
type Mode int

// Set of modes. Both produce identical hashes.
const (
	ModeAuto Mode = iota
	ModeFull
	ModeLight
)

// String implements the fmt.Stringer interface.
func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeLight:
		return "light"
	}
	return "auto"
}

// ParseMode converts a configuration string into a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "full":
		return ModeFull, nil
	case "light":
		return ModeLight, nil
	}
	return ModeAuto, fmt.Errorf("unknown randomx mode %q", s)
}

// Key derives the cache key for a seed.
func Key(seed []byte) [32]byte {
	h := sha256.New()
	h.Write(seed)
	h.Write(keySuffix)

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// =============================================================================

// Hasher computes proof-of-work hashes. Caches are built once per seed and
// kept in an LRU. Each hash runs on its own scratchpad so no state carries
// between calls.
type Hasher struct {
	mode   Mode
	mu     sync.Mutex
	caches *lru.Cache[[32]byte, *cache]
}

// NewHasher constructs a hasher in full or light mode.
func NewHasher(mode Mode, cacheEntries int) (*Hasher, error) {
	if mode == ModeAuto {
		mode = ModeLight
	}

	if cacheEntries <= 0 {
		cacheEntries = 2
	}

	caches, err := lru.New[[32]byte, *cache](cacheEntries)
	if err != nil {
		return nil, err
	}

	return &Hasher{mode: mode, caches: caches}, nil
}

// Mode returns the dataset mode of the hasher.
func (h *Hasher) Mode() Mode {
	return h.mode
}

// Hash computes the proof-of-work hash of input under seed.
func (h *Hasher) Hash(seed, input []byte) ([32]byte, error) {
	r, err := h.compute(seed, input, nil)
	if err != nil {
		return [32]byte{}, err
	}
	return r.hash, nil
}

// computation is a hash together with what the verifier measures while
// producing it.
type computation struct {
	hash          [32]byte
	elapsed       time.Duration
	entropyBefore float64
	entropyAfter  float64
}

// compute runs the pipeline. When clk is not nil only the program execution
// is timed; cache construction and scratchpad fill are excluded.
func (h *Hasher) compute(seed, input []byte, clk clock.Clock) (computation, error) {
	c, err := h.cacheFor(seed)
	if err != nil {
		return computation{}, err
	}

	m, err := newVM(c, input)
	if err != nil {
		return computation{}, err
	}

	var r computation
	r.entropyBefore = entropy(m.scratchpad)

	if clk != nil {
		start := clk.Now()
		m.run()
		r.elapsed = clk.Now().Sub(start)
	} else {
		m.run()
	}

	r.entropyAfter = entropy(m.scratchpad)
	r.hash = m.finish()

	return r, nil
}

func (h *Hasher) cacheFor(seed []byte) (*cache, error) {
	key := Key(seed)

	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.caches.Get(key); ok {
		return c, nil
	}

	c, err := newCache(key, h.mode == ModeFull)
	if err != nil {
		return nil, err
	}
	h.caches.Add(key, c)

	return c, nil
}
