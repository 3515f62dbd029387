package randomx_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/randomx"
)

// stepClock advances by a fixed step every time it is read.
type stepClock struct {
	now  atomic.Int64
	step atomic.Int64
}

func newStepClock(step time.Duration) *stepClock {
	var c stepClock
	c.now.Store(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	c.step.Store(int64(step))
	return &c
}

func (c *stepClock) Now() time.Time {
	return time.Unix(0, c.now.Add(c.step.Load()))
}

func (c *stepClock) TickAfter(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

func (c *stepClock) set(step time.Duration) {
	c.step.Store(int64(step))
}

func newVerifier(t *testing.T, clk *stepClock) *randomx.Verifier {
	t.Helper()

	v, err := randomx.NewVerifier(randomx.Config{
		Mode:   randomx.ModeLight,
		Secure: true,
		Clock:  clk,
	})
	require.NoError(t, err)

	return v
}

// sealed returns a header carrying its own correct hash.
func sealed(t *testing.T, h *randomx.Hasher, nonce, difficulty uint64) database.BlockHeader {
	t.Helper()

	header := database.BlockHeader{
		Version:    database.BlockVersion,
		PrevHash:   database.Hash{1, 2, 3},
		Timestamp:  1_700_000_000,
		Height:     7,
		Difficulty: difficulty,
		Pow:        database.Pow{Nonce: nonce},
	}

	hash, err := h.Hash(header.PrevHash[:], header.Bytes())
	require.NoError(t, err)
	header.Pow.Hash = hash

	return header
}

// =============================================================================

func TestHashDeterministic(t *testing.T) {
	light, err := randomx.NewHasher(randomx.ModeLight, 0)
	require.NoError(t, err)

	full, err := randomx.NewHasher(randomx.ModeFull, 0)
	require.NoError(t, err)

	seed := []byte("seed")
	input := []byte("block header bytes")

	h1, err := light.Hash(seed, input)
	require.NoError(t, err)

	h2, err := light.Hash(seed, input)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	h3, err := full.Hash(seed, input)
	require.NoError(t, err)
	require.Equal(t, h1, h3, "full and light mode must agree")

	h4, err := light.Hash([]byte("other seed"), input)
	require.NoError(t, err)
	require.NotEqual(t, h1, h4)

	h5, err := light.Hash(seed, []byte("block header byteZ"))
	require.NoError(t, err)
	require.NotEqual(t, h1, h5)
}

func TestNonceChangesHash(t *testing.T) {
	h, err := randomx.NewHasher(randomx.ModeLight, 0)
	require.NoError(t, err)

	a := sealed(t, h, 1, 1)
	b := sealed(t, h, 2, 1)
	require.NotEqual(t, a.Pow.Hash, b.Pow.Hash)
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]randomx.Mode{"": randomx.ModeAuto, "auto": randomx.ModeAuto, "full": randomx.ModeFull, "light": randomx.ModeLight} {
		m, err := randomx.ParseMode(s)
		require.NoError(t, err)
		require.Equal(t, want, m)
	}

	_, err := randomx.ParseMode("gpu")
	require.Error(t, err)
}

func TestAutoModeMemory(t *testing.T) {
	low, err := randomx.NewVerifier(randomx.Config{
		AvailableMemory: func() (uint64, error) { return 512 << 20, nil },
	})
	require.NoError(t, err)
	require.Equal(t, randomx.ModeLight, low.Hasher().Mode())
	require.True(t, low.Insecure())

	failing, err := randomx.NewVerifier(randomx.Config{
		AvailableMemory: func() (uint64, error) { return 0, errors.New("no sigar") },
	})
	require.NoError(t, err)
	require.True(t, failing.Insecure())

	high, err := randomx.NewVerifier(randomx.Config{
		AvailableMemory: func() (uint64, error) { return 4096 << 20, nil },
	})
	require.NoError(t, err)
	require.Equal(t, randomx.ModeFull, high.Hasher().Mode())
	require.False(t, high.Insecure())
}

func TestVerifyBlockPoW(t *testing.T) {
	clk := newStepClock(time.Millisecond)
	v := newVerifier(t, clk)

	header := sealed(t, v.Hasher(), 42, 1)

	verdict, err := v.VerifyBlockPoW(header, "peer-a")
	require.NoError(t, err)
	require.True(t, verdict.Valid)
	require.Equal(t, randomx.ClassNormal, verdict.Class)
	require.Equal(t, header.Pow.Hash, verdict.Hash)

	tampered := header
	tampered.Pow.Hash[0] ^= 0xff
	verdict, err = v.VerifyBlockPoW(tampered, "peer-a")
	require.ErrorIs(t, err, randomx.ErrHashMismatch)
	require.False(t, verdict.Valid)
	require.Equal(t, randomx.ClassInvalid, verdict.Class)

	hard := sealed(t, v.Hasher(), 42, ^uint64(0))
	_, err = v.VerifyBlockPoW(hard, "peer-a")
	require.ErrorIs(t, err, randomx.ErrTargetMissed)

	score, ok := v.PeerScore("peer-a")
	require.True(t, ok)
	require.EqualValues(t, 1, score.TotalSubmissions)
	require.False(t, score.Blacklisted)
}

func TestTimingClasses(t *testing.T) {
	clk := newStepClock(time.Millisecond)
	v := newVerifier(t, clk)
	require.Equal(t, time.Millisecond, v.Baseline())

	tests := []struct {
		name  string
		step  time.Duration
		class randomx.Class
		valid bool
	}{
		{"normal", time.Millisecond, randomx.ClassNormal, true},
		{"suspicious", 200 * time.Microsecond, randomx.ClassSuspicious, true},
		{"slow", 20 * time.Millisecond, randomx.ClassSlow, true},
		{"extreme", 50 * time.Microsecond, randomx.ClassExtreme, false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk.set(tt.step)
			header := sealed(t, v.Hasher(), uint64(100+i), 1)

			verdict, err := v.VerifyBlockPoW(header, "")
			require.Equal(t, tt.class, verdict.Class)
			require.Equal(t, tt.valid, verdict.Valid)
			require.Equal(t, tt.step, verdict.Elapsed)
			require.Equal(t, tt.class != randomx.ClassNormal, verdict.Suspicious)

			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, randomx.ErrTooFast)
		})
	}

	require.Zero(t, v.Stats().TotalPeers, "anonymous submissions are not scored")
}

func TestExtremeBlacklist(t *testing.T) {
	clk := newStepClock(time.Millisecond)

	var verdicts atomic.Int32
	v, err := randomx.NewVerifier(randomx.Config{
		Mode:      randomx.ModeLight,
		Clock:     clk,
		OnVerdict: func(randomx.Verdict) { verdicts.Add(1) },
	})
	require.NoError(t, err)
	v.Baseline()

	clk.set(10 * time.Microsecond)
	for i := range 2 {
		_, err := v.VerifyBlockPoW(sealed(t, v.Hasher(), uint64(i), 1), "asic")
		require.ErrorIs(t, err, randomx.ErrTooFast)
	}
	require.True(t, v.IsPeerBlacklisted("asic"))

	// Blacklisting is permanent even for honest-looking work.
	clk.set(time.Millisecond)
	verdict, err := v.VerifyBlockPoW(sealed(t, v.Hasher(), 9, 1), "asic")
	require.ErrorIs(t, err, randomx.ErrBlacklisted)
	require.Equal(t, randomx.ClassBlacklisted, verdict.Class)
	require.True(t, v.IsPeerBlacklisted("asic"))

	require.EqualValues(t, 3, verdicts.Load())

	stats := v.Stats()
	require.Equal(t, 1, stats.TotalPeers)
	require.Equal(t, 1, stats.BlacklistedPeers)
	require.EqualValues(t, 2, stats.TotalSuspicious)
}

func TestExtremeStreakResets(t *testing.T) {
	clk := newStepClock(time.Millisecond)
	v := newVerifier(t, clk)
	v.Baseline()

	steps := []time.Duration{10 * time.Microsecond, time.Millisecond, 10 * time.Microsecond}
	for i, step := range steps {
		clk.set(step)
		v.VerifyBlockPoW(sealed(t, v.Hasher(), uint64(i), 1), "miner")
	}

	score, ok := v.PeerScore("miner")
	require.True(t, ok)
	require.False(t, score.Blacklisted)
	require.EqualValues(t, 1, score.ConsecutiveExtreme)
	require.EqualValues(t, 2, score.SuspiciousCount)
	require.EqualValues(t, 3, score.TotalSubmissions)
}

func TestSuspiciousRatioBlacklist(t *testing.T) {
	clk := newStepClock(time.Millisecond)
	v := newVerifier(t, clk)
	v.Baseline()

	clk.set(200 * time.Microsecond)
	for i := range 5 {
		_, err := v.VerifyBlockPoW(sealed(t, v.Hasher(), uint64(i), 1), "gpu")
		require.NoError(t, err)
	}
	require.False(t, v.IsPeerBlacklisted("gpu"), "five suspicious submissions are tolerated")

	_, err := v.VerifyBlockPoW(sealed(t, v.Hasher(), 5, 1), "gpu")
	require.NoError(t, err)
	require.True(t, v.IsPeerBlacklisted("gpu"))
}

func TestCalibrateOnce(t *testing.T) {
	clk := newStepClock(time.Millisecond)
	v := newVerifier(t, clk)

	baselines := make([]time.Duration, 16)

	var wg sync.WaitGroup
	for i := range baselines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			baselines[i] = v.Baseline()
		}()
	}
	wg.Wait()

	for _, b := range baselines {
		require.Equal(t, time.Millisecond, b)
	}

	require.EqualValues(t, 1, v.Stats().Calibrations)
	require.InDelta(t, 1000.0, v.Stats().BaselineMicros, 0.001)
}

func TestColdCacheNotTimed(t *testing.T) {
	clk := newStepClock(time.Millisecond)
	v := newVerifier(t, clk)
	require.Equal(t, time.Millisecond, v.Baseline())

	// Seal under a seed the verifier has never built a cache for.
	other, err := randomx.NewHasher(randomx.ModeLight, 0)
	require.NoError(t, err)

	header := database.BlockHeader{
		Version:    database.BlockVersion,
		PrevHash:   database.Hash{9, 9, 9},
		Timestamp:  1_700_000_000,
		Height:     8,
		Difficulty: 1,
	}
	hash, err := other.Hash(header.PrevHash[:], header.Bytes())
	require.NoError(t, err)
	header.Pow.Hash = hash

	verdict, err := v.VerifyBlockPoW(header, "")
	require.NoError(t, err)
	require.True(t, verdict.Valid)
	require.Equal(t, time.Millisecond, verdict.Elapsed, "only the program run is timed")
	require.NotEqual(t, randomx.ClassSlow, verdict.Class)
}
