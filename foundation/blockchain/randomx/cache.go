package randomx

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"golang.org/x/crypto/argon2"
)

// cache is the argon2 derived memory dataset items are expanded from. In
// full mode the whole dataset is expanded up front.
type cache struct {
	memory  []byte
	block   cipher.Block
	dataset []byte
}

func newCache(key [32]byte, full bool) (*cache, error) {
	memory := argon2.IDKey(key[:], argonSalt, argonTime, argonMemory, argonLanes, CacheSize)

	block, err := aes.NewCipher(memory[:16])
	if err != nil {
		return nil, err
	}

	c := cache{
		memory: memory,
		block:  block,
	}

	if full {
		c.dataset = make([]byte, DatasetItems*ItemSize)
		for i := uint64(0); i < DatasetItems; i++ {
			c.expand(i, c.dataset[i*ItemSize:(i+1)*ItemSize])
		}
	}

	return &c, nil
}

// expand writes dataset item i: the matching cache item tweaked with the
// index and passed twice through AES.
func (c *cache) expand(i uint64, out []byte) {
	const cacheItems = CacheSize / ItemSize

	ci := i % cacheItems
	src := c.memory[ci*ItemSize : (ci+1)*ItemSize]

	var tweak [aes.BlockSize]byte
	binary.LittleEndian.PutUint64(tweak[:8], i)

	var in [aes.BlockSize]byte
	for j := 0; j < ItemSize; j += aes.BlockSize {
		for k := range in {
			in[k] = src[j+k] ^ tweak[k]
		}

		dst := out[j : j+aes.BlockSize]
		c.block.Encrypt(dst, in[:])
		c.block.Encrypt(dst, dst)
	}
}

// word returns one 8 byte lane of a dataset item.
func (c *cache) word(item, lane uint64) uint64 {
	item %= DatasetItems
	lane %= ItemSize / 8

	if c.dataset != nil {
		off := item*ItemSize + lane*8
		return binary.LittleEndian.Uint64(c.dataset[off : off+8])
	}

	var buf [ItemSize]byte
	c.expand(item, buf[:])
	return binary.LittleEndian.Uint64(buf[lane*8:])
}
