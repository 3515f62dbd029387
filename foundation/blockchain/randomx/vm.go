package randomx

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"math/bits"

	"golang.org/x/crypto/blake2b"
)

// Set of opcodes understood by the virtual machine.
const (
	opAdd = iota
	opSub
	opMul
	opXor
	opRor
	opLoad
	opDatasetLoad
	opStore
	opCount
)

type instruction struct {
	op  uint8
	dst uint8
	src uint8
	imm uint32
}

// vm executes a program derived from the input over a scratchpad derived
// from the input.
type vm struct {
	reg        [8]uint64
	scratchpad []byte
	program    [ProgramSize]instruction
	cache      *cache
}

func newVM(c *cache, input []byte) (*vm, error) {
	seed := blake2b.Sum512(input)

	block, err := aes.NewCipher(seed[:16])
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(block, seed[16:32])

	m := vm{
		scratchpad: make([]byte, ScratchpadSize),
		cache:      c,
	}
	stream.XORKeyStream(m.scratchpad, m.scratchpad)

	for i := range m.reg {
		m.reg[i] = binary.LittleEndian.Uint64(seed[i*8:])
	}

	code := make([]byte, ProgramSize*8)
	stream.XORKeyStream(code, code)
	for i := range m.program {
		b := code[i*8 : (i+1)*8]
		m.program[i] = instruction{
			op:  b[0] % opCount,
			dst: b[1] & 7,
			src: b[2] & 7,
			imm: binary.LittleEndian.Uint32(b[4:8]),
		}
	}

	return &m, nil
}

// run executes the program ProgramIterations times. Between iterations one
// register is folded with the scratchpad word it addresses.
func (m *vm) run() {
	for it := 0; it < ProgramIterations; it++ {
		for _, ins := range m.program {
			m.exec(ins)
		}

		r := it % len(m.reg)
		m.reg[r] ^= m.load(m.reg[(r+1)%len(m.reg)])
	}
}

func (m *vm) exec(ins instruction) {
	dst := &m.reg[ins.dst]
	src := m.reg[ins.src]
	imm := uint64(ins.imm)

	// An instruction reading its own destination uses the immediate so
	// registers never cancel themselves out.
	operand := src
	if ins.dst == ins.src {
		operand = imm
	}

	switch ins.op {
	case opAdd:
		*dst += operand
	case opSub:
		*dst -= operand
	case opMul:
		*dst *= src | 1
	case opXor:
		*dst ^= operand
	case opRor:
		*dst = bits.RotateLeft64(*dst, -int((src+imm)%64))
	case opLoad:
		*dst ^= m.load(src + imm)
	case opDatasetLoad:
		addr := src + imm
		*dst ^= m.cache.word(addr>>3, addr&7)
	case opStore:
		m.store(*dst+imm, src)
	}
}

func (m *vm) offset(addr uint64) uint64 {
	return (addr % (ScratchpadSize / 8)) * 8
}

func (m *vm) load(addr uint64) uint64 {
	off := m.offset(addr)
	return binary.LittleEndian.Uint64(m.scratchpad[off : off+8])
}

func (m *vm) store(addr, v uint64) {
	off := m.offset(addr)
	binary.LittleEndian.PutUint64(m.scratchpad[off:off+8], v)
}

// finish folds the scratchpad into the AES encrypted registers and hashes
// the result.
func (m *vm) finish() [32]byte {
	fold := blake2b.Sum512(m.scratchpad)

	var regs [64]byte
	for i, r := range m.reg {
		binary.LittleEndian.PutUint64(regs[i*8:], r)
	}

	block, err := aes.NewCipher(fold[:16])
	if err == nil {
		for j := 0; j < len(regs); j += aes.BlockSize {
			for k := 0; k < aes.BlockSize; k++ {
				regs[j+k] ^= fold[j+k]
			}
			block.Encrypt(regs[j:j+aes.BlockSize], regs[j:j+aes.BlockSize])
		}
	}

	buf := make([]byte, 0, len(regs)+len(fold))
	buf = append(buf, regs[:]...)
	buf = append(buf, fold[:]...)

	return blake2b.Sum256(buf)
}
