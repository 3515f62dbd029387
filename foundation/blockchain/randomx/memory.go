package randomx

import (
	sigar "github.com/elastic/gosigar"
	"github.com/klauspost/cpuid/v2"
)

// AvailableMemory reports the memory the host can hand to the dataset.
func AvailableMemory() (uint64, error) {
	var mem sigar.Mem
	if err := mem.Get(); err != nil {
		return 0, err
	}
	return mem.ActualFree, nil
}

// HardwareAES reports whether the CPU has AES instructions.
func HardwareAES() bool {
	return cpuid.CPU.Supports(cpuid.AESNI)
}
