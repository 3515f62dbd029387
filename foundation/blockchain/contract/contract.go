// Package contract parses WASM contracts and records the deploy and invoke
// effects of accepted blocks. Contract code is never executed by the node.
package contract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"golang.org/x/crypto/blake2b"

	"github.com/blacksilk/node/foundation/blockchain/database"
)

// MaxCodeSize is the largest WASM module that can be deployed.
const MaxCodeSize = 1 << 20

// Set of errors returned by the registry.
var (
	ErrCodeTooLarge     = errors.New("contract too large")
	ErrInvalidModule    = errors.New("invalid WASM module")
	ErrContractNotFound = errors.New("contract not found")
)

// Parser represents the capability of checking a WASM module is well formed.
type Parser interface {
	Parse(ctx context.Context, code []byte) error
}

// Contract is a deployed module.
type Contract struct {
	Address     database.Address  `json:"address"`
	Creator     database.Address  `json:"creator"`
	Code        []byte            `json:"-"`
	CodeSize    int               `json:"code_size"`
	Height      uint64            `json:"height"`
	DeployedAt  uint64            `json:"deployed_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Invocations uint64            `json:"invocations"`
}

// Invocation is a recorded call against a deployed contract.
type Invocation struct {
	Contract database.Address `json:"contract"`
	Function string           `json:"function"`
	Params   []byte           `json:"params"`
	Caller   database.Address `json:"caller"`
	Height   uint64           `json:"height"`
}

// AddressOf returns the address a module is deployed at, the blake2b-256
// of its code.
func AddressOf(code []byte) database.Address {
	return database.AddressFromHash(blake2b.Sum256(code))
}

// =============================================================================

// Registry holds the deployed contracts and their invocations in memory.
type Registry struct {
	rt        wazero.Runtime
	evHandler func(v string, args ...any)

	mu          sync.RWMutex
	contracts   map[database.Address]*Contract
	invocations map[database.Address][]Invocation
}

// New constructs a registry backed by the wazero interpreter.
func New(ctx context.Context, evHandler func(v string, args ...any)) *Registry {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	return &Registry{
		rt:          wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter()),
		evHandler:   evHandler,
		contracts:   make(map[database.Address]*Contract),
		invocations: make(map[database.Address][]Invocation),
	}
}

// Close releases the wazero runtime.
func (r *Registry) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// Parse implements Parser. The module is compiled to validate it and then
// released.
func (r *Registry) Parse(ctx context.Context, code []byte) error {
	if len(code) > MaxCodeSize {
		return fmt.Errorf("%d bytes: %w", len(code), ErrCodeTooLarge)
	}

	compiled, err := r.rt.CompileModule(ctx, code)
	if err != nil {
		return fmt.Errorf("%s: %w", err, ErrInvalidModule)
	}

	return compiled.Close(ctx)
}

// ApplyBlock implements database.ContractEffects. Deploys are registered
// and invocations of known contracts recorded. Every failure is reported
// and the remaining transactions are still applied.
func (r *Registry) ApplyBlock(block database.Block) error {
	ctx := context.Background()

	var errs []error
	for _, tx := range block.Transactions {
		switch kind := tx.Kind.(type) {
		case database.ContractDeploy:
			addr, err := r.deploy(ctx, kind, block.Header)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.evHandler("contract: ApplyBlock: blk[%d]: deployed[%s]: creator[%s]", block.Header.Height, addr, kind.Creator)

		case database.ContractInvoke:
			if err := r.invoke(kind, block.Header.Height); err != nil {
				errs = append(errs, err)
				continue
			}
			r.evHandler("contract: ApplyBlock: blk[%d]: invoked[%s]: fn[%s]", block.Header.Height, kind.ContractAddress, kind.Function)

		case database.Payment, nil:
		}
	}

	return errors.Join(errs...)
}

// Contract returns the contract deployed at the address.
func (r *Registry) Contract(addr database.Address) (Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.contracts[addr]
	if !exists {
		return Contract{}, fmt.Errorf("%s: %w", addr, ErrContractNotFound)
	}

	return *c, nil
}

// Contracts returns every deployed contract ordered by height.
func (r *Registry) Contracts() []Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		list = append(list, *c)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Height == list[j].Height {
			return list[i].Address < list[j].Address
		}
		return list[i].Height < list[j].Height
	})

	return list
}

// Invocations returns the recorded calls against the contract.
func (r *Registry) Invocations(addr database.Address) []Invocation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Invocation(nil), r.invocations[addr]...)
}

// =============================================================================

func (r *Registry) deploy(ctx context.Context, d database.ContractDeploy, header database.BlockHeader) (database.Address, error) {
	if err := r.Parse(ctx, d.WasmCode); err != nil {
		return "", err
	}

	addr := AddressOf(d.WasmCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contracts[addr]; exists {
		return addr, nil
	}

	r.contracts[addr] = &Contract{
		Address:    addr,
		Creator:    d.Creator,
		Code:       append([]byte(nil), d.WasmCode...),
		CodeSize:   len(d.WasmCode),
		Height:     header.Height,
		DeployedAt: header.Timestamp,
		Metadata:   d.Metadata,
	}

	return addr, nil
}

func (r *Registry) invoke(i database.ContractInvoke, height uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.contracts[i.ContractAddress]
	if !exists {
		return fmt.Errorf("%s: %w", i.ContractAddress, ErrContractNotFound)
	}

	c.Invocations++
	r.invocations[i.ContractAddress] = append(r.invocations[i.ContractAddress], Invocation{
		Contract: i.ContractAddress,
		Function: i.Function,
		Params:   append([]byte(nil), i.Params...),
		Caller:   i.Caller,
		Height:   height,
	})

	return nil
}
