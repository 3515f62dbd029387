// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"

	"github.com/blacksilk/node/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyFee  = "fee"
	StrategyFIFO = "fifo"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFee:  feeSelect,
	StrategyFIFO: fifoSelect,
}

// Entry is a pooled transaction along with the order it arrived in.
type Entry struct {
	Tx      database.Tx
	Hash    database.Hash
	Arrival uint64
}

// Func defines a function that takes the pooled transactions and selects
// howMany of them in an order based on the functions strategy. Receiving -1
// for howMany must return all the transactions in the strategies ordering.
// A function may reorder the slice it is given.
type Func func(entries []Entry, howMany int) []database.Tx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// take returns the first howMany transactions of the sorted entries.
func take(entries []Entry, howMany int) []database.Tx {
	if howMany < 0 || howMany > len(entries) {
		howMany = len(entries)
	}

	final := make([]database.Tx, howMany)
	for i := range final {
		final[i] = entries[i].Tx
	}
	return final
}

// =============================================================================

// byArrival provides sorting support by the order transactions arrived.
type byArrival []Entry

// Len returns the number of transactions in the list.
func (ba byArrival) Len() int {
	return len(ba)
}

// Less helps to sort the list by arrival in ascending order.
func (ba byArrival) Less(i, j int) bool {
	return ba[i].Arrival < ba[j].Arrival
}

// Swap moves transactions in the order of arrival.
func (ba byArrival) Swap(i, j int) {
	ba[i], ba[j] = ba[j], ba[i]
}

// =============================================================================

// byFee provides sorting support by the transaction fee value.
type byFee []Entry

// Len returns the number of transactions in the list.
func (bf byFee) Len() int {
	return len(bf)
}

// Less helps to sort the list by fee in descending order to pick the
// transactions that provide the best reward. Equal fees keep arrival order.
func (bf byFee) Less(i, j int) bool {
	if bf[i].Tx.Fee == bf[j].Tx.Fee {
		return bf[i].Arrival < bf[j].Arrival
	}
	return bf[i].Tx.Fee > bf[j].Tx.Fee
}

// Swap moves transactions in the order of the fee value.
func (bf byFee) Swap(i, j int) {
	bf[i], bf[j] = bf[j], bf[i]
}
