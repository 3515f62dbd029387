package selector

import (
	"sort"

	"github.com/blacksilk/node/foundation/blockchain/database"
)

// fifoSelect returns the transactions in the order they arrived.
var fifoSelect = func(entries []Entry, howMany int) []database.Tx {
	sort.Sort(byArrival(entries))
	return take(entries, howMany)
}
