package selector

import (
	"sort"

	"github.com/blacksilk/node/foundation/blockchain/database"
)

// feeSelect returns the transactions paying the best fee. Transactions
// with the same fee are taken in arrival order.
var feeSelect = func(entries []Entry, howMany int) []database.Tx {
	sort.Sort(byFee(entries))
	return take(entries, howMany)
}
