package validator

import (
	"errors"
	"fmt"
)

// Category classifies why a block or transaction was rejected.
type Category string

// Set of rejection categories.
const (
	CategoryStructural    Category = "structural"
	CategoryCryptographic Category = "cryptographic"
	CategoryPoWInvalid    Category = "pow-invalid"
	CategoryPoWSuspicious Category = "pow-suspicious"
	CategoryPoWRejected   Category = "pow-rejected"
)

// Set of errors a rejection wraps.
var (
	ErrNoTransactions   = errors.New("block has no transactions")
	ErrCoinbaseInputs   = errors.New("coinbase transaction has inputs")
	ErrEmptyTransaction = errors.New("transaction has no inputs or no outputs")
	ErrMerkleRoot       = errors.New("merkle root does not match the transactions")
	ErrRingSignature    = errors.New("invalid ring signature")
	ErrDoubleSpend      = errors.New("double spend detected")
	ErrQuantumSignature = errors.New("invalid post-quantum signature")
	ErrRangeProof       = errors.New("invalid range proof")
	ErrContract         = errors.New("invalid contract transaction")
)

// Error is a rejection with the category it falls into and a reason that
// can be shown to the submitter.
type Error struct {
	Category Category
	Reason   string
	Err      error
}

func newError(category Category, err error, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Reason:   fmt.Sprintf(format, args...),
		Err:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Reason)
}

// Unwrap returns the sentinel the rejection wraps.
func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf returns the category of a rejection, or an empty category if
// err is not one.
func CategoryOf(err error) Category {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Category
	}
	return ""
}
