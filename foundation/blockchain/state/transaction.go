package state

import (
	"errors"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/mempool"
	"github.com/blacksilk/node/foundation/blockchain/validator"
)

// SubmitTransaction accepts a transaction from a wallet for inclusion. The
// transaction is validated against the chain and the mempool, pooled and
// shared with the connected peers.
func (s *State) SubmitTransaction(tx database.Tx) (database.Hash, error) {
	if err := s.validateTransaction(tx); err != nil {
		return database.ZeroHash, err
	}

	n, err := s.mempool.Add(tx)
	if err != nil {
		s.evHandler("state: SubmitTransaction: tx[%s]: REJECTED: %s", tx.ID(), err)
		s.metrics.TxRejected(poolRejection(err))
		return database.ZeroHash, err
	}

	s.metrics.TxAccepted()
	s.metrics.SetMempoolSize(n)

	s.Worker.SignalShareTx(tx)

	return tx.ID(), nil
}

// UpsertMempool accepts a transaction learned from a peer. Transactions
// already pooled are ignored and reported as not added.
func (s *State) UpsertMempool(tx database.Tx) (bool, error) {
	if s.mempool.Contains(tx.ID()) {
		return false, nil
	}

	if err := s.validateTransaction(tx); err != nil {
		return false, err
	}

	n, added, err := s.mempool.Upsert(tx)
	if err != nil {
		s.evHandler("state: UpsertMempool: tx[%s]: REJECTED: %s", tx.ID(), err)
		s.metrics.TxRejected(poolRejection(err))
		return false, err
	}
	if added {
		s.metrics.TxAccepted()
		s.metrics.SetMempoolSize(n)
	}

	return added, nil
}

// =============================================================================

// validateTransaction checks the transaction and its key images against the
// chain and then the mempool. The mempool repeats its key image check under
// its own lock on insert, so a conflicting transaction racing past this
// check is still refused there.
func (s *State) validateTransaction(tx database.Tx) error {
	spent := database.KeyImageUnion{s.db, s.mempool}

	if err := s.validator.ValidateTransaction(tx, spent); err != nil {
		s.evHandler("state: validateTransaction: tx[%s]: REJECTED: %s", tx.ID(), err)
		s.metrics.TxRejected(string(validator.CategoryOf(err)))
		return err
	}

	return nil
}

// poolRejection returns the metrics category of a mempool insert error.
func poolRejection(err error) string {
	if errors.Is(err, mempool.ErrKeyImageConflict) {
		return string(validator.CategoryCryptographic)
	}
	return "duplicate"
}
