package mempool_test

import (
	"errors"
	"testing"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/mempool"
	"github.com/blacksilk/node/foundation/blockchain/mempool/selector"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// newTx builds a transaction spending the specified key images. Mempool
// does not validate so the signatures are left empty.
func newTx(memo string, fee uint64, keyImages ...byte) database.Tx {
	tx := database.Tx{
		Kind:    database.Payment{},
		Fee:     fee,
		Extra:   []byte(memo),
		Outputs: []database.TxOutput{{AmountCommitment: []byte{1}}},
	}
	for _, ki := range keyImages {
		tx.Inputs = append(tx.Inputs, database.TxInput{KeyImage: database.KeyImage{ki}})
	}
	return tx
}

func TestCRUD(t *testing.T) {
	type table struct {
		name string
		txs  []database.Tx
		best []string
	}

	tt := []table{
		{
			name: "basic",
			txs: []database.Tx{
				newTx("bill", 10, 1),
				newTx("pavel", 50, 2),
				newTx("ed", 100, 3),
				newTx("ana", 10, 4),
			},
			best: []string{"ed", "pavel", "bill", "ana"},
		},
	}

	t.Log("Given the need to validate mempool api.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					mp, err := mempool.New()
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct mempool: %s", failed, testID, err)
					}

					for _, tx := range tst.txs {
						if _, err := mp.Add(tx); err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to add new transaction: %s", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould be able to add new transaction: %s", success, testID, tx.ID())
					}

					for i, tx := range mp.Copy() {
						if string(tx.Extra) != string(tst.txs[i].Extra) {
							t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tx.Extra)
							t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.txs[i].Extra)
							t.Fatalf("\t%s\tTest %d:\tShould get back transactions in arrival order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back transactions in arrival order.", success, testID)

					for i, tx := range mp.PickBest(4) {
						if string(tx.Extra) != tst.best[i] {
							t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tx.Extra)
							t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.best[i])
							t.Fatalf("\t%s\tTest %d:\tShould get back the right fee order.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould get back the right fee order: %d", success, testID, tx.Fee)
					}

					if !mp.HasKeyImage(database.KeyImage{2}) {
						t.Fatalf("\t%s\tTest %d:\tShould index the key images of pooled transactions.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould index the key images of pooled transactions.", success, testID)

					mp.Delete(mp.Copy()[1].ID())
					if l := len(mp.Copy()); l != 3 {
						t.Fatalf("\t%s\tTest %d:\tShould be able to remove a transaction.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to remove a transaction.", success, testID)

					if mp.HasKeyImage(database.KeyImage{2}) {
						t.Fatalf("\t%s\tTest %d:\tShould drop the key images of a removed transaction.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould drop the key images of a removed transaction.", success, testID)

					mp.Truncate()
					if l := mp.Count(); l != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould be able to truncate mempool.", failed, testID)
					}
					if mp.HasKeyImage(database.KeyImage{1}) {
						t.Fatalf("\t%s\tTest %d:\tShould clear the key image index on truncate.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to truncate mempool.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestDedup(t *testing.T) {
	t.Log("Given the need to control duplicate submissions.")
	{
		tx := newTx("same", 10, 9)

		t.Logf("\tTest 0:\tWhen using the none policy.")
		{
			mp, err := mempool.NewWithConfig(mempool.Config{Dedup: mempool.DedupNone})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct mempool: %s", failed, err)
			}

			mp.Add(tx)
			if n, err := mp.Add(tx); err != nil || n != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould pool the same payload twice: %d %v", failed, n, err)
			}
			t.Logf("\t%s\tTest 0:\tShould pool the same payload twice.", success)

			if n := mp.Delete(tx.ID()); n != 2 || mp.HasKeyImage(database.KeyImage{9}) {
				t.Fatalf("\t%s\tTest 0:\tShould delete every copy and its key images, deleted %d.", failed, n)
			}
			t.Logf("\t%s\tTest 0:\tShould delete every copy and its key images.", success)
		}

		t.Logf("\tTest 1:\tWhen using the payload-hash policy.")
		{
			mp, err := mempool.NewWithConfig(mempool.Config{Dedup: mempool.DedupPayloadHash})
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to construct mempool: %s", failed, err)
			}

			mp.Add(tx)
			if _, err := mp.Add(tx); !errors.Is(err, mempool.ErrDuplicate) {
				t.Fatalf("\t%s\tTest 1:\tShould reject the same payload: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the same payload.", success)

			if _, err := mp.Add(newTx("other", 10, 9)); !errors.Is(err, mempool.ErrKeyImageConflict) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a different payload spending the same key image: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject a different payload spending the same key image.", success)
		}

		t.Logf("\tTest 2:\tWhen upserting from a peer.")
		{
			mp, err := mempool.New()
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to construct mempool: %s", failed, err)
			}

			mp.Upsert(tx)
			if _, added, err := mp.Upsert(tx); added || err != nil || mp.Count() != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould ignore a known transaction: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould ignore a known transaction.", success)

			if _, added, err := mp.Upsert(newTx("other", 10, 9)); added || !errors.Is(err, mempool.ErrKeyImageConflict) {
				t.Fatalf("\t%s\tTest 2:\tShould reject a peer transaction spending a pooled key image: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject a peer transaction spending a pooled key image.", success)
		}

		t.Logf("\tTest 3:\tWhen configuring an unknown policy or strategy.")
		{
			if _, err := mempool.NewWithConfig(mempool.Config{Dedup: "identity"}); err == nil {
				t.Fatalf("\t%s\tTest 3:\tShould reject an unknown dedup policy.", failed)
			}
			if _, err := mempool.NewWithConfig(mempool.Config{Strategy: "tip"}); err == nil {
				t.Fatalf("\t%s\tTest 3:\tShould reject an unknown strategy.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould reject unknown settings.", success)
		}
	}
}

func TestEvictMined(t *testing.T) {
	t.Log("Given the need to drop transactions once they are mined.")
	{
		mp, err := mempool.NewWithConfig(mempool.Config{Strategy: selector.StrategyFIFO})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct mempool: %s", failed, err)
		}

		mined := newTx("mined", 5, 1)
		conflict := newTx("conflict", 50, 2)
		pending := newTx("pending", 1, 3)

		mp.Add(mined)
		mp.Add(conflict)
		mp.Add(pending)

		block := database.Block{
			Transactions: []database.Tx{
				database.NewCoinbaseTx(1, database.GenesisAddress()),
				mined,
				newTx("spends the conflict key image", 1, 2),
			},
		}

		if n := mp.EvictMined(block); n != 2 {
			t.Fatalf("\t%s\tShould evict the mined and the conflicting transaction, evicted %d.", failed, n)
		}
		t.Logf("\t%s\tShould evict the mined and the conflicting transaction.", success)

		left := mp.PickBest(-1)
		if len(left) != 1 || string(left[0].Extra) != "pending" {
			t.Fatalf("\t%s\tShould keep the pending transaction: %v", failed, left)
		}
		t.Logf("\t%s\tShould keep the pending transaction.", success)

		if mp.HasKeyImage(database.KeyImage{1}) || mp.HasKeyImage(database.KeyImage{2}) || !mp.HasKeyImage(database.KeyImage{3}) {
			t.Fatalf("\t%s\tShould keep the key image index in step with the pool.", failed)
		}
		t.Logf("\t%s\tShould keep the key image index in step with the pool.", success)
	}
}

func TestPickBestKeyImages(t *testing.T) {
	t.Log("Given the need to never pick two transactions spending the same key image.")
	{
		mp, err := mempool.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct mempool: %s", failed, err)
		}

		dup := newTx("dup", 100, 7)
		mp.Add(dup)
		mp.Add(dup)
		mp.Add(newTx("low", 1, 8))
		mp.Add(newTx("mid", 10, 6))

		best := mp.PickBest(-1)
		if len(best) != 3 {
			t.Fatalf("\t%s\tShould pick each key image once, got %d transactions.", failed, len(best))
		}
		t.Logf("\t%s\tShould pick each key image once.", success)

		exp := []string{"dup", "mid", "low"}
		for i, tx := range best {
			if string(tx.Extra) != exp[i] {
				t.Fatalf("\t%s\tShould keep the fee order, got %s at %d.", failed, tx.Extra, i)
			}
		}
		t.Logf("\t%s\tShould keep the fee order.", success)

		if best := mp.PickBest(2); len(best) != 2 || string(best[1].Extra) != "mid" {
			t.Fatalf("\t%s\tShould fill the limit with distinct transactions: %v", failed, best)
		}
		t.Logf("\t%s\tShould fill the limit with distinct transactions.", success)
	}
}
