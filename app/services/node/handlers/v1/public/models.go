package public

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blacksilk/node/business/sys/validate"
	"github.com/blacksilk/node/foundation/blockchain/database"
)

type blocksResponse struct {
	Blocks      []database.Block `json:"blocks"`
	TotalHeight uint64           `json:"total_height"`
}

type submitTxResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TxHash  string `json:"tx_hash,omitempty"`
}

type mempoolResponse struct {
	Transactions []database.Tx `json:"transactions"`
	Count        int           `json:"count"`
}

type templateRequest struct {
	Address string `json:"address" validate:"required,address"`
}

// Validate checks the data in the model is considered clean.
func (tr templateRequest) Validate() error {
	return validate.Check(tr)
}

type submitBlockRequest struct {
	Header       hexutil.Bytes `json:"header" validate:"required"`
	Nonce        uint64        `json:"nonce"`
	Hash         database.Hash `json:"hash"`
	MinerAddress string        `json:"miner_address"`
}

// Validate checks the data in the model is considered clean.
func (sbr submitBlockRequest) Validate() error {
	return validate.Check(sbr)
}

type submitBlockResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Height  uint64 `json:"height,omitempty"`
}
