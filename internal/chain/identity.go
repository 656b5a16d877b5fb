package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecordKind salts the derived identity so that multiple records produced
// from a single raw event (the audit row, the normalized transaction, the
// collateral transfer) get distinct, stable keys.
type RecordKind byte

const (
	RecordAudit       RecordKind = 0
	RecordTransfer    RecordKind = 1
	RecordTransaction RecordKind = 2
	RecordAdmin       RecordKind = 3
)

// RecordID derives the stable identity for a record produced from one raw
// event: Keccak-256 over txHash || big-endian logIndex || kind. Applying it
// twice to the same event yields the same key, so stores that upsert by key
// absorb re-delivery without duplicates.
func RecordID(txHash common.Hash, logIndex uint, kind RecordKind) string {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(logIndex))

	sum := crypto.Keccak256(txHash.Bytes(), idx[:], []byte{byte(kind)})
	return hexutil.Encode(sum)
}

// RecordIDFromLog is RecordID applied to an event envelope.
func RecordIDFromLog(l Log, kind RecordKind) string {
	return RecordID(l.TxHash, l.LogIndex, kind)
}
