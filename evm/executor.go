// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	gethparams "github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	nortypes "github.com/norn-chain/norn/core/types"
	nornparams "github.com/norn-chain/norn/params"
	nornstate "github.com/norn-chain/norn/state"
)

var (
	ErrInsufficientBalance = errors.New("evm: insufficient balance for gas * price + value")
	ErrNonceMismatch       = errors.New("evm: tx.nonce does not match account nonce")
)

// Context carries the per-block parameters the executor needs, per spec
// §4.6's EVMContext: {block_number, timestamp, coinbase, block_gas_limit,
// tx_gas_price (base_fee)}.
type Context struct {
	BlockNumber   uint64
	Timestamp     uint64
	Coinbase      nortypes.Address
	BlockGasLimit uint64
	BaseFee       *big.Int
}

// Executor applies transactions against a state.Manager, running the
// real go-ethereum interpreter underneath the hostDB adapter of §4.6.1.
type Executor struct {
	mgr         *nornstate.Manager
	fees        nornparams.FeeConfig
	blockHashes *BlockHashHistory
	chainConfig *gethparams.ChainConfig
	precompiles []common.Address
	codeCache   *codeCache
}

// NewExecutor constructs an Executor over mgr, using fees for EIP-1559
// validation and hashes for the BLOCKHASH opcode. A single fastcache
// instance is shared by every transaction this Executor applies, per
// spec §4.6.1's host database adapter note.
func NewExecutor(mgr *nornstate.Manager, fees nornparams.FeeConfig, hashes *BlockHashHistory) *Executor {
	return &Executor{
		mgr:         mgr,
		fees:        fees,
		blockHashes: hashes,
		chainConfig: ChainConfig(),
		precompiles: precompileAddresses(),
		codeCache:   newCodeCache(),
	}
}

// precompileAddresses returns 0x01..0x09, per spec §4.6.4.
func precompileAddresses() []common.Address {
	out := make([]common.Address, 9)
	for i := range out {
		out[i] = common.BytesToAddress([]byte{byte(i + 1)})
	}
	return out
}

// ApplyTransaction implements spec §4.6's transaction-entry pipeline.
// txIndex and cumulativeGasUsed locate this tx within its containing
// block for the returned Receipt.
func (e *Executor) ApplyTransaction(ctx Context, tx *nortypes.Transaction, txIndex uint32, cumulativeGasUsed uint64) (*nortypes.Receipt, error) {
	baseFee := ctx.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}

	// Step 1: validate fee params against base_fee.
	if err := nornparams.ValidateFeeParams(baseFee, tx.MaxFeePerGas, tx.MaxPriorityFeePerGas, tx.GasPrice); err != nil {
		return nil, err
	}
	effectiveGasPrice := nornparams.EffectiveGasPrice(baseFee, tx.MaxFeePerGas, tx.MaxPriorityFeePerGas, tx.GasPrice)

	// Step 2: intrinsic gas.
	if err := CheckIntrinsicGas(tx); err != nil {
		return nil, err
	}

	sender := common.Address(tx.Sender)
	hostDB := newHostDB(e.mgr, e.codeCache)

	rules := e.chainConfig.Rules(new(big.Int).SetUint64(ctx.BlockNumber), false, ctx.Timestamp)
	var dst *common.Address
	if tx.Receiver != nil {
		d := common.Address(*tx.Receiver)
		dst = &d
	}
	hostDB.Prepare(rules, sender, common.Address(ctx.Coinbase), dst, e.precompiles, toGethAccessList(tx.AccessList))

	// Step 3: debit gas_limit * effective_gas_price, then value.
	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.GasLimit), effectiveGasPrice)
	gasCostU256, overflow := uint256.FromBig(gasCost)
	if overflow {
		return nil, ErrInsufficientBalance
	}
	if hostDB.GetBalance(sender).Cmp(gasCostU256) < 0 {
		return nil, ErrInsufficientBalance
	}
	value := nonNilValue(tx.Value)
	valueU256, overflow := uint256.FromBig(value)
	if overflow {
		return nil, ErrInsufficientBalance
	}
	if hostDB.GetBalance(sender).Cmp(new(uint256.Int).Add(gasCostU256, valueU256)) < 0 {
		return nil, ErrInsufficientBalance
	}
	hostDB.SubBalance(sender, gasCostU256, tracing.BalanceChangeUnspecified)

	// Step 4: nonce check & bump.
	if tx.Nonce != hostDB.GetNonce(sender) {
		return nil, ErrNonceMismatch
	}
	hostDB.SetNonce(sender, tx.Nonce+1)

	blockCtx := vm.BlockContext{
		CanTransfer: evmCanTransfer,
		Transfer:    evmTransfer,
		GetHash:     e.getHashFn(),
		Coinbase:    common.Address(ctx.Coinbase),
		BlockNumber: new(big.Int).SetUint64(ctx.BlockNumber),
		Time:        ctx.Timestamp,
		Difficulty:  new(big.Int),
		BaseFee:     baseFee,
		GasLimit:    ctx.BlockGasLimit,
	}
	txCtx := vm.TxContext{Origin: sender, GasPrice: effectiveGasPrice}
	vmEnv := vm.NewEVM(blockCtx, txCtx, hostDB, e.chainConfig, vm.Config{})

	var (
		ret         []byte
		leftOverGas uint64
		vmErr       error
		contractOut *nortypes.Address
	)

	// Step 5-6: call or create, then execute.
	callGas := tx.GasLimit - IntrinsicGas(tx.Data, tx.AccessList, tx.IsContractCreation())
	if tx.IsContractCreation() {
		ownAddr, err := CreateAddress(tx.Sender, tx.Nonce)
		if err != nil {
			return nil, err
		}
		var gethAddr common.Address
		ret, gethAddr, leftOverGas, vmErr = vmEnv.Create(vm.AccountRef(sender), tx.Data, callGas, valueU256)
		if vmErr == nil {
			hostDB.RemapAddress(gethAddr, common.Address(ownAddr))
			contractOut = &ownAddr
		}
	} else {
		ret, leftOverGas, vmErr = vmEnv.Call(vm.AccountRef(sender), *dst, tx.Data, callGas, valueU256)
	}
	_ = ret

	gasUsedRaw := tx.GasLimit - leftOverGas

	// Step 7: refund cap (EIP-3529).
	refund := CapRefund(hostDB.GetRefund(), gasUsedRaw)
	gasUsed := gasUsedRaw - refund

	// Step 8: credit coinbase the priority tip, burn the base-fee
	// portion, refund the sender for unused gas and the capped refund.
	tip := new(big.Int).Sub(effectiveGasPrice, baseFee)
	if tip.Sign() < 0 {
		tip = new(big.Int)
	}
	coinbaseCredit := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), tip)
	if u, overflow := uint256.FromBig(coinbaseCredit); !overflow {
		hostDB.AddBalance(common.Address(ctx.Coinbase), u, tracing.BalanceChangeUnspecified)
	}

	unusedGas := tx.GasLimit - gasUsed
	senderRefund := new(big.Int).Mul(new(big.Int).SetUint64(unusedGas), effectiveGasPrice)
	if u, overflow := uint256.FromBig(senderRefund); !overflow {
		hostDB.AddBalance(sender, u, tracing.BalanceChangeUnspecified)
	}

	status := nortypes.ReceiptStatusSuccessful
	if vmErr != nil {
		status = nortypes.ReceiptStatusFailed
	}

	// On success, commit every buffered write; on failure, only the gas
	// debit/credit above (sender's fee payment) is committed - the call's
	// own writes never left the dirty maps the interpreter touched,
	// since the interpreter rolls itself back to the outermost
	// snapshot on error before returning.
	hostDB.Commit()
	if err := e.mgr.Persist(); err != nil {
		return nil, err
	}

	receipt := &nortypes.Receipt{
		TxHash:            tx.Hash,
		BlockNumber:       ctx.BlockNumber,
		TxIndex:           txIndex,
		From:              tx.Sender,
		To:                tx.Receiver,
		ContractAddress:   contractOut,
		GasUsed:           gasUsed,
		CumulativeGasUsed: cumulativeGasUsed + gasUsed,
		Status:            status,
		Logs:              convertLogs(hostDB.Logs()),
		EffectiveGasPrice: effectiveGasPrice,
	}
	receipt.Bloom = BuildBloom(receipt.Logs)
	return receipt, nil
}

func nonNilValue(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (e *Executor) getHashFn() vm.GetHashFunc {
	return func(n uint64) common.Hash {
		if e.blockHashes == nil {
			return common.Hash{}
		}
		return common.Hash(e.blockHashes.Get(n))
	}
}

func evmCanTransfer(db vm.StateDB, addr common.Address, amount *uint256.Int) bool {
	return db.GetBalance(addr).Cmp(amount) >= 0
}

func evmTransfer(db vm.StateDB, sender, recipient common.Address, amount *uint256.Int) {
	db.SubBalance(sender, amount, tracing.BalanceChangeTransfer)
	db.AddBalance(recipient, amount, tracing.BalanceChangeTransfer)
}

func toGethAccessList(list nortypes.AccessList) types.AccessList {
	out := make(types.AccessList, len(list))
	for i, entry := range list {
		keys := make([]common.Hash, len(entry.StorageKeys))
		for j, k := range entry.StorageKeys {
			keys[j] = common.Hash(k)
		}
		out[i] = types.AccessTuple{Address: common.Address(entry.Address), StorageKeys: keys}
	}
	return out
}

func convertLogs(logs []*types.Log) []nortypes.Log {
	out := make([]nortypes.Log, len(logs))
	for i, l := range logs {
		topics := make([]nortypes.Hash, len(l.Topics))
		for j, t := range l.Topics {
			topics[j] = nortypes.Hash(t)
		}
		out[i] = nortypes.Log{Address: nortypes.Address(l.Address), Topics: topics, Data: l.Data}
	}
	return out
}
