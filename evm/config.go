// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package evm

import (
	"math/big"

	gethparams "github.com/ethereum/go-ethereum/params"
)

// ChainConfig returns the fixed go-ethereum *params.ChainConfig Norn runs
// the interpreter under. Every fork is activated at block 0 up through
// London: Homestead/Byzantium/Constantinople for baseline interpreter
// behavior, Istanbul for the precompile table spec §4.6.4 names
// (ECRECOVER..BLAKE2F), Berlin for EIP-2929/2930 warm/cold accounting,
// and London for EIP-1559/EIP-3529. Shanghai/Cancun are left
// unconfigured so no additional precompiles beyond 0x09 appear, matching
// spec §4.6.4's fixed set.
func ChainConfig() *gethparams.ChainConfig {
	zero := big.NewInt(0)
	return &gethparams.ChainConfig{
		ChainID:             zero,
		HomesteadBlock:      zero,
		EIP150Block:         zero,
		EIP155Block:         zero,
		EIP158Block:         zero,
		ByzantiumBlock:      zero,
		ConstantinopleBlock: zero,
		PetersburgBlock:     zero,
		IstanbulBlock:       zero,
		MuirGlacierBlock:    zero,
		BerlinBlock:         zero,
		LondonBlock:         zero,
	}
}
