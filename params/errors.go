// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import "errors"

var (
	errFeeTooLow       = errors.New("params: fee below base_fee")
	errPriorityTooHigh = errors.New("params: max_priority_fee_per_gas exceeds max_fee_per_gas")
)
