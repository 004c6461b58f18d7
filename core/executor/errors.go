// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package executor

import "fmt"

// Error kinds from spec §7 "Pre-flight validation" and the execution/
// finalisation failures downstream of it. Each is a distinct type (not a
// shared sentinel) so a caller can extract the structured fields spec §7
// documents (e.g. BlockGasLimitReached{gas_limit, gas_used, gas}).

type InvalidNonceError struct{ Expected, Got uint64 }

func (e *InvalidNonceError) Error() string {
	return fmt.Sprintf("invalid nonce: expected %d, got %d", e.Expected, e.Got)
}

type NotEnoughBaseGasError struct{ Required, Got uint64 }

func (e *NotEnoughBaseGasError) Error() string {
	return fmt.Sprintf("not enough base gas: required %d, got %d", e.Required, e.Got)
}

type ExceedMaxGasLimitError struct{ Max, Got uint64 }

func (e *ExceedMaxGasLimitError) Error() string {
	return fmt.Sprintf("gas %d exceeds max %d", e.Got, e.Max)
}

// BlockGasLimitReachedError is spec §7's BlockGasLimitReached{gas_limit,
// gas_used, gas}, raised both as a pre-flight check (4) and, per spec
// §4.4 "Finalisation", if post-execution cumulative gas would overflow.
type BlockGasLimitReachedError struct{ GasLimit, GasUsed, Gas uint64 }

func (e *BlockGasLimitReachedError) Error() string {
	return fmt.Sprintf("block gas limit reached: limit %d, used %d, tx gas %d", e.GasLimit, e.GasUsed, e.Gas)
}

type NotEnoughCashError struct{ Required, Got string }

func (e *NotEnoughCashError) Error() string {
	return fmt.Sprintf("not enough cash: required %s, got %s", e.Required, e.Got)
}

type InvalidGasPriceRangeError struct{}

func (e *InvalidGasPriceRangeError) Error() string { return "invalid gas price range" }

type InvalidGasPriceError struct{}

func (e *InvalidGasPriceError) Error() string { return "invalid gas price" }

type InvalidContractCreateGasError struct{}

func (e *InvalidContractCreateGasError) Error() string { return "invalid contract create gas" }

type InvalidTransactionGasError struct{}

func (e *InvalidTransactionGasError) Error() string { return "invalid transaction gas" }

type InvalidSignatureError struct{}

func (e *InvalidSignatureError) Error() string { return "invalid signature" }

type InvalidNonceLengthError struct{}

func (e *InvalidNonceLengthError) Error() string { return "invalid nonce length" }

type InvalidTimestampLengthError struct{}

func (e *InvalidTimestampLengthError) Error() string { return "invalid timestamp length" }

type InvalidValueLengthError struct{}

func (e *InvalidValueLengthError) Error() string { return "invalid value length" }

// AddressAlreadyUsedError is spec §4.4 "State transitions on contract
// creation": "If the target address exists and is non-null with
// non-empty code, fail (AddressAlreadyUsed)."
type AddressAlreadyUsedError struct{}

func (e *AddressAlreadyUsedError) Error() string { return "address already used" }
