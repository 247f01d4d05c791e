// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs implements the Kind-tagged error scheme of spec §7,
// grounded on the teacher's network/errors.go and vmerrs sentinel-error
// idiom, generalized with a Kind so callers can route errors (retry,
// drop, propagate, fatal) without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the routing policy of spec §7.
type Kind uint8

const (
	Internal Kind = iota
	Database
	Network
	Crypto
	Validation
	Consensus
	Config
	IO
	Serialization
)

func (k Kind) String() string {
	switch k {
	case Database:
		return "database"
	case Network:
		return "network"
	case Crypto:
		return "crypto"
	case Validation:
		return "validation"
	case Consensus:
		return "consensus"
	case Config:
		return "config"
	case IO:
		return "io"
	case Serialization:
		return "serialization"
	default:
		return "internal"
	}
}

// Error is a Kind-tagged error wrapping an underlying cause. It supports
// errors.Is/errors.As via Unwrap.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a Kind-tagged error. op names the failing operation
// (e.g. "state.GetAccount"); err is the underlying cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) is a tagged Error of
// the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
