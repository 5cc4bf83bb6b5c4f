// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package unix_agent

// InvalidMessageError describes a message violating its variant's
// construction invariants, or a wire map without a usable discriminant.
type InvalidMessageError string

func NewInvalidMessageError(message string) *InvalidMessageError {
	err := InvalidMessageError(message)
	return &err
}

func (err *InvalidMessageError) Error() string {
	return string(*err)
}

// DataError describes inconsistent data received from dtnd: framing
// violations, replies which are no responses, or responses of an
// unexpected variant.
type DataError string

func NewDataError(message string) *DataError {
	err := DataError(message)
	return &err
}

func (err *DataError) Error() string {
	return string(*err)
}

// DTNDError carries an error text reported by dtnd itself.
type DTNDError string

func NewDTNDError(message string) *DTNDError {
	err := DTNDError(message)
	return &err
}

func (err *DTNDError) Error() string {
	return string(*err)
}
