// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

// EIDError describes a malformed endpoint identifier. It is always
// produced at parse respectively construction time, never later.
type EIDError string

func NewEIDError(message string) *EIDError {
	err := EIDError(message)
	return &err
}

func (err *EIDError) Error() string {
	return string(*err)
}
