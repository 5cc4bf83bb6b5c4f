// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package unix_agent

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// messageFactories maps every discriminant to its variant for decoding.
// Dispatch happens through this registry only, there is no fallback.
var messageFactories = map[MessageType]func() Message{
	MsgTypeGeneralResponse:         func() Message { return &GeneralResponse{} },
	MsgTypeRegisterEID:             func() Message { return &RegisterUnregisterMessage{} },
	MsgTypeUnregisterEID:           func() Message { return &RegisterUnregisterMessage{} },
	MsgTypeBundleCreate:            func() Message { return &BundleCreateMessage{} },
	MsgTypeBundleCreateResponse:    func() Message { return &BundleCreateResponse{} },
	MsgTypeListBundles:             func() Message { return &ListBundlesMessage{} },
	MsgTypeListBundlesResponse:     func() Message { return &ListBundlesResponse{} },
	MsgTypeFetchBundle:             func() Message { return &FetchBundleMessage{} },
	MsgTypeFetchBundleResponse:     func() Message { return &FetchBundleResponse{} },
	MsgTypeFetchAllBundles:         func() Message { return &FetchAllBundlesMessage{} },
	MsgTypeFetchAllBundlesResponse: func() Message { return &FetchAllBundlesResponse{} },
}

// Encode marshals a message into its MessagePack map form. Validity was
// already checked at construction time.
func Encode(message Message) ([]byte, error) {
	return msgpack.Marshal(message)
}

// Decode unmarshals a MessagePack map into the variant selected by its
// "type" discriminant and validates the result. On any failure the raw
// input is preserved in a temp file referenced by the returned error.
func Decode(raw []byte) (Message, error) {
	var fields map[string]msgpack.RawMessage
	if err := msgpack.Unmarshal(raw, &fields); err != nil {
		return nil, dumpMalformed(raw, fmt.Errorf("unmarshaling message map: %w", err))
	}

	typeField, ok := fields["type"]
	if !ok {
		return nil, dumpMalformed(raw, NewInvalidMessageError("message is missing the 'type' field"))
	}

	var id uint64
	if err := msgpack.Unmarshal(typeField, &id); err != nil {
		return nil, dumpMalformed(raw, NewInvalidMessageError(fmt.Sprintf("message 'type' field is no unsigned integer: %v", err)))
	}

	if id < uint64(MsgTypeGeneralResponse) || id > uint64(MsgTypeFetchAllBundlesResponse) {
		return nil, dumpMalformed(raw, NewInvalidMessageError(fmt.Sprintf("unknown MessageType ID: %v", id)))
	}

	factory, ok := messageFactories[MessageType(id)]
	if !ok {
		return nil, dumpMalformed(raw, NewInvalidMessageError(fmt.Sprintf("no message registered for MessageType %v", MessageType(id))))
	}

	message := factory()
	if err := msgpack.Unmarshal(raw, message); err != nil {
		return nil, dumpMalformed(raw, fmt.Errorf("unmarshaling %v message: %w", MessageType(id), err))
	}
	if err := message.CheckValid(); err != nil {
		return nil, dumpMalformed(raw, fmt.Errorf("validating %v message: %w", MessageType(id), err))
	}

	return message, nil
}

// dumpMalformed preserves undecodable input for diagnosis. A failing dump
// only degrades the error, it never masks it.
func dumpMalformed(raw []byte, err error) error {
	file, dumpErr := os.CreateTemp("", "dtnclient-malformed-*.bin")
	if dumpErr != nil {
		log.WithError(dumpErr).Warn("Failed creating dump file for malformed message")
		return err
	}
	defer file.Close()

	if _, dumpErr = file.Write(raw); dumpErr != nil {
		log.WithError(dumpErr).Warn("Failed writing malformed message dump")
		return err
	}

	return fmt.Errorf("%w (malformed message preserved at %v)", err, file.Name())
}
