// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package unix_agent implements the client side of dtnd's UNIX domain
// socket application agent protocol.
//
// Every exchange is a single request followed by a single reply over a
// fresh connection. Both directions carry a MessagePack-encoded map,
// prefixed with its length as an 8-byte unsigned big-endian integer:
//
//	+----------------+----------------------------+
//	| length (8B BE) | MessagePack map (length B) |
//	+----------------+----------------------------+
//
// Map keys are lowercase snake_case strings. The mandatory "type" key
// carries the message discriminant:
//
//	 1 GeneralResponse          {type, error}
//	 2 RegisterEID              {type, endpoint_id}
//	 3 UnregisterEID            {type, endpoint_id}
//	 4 BundleCreate             {type, args}
//	 5 BundleCreateResponse     {type, error, bundle_id}
//	 6 ListBundles              {type, mailbox, new}
//	 7 ListBundlesResponse      {type, error, bundles}
//	 8 FetchBundle              {type, mailbox, bundle_id, remove}
//	 9 FetchBundleResponse      {type, error, bundle_content}
//	10 FetchAllBundles          {type, mailbox, new, remove}
//	11 FetchAllBundlesResponse  {type, error, bundles}
//
// An empty "error" string marks success. Endpoint IDs travel as their
// canonical URI text, payloads as raw byte strings.
package unix_agent

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dtn7/dtn-go-client/pkg/bpv7"
)

type MessageType uint8

const (
	MsgTypeGeneralResponse         MessageType = 1
	MsgTypeRegisterEID             MessageType = 2
	MsgTypeUnregisterEID           MessageType = 3
	MsgTypeBundleCreate            MessageType = 4
	MsgTypeBundleCreateResponse    MessageType = 5
	MsgTypeListBundles             MessageType = 6
	MsgTypeListBundlesResponse     MessageType = 7
	MsgTypeFetchBundle             MessageType = 8
	MsgTypeFetchBundleResponse     MessageType = 9
	MsgTypeFetchAllBundles         MessageType = 10
	MsgTypeFetchAllBundlesResponse MessageType = 11
)

func (msgType MessageType) String() string {
	switch msgType {
	case MsgTypeGeneralResponse:
		return "GeneralResponse"
	case MsgTypeRegisterEID:
		return "RegisterEID"
	case MsgTypeUnregisterEID:
		return "UnregisterEID"
	case MsgTypeBundleCreate:
		return "BundleCreate"
	case MsgTypeBundleCreateResponse:
		return "BundleCreateResponse"
	case MsgTypeListBundles:
		return "ListBundles"
	case MsgTypeListBundlesResponse:
		return "ListBundlesResponse"
	case MsgTypeFetchBundle:
		return "FetchBundle"
	case MsgTypeFetchBundleResponse:
		return "FetchBundleResponse"
	case MsgTypeFetchAllBundles:
		return "FetchAllBundles"
	case MsgTypeFetchAllBundlesResponse:
		return "FetchAllBundlesResponse"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(msgType))
	}
}

// Message is implemented by every protocol message. The set of variants
// is closed; decoding dispatches through the registry in codec.go.
type Message interface {
	MessageType() MessageType
	// CheckValid returns an error if the tag or a required field violates
	// the variant's invariants.
	CheckValid() error
}

// Response is the capability shared by all reply variants: dtnd's error
// text, where the empty string signals success.
type Response interface {
	Message
	ResponseError() string
}

// checkMessageType verifies a message's tag against the variant's legal
// discriminants.
func checkMessageType(actual MessageType, expected ...MessageType) error {
	names := make([]string, len(expected))
	for i, msgType := range expected {
		if actual == msgType {
			return nil
		}
		names[i] = msgType.String()
	}

	return NewInvalidMessageError(fmt.Sprintf("message needs type %v, but has %v", strings.Join(names, " or "), actual))
}

// GeneralResponse is dtnd's generic reply, success being an empty error
// text. It is embedded by every richer response variant, which puts the
// base fields first in the encoded map.
type GeneralResponse struct {
	Type  MessageType `msgpack:"type"`
	Error string      `msgpack:"error"`
}

func NewGeneralResponse(msgType MessageType, errorMessage string) (*GeneralResponse, error) {
	response := &GeneralResponse{Type: msgType, Error: errorMessage}
	return response, response.CheckValid()
}

func (response *GeneralResponse) MessageType() MessageType {
	return response.Type
}

func (response *GeneralResponse) ResponseError() string {
	return response.Error
}

func (response *GeneralResponse) CheckValid() error {
	return checkMessageType(response.Type, MsgTypeGeneralResponse)
}

// RegisterUnregisterMessage subscribes respectively unsubscribes an
// endpoint ID; the tag decides which of the two.
type RegisterUnregisterMessage struct {
	Type       MessageType     `msgpack:"type"`
	EndpointID bpv7.EndpointID `msgpack:"endpoint_id"`
}

func NewRegisterUnregisterMessage(msgType MessageType, endpointID bpv7.EndpointID) (*RegisterUnregisterMessage, error) {
	message := &RegisterUnregisterMessage{Type: msgType, EndpointID: endpointID}
	return message, message.CheckValid()
}

func (message *RegisterUnregisterMessage) MessageType() MessageType {
	return message.Type
}

func (message *RegisterUnregisterMessage) CheckValid() (errs error) {
	if err := checkMessageType(message.Type, MsgTypeRegisterEID, MsgTypeUnregisterEID); err != nil {
		errs = multierror.Append(errs, err)
	}
	if message.EndpointID.IsNone() {
		errs = multierror.Append(errs, NewInvalidMessageError("EndpointID must not be none"))
	}
	return
}

// BundleCreateMessage asks dtnd to build and dispatch a bundle from the
// given builder arguments. The arguments are validated by the daemon.
type BundleCreateMessage struct {
	Type MessageType            `msgpack:"type"`
	Args map[string]interface{} `msgpack:"args"`
}

func NewBundleCreateMessage(msgType MessageType, args map[string]interface{}) (*BundleCreateMessage, error) {
	message := &BundleCreateMessage{Type: msgType, Args: args}
	return message, message.CheckValid()
}

func (message *BundleCreateMessage) MessageType() MessageType {
	return message.Type
}

func (message *BundleCreateMessage) CheckValid() (errs error) {
	if err := checkMessageType(message.Type, MsgTypeBundleCreate); err != nil {
		errs = multierror.Append(errs, err)
	}
	if len(message.Args) == 0 {
		errs = multierror.Append(errs, NewInvalidMessageError("Args must not be empty"))
	}
	return
}

// BundleCreateResponse reports the ID of a freshly built bundle.
type BundleCreateResponse struct {
	GeneralResponse
	BundleID string `msgpack:"bundle_id"`
}

func NewBundleCreateResponse(msgType MessageType, errorMessage, bundleID string) (*BundleCreateResponse, error) {
	response := &BundleCreateResponse{
		GeneralResponse: GeneralResponse{Type: msgType, Error: errorMessage},
		BundleID:        bundleID,
	}
	return response, response.CheckValid()
}

func (response *BundleCreateResponse) CheckValid() (errs error) {
	if err := checkMessageType(response.Type, MsgTypeBundleCreateResponse); err != nil {
		errs = multierror.Append(errs, err)
	}
	if response.BundleID == "" {
		errs = multierror.Append(errs, NewInvalidMessageError("BundleID must not be empty"))
	}
	return
}

// ListBundlesMessage asks for the bundle IDs in a mailbox, either all of
// them or only those not yet retrieved.
type ListBundlesMessage struct {
	Type    MessageType     `msgpack:"type"`
	Mailbox bpv7.EndpointID `msgpack:"mailbox"`
	New     bool            `msgpack:"new"`
}

func NewListBundlesMessage(msgType MessageType, mailbox bpv7.EndpointID, newOnly bool) (*ListBundlesMessage, error) {
	message := &ListBundlesMessage{Type: msgType, Mailbox: mailbox, New: newOnly}
	return message, message.CheckValid()
}

func (message *ListBundlesMessage) MessageType() MessageType {
	return message.Type
}

func (message *ListBundlesMessage) CheckValid() (errs error) {
	if err := checkMessageType(message.Type, MsgTypeListBundles); err != nil {
		errs = multierror.Append(errs, err)
	}
	if message.Mailbox.IsNone() {
		errs = multierror.Append(errs, NewInvalidMessageError("Mailbox must not be none"))
	}
	return
}

// ListBundlesResponse carries a mailbox listing in the daemon's order.
type ListBundlesResponse struct {
	GeneralResponse
	Bundles []string `msgpack:"bundles"`
}

func NewListBundlesResponse(msgType MessageType, errorMessage string, bundles []string) (*ListBundlesResponse, error) {
	response := &ListBundlesResponse{
		GeneralResponse: GeneralResponse{Type: msgType, Error: errorMessage},
		Bundles:         bundles,
	}
	return response, response.CheckValid()
}

func (response *ListBundlesResponse) CheckValid() error {
	return checkMessageType(response.Type, MsgTypeListBundlesResponse)
}

// FetchBundleMessage retrieves a single bundle's content from a mailbox,
// optionally removing it there.
type FetchBundleMessage struct {
	Type     MessageType     `msgpack:"type"`
	Mailbox  bpv7.EndpointID `msgpack:"mailbox"`
	BundleID string          `msgpack:"bundle_id"`
	Remove   bool            `msgpack:"remove"`
}

func NewFetchBundleMessage(msgType MessageType, mailbox bpv7.EndpointID, bundleID string, remove bool) (*FetchBundleMessage, error) {
	message := &FetchBundleMessage{Type: msgType, Mailbox: mailbox, BundleID: bundleID, Remove: remove}
	return message, message.CheckValid()
}

func (message *FetchBundleMessage) MessageType() MessageType {
	return message.Type
}

func (message *FetchBundleMessage) CheckValid() (errs error) {
	if err := checkMessageType(message.Type, MsgTypeFetchBundle); err != nil {
		errs = multierror.Append(errs, err)
	}
	if message.Mailbox.IsNone() {
		errs = multierror.Append(errs, NewInvalidMessageError("Mailbox must not be none"))
	}
	if message.BundleID == "" {
		errs = multierror.Append(errs, NewInvalidMessageError("BundleID must not be empty"))
	}
	return
}

// FetchBundleResponse carries a single bundle's content.
type FetchBundleResponse struct {
	GeneralResponse
	BundleContent BundleContent `msgpack:"bundle_content"`
}

func NewFetchBundleResponse(msgType MessageType, errorMessage string, content BundleContent) (*FetchBundleResponse, error) {
	response := &FetchBundleResponse{
		GeneralResponse: GeneralResponse{Type: msgType, Error: errorMessage},
		BundleContent:   content,
	}
	return response, response.CheckValid()
}

func (response *FetchBundleResponse) CheckValid() error {
	return checkMessageType(response.Type, MsgTypeFetchBundleResponse)
}

// FetchAllBundlesMessage retrieves the contents of all (or all new)
// bundles in a mailbox, optionally removing them there.
type FetchAllBundlesMessage struct {
	Type    MessageType     `msgpack:"type"`
	Mailbox bpv7.EndpointID `msgpack:"mailbox"`
	New     bool            `msgpack:"new"`
	Remove  bool            `msgpack:"remove"`
}

func NewFetchAllBundlesMessage(msgType MessageType, mailbox bpv7.EndpointID, newOnly, remove bool) (*FetchAllBundlesMessage, error) {
	message := &FetchAllBundlesMessage{Type: msgType, Mailbox: mailbox, New: newOnly, Remove: remove}
	return message, message.CheckValid()
}

func (message *FetchAllBundlesMessage) MessageType() MessageType {
	return message.Type
}

func (message *FetchAllBundlesMessage) CheckValid() (errs error) {
	if err := checkMessageType(message.Type, MsgTypeFetchAllBundles); err != nil {
		errs = multierror.Append(errs, err)
	}
	if message.Mailbox.IsNone() {
		errs = multierror.Append(errs, NewInvalidMessageError("Mailbox must not be none"))
	}
	return
}

// FetchAllBundlesResponse carries the contents of multiple bundles; the
// order is the daemon's.
type FetchAllBundlesResponse struct {
	GeneralResponse
	Bundles []BundleContent `msgpack:"bundles"`
}

func NewFetchAllBundlesResponse(msgType MessageType, errorMessage string, bundles []BundleContent) (*FetchAllBundlesResponse, error) {
	response := &FetchAllBundlesResponse{
		GeneralResponse: GeneralResponse{Type: msgType, Error: errorMessage},
		Bundles:         bundles,
	}
	return response, response.CheckValid()
}

func (response *FetchAllBundlesResponse) CheckValid() error {
	return checkMessageType(response.Type, MsgTypeFetchAllBundlesResponse)
}

// BundleContent is the transferable extract of a bundle: its ID, the
// primary block's addresses and the payload. Falsy fields are omitted
// from the encoded map; decoders default omitted keys to the zero value.
type BundleContent struct {
	BundleID    string
	Source      bpv7.EndpointID
	Destination bpv7.EndpointID
	Payload     []byte
}

func (content BundleContent) EncodeMsgpack(enc *msgpack.Encoder) error {
	mapLen := 0
	if content.BundleID != "" {
		mapLen++
	}
	if !content.Source.IsNone() {
		mapLen++
	}
	if !content.Destination.IsNone() {
		mapLen++
	}
	if len(content.Payload) > 0 {
		mapLen++
	}

	if err := enc.EncodeMapLen(mapLen); err != nil {
		return err
	}

	if content.BundleID != "" {
		if err := enc.EncodeString("bundle_id"); err != nil {
			return err
		}
		if err := enc.EncodeString(content.BundleID); err != nil {
			return err
		}
	}
	if !content.Source.IsNone() {
		if err := enc.EncodeString("source"); err != nil {
			return err
		}
		if err := content.Source.EncodeMsgpack(enc); err != nil {
			return err
		}
	}
	if !content.Destination.IsNone() {
		if err := enc.EncodeString("destination"); err != nil {
			return err
		}
		if err := content.Destination.EncodeMsgpack(enc); err != nil {
			return err
		}
	}
	if len(content.Payload) > 0 {
		if err := enc.EncodeString("payload"); err != nil {
			return err
		}
		if err := enc.EncodeBytes(content.Payload); err != nil {
			return err
		}
	}

	return nil
}

func (content *BundleContent) DecodeMsgpack(dec *msgpack.Decoder) error {
	mapLen, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}

	*content = BundleContent{}
	for i := 0; i < mapLen; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}

		switch key {
		case "bundle_id":
			content.BundleID, err = dec.DecodeString()
		case "source":
			err = content.Source.DecodeMsgpack(dec)
		case "destination":
			err = content.Destination.DecodeMsgpack(dec)
		case "payload":
			content.Payload, err = dec.DecodeBytes()
		default:
			err = dec.Skip()
		}
		if err != nil {
			return err
		}
	}

	return nil
}
