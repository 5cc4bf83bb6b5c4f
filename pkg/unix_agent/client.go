// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package unix_agent

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn-go-client/pkg/bpv7"
)

// DialFunc opens a fresh connection to dtnd's application agent socket.
// Implementations may arm a deadline on the returned connection; this is
// the only cancellation mechanism of an exchange.
type DialFunc func() (net.Conn, error)

// UnixDialer returns a DialFunc for dtnd's UNIX domain socket.
func UnixDialer(socketPath string) DialFunc {
	return func() (net.Conn, error) {
		addr, err := net.ResolveUnixAddr("unix", socketPath)
		if err != nil {
			return nil, err
		}
		return net.DialUnix("unix", nil, addr)
	}
}

// Exchange performs a single request/reply round trip over a fresh
// connection, which is closed afterwards.
//
// The reply must be a Response variant; a non-empty error text becomes a
// DTNDError. Framing violations and non-response replies become
// DataErrors. Dial, send and decode errors propagate unmodified.
func Exchange(dial DialFunc, message Message) (Response, error) {
	conn, err := dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	msgBytes, err := Encode(message)
	if err != nil {
		return nil, err
	}

	connReader := bufio.NewReader(conn)
	connWriter := bufio.NewWriter(conn)

	log.WithFields(log.Fields{
		"type":   message.MessageType(),
		"length": len(msgBytes),
	}).Debug("Sending message")

	msgLenBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(msgLenBytes, uint64(len(msgBytes)))
	if _, err = connWriter.Write(msgLenBytes); err != nil {
		return nil, err
	}
	if _, err = connWriter.Write(msgBytes); err != nil {
		return nil, err
	}
	if err = connWriter.Flush(); err != nil {
		return nil, err
	}

	log.Debug("Receiving reply length")
	replyLenBytes := make([]byte, 8)
	if _, err = io.ReadFull(connReader, replyLenBytes); err != nil {
		return nil, err
	}

	replyLen := binary.BigEndian.Uint64(replyLenBytes)
	if replyLen == 0 {
		return nil, NewDataError(fmt.Sprintf("received nonsensical data-length: %d", replyLen))
	}

	log.WithField("length", replyLen).Debug("Receiving reply")
	replyBytes := make([]byte, replyLen)
	if n, err := io.ReadFull(connReader, replyBytes); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, NewDataError(fmt.Sprintf("announced data length and actual length do not match - announced: %d, actual: %d", replyLen, n))
		}
		return nil, err
	}

	reply, err := Decode(replyBytes)
	if err != nil {
		return nil, err
	}

	response, ok := reply.(Response)
	if !ok {
		return nil, NewDataError(fmt.Sprintf("received message is not a response - message type: %v", reply.MessageType()))
	}

	if response.ResponseError() != "" {
		return nil, NewDTNDError(response.ResponseError())
	}

	return response, nil
}

// RegisterEndpointID subscribes an endpoint ID with dtnd, creating its
// mailbox if need be.
func RegisterEndpointID(dial DialFunc, endpointID bpv7.EndpointID) error {
	return registerUnregister(dial, MsgTypeRegisterEID, endpointID)
}

// UnregisterEndpointID removes an endpoint ID's subscription.
func UnregisterEndpointID(dial DialFunc, endpointID bpv7.EndpointID) error {
	return registerUnregister(dial, MsgTypeUnregisterEID, endpointID)
}

func registerUnregister(dial DialFunc, msgType MessageType, endpointID bpv7.EndpointID) error {
	message, err := NewRegisterUnregisterMessage(msgType, endpointID)
	if err != nil {
		return err
	}

	response, err := Exchange(dial, message)
	if err != nil {
		return err
	}

	if _, ok := response.(*GeneralResponse); !ok {
		return NewDataError(fmt.Sprintf("response should have been GeneralResponse, was %v", response.MessageType()))
	}

	log.WithFields(log.Fields{
		"endpoint": endpointID,
		"type":     msgType,
	}).Debug("Registration change acknowledged")
	return nil
}

// CreateBundle hands bundle builder arguments to dtnd and returns the
// freshly built bundle's ID.
func CreateBundle(dial DialFunc, args map[string]interface{}) (string, error) {
	message, err := NewBundleCreateMessage(MsgTypeBundleCreate, args)
	if err != nil {
		return "", err
	}

	response, err := Exchange(dial, message)
	if err != nil {
		return "", err
	}

	createResponse, ok := response.(*BundleCreateResponse)
	if !ok {
		return "", NewDataError(fmt.Sprintf("response should have been BundleCreateResponse, was %v", response.MessageType()))
	}

	log.WithField("bundle", createResponse.BundleID).Debug("Bundle created")
	return createResponse.BundleID, nil
}

// ListBundles returns the IDs of the bundles in a mailbox, optionally
// restricted to those not yet retrieved.
func ListBundles(dial DialFunc, mailbox bpv7.EndpointID, newOnly bool) ([]string, error) {
	message, err := NewListBundlesMessage(MsgTypeListBundles, mailbox, newOnly)
	if err != nil {
		return nil, err
	}

	response, err := Exchange(dial, message)
	if err != nil {
		return nil, err
	}

	listResponse, ok := response.(*ListBundlesResponse)
	if !ok {
		return nil, NewDataError(fmt.Sprintf("response should have been ListBundlesResponse, was %v", response.MessageType()))
	}

	log.WithFields(log.Fields{
		"mailbox": mailbox,
		"bundles": len(listResponse.Bundles),
	}).Debug("Received mailbox listing")
	return listResponse.Bundles, nil
}

// FetchBundle retrieves a single bundle's content from a mailbox,
// optionally removing it there.
func FetchBundle(dial DialFunc, mailbox bpv7.EndpointID, bundleID string, remove bool) (BundleContent, error) {
	message, err := NewFetchBundleMessage(MsgTypeFetchBundle, mailbox, bundleID, remove)
	if err != nil {
		return BundleContent{}, err
	}

	response, err := Exchange(dial, message)
	if err != nil {
		return BundleContent{}, err
	}

	fetchResponse, ok := response.(*FetchBundleResponse)
	if !ok {
		return BundleContent{}, NewDataError(fmt.Sprintf("response should have been FetchBundleResponse, was %v", response.MessageType()))
	}

	log.WithField("bundle", fetchResponse.BundleContent.BundleID).Debug("Received bundle content")
	return fetchResponse.BundleContent, nil
}

// FetchAllBundles retrieves the contents of all (or all new) bundles in a
// mailbox, optionally removing them there.
func FetchAllBundles(dial DialFunc, mailbox bpv7.EndpointID, newOnly, remove bool) ([]BundleContent, error) {
	message, err := NewFetchAllBundlesMessage(MsgTypeFetchAllBundles, mailbox, newOnly, remove)
	if err != nil {
		return nil, err
	}

	response, err := Exchange(dial, message)
	if err != nil {
		return nil, err
	}

	fetchResponse, ok := response.(*FetchAllBundlesResponse)
	if !ok {
		return nil, NewDataError(fmt.Sprintf("response should have been FetchAllBundlesResponse, was %v", response.MessageType()))
	}

	log.WithFields(log.Fields{
		"mailbox": mailbox,
		"bundles": len(fetchResponse.Bundles),
	}).Debug("Received bundle contents")
	return fetchResponse.Bundles, nil
}
