// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bpv7 provides the endpoint identifier (EID) model which all
// client operations reference: parsing, normalization and validation of
// the "dtn" and "ipn" URI schemes defined in RFC 9171.
package bpv7

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	DtnEndpointSchemeName = "dtn"
	IpnEndpointSchemeName = "ipn"

	DtnEndpointDtnNone    = "dtn:none"
	DtnEndpointDtnNoneSsp = "none"

	// DtnEndpointRegexpNode matches a dtn URI's node name, which may be
	// empty. The character set is RFC 3986's unreserved plus sub-delims.
	DtnEndpointRegexpNode = `^[A-Za-z0-9\-._~!$&'()*+,;=]*$`
)

var dtnNodeRegexp = regexp.MustCompile(DtnEndpointRegexpNode)

// EndpointID is a validated bundle endpoint identifier. It wraps the
// canonical URI text; the zero value is the null endpoint "dtn:none" and
// comparison with == is canonical-text equality.
//
//	Format of a "normal" dtn URI:
//	"dtn:" "//" Node "/" Service
//	            ^--^ *(ALPHA / DIGIT / "-._~!$&'()*+,;=")
//	                     ^-----^ *VCHAR (ASCII, may contain further "/")
//
//	Format of an ipn URI:
//	"ipn:" Node "." Service
//	       ^--^ 1*DIGIT, >= 1
//	                ^-----^ 1*DIGIT
//
//	Format of the null endpoint:
//	"dtn:none"
type EndpointID struct {
	uri string
}

// NewEndpointID parses an URI into its canonical EndpointID.
func NewEndpointID(uri string) (EndpointID, error) {
	switch {
	case uri == DtnEndpointDtnNone:
		return EndpointID{}, nil

	case strings.HasPrefix(uri, DtnEndpointSchemeName+"://"):
		return parseDtnSsp(uri[len(DtnEndpointSchemeName)+3:])

	case strings.HasPrefix(uri, IpnEndpointSchemeName+":"):
		return parseIpnSsp(uri[len(IpnEndpointSchemeName)+1:])

	default:
		return EndpointID{}, NewEIDError(fmt.Sprintf("unknown EID scheme (expected 'dtn:' or 'ipn:'): %v", uri))
	}
}

// parseDtnSsp parses everything after "dtn://" and yields the canonical
// endpoint, which always carries the node/service separator.
func parseDtnSsp(ssp string) (EndpointID, error) {
	if ssp == "" {
		return EndpointID{}, NewEIDError("invalid DTN EID: missing node")
	}

	node, service := ssp, ""
	if idx := strings.Index(ssp, "/"); idx >= 0 {
		node, service = ssp[:idx], ssp[idx+1:]
	}

	if node == DtnEndpointDtnNoneSsp {
		return EndpointID{}, NewEIDError("invalid DTN host: use 'dtn:none', not 'dtn://none'")
	}
	if !dtnNodeRegexp.MatchString(node) {
		return EndpointID{}, NewEIDError(fmt.Sprintf("invalid DTN node: %v", node))
	}
	if !isASCII(service) {
		return EndpointID{}, NewEIDError(fmt.Sprintf("invalid DTN service, must be ASCII: %v", service))
	}

	return EndpointID{uri: fmt.Sprintf("%v://%v/%v", DtnEndpointSchemeName, node, service)}, nil
}

// parseIpnSsp parses everything after "ipn:".
func parseIpnSsp(ssp string) (EndpointID, error) {
	if strings.HasPrefix(ssp, "//") {
		return EndpointID{}, NewEIDError("invalid IPN EID: must be 'ipn:N.S', not 'ipn://N.S'")
	}

	parts := strings.Split(ssp, ".")
	if len(parts) != 2 {
		return EndpointID{}, NewEIDError("invalid IPN EID: need exactly one dot (node.service)")
	}

	node, nodeErr := strconv.ParseUint(parts[0], 10, 64)
	service, serviceErr := strconv.ParseUint(parts[1], 10, 64)
	if nodeErr != nil || serviceErr != nil {
		return EndpointID{}, NewEIDError(fmt.Sprintf("invalid IPN numbers: %v", ssp))
	}

	return NewIpnEndpoint(node, service)
}

// NewDtnEndpoint builds a dtn endpoint from its node and service parts.
// An empty service yields the trailing-slash form "dtn://node/".
func NewDtnEndpoint(node, service string) (EndpointID, error) {
	return parseDtnSsp(node + "/" + service)
}

// NewIpnEndpoint builds an ipn endpoint from its node and service numbers.
func NewIpnEndpoint(node, service uint64) (EndpointID, error) {
	if node < 1 {
		return EndpointID{}, NewEIDError("IPN node must be >= 1")
	}

	return EndpointID{uri: fmt.Sprintf("%v:%d.%d", IpnEndpointSchemeName, node, service)}, nil
}

// DtnNone returns the null endpoint "dtn:none", EndpointID's zero value.
func DtnNone() EndpointID {
	return EndpointID{}
}

// IsNone reports whether this is the null endpoint, the only "falsy" EID.
func (eid EndpointID) IsNone() bool {
	return eid.uri == ""
}

// Node returns the node part, e.g. "foo" for "dtn://foo/bar" or "23" for
// "ipn:23.42", or the sentinel "none" for the null endpoint.
func (eid EndpointID) Node() string {
	node, _ := eid.split()
	return node
}

// Service returns the service part, e.g. "bar" for "dtn://foo/bar" or "42"
// for "ipn:23.42", or the sentinel "none" for the null endpoint.
func (eid EndpointID) Service() string {
	_, service := eid.split()
	return service
}

func (eid EndpointID) split() (node, service string) {
	if eid.IsNone() {
		return DtnEndpointDtnNoneSsp, DtnEndpointDtnNoneSsp
	}

	if strings.HasPrefix(eid.uri, DtnEndpointSchemeName+"://") {
		ssp := eid.uri[len(DtnEndpointSchemeName)+3:]
		idx := strings.Index(ssp, "/")
		return ssp[:idx], ssp[idx+1:]
	}

	ssp := eid.uri[len(IpnEndpointSchemeName)+1:]
	idx := strings.Index(ssp, ".")
	return ssp[:idx], ssp[idx+1:]
}

// IsSingleton checks if this endpoint addresses a single application.
//
// - A dtn URI whose service starts with "~" is a group endpoint.
// - "dtn:none" cannot be a singleton.
// - ipn URIs are always singletons.
func (eid EndpointID) IsSingleton() bool {
	if eid.IsNone() {
		return false
	}
	if strings.HasPrefix(eid.uri, IpnEndpointSchemeName+":") {
		return true
	}

	return !strings.HasPrefix(eid.Service(), "~")
}

func (eid EndpointID) String() string {
	if eid.IsNone() {
		return DtnEndpointDtnNone
	}

	return eid.uri
}

// EncodeMsgpack writes the canonical URI text.
func (eid EndpointID) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(eid.String())
}

// DecodeMsgpack parses and validates an EID from its URI text.
func (eid *EndpointID) DecodeMsgpack(dec *msgpack.Decoder) error {
	uri, err := dec.DecodeString()
	if err != nil {
		return err
	}

	parsed, err := NewEndpointID(uri)
	if err != nil {
		return err
	}

	*eid = parsed
	return nil
}

// MarshalJSON writes the canonical URI text.
func (eid EndpointID) MarshalJSON() ([]byte, error) {
	return json.Marshal(eid.String())
}

// UnmarshalJSON parses and validates an EID from its URI text.
func (eid *EndpointID) UnmarshalJSON(data []byte) error {
	var uri string
	if err := json.Unmarshal(data, &uri); err != nil {
		return err
	}

	parsed, err := NewEndpointID(uri)
	if err != nil {
		return err
	}

	*eid = parsed
	return nil
}

// MustNewEndpointID returns the EndpointID for an URI known to be valid
// and panics otherwise.
func MustNewEndpointID(uri string) EndpointID {
	eid, err := NewEndpointID(uri)
	if err != nil {
		panic(err)
	}

	return eid
}

// Group endpoints of the REC multicast conventions.
var (
	BroadcastAddress       = MustNewEndpointID("dtn://rec.all/~")
	BrokerAddress          = MustNewEndpointID("dtn://rec.broker/~")
	DatastoreAddress       = MustNewEndpointID("dtn://rec.store/~")
	ExecutorAddress        = MustNewEndpointID("dtn://rec.executor/~")
	ClientMulticastAddress = MustNewEndpointID("dtn://rec.client/~")
)

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}

	return true
}
