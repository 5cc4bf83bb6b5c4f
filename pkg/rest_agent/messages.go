// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package rest_agent implements a client for dtnd's RESTful application
// agent, the HTTP alternative to the UNIX socket agent.
//
// A client registers itself for some endpoint ID and receives a UUID
// token authenticating all further actions. Bundles sent to the endpoint
// can then be fetched, new bundles can be built and dispatched, and the
// registration can finally be revoked.
//
// This is all done by HTTP POSTing JSON objects, described by the types
// with the `Rest` prefix in their names. A possible conversation:
//
//	// 1. Registration of our client, POST to /register
//	// -> {"endpoint_id":"dtn://foo/bar"}
//	// <- {"error":"","uuid":"75be76e2-23fc-da0e-eeb8-4773f84a9d2f"}
//
//	// 2. Fetching bundles for our client, POST to /fetch
//	// -> {"uuid":"75be76e2-23fc-da0e-eeb8-4773f84a9d2f"}
//	// <- {"error":"","bundles":[
//	//      {
//	//        "primaryBlock": {
//	//          "destination":"dtn://foo/bar",
//	//          "source":"dtn://sender/",
//	//          "reportTo":"dtn://sender/",
//	//          "creationTimestamp":{"date":"2020-04-14 14:32:06","sequenceNo":0},
//	//          "lifetime":86400000000
//	//        },
//	//        "canonicalBlocks": [
//	//          {"blockNumber":1,"blockTypeCode":1,"data":"S2hlbGxvIHdvcmxk"}
//	//        ]
//	//      }
//	//    ]}
//
//	// 3. Create and dispatch a new bundle, POST to /build
//	// -> {
//	//      "uuid": "75be76e2-23fc-da0e-eeb8-4773f84a9d2f",
//	//      "arguments": {
//	//        "destination": "dtn://dst/",
//	//        "source": "dtn://foo/bar",
//	//        "creation_timestamp_now": 1,
//	//        "lifetime": "24h",
//	//        "payload_block": "hello world"
//	//      }
//	//    }
//	// <- {"error":""}
//
//	// 4. Unregister the client, POST to /unregister
//	// -> {"uuid":"75be76e2-23fc-da0e-eeb8-4773f84a9d2f"}
//	// <- {"error":""}
package rest_agent

import (
	"fmt"
	"strings"

	"github.com/dtn7/dtn-go-client/pkg/bpv7"
)

// ExtBlockTypePayloadBlock is the block type code of a payload block.
const ExtBlockTypePayloadBlock uint64 = 1

type RestRegisterRequest struct {
	EndpointID bpv7.EndpointID `json:"endpoint_id"`
}

type RestRegisterResponse struct {
	Error string `json:"error"`
	UUID  string `json:"uuid"`
}

func (response *RestRegisterResponse) ResponseError() string {
	return response.Error
}

type RestUnregisterRequest struct {
	UUID string `json:"uuid"`
}

type RestUnregisterResponse struct {
	Error string `json:"error"`
}

func (response *RestUnregisterResponse) ResponseError() string {
	return response.Error
}

type RestFetchRequest struct {
	UUID string `json:"uuid"`
}

type RestFetchResponse struct {
	Error   string   `json:"error"`
	Bundles []Bundle `json:"bundles"`
}

func (response *RestFetchResponse) ResponseError() string {
	return response.Error
}

type RestBuildRequest struct {
	UUID string                 `json:"uuid"`
	Args map[string]interface{} `json:"arguments"`
}

type RestBuildResponse struct {
	Error string `json:"error"`
}

func (response *RestBuildResponse) ResponseError() string {
	return response.Error
}

// CreationTimestamp is a primary block's creation timestamp pair.
type CreationTimestamp struct {
	Date       string `json:"date"`
	SequenceNo uint64 `json:"sequenceNo"`
}

// PrimaryBlock carries the addressing fields of a received bundle.
type PrimaryBlock struct {
	Destination       bpv7.EndpointID   `json:"destination"`
	Source            bpv7.EndpointID   `json:"source"`
	ReportTo          bpv7.EndpointID   `json:"reportTo"`
	CreationTimestamp CreationTimestamp `json:"creationTimestamp"`
	Lifetime          uint64            `json:"lifetime"`
}

// CanonicalBlock is one of a received bundle's non-primary blocks. Data
// travels base64-encoded and keeps the daemon's block framing.
type CanonicalBlock struct {
	BlockNumber   uint64 `json:"blockNumber"`
	BlockTypeCode uint64 `json:"blockTypeCode"`
	Data          []byte `json:"data"`
}

// Bundle is the agent's JSON rendition of a received bundle. Newer
// daemons carry the payload in the dedicated payloadBlock field, older
// ones inline it with the canonical blocks; both layouts occur.
type Bundle struct {
	PrimaryBlock    PrimaryBlock     `json:"primaryBlock"`
	CanonicalBlocks []CanonicalBlock `json:"canonicalBlocks"`
	Payload         *CanonicalBlock  `json:"payloadBlock,omitempty"`
}

// PayloadBlock returns the bundle's payload block, if present,
// regardless of which of the two layouts carried it.
func (bundle Bundle) PayloadBlock() (CanonicalBlock, bool) {
	if bundle.Payload != nil {
		return *bundle.Payload, true
	}

	for _, block := range bundle.CanonicalBlocks {
		if block.BlockTypeCode == ExtBlockTypePayloadBlock {
			return block, true
		}
	}
	return CanonicalBlock{}, false
}

// Filename derives the bundle's dump filename from its destination and
// creation date, with path separators stripped.
func (bundle Bundle) Filename() string {
	name := fmt.Sprintf("%v-%v", bundle.PrimaryBlock.Destination, bundle.PrimaryBlock.CreationTimestamp.Date)
	return strings.ReplaceAll(name, "/", "")
}
