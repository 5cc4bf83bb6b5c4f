package rest_agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dtn7/dtn-go-client/pkg/bpv7"
)

const testUUID = "75be76e2-23fc-da0e-eeb8-4773f84a9d2f"

func testServer(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &Client{restURL: server.URL + "/rest", httpClient: server.Client()}
}

func TestClientRegister(t *testing.T) {
	endpointID := bpv7.MustNewEndpointID("dtn://foo/bar")

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/register", func(w http.ResponseWriter, r *http.Request) {
		var request RestRegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Error(err)
		}
		if request.EndpointID != endpointID {
			t.Errorf("unexpected endpoint: %v", request.EndpointID)
		}

		_ = json.NewEncoder(w).Encode(RestRegisterResponse{UUID: testUUID})
	})

	data, err := testServer(t, mux).Register(endpointID)
	if err != nil {
		t.Fatal(err)
	}
	if data.UUID != testUUID {
		t.Fatalf("unexpected UUID: %v", data.UUID)
	}
	if data.EndpointID != endpointID {
		t.Fatalf("unexpected endpoint: %v", data.EndpointID)
	}
}

func TestClientRegisterAgentError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(RestRegisterResponse{Error: "endpoint already registered"})
	})

	_, err := testServer(t, mux).Register(bpv7.MustNewEndpointID("dtn://foo/bar"))
	if err == nil {
		t.Fatal("registration succeeded")
	}

	var restErr *RESTError
	if !errors.As(err, &restErr) {
		t.Fatalf("expected RESTError, got %v", err)
	}
	if restErr.StatusCode != http.StatusOK || restErr.Message != "endpoint already registered" {
		t.Fatalf("unexpected error: %v", restErr)
	}
}

func TestClientHTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/register", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := testServer(t, mux).Register(bpv7.MustNewEndpointID("dtn://foo/bar"))
	if err == nil {
		t.Fatal("registration succeeded")
	}

	var restErr *RESTError
	if !errors.As(err, &restErr) {
		t.Fatalf("expected RESTError, got %v", err)
	}
	if restErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: %v", restErr.StatusCode)
	}
	if !strings.Contains(restErr.Message, "boom") {
		t.Fatalf("unexpected message: %v", restErr.Message)
	}
}

func TestClientFetch(t *testing.T) {
	const fetchReply = `{"error":"","bundles":[{
		"primaryBlock": {
			"destination":"dtn://foo/bar",
			"source":"dtn://sender/",
			"reportTo":"dtn://sender/",
			"creationTimestamp":{"date":"2020-04-14 14:32:06","sequenceNo":0},
			"lifetime":86400000000
		},
		"canonicalBlocks":[{"blockNumber":1,"blockTypeCode":1,"data":"S2hlbGxvIHdvcmxk"}]
	}]}`

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/fetch", func(w http.ResponseWriter, r *http.Request) {
		var request RestFetchRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Error(err)
		}
		if request.UUID != testUUID {
			t.Errorf("unexpected UUID: %v", request.UUID)
		}

		_, _ = w.Write([]byte(fetchReply))
	})

	bundles, err := testServer(t, mux).Fetch(testUUID)
	if err != nil {
		t.Fatal(err)
	}
	if len(bundles) != 1 {
		t.Fatalf("expected a single bundle, got %d", len(bundles))
	}

	bundle := bundles[0]
	if bundle.PrimaryBlock.Destination != bpv7.MustNewEndpointID("dtn://foo/bar") {
		t.Fatalf("unexpected destination: %v", bundle.PrimaryBlock.Destination)
	}
	if bundle.PrimaryBlock.Source != bpv7.MustNewEndpointID("dtn://sender/") {
		t.Fatalf("unexpected source: %v", bundle.PrimaryBlock.Source)
	}
	if bundle.PrimaryBlock.Lifetime != 86400000000 {
		t.Fatalf("unexpected lifetime: %v", bundle.PrimaryBlock.Lifetime)
	}

	payload, ok := bundle.PayloadBlock()
	if !ok {
		t.Fatal("bundle has no payload block")
	}
	if !bytes.Equal(payload.Data, append([]byte{0x4b}, []byte("hello world")...)) {
		t.Fatalf("unexpected payload data: %v", payload.Data)
	}

	if filename := bundle.Filename(); filename != "dtn:foobar-2020-04-14 14:32:06" {
		t.Fatalf("unexpected filename: %v", filename)
	}
}

func TestClientFetchPayloadBlockLayout(t *testing.T) {
	// Newer daemons pull the payload out of canonicalBlocks and report
	// it in a dedicated top-level field instead.
	const fetchReply = `{"error":"","bundles":[{
		"primaryBlock": {
			"destination":"dtn://foo/bar",
			"source":"dtn://sender/",
			"reportTo":"dtn://sender/",
			"creationTimestamp":{"date":"2020-04-14 14:32:06","sequenceNo":7},
			"lifetime":86400000000
		},
		"canonicalBlocks":[{"blockNumber":2,"blockTypeCode":6,"data":"AA=="}],
		"payloadBlock":{"blockNumber":1,"blockTypeCode":1,"data":"aGVsbG8gd29ybGQ="}
	}]}`

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/fetch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fetchReply))
	})

	bundles, err := testServer(t, mux).Fetch(testUUID)
	if err != nil {
		t.Fatal(err)
	}
	if len(bundles) != 1 {
		t.Fatalf("expected a single bundle, got %d", len(bundles))
	}

	payload, ok := bundles[0].PayloadBlock()
	if !ok {
		t.Fatal("bundle has no payload block")
	}
	if string(payload.Data) != "hello world" {
		t.Fatalf("unexpected payload data: %q", payload.Data)
	}
	if payload.BlockNumber != 1 {
		t.Fatalf("unexpected block number: %d", payload.BlockNumber)
	}
}

func TestClientSendBundle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/build", func(w http.ResponseWriter, r *http.Request) {
		var request RestBuildRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Error(err)
		}

		if request.UUID != testUUID {
			t.Errorf("unexpected UUID: %v", request.UUID)
		}
		if request.Args["destination"] != "dtn://dst/inbox" {
			t.Errorf("unexpected destination: %v", request.Args["destination"])
		}
		if request.Args["source"] != "dtn://foo/bar" {
			t.Errorf("unexpected source: %v", request.Args["source"])
		}
		if request.Args["creation_timestamp_now"] != float64(1) {
			t.Errorf("unexpected creation_timestamp_now: %v", request.Args["creation_timestamp_now"])
		}
		if request.Args["lifetime"] != "24h" {
			t.Errorf("unexpected lifetime: %v", request.Args["lifetime"])
		}
		if request.Args["payload_block"] != "hello world" {
			t.Errorf("unexpected payload: %v", request.Args["payload_block"])
		}

		_ = json.NewEncoder(w).Encode(RestBuildResponse{})
	})

	err := testServer(t, mux).SendBundle(testUUID,
		bpv7.MustNewEndpointID("dtn://foo/bar"),
		bpv7.MustNewEndpointID("dtn://dst/inbox"),
		"hello world", "24h")
	if err != nil {
		t.Fatal(err)
	}
}

func TestClientUnregister(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/unregister", func(w http.ResponseWriter, r *http.Request) {
		var request RestUnregisterRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Error(err)
		}
		if request.UUID != testUUID {
			t.Errorf("unexpected UUID: %v", request.UUID)
		}

		_ = json.NewEncoder(w).Encode(RestUnregisterResponse{})
	})

	if err := testServer(t, mux).Unregister(testUUID); err != nil {
		t.Fatal(err)
	}
}

func TestClientUnregisterUnknown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/unregister", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(RestUnregisterResponse{Error: "REST client does not know client"})
	})

	err := testServer(t, mux).Unregister(testUUID)

	var restErr *RESTError
	if !errors.As(err, &restErr) {
		t.Fatalf("expected RESTError, got %v", err)
	}
}

func TestRegistrationDataSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registration.json")
	data := RegistrationData{
		EndpointID: bpv7.MustNewEndpointID("dtn://foo/bar"),
		UUID:       testUUID,
	}

	if err := data.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadRegistrationData(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != data {
		t.Fatalf("expected %v, got %v", data, loaded)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	if fields["endpoint_id"] != "dtn://foo/bar" || fields["uuid"] != testUUID {
		t.Fatalf("unexpected file contents: %v", fields)
	}
}

func TestLoadRegistrationDataMissing(t *testing.T) {
	_, err := LoadRegistrationData(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected a missing-file error, got %v", err)
	}
}
