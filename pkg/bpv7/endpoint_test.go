package bpv7

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
	"pgregory.net/rapid"
)

func TestNewEndpointID(t *testing.T) {
	tests := []struct {
		uri       string
		canonical string
		valid     bool
	}{
		{"dtn:none", "dtn:none", true},
		{"dtn://foo/bar", "dtn://foo/bar", true},
		{"dtn://foo", "dtn://foo/", true},
		{"dtn://foo/", "dtn://foo/", true},
		{"dtn://foo/bar/baz", "dtn://foo/bar/baz", true},
		{"dtn:///bar", "dtn:///bar", true},
		{"dtn://rec.all/~", "dtn://rec.all/~", true},
		{"dtn://none", "", false},
		{"dtn://none/", "", false},
		{"dtn://none/bar", "", false},
		{"dtn://", "", false},
		{"dtn://f oo/bar", "", false},
		{"dtn://foo/b€r", "", false},
		{"dtn:foo", "", false},
		{"dtn:", "", false},
		{"ipn:23.42", "ipn:23.42", true},
		{"ipn:1.0", "ipn:1.0", true},
		{"ipn:007.0", "ipn:7.0", true},
		{"ipn:18446744073709551615.0", "ipn:18446744073709551615.0", true},
		{"ipn://23.42", "", false},
		{"ipn:0.5", "", false},
		{"ipn:1.2.3", "", false},
		{"ipn:23", "", false},
		{"ipn:a.b", "", false},
		{"ipn:18446744073709551616.0", "", false},
		{"uri:foo", "", false},
		{"", "", false},
	}

	for _, test := range tests {
		eid, err := NewEndpointID(test.uri)

		if test.valid != (err == nil) {
			t.Fatalf("%v: expected valid = %v, got error = %v", test.uri, test.valid, err)
		}

		if err != nil {
			var eidErr *EIDError
			if !errors.As(err, &eidErr) {
				t.Fatalf("%v: error is no EIDError: %v", test.uri, err)
			}
			continue
		}

		if eid.String() != test.canonical {
			t.Fatalf("%v: expected canonical form %v, got %v", test.uri, test.canonical, eid.String())
		}
	}
}

func TestNewEndpointIDNoneHint(t *testing.T) {
	for _, uri := range []string{"dtn://none", "dtn://none/", "dtn://none/bar"} {
		_, err := NewEndpointID(uri)
		if err == nil || !strings.Contains(err.Error(), "dtn:none") {
			t.Fatalf("%v: expected the dtn:none hint, got %v", uri, err)
		}
	}
}

func TestEndpointIDParts(t *testing.T) {
	tests := []struct {
		uri     string
		node    string
		service string
	}{
		{"dtn:none", "none", "none"},
		{"dtn://foo/bar", "foo", "bar"},
		{"dtn://foo/", "foo", ""},
		{"dtn:///bar", "", "bar"},
		{"dtn://foo/bar/baz", "foo", "bar/baz"},
		{"ipn:23.42", "23", "42"},
	}

	for _, test := range tests {
		eid := MustNewEndpointID(test.uri)

		if node := eid.Node(); node != test.node {
			t.Fatalf("%v: expected node %q, got %q", test.uri, test.node, node)
		}
		if service := eid.Service(); service != test.service {
			t.Fatalf("%v: expected service %q, got %q", test.uri, test.service, service)
		}
	}
}

func TestNewDtnEndpoint(t *testing.T) {
	tests := []struct {
		node      string
		service   string
		canonical string
		valid     bool
	}{
		{"foo", "bar", "dtn://foo/bar", true},
		{"foo", "", "dtn://foo/", true},
		{"", "bar", "dtn:///bar", true},
		{"foo", "bar/baz", "dtn://foo/bar/baz", true},
		{"none", "bar", "", false},
		{"f€o", "bar", "", false},
		{"foo", "b€r", "", false},
	}

	for _, test := range tests {
		eid, err := NewDtnEndpoint(test.node, test.service)

		if test.valid != (err == nil) {
			t.Fatalf("(%q, %q): expected valid = %v, got error = %v", test.node, test.service, test.valid, err)
		}
		if err == nil && eid.String() != test.canonical {
			t.Fatalf("(%q, %q): expected %v, got %v", test.node, test.service, test.canonical, eid.String())
		}
	}
}

func TestNewIpnEndpoint(t *testing.T) {
	if _, err := NewIpnEndpoint(0, 5); err == nil {
		t.Fatal("expected an error for an ipn node of 0")
	}

	eid, err := NewIpnEndpoint(23, 42)
	if err != nil {
		t.Fatal(err)
	}
	if eid.String() != "ipn:23.42" {
		t.Fatalf("expected ipn:23.42, got %v", eid)
	}

	eid, err = NewIpnEndpoint(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if eid.String() != "ipn:1.0" {
		t.Fatalf("expected ipn:1.0, got %v", eid)
	}
}

func TestEndpointIDNone(t *testing.T) {
	none := DtnNone()
	if !none.IsNone() {
		t.Fatal("DtnNone is not none")
	}

	var zero EndpointID
	if zero != none {
		t.Fatal("the zero value differs from DtnNone")
	}
	if none.String() != DtnEndpointDtnNone {
		t.Fatalf("expected %v, got %v", DtnEndpointDtnNone, none.String())
	}

	parsed := MustNewEndpointID("dtn:none")
	if parsed != none {
		t.Fatal("parsed dtn:none differs from DtnNone")
	}

	if MustNewEndpointID("dtn://foo/bar").IsNone() {
		t.Fatal("a regular endpoint must not be none")
	}
}

func TestEndpointIDIsSingleton(t *testing.T) {
	tests := []struct {
		eid       EndpointID
		singleton bool
	}{
		{MustNewEndpointID("dtn://foo/bar"), true},
		{MustNewEndpointID("dtn://foo/~bar"), false},
		{MustNewEndpointID("ipn:23.42"), true},
		{DtnNone(), false},
		{BroadcastAddress, false},
		{ClientMulticastAddress, false},
	}

	for _, test := range tests {
		if singleton := test.eid.IsSingleton(); singleton != test.singleton {
			t.Fatalf("%v: expected singleton = %v, got %v", test.eid, test.singleton, singleton)
		}
	}
}

func TestEndpointIDDtnRoundtripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		node := rapid.StringMatching(`[A-Za-z0-9\-._~!$&'()*+,;=]*`).
			Filter(func(s string) bool { return s != DtnEndpointDtnNoneSsp }).
			Draw(t, "node")
		service := rapid.StringMatching(`[ -~]*`).Draw(t, "service")

		eid, err := NewDtnEndpoint(node, service)
		if err != nil {
			t.Fatalf("constructing dtn://%v/%v: %v", node, service, err)
		}

		parsed, err := NewEndpointID(eid.String())
		if err != nil {
			t.Fatalf("re-parsing %v: %v", eid, err)
		}
		if parsed != eid {
			t.Fatalf("round trip changed the EID: %v != %v", parsed, eid)
		}
		if parsed.Node() != node || parsed.Service() != service {
			t.Fatalf("accessors changed: (%q, %q) != (%q, %q)", parsed.Node(), parsed.Service(), node, service)
		}
	})
}

func TestEndpointIDIpnRoundtripRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		node := rapid.Uint64Min(1).Draw(t, "node")
		service := rapid.Uint64().Draw(t, "service")

		eid, err := NewIpnEndpoint(node, service)
		if err != nil {
			t.Fatalf("constructing ipn:%d.%d: %v", node, service, err)
		}

		parsed, err := NewEndpointID(eid.String())
		if err != nil {
			t.Fatalf("re-parsing %v: %v", eid, err)
		}
		if parsed != eid {
			t.Fatalf("round trip changed the EID: %v != %v", parsed, eid)
		}
		if parsed.Node() != strconv.FormatUint(node, 10) {
			t.Fatalf("expected node %d, got %v", node, parsed.Node())
		}
		if parsed.Service() != strconv.FormatUint(service, 10) {
			t.Fatalf("expected service %d, got %v", service, parsed.Service())
		}
	})
}

func TestEndpointIDMsgpack(t *testing.T) {
	for _, uri := range []string{"dtn:none", "dtn://foo/bar", "ipn:23.42"} {
		eid := MustNewEndpointID(uri)

		data, err := msgpack.Marshal(eid)
		if err != nil {
			t.Fatal(err)
		}

		var parsed EndpointID
		if err := msgpack.Unmarshal(data, &parsed); err != nil {
			t.Fatal(err)
		}
		if parsed != eid {
			t.Fatalf("round trip changed the EID: %v != %v", parsed, eid)
		}
	}

	invalid, err := msgpack.Marshal("dtn://none")
	if err != nil {
		t.Fatal(err)
	}

	var parsed EndpointID
	if err := msgpack.Unmarshal(invalid, &parsed); err == nil {
		t.Fatal("decoding dtn://none did not fail")
	}
}

func TestEndpointIDJSON(t *testing.T) {
	for _, uri := range []string{"dtn:none", "dtn://foo/bar", "ipn:23.42"} {
		eid := MustNewEndpointID(uri)

		data, err := json.Marshal(eid)
		if err != nil {
			t.Fatal(err)
		}

		var parsed EndpointID
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatal(err)
		}
		if parsed != eid {
			t.Fatalf("round trip changed the EID: %v != %v", parsed, eid)
		}
	}

	var parsed EndpointID
	if err := json.Unmarshal([]byte(`"ipn://1.0"`), &parsed); err == nil {
		t.Fatal("decoding ipn://1.0 did not fail")
	}
}
