// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rest_agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn-go-client/pkg/bpv7"
)

const requestTimeout = 60 * time.Second

// RESTError reports a failed conversation with the REST agent, either on
// the HTTP level or as an error text in a 200 reply.
type RESTError struct {
	StatusCode int
	Message    string
}

func NewRESTError(statusCode int, message string) *RESTError {
	return &RESTError{StatusCode: statusCode, Message: message}
}

func (err *RESTError) Error() string {
	return fmt.Sprintf("RESTError happened: %v - %v", err.StatusCode, err.Message)
}

// RegistrationData couples an endpoint ID with the UUID the agent issued
// for it, to be saved for later invocations.
type RegistrationData struct {
	EndpointID bpv7.EndpointID `json:"endpoint_id"`
	UUID       string          `json:"uuid"`
}

func LoadRegistrationData(path string) (data RegistrationData, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return data, err
	}

	err = json.Unmarshal(raw, &data)
	return data, err
}

// Save writes the registration data as JSON. The UUID authenticates all
// actions on the registration, so the file is not group readable.
func (data RegistrationData) Save(path string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0600)
}

// Client talks to dtnd's REST application agent.
type Client struct {
	restURL    string
	httpClient *http.Client
}

// NewClient returns a Client for the agent listening on the given address
// and port.
func NewClient(address string, port uint16) *Client {
	return &Client{
		restURL:    fmt.Sprintf("http://%v:%v/rest", address, port),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// errorCarrier is any REST response with the mandatory error field.
type errorCarrier interface {
	ResponseError() string
}

// post sends a JSON request body and decodes the JSON reply into
// response. A non-200 status or a non-empty error text in the reply
// becomes a RESTError.
func (client *Client) post(path string, request interface{}, response errorCarrier) error {
	body, err := json.Marshal(request)
	if err != nil {
		return err
	}

	httpResponse, err := client.httpClient.Post(client.restURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(httpResponse.Body)
		return NewRESTError(httpResponse.StatusCode, string(text))
	}

	if err := json.NewDecoder(httpResponse.Body).Decode(response); err != nil {
		return err
	}

	if errorText := response.ResponseError(); errorText != "" {
		return NewRESTError(httpResponse.StatusCode, errorText)
	}

	return nil
}

// Register subscribes an endpoint ID with the agent and returns the
// issued registration data.
func (client *Client) Register(endpointID bpv7.EndpointID) (RegistrationData, error) {
	var response RestRegisterResponse
	if err := client.post("/register", RestRegisterRequest{EndpointID: endpointID}, &response); err != nil {
		return RegistrationData{}, err
	}

	log.WithFields(log.Fields{
		"endpoint": endpointID,
		"uuid":     response.UUID,
	}).Debug("Registered with REST agent")
	return RegistrationData{EndpointID: endpointID, UUID: response.UUID}, nil
}

// Unregister revokes a registration.
func (client *Client) Unregister(uuid string) error {
	var response RestUnregisterResponse
	return client.post("/unregister", RestUnregisterRequest{UUID: uuid}, &response)
}

// Fetch retrieves the registration's pending bundles, clearing them on
// the agent's side.
func (client *Client) Fetch(uuid string) ([]Bundle, error) {
	var response RestFetchResponse
	if err := client.post("/fetch", RestFetchRequest{UUID: uuid}, &response); err != nil {
		return nil, err
	}

	log.WithField("bundles", len(response.Bundles)).Debug("Fetched bundles from REST agent")
	return response.Bundles, nil
}

// BuildBundle hands bundle builder arguments to the agent, which builds
// and dispatches the bundle.
func (client *Client) BuildBundle(uuid string, args map[string]interface{}) error {
	var response RestBuildResponse
	return client.post("/build", RestBuildRequest{UUID: uuid, Args: args}, &response)
}

// SendBundle builds and dispatches a payload-carrying bundle. The payload
// should be plain text or base64-encoded binary data.
func (client *Client) SendBundle(uuid string, source, destination bpv7.EndpointID, payload, lifetime string) error {
	return client.BuildBundle(uuid, map[string]interface{}{
		"destination":            destination.String(),
		"source":                 source.String(),
		"creation_timestamp_now": 1,
		"lifetime":               lifetime,
		"payload_block":          payload,
	})
}
