// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// dtnrest talks to a running dtnd instance through its REST application
// agent: registering endpoint IDs, sending bundles and dumping pending
// bundles' payloads.
package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn-go-client/pkg/bpv7"
	"github.com/dtn7/dtn-go-client/pkg/rest_agent"
)

func main() {
	parser := argparse.NewParser("dtnrest", "Interact with dtnd via the REST application agent")
	parser.ExitOnHelp(true)
	address := parser.String("a", "address", &argparse.Options{
		Help:    "Address of the REST agent",
		Default: "localhost",
	})
	port := parser.Int("p", "port", &argparse.Options{
		Help:    "Port of the REST agent",
		Default: 8080,
	})
	verbose := parser.Flag("v", "verbose", &argparse.Options{
		Help: "Enable debug logging",
	})

	register := parser.NewCommand("register", "Register an EndpointID")
	registerID := register.String("i", "eid", &argparse.Options{
		Help:     "EndpointID for the registration",
		Required: true,
	})
	registerFile := register.String("r", "registration-file", &argparse.Options{
		Help: "Write the registration data to a file",
	})

	unregister := parser.NewCommand("unregister", "Revoke a registration")
	unregisterFile := unregister.String("r", "registration-file", &argparse.Options{
		Help: "Load the registration data from a file",
	})
	unregisterUUID := unregister.String("u", "uuid", &argparse.Options{
		Help: "Manually provide the registration UUID",
	})

	fetch := parser.NewCommand("fetch", "Fetch pending bundles")
	fetchFile := fetch.String("r", "registration-file", &argparse.Options{
		Help: "Load the registration data from a file",
	})
	fetchUUID := fetch.String("u", "uuid", &argparse.Options{
		Help: "Manually provide the registration UUID",
	})
	fetchOutDir := fetch.String("o", "outdir", &argparse.Options{
		Help:    "Directory to write the payload files into",
		Default: ".",
	})

	send := parser.NewCommand("send", "Build and dispatch a bundle")
	sendFile := send.String("r", "registration-file", &argparse.Options{
		Help: "Load the registration data from a file",
	})
	sendEndpoint := send.String("e", "endpoint", &argparse.Options{
		Help: "Manually set the source EndpointID",
	})
	sendUUID := send.String("u", "uuid", &argparse.Options{
		Help: "Manually provide the registration UUID",
	})
	sendDestination := send.String("d", "destination", &argparse.Options{
		Help:     "EndpointID of the recipient",
		Required: true,
	})
	sendPayload := send.String("f", "payload", &argparse.Options{
		Help:    "Bundle's payload, either a filename to read or 'stdin'",
		Default: "stdin",
	})
	sendLifetime := send.String("l", "lifetime", &argparse.Options{
		Help:    "Lifetime of the bundle",
		Default: "24h",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000",
	})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	client := rest_agent.NewClient(*address, uint16(*port))

	if register.Happened() {
		handleRegister(client, *registerID, *registerFile)
	} else if unregister.Happened() {
		handleUnregister(client, *unregisterFile, *unregisterUUID)
	} else if fetch.Happened() {
		handleFetch(client, *fetchFile, *fetchUUID, *fetchOutDir)
	} else if send.Happened() {
		handleSend(client, *sendFile, *sendEndpoint, *sendUUID, *sendDestination, *sendPayload, *sendLifetime)
	}
}

func handleRegister(client *rest_agent.Client, eid, registrationFile string) {
	endpointID, err := bpv7.NewEndpointID(eid)
	if err != nil {
		log.WithError(err).Fatal("Invalid EndpointID")
	}

	data, err := client.Register(endpointID)
	if err != nil {
		log.WithError(err).Fatal("Registration failed")
	}

	if registrationFile == "" {
		fmt.Printf("Registration data: %v\n", data)
		return
	}
	if err := data.Save(registrationFile); err != nil {
		log.WithError(err).Fatal("Error writing registration data")
	}
	fmt.Printf("Registration data saved to: %v\n", registrationFile)
}

func handleUnregister(client *rest_agent.Client, registrationFile, uuid string) {
	data := loadRegistration(registrationFile, uuid)

	if err := client.Unregister(data.UUID); err != nil {
		log.WithError(err).Fatal("Unregistration failed")
	}
	fmt.Println("Success")
}

func handleFetch(client *rest_agent.Client, registrationFile, uuid, outDir string) {
	data := loadRegistration(registrationFile, uuid)

	bundles, err := client.Fetch(data.UUID)
	if err != nil {
		log.WithError(err).Fatal("Fetching bundles failed")
	}

	for _, bundle := range bundles {
		payload, ok := bundle.PayloadBlock()
		if !ok {
			log.WithField("bundle", bundle.Filename()).Warn("Bundle has no payload block")
			continue
		}

		path := filepath.Join(outDir, bundle.Filename())
		if err := os.WriteFile(path, payload.Data, 0644); err != nil {
			log.WithError(err).Fatal("Error writing payload")
		}
		fmt.Println(path)
	}
}

func handleSend(
	client *rest_agent.Client,
	registrationFile, endpoint, uuid, destination, payload, lifetime string,
) {
	var source bpv7.EndpointID
	var registrationUUID string

	if registrationFile != "" {
		data := loadRegistration(registrationFile, "")
		source, registrationUUID = data.EndpointID, data.UUID
	} else {
		if endpoint == "" || uuid == "" {
			log.Fatal("Must provide either a registration file or both an EndpointID and an UUID")
		}
		parsed, err := bpv7.NewEndpointID(endpoint)
		if err != nil {
			log.WithError(err).Fatal("Invalid source EndpointID")
		}
		source, registrationUUID = parsed, uuid
	}

	destinationID, err := bpv7.NewEndpointID(destination)
	if err != nil {
		log.WithError(err).Fatal("Invalid destination EndpointID")
	}

	payloadText, err := readPayload(payload)
	if err != nil {
		log.WithError(err).Fatal("Error reading payload")
	}

	if err := client.SendBundle(registrationUUID, source, destinationID, payloadText, lifetime); err != nil {
		log.WithError(err).Fatal("Sending bundle failed")
	}
	fmt.Println("Success")
}

// loadRegistration resolves the registration data from a file or an
// explicitly provided UUID.
func loadRegistration(registrationFile, uuid string) rest_agent.RegistrationData {
	if registrationFile != "" {
		data, err := rest_agent.LoadRegistrationData(registrationFile)
		if err != nil {
			log.WithError(err).Fatal("Error loading registration data")
		}
		return data
	}

	if uuid == "" {
		log.Fatal("Must provide either a registration file or an UUID")
	}
	return rest_agent.RegistrationData{UUID: uuid}
}

// readPayload reads the payload from a file, base64-encoding its
// contents for the transfer, or takes standard input verbatim for the
// special name "stdin".
func readPayload(source string) (string, error) {
	if source == "stdin" {
		text, err := io.ReadAll(os.Stdin)
		return string(text), err
	}

	contents, err := os.ReadFile(source)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(contents), nil
}
