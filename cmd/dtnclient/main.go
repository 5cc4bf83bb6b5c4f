// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// dtnclient talks to a running dtnd instance through its UNIX domain
// socket application agent: registering endpoint IDs, creating bundles
// and listing respectively fetching a mailbox's bundles.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn-go-client/pkg/bpv7"
	"github.com/dtn7/dtn-go-client/pkg/unix_agent"
)

const (
	defaultSocket   = "/tmp/dtnd.socket"
	defaultLifetime = "24h"
	defaultInterval = 10 * time.Second
)

func main() {
	parser := argparse.NewParser("dtnclient", "Interact with dtnd via the UNIX application agent")
	parser.ExitOnHelp(true)
	address := parser.String("a", "address", &argparse.Options{
		Help: fmt.Sprintf("UNIX socket of dtnd's application agent, defaults to %v", defaultSocket),
	})
	configPath := parser.String("c", "config", &argparse.Options{
		Help: "TOML configuration file",
	})
	verbose := parser.Flag("v", "verbose", &argparse.Options{
		Help: "Enable debug logging",
	})

	register := parser.NewCommand("register", "Register an EndpointID")
	registerID := register.String("i", "eid", &argparse.Options{
		Help:     "Valid bpv7 EndpointID",
		Required: true,
	})
	unRegister := parser.NewCommand("unregister", "Unregister an EndpointID")
	unRegisterID := unRegister.String("i", "eid", &argparse.Options{
		Help:     "Valid bpv7 EndpointID",
		Required: true,
	})

	create := parser.NewCommand("create", "Create a bundle")
	createSource := create.String("s", "source", &argparse.Options{
		Help: "Bundle source EndpointID, may also come from the config file",
	})
	createDestination := create.String("d", "destination", &argparse.Options{
		Help:     "Bundle destination EndpointID",
		Required: true,
	})
	createReportTo := create.String("r", "report", &argparse.Options{
		Help: "EndpointID to send status reports to",
	})
	createTimestamp := create.String("t", "timestamp", &argparse.Options{
		Help:    "Bundle's creation timestamp: 'now', 'epoch' or an explicit time",
		Default: "now",
	})
	createLifetime := create.String("l", "lifetime", &argparse.Options{
		Help: fmt.Sprintf("Bundle's lifetime, defaults to %v", defaultLifetime),
	})
	createPayload := create.String("p", "payload", &argparse.Options{
		Help:    "Bundle's payload, either a filename to read or 'stdin'",
		Default: "stdin",
	})

	list := parser.NewCommand("list", "List bundles in a mailbox")
	listMailbox := list.String("m", "mailbox", &argparse.Options{
		Help:     "EndpointID of the mailbox",
		Required: true,
	})
	listNew := list.Flag("n", "new", &argparse.Options{
		Help: "List only new bundles which have not been retrieved before",
	})

	get := parser.NewCommand("get", "Get bundles from a mailbox")
	getMailbox := get.String("m", "mailbox", &argparse.Options{
		Help:     "EndpointID of the mailbox",
		Required: true,
	})
	getRemove := get.Flag("r", "remove", &argparse.Options{
		Help: "Delete bundles from the mailbox after retrieval",
	})

	getBundle := get.NewCommand("bundle", "Get a single bundle by its ID")
	getBundleID := getBundle.String("b", "bundle", &argparse.Options{
		Help:     "BundleID of the bundle",
		Required: true,
	})
	getBundleOutput := getBundle.String("o", "out", &argparse.Options{
		Help:    "Where to write the payload, either 'stdout' or a filename",
		Default: "stdout",
	})

	getAll := get.NewCommand("all", "Get all bundles of a mailbox")
	getAllNew := getAll.Flag("n", "new", &argparse.Options{
		Help: "Get only new bundles which have not been retrieved before",
	})
	getAllOutput := getAll.String("o", "outdir", &argparse.Options{
		Help:    "Directory to write the payload files into",
		Default: ".",
	})

	watch := parser.NewCommand("watch", "Periodically fetch a mailbox's new bundles")
	watchMailbox := watch.String("m", "mailbox", &argparse.Options{
		Help:     "EndpointID of the mailbox",
		Required: true,
	})
	watchOutput := watch.String("o", "outdir", &argparse.Options{
		Help:    "Directory to write the payload files into",
		Default: ".",
	})
	watchInterval := watch.String("i", "interval", &argparse.Options{
		Help: fmt.Sprintf("Polling interval, defaults to %v", defaultInterval),
	})
	watchRemove := watch.Flag("r", "remove", &argparse.Options{
		Help: "Delete bundles from the mailbox after retrieval",
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

	var conf config
	if *configPath != "" {
		var err error
		if conf, err = parse(*configPath); err != nil {
			log.WithError(err).Fatal("Config error")
		}
	}

	// command line beats config file beats built-in default
	socket := *address
	if socket == "" {
		socket = conf.Socket
	}
	if socket == "" {
		socket = defaultSocket
	}
	dial := unix_agent.UnixDialer(socket)

	if register.Happened() {
		handleRegisterUnregister(dial, *registerID, true)
	} else if unRegister.Happened() {
		handleRegisterUnregister(dial, *unRegisterID, false)
	} else if create.Happened() {
		handleCreate(
			dial,
			conf.Create,
			*createSource,
			*createDestination,
			*createReportTo,
			*createTimestamp,
			*createLifetime,
			*createPayload,
		)
	} else if list.Happened() {
		handleList(dial, *listMailbox, *listNew)
	} else if get.Happened() {
		if getBundle.Happened() {
			handleGetBundle(dial, *getMailbox, *getBundleID, *getBundleOutput, *getRemove)
		} else if getAll.Happened() {
			handleGetAll(dial, *getMailbox, *getAllOutput, *getAllNew, *getRemove)
		}
	} else if watch.Happened() {
		handleWatch(dial, conf.Watch, *watchMailbox, *watchOutput, *watchInterval, *watchRemove)
	}
}

// fatalExchangeError reports a failed exchange with dtnd and exits
// non-zero, giving each error class of the protocol its own message.
func fatalExchangeError(err error) {
	var daemonErr *unix_agent.DTNDError
	var dataErr *unix_agent.DataError

	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.WithError(err).Fatal("Could not connect to dtnd")
	case errors.As(err, &daemonErr):
		log.WithError(err).Fatal("dtnd responded with an error")
	case errors.As(err, &dataErr):
		log.WithError(err).Fatal("Error communicating with dtnd")
	default:
		log.WithError(err).Fatal("Error")
	}
}

func handleRegisterUnregister(dial unix_agent.DialFunc, eid string, register bool) {
	endpointID, err := bpv7.NewEndpointID(eid)
	if err != nil {
		log.WithError(err).Fatal("Invalid EndpointID")
	}

	if register {
		err = unix_agent.RegisterEndpointID(dial, endpointID)
	} else {
		err = unix_agent.UnregisterEndpointID(dial, endpointID)
	}
	if err != nil {
		fatalExchangeError(err)
	}

	fmt.Println("Success")
}

func handleCreate(
	dial unix_agent.DialFunc,
	conf createConfig,
	source, destination, reportTo, timestamp, lifetime, payload string,
) {
	args := make(map[string]interface{})

	if source == "" && !conf.Source.IsNone() {
		source = conf.Source.String()
	}
	if source == "" {
		log.Fatal("Must provide a bundle source, either with --source or in the config file")
	}
	sourceID, err := bpv7.NewEndpointID(source)
	if err != nil {
		log.WithError(err).Fatal("Invalid source EndpointID")
	}
	args["source"] = sourceID.String()

	destinationID, err := bpv7.NewEndpointID(destination)
	if err != nil {
		log.WithError(err).Fatal("Invalid destination EndpointID")
	}
	args["destination"] = destinationID.String()

	if reportTo != "" {
		reportToID, err := bpv7.NewEndpointID(reportTo)
		if err != nil {
			log.WithError(err).Fatal("Invalid report-to EndpointID")
		}
		args["report_to"] = reportToID.String()
	}

	switch timestamp {
	case "now":
		args["creation_timestamp_now"] = true
	case "epoch":
		args["creation_timestamp_epoch"] = true
	default:
		args["creation_timestamp_time"] = timestamp
	}

	if lifetime == "" {
		lifetime = conf.Lifetime
	}
	if lifetime == "" {
		lifetime = defaultLifetime
	}
	args["lifetime"] = lifetime

	payloadBytes, err := readPayload(payload)
	if err != nil {
		log.WithError(err).Fatal("Error reading payload")
	}
	args["payload_block"] = payloadBytes

	bundleID, err := unix_agent.CreateBundle(dial, args)
	if err != nil {
		fatalExchangeError(err)
	}

	fmt.Println(bundleID)
}

func handleList(dial unix_agent.DialFunc, mailbox string, newOnly bool) {
	mailboxID, err := bpv7.NewEndpointID(mailbox)
	if err != nil {
		log.WithError(err).Fatal("Invalid mailbox EndpointID")
	}

	bundles, err := unix_agent.ListBundles(dial, mailboxID, newOnly)
	if err != nil {
		fatalExchangeError(err)
	}

	for _, bundleID := range bundles {
		fmt.Println(bundleID)
	}
}

func handleGetBundle(dial unix_agent.DialFunc, mailbox, bundleID, output string, remove bool) {
	mailboxID, err := bpv7.NewEndpointID(mailbox)
	if err != nil {
		log.WithError(err).Fatal("Invalid mailbox EndpointID")
	}

	content, err := unix_agent.FetchBundle(dial, mailboxID, bundleID, remove)
	if err != nil {
		fatalExchangeError(err)
	}

	if output == "stdout" {
		_, _ = os.Stdout.Write(content.Payload)
		return
	}
	if err := os.WriteFile(output, content.Payload, 0644); err != nil {
		log.WithError(err).Fatal("Error writing payload")
	}
}

func handleGetAll(dial unix_agent.DialFunc, mailbox, outDir string, newOnly, remove bool) {
	mailboxID, err := bpv7.NewEndpointID(mailbox)
	if err != nil {
		log.WithError(err).Fatal("Invalid mailbox EndpointID")
	}

	contents, err := unix_agent.FetchAllBundles(dial, mailboxID, newOnly, remove)
	if err != nil {
		fatalExchangeError(err)
	}

	for _, content := range contents {
		path, err := writePayload(outDir, content)
		if err != nil {
			log.WithError(err).Fatal("Error writing payload")
		}
		fmt.Println(path)
	}
}

func handleWatch(
	dial unix_agent.DialFunc,
	conf watchConfig,
	mailbox, outDir, interval string,
	remove bool,
) {
	mailboxID, err := bpv7.NewEndpointID(mailbox)
	if err != nil {
		log.WithError(err).Fatal("Invalid mailbox EndpointID")
	}

	pollInterval := conf.Interval
	if interval != "" {
		if pollInterval, err = time.ParseDuration(interval); err != nil {
			log.WithError(err).Fatal("Invalid watch interval")
		}
	}
	if pollInterval <= 0 {
		pollInterval = defaultInterval
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.WithError(err).Fatal("Error initializing scheduler")
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(
			pollInterval,
		),
		gocron.NewTask(func() {
			contents, err := unix_agent.FetchAllBundles(dial, mailboxID, true, remove)
			if err != nil {
				log.WithError(err).Error("Error fetching new bundles")
				return
			}

			for _, content := range contents {
				path, err := writePayload(outDir, content)
				if err != nil {
					log.WithError(err).Error("Error writing payload")
					continue
				}
				log.WithFields(log.Fields{
					"bundle": content.BundleID,
					"file":   path,
				}).Info("Stored new bundle")
			}
		}),
	)
	if err != nil {
		log.WithError(err).Fatal("Error initializing watch job")
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	log.WithFields(log.Fields{
		"mailbox":  mailboxID,
		"interval": pollInterval,
	}).Info("Watching mailbox")

	// wait for SIGINT or SIGTERM
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// readPayload reads the bundle payload from a file or, for the special
// name "stdin", from standard input.
func readPayload(source string) ([]byte, error) {
	if source == "stdin" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(source)
}

// writePayload stores a bundle's payload in outDir, named after the
// bundle ID with path separators stripped.
func writePayload(outDir string, content unix_agent.BundleContent) (string, error) {
	filename := strings.ReplaceAll(content.BundleID, "/", "")
	path := filepath.Join(outDir, filename)
	return path, os.WriteFile(path, content.Payload, 0644)
}
