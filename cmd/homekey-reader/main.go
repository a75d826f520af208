// homekey-reader runs HomeKey NFC attestation against an endpoint in the
// reader field and records the resulting persistent key.
//
// Usage:
//
//	homekey-reader <command> [options]
//
// Commands:
//
//	readers   List PC/SC readers
//	attest    Attest the endpoint in the field and store its persistent key
//	emulate   Serve an emulated endpoint on a TCP relay address
//
// Options:
//
//	-config    Path to the YAML configuration (default: built-in defaults)
//	-reader    PC/SC reader index
//	-relay     Relay address; selects the relay driver
//	-endpoint  Endpoint identifier, hex (attest only)
//	-log       Log level: trace, debug, info, warn, error
//
// Example:
//
//	homekey-reader emulate -config bench.yaml &
//	homekey-reader attest -config bench.yaml -relay 127.0.0.1:7816 -endpoint 0102
package main

import (
	"fmt"
	"log"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "readers":
		err = runReaders(args)
	case "attest":
		err = runAttest(args)
	case "emulate":
		err = runEmulate(args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "-help", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  readers   List PC/SC readers\n")
	fmt.Fprintf(os.Stderr, "  attest    Attest the endpoint in the field\n")
	fmt.Fprintf(os.Stderr, "  emulate   Serve an emulated endpoint over the relay protocol\n")
	fmt.Fprintf(os.Stderr, "  version   Print the version\n")
	fmt.Fprintf(os.Stderr, "\nRun '%s <command> -h' for command options.\n", os.Args[0])
}
