package main

import (
	"fmt"

	"github.com/backkem/homekey-reader/pkg/nfc"
)

func runReaders(args []string) error {
	fs, _ := newFlagSet("readers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	readers, err := nfc.ListReaders()
	if err != nil {
		return err
	}
	if len(readers) == 0 {
		return nfc.ErrNoReaders
	}
	for i, r := range readers {
		fmt.Printf("%d  %s\n", i, r)
	}
	return nil
}
