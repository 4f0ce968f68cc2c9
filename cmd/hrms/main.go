package main

import (
	"fmt"
	"os"

	"github.com/phillip-england/hrms/internal/hrmscli"
)

func main() {
	if err := hrmscli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
