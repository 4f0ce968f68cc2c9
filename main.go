package main

import (
	"log"
	"os"

	"github.com/phillip-england/hrms/internal/hrmscli"
)

func main() {
	if err := hrmscli.Execute(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
