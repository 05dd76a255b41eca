package main

import (
	"log"

	"github.com/psds-microservice/rma-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
