package main

import (
	"log"

	"github.com/jobsieve/jobsieve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
