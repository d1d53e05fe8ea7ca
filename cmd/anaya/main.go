// Package main is the entry point for the Anaya document QA service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/anaya/internal/docqa"
)

func main() {
	docqa.NewApp().Run()
}
