package main

import (
	"github.com/outofforest/proton"
	"github.com/outofforest/tandem/wire"
)

//go:generate go run .
func main() {
	proton.Generate("../types.proton.go",
		proton.Message[wire.RunRequest](),
		proton.Message[wire.RunResponse](),
	)
}
