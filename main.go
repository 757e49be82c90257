// The main package for the midi-proxy executable.
package main

import (
	"github.com/awertt/midi-proxy/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
