// Command gflow is the distributed dataflow execution engine's CLI
// entrypoint (spec.md §6.4).
package main

import "firestige.xyz/gflow/cmd"

func main() {
	cmd.Execute()
}
