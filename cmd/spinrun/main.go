// Command spinrun runs the Spin model checker: syntax checks, random and
// interactive simulations and the spin/cc/pan verification pipeline.
package main

import "os"

func main() {
	os.Exit(Execute())
}
