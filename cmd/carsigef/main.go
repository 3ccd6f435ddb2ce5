// carsigef is the unified CLI: API server, dataset inspection and registry
// totals import.
package main

import "github.com/zetta-ds/carsigef/internal/interfaces/cli"

func main() {
	cli.Execute()
}
