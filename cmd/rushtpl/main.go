// Command rushtpl is the command-line front end of the rushtpl engine.
package main

import "github.com/0xTanzim/rushtpl/internal/cli"

func main() {
	cli.Execute()
}
