// cmd/main.go
package main

import cmd "github.com/simbacat/simbacat/cmd/simbacat"

// main starts the simbacat CLI by delegating to the cobra root command.
func main() {
	cmd.Execute()
}
