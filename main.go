package main

import "github.com/devopstoday11/rpmdistro-gitoverlay/cmd"

func main() {
	cmd.Execute()
}
