// Command reelhubctl runs integrity maintenance against a reelhub database.
package main

import "reelhub/cmd/reelhubctl/commands"

func main() {
	commands.Execute()
}
