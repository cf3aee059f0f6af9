// Command importctl runs merchant CSV imports and schema migrations
// without the HTTP server.
package main

import (
	_ "github.com/JonMunkholm/merchant-import/internal/core/processors" // Register import domains
)

func main() {
	execute()
}
