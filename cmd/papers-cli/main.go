package main

import (
	"context"

	"pastpapers-backend/cmd/papers-cli/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
