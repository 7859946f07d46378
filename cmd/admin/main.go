package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/admin"
)

func main() {
	os.Exit(admin.Execute(context.Background(), os.Args[1:], admin.Options{}))
}
