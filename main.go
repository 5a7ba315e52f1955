package main

import (
	"github.com/mbertho/scrapview/cmd"
)

func main() {
	cmd.Execute()
}
