package main

import (
	"blobscribe/cmd/blobscribe/cmd"
)

func main() {
	cmd.Execute()
}
