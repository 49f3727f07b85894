// File: cmd/chatctl/main.go
package main

func main() {
	Execute()
}
