package main

import "reviewflow/internal/app/server"

func main() {
	server.Run()
}
