/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/Ex1s9/microservices/cmd"

func main() {
	cmd.Execute()
}
