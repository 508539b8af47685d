/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/kustomzone/hyperbee/cmd/hyperbee/cmd"
)

func main() {
	cmd.Execute()
}
