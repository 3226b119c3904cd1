/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/kraman82351/Task-management/cmd"

func main() {
	cmd.Execute()
}
