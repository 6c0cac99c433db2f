package main

import "github.com/maastricht-university/sincerity-pipeline/cmd"

func main() {
	cmd.Execute()
}
