package main

import "github.com/qrave1/GoldLink/cmd"

func main() {
	cmd.Execute()
}
