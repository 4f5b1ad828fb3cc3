package main

import "github.com/ValentinKolb/mKV/cmd"

func main() {
	cmd.Execute()
}
