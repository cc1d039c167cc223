package main

import "github.com/ValentinKolb/dMPI/cmd"

func main() {
	cmd.Execute()
}
