package main

import "github.com/KaramelBytes/parcelprep/cmd"

func main() {
	cmd.Execute()
}
