package main

import (
	_ "github.com/rubiojr/bindgen/bridge/capi"
	_ "github.com/rubiojr/bindgen/bridge/jni"
	"github.com/rubiojr/bindgen/cmd"
)

var version = "v0.1.0"

func main() {
	cmd.Execute(version)
}
