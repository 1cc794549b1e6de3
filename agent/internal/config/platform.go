package config

import "runtime"

var isWindows = runtime.GOOS == "windows"
