package main

import "flag"

// Command-line flags. Anything not exposed here is set through the YAML
// config file.
var (
	configFlag = flag.String("config", "", "YAML config file overlaid on the built-in defaults")

	// backendFlag overrides solver.backend from the config.
	backendFlag = flag.String("backend", "", "compute backend: cpu or opencl (default from config)")

	telemetryDirFlag = flag.String("telemetry-dir", "", "write telemetry CSV files to this directory")

	// debugFlag enables the FPS and solver overlay.
	debugFlag = flag.Bool("debug", false, "show FPS and solver stats overlay")

	cpuProfileFlag = flag.String("cpuprofile", "", "write a CPU profile to this file")

	verboseFlag = flag.Bool("v", false, "log at debug level")
)
