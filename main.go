// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Vigil - mmWave Fall-Detection Radar Monitor
//
// A CLI tool for monitoring and configuring 60 GHz mmWave fall-detection
// radar modules over their serial protocol.

package main

import (
	"os"

	"github.com/Thermoquad/vigil/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
