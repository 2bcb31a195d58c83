// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"os"
	"strconv"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// ReuseIREnvVar is the environment variable that sets the initial value of the reuse flag (see SetReuseIR).
// It accepts the values of strconv.ParseBool. Default is true.
const ReuseIREnvVar = "GOMLX_LAZY_REUSE_IR"

var reuseIR atomic.Bool

func init() {
	reuseIR.Store(reuseIRFromEnv())
}

func reuseIRFromEnv() bool {
	value, found := os.LookupEnv(ReuseIREnvVar)
	if !found || value == "" {
		return true
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		klog.Warningf("Invalid value $%s=%q, it must be a boolean: keeping IR reuse enabled", ReuseIREnvVar, value)
		return true
	}
	return enabled
}

// ReuseIREnabled returns whether nodes created by a Context are looked up and inserted in its ReuseCache.
//
// It is read at every Context.Create call.
func ReuseIREnabled() bool {
	return reuseIR.Load()
}

// SetReuseIR enables or disables the reuse of nodes, process-wide, and returns the previous value.
//
// Reuse is only an optimization: results must never depend on it. It is meant for testing and tuning.
func SetReuseIR(enabled bool) (previous bool) {
	return reuseIR.Swap(enabled)
}
