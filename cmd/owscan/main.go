// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// owscan enumerates and reads the devices of a 1-Wire bus driven through a
// pulse channel.
package main

import "github.com/GermanBionicSystems/owrmt/cmd/owscan/cmd"

func main() {
	cmd.Execute()
}
