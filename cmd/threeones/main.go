// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command threeones builds decision tables for the three-ones search
// problem and runs, verifies and serves them.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/AleutianAI/threeones/pkg/ux"
)

func main() {
	root, a := newRootCmd()
	err := root.Execute()
	if err := errors.Join(err, a.close(context.Background())); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}
