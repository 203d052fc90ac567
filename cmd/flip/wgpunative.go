// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build wgpunative

package main

import _ "github.com/gogpu/flip/backend/wgpunative" // registers "wgpunative"
