// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned by repositories when a username has no credential.
var ErrNotFound = errors.New("not found")
