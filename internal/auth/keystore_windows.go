// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package auth

// verifyKeystorePermissions is a no-op on Windows, where POSIX mode bits do
// not apply; the keystore directory inherits the user profile ACL.
func verifyKeystorePermissions(path string) {}
