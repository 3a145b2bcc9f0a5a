// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package auth

import (
	"log"

	"golang.org/x/sys/unix"
)

// verifyKeystorePermissions warns when keystore files are readable by other
// users. Warn-only: the files stay usable, the user is told to fix modes.
func verifyKeystorePermissions(path string) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return // missing file is fine
	}
	if st.Mode&0077 != 0 {
		log.Printf("warning: %s is accessible by other users (mode %04o); run chmod 600", path, st.Mode&0777)
	}
}
