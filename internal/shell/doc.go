// SPDX-License-Identifier: MPL-2.0

// Package shell runs command lines for build commands through an embedded
// POSIX shell interpreter (mvdan.cc/sh), so the same command works on
// every platform without a system shell.
package shell
