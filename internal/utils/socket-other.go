//go:build !linux && !darwin

package utils

func setSocketOptions(fd uintptr) {}
