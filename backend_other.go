//go:build !linux

package swa

func systemBackends() []backend { return nil }
