//go:build unix && !linux

package mmap

const MAP_POPULATE = 0
