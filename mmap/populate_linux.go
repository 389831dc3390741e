package mmap

import "golang.org/x/sys/unix"

const MAP_POPULATE = unix.MAP_POPULATE
