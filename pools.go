package iris

import "sync"

var recordBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, DefaultMaxRecordSize)
	},
}

func releaseRecordBytes(b []byte) {
	recordBytesPool.Put(b[:0])
}
