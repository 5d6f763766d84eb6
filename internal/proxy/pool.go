package proxy

import "sync"

// relayBufferSize is the chunk size each relay direction copies at a time
// when it goes through a buffer. Between two *net.TCPConn, io.CopyBuffer
// uses ReadFrom (splice on Linux) and the buffer is not touched; it serves
// every other conn pairing.
const relayBufferSize = 4096

type relayBuffer [relayBufferSize]byte

// relayBuffers holds *relayBuffer so Get and Put never allocate.
var relayBuffers = sync.Pool{
	New: func() any { return new(relayBuffer) },
}

func getRelayBuffer() *relayBuffer {
	return relayBuffers.Get().(*relayBuffer)
}

func putRelayBuffer(b *relayBuffer) {
	relayBuffers.Put(b)
}
